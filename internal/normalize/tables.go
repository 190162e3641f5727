package normalize

import (
	"strings"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

// Canonical payment methods.
const (
	PaymentCash         = "Cash"
	PaymentPOS          = "POS"
	PaymentCreditCard   = "CreditCard"
	PaymentDebitCard    = "DebitCard"
	PaymentBankTransfer = "BankTransfer"
	PaymentCheck        = "Check"
	PaymentPayPal       = "PayPal"
	PaymentDirectDebit  = "DirectDebit"
)

// Canonical document types.
const (
	DocumentInvoice      = "Invoice"
	DocumentReceipt      = "Receipt"
	DocumentDeliveryNote = "DeliveryNote"
	DocumentCreditNote   = "CreditNote"
	DocumentBill         = "Bill"
	DocumentProForma     = "ProForma"
)

// Canonical payment terms.
const (
	TermsImmediate    = "Immediate"
	TermsAdvance      = "Advance"
	TermsNet30        = "Net30"
	TermsNet60        = "Net60"
	TermsNet90        = "Net90"
	TermsEndOfMonth   = "EndOfMonth"
	TermsOnDelivery   = "OnDelivery"
	TermsInstallments = "Installments"
)

var paymentMethods = buildTable(map[string][]string{
	PaymentCash:         {"contanti", "contante", "in contanti", "cash", "banconote", "soldi"},
	PaymentPOS:          {"bancomat", "pagobancomat", "carta bancomat", "pos"},
	PaymentCreditCard:   {"carta di credito", "carta", "credit card", "visa", "mastercard", "amex", "american express"},
	PaymentDebitCard:    {"carta di debito", "debit card", "postepay", "prepagata", "carta prepagata"},
	PaymentBankTransfer: {"bonifico", "bonifico bancario", "bonifico sepa", "bank transfer", "wire transfer", "wire"},
	PaymentCheck:        {"assegno", "assegno bancario", "assegno circolare", "check", "cheque"},
	PaymentPayPal:       {"paypal", "pay pal"},
	PaymentDirectDebit:  {"rid", "sdd", "addebito diretto", "addebito in conto", "domiciliazione", "direct debit"},
})

var documentTypes = buildTable(map[string][]string{
	DocumentInvoice:      {"fattura", "fattura elettronica", "invoice", "ft"},
	DocumentReceipt:      {"ricevuta", "ricevuta fiscale", "scontrino", "scontrino fiscale", "receipt"},
	DocumentDeliveryNote: {"ddt", "bolla", "bolla di consegna", "documento di trasporto", "delivery note"},
	DocumentCreditNote:   {"nota di credito", "credit note"},
	DocumentBill:         {"bolletta", "utenza", "bill"},
	DocumentProForma:     {"proforma", "pro forma", "fattura proforma", "pro-forma"},
})

var paymentTerms = buildTable(map[string][]string{
	TermsImmediate:    {"immediato", "pagamento immediato", "a vista", "subito", "immediate"},
	TermsAdvance:      {"anticipato", "anticipo", "in anticipo", "pagamento anticipato", "advance", "prepaid"},
	TermsNet30:        {"30 giorni", "a 30 giorni", "30 gg", "net 30", "30 days"},
	TermsNet60:        {"60 giorni", "a 60 giorni", "60 gg", "net 60", "60 days"},
	TermsNet90:        {"90 giorni", "a 90 giorni", "90 gg", "net 90", "90 days"},
	TermsEndOfMonth:   {"fine mese", "fm", "data fattura fine mese", "dffm", "end of month"},
	TermsOnDelivery:   {"alla consegna", "contrassegno", "on delivery", "cash on delivery"},
	TermsInstallments: {"rate", "a rate", "rateale", "rateizzato", "installments"},
})

var kinds = buildTable(map[string][]string{
	string(models.KindExpense): {"spesa", "uscita", "costo", "acquisto", "fattura passiva", "pagamento"},
	string(models.KindIncome):  {"entrata", "incasso", "ricavo", "vendita", "fattura attiva", "guadagno"},
})

var currencies = buildCurrencyTable(map[string][]string{
	"EUR": {"euro", "euri", "€"},
	"USD": {"dollaro", "dollari", "dollar", "dollars", "$"},
	"GBP": {"sterlina", "sterline", "pound", "pounds", "£"},
	"CHF": {"franco svizzero", "franchi svizzeri", "franchi"},
	"JPY": {"yen"},
})

// buildTable maps every synonym, and every canonical value itself, to the
// canonical value. Keys are stored in lookup form.
func buildTable(synonyms map[string][]string) map[string]string {
	table := make(map[string]string)
	for canonical, words := range synonyms {
		table[lookupKey(canonical)] = canonical
		for _, w := range words {
			table[lookupKey(w)] = canonical
		}
	}
	return table
}

func buildCurrencyTable(synonyms map[string][]string) map[string]string {
	table := buildTable(synonyms)
	for code := range models.SupportedCurrencies {
		table[lookupKey(code)] = code
	}
	return table
}

// lookupKey lowercases, trims, and collapses inner whitespace.
func lookupKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func canonicalize(table map[string]string, value string) (string, bool) {
	canonical, ok := table[lookupKey(value)]
	return canonical, ok
}

func passThrough(table map[string]string, value string) string {
	if canonical, ok := canonicalize(table, value); ok {
		return canonical
	}
	return value
}

// NormalizePaymentMethod maps a payment method synonym to its canonical value.
// Unknown values are returned unchanged.
func NormalizePaymentMethod(value string) string {
	return passThrough(paymentMethods, value)
}

// NormalizeDocumentType maps a document type synonym to its canonical value.
// Unknown values are returned unchanged.
func NormalizeDocumentType(value string) string {
	return passThrough(documentTypes, value)
}

// NormalizePaymentTerms maps a payment terms synonym to its canonical value.
// Unknown values are returned unchanged.
func NormalizePaymentTerms(value string) string {
	return passThrough(paymentTerms, value)
}

// NormalizeCurrency maps a currency name or symbol to its ISO code.
// Unknown values are returned unchanged.
func NormalizeCurrency(value string) string {
	return passThrough(currencies, value)
}

// IsPaymentMethod reports whether value belongs to the payment method vocabulary.
func IsPaymentMethod(value string) bool {
	_, ok := canonicalize(paymentMethods, value)
	return ok
}

// IsPaymentTerms reports whether value belongs to the payment terms vocabulary.
func IsPaymentTerms(value string) bool {
	_, ok := canonicalize(paymentTerms, value)
	return ok
}

// ParseKind maps a kind synonym ("spesa", "entrata", "income") to a record kind.
func ParseKind(value string) (models.Kind, bool) {
	canonical, ok := canonicalize(kinds, value)
	if !ok {
		return "", false
	}
	return models.Kind(canonical), true
}

func isCanonical(table map[string]string, value string) bool {
	canonical, ok := canonicalize(table, value)
	return ok && canonical == value
}

// IsCanonicalPaymentMethod reports whether value is exactly one of the canonical payment methods.
func IsCanonicalPaymentMethod(value string) bool {
	return isCanonical(paymentMethods, value)
}

// IsCanonicalDocumentType reports whether value is exactly one of the canonical document types.
func IsCanonicalDocumentType(value string) bool {
	return isCanonical(documentTypes, value)
}

// IsCanonicalPaymentTerms reports whether value is exactly one of the canonical payment terms.
func IsCanonicalPaymentTerms(value string) bool {
	return isCanonical(paymentTerms, value)
}
