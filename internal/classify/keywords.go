package classify

import (
	"slices"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
)

var incomeKeywords = []string{
	"incasso", "incassato", "incassata", "incassati", "incassare",
	"entrata", "entrate", "ricavo", "ricavi",
	"vendita", "venduto", "venduta", "venduti",
	"mi hanno pagato", "ci hanno pagato", "ho ricevuto", "abbiamo ricevuto", "pagamento ricevuto",
	"accredito", "accreditato", "accreditati", "bonifico ricevuto",
	"fattura emessa", "ho emesso", "guadagno", "guadagnato", "compenso", "parcella",
	"income", "received", "earned", "sold", "got paid", "revenue",
}

var expenseKeywords = []string{
	"ho pagato", "abbiamo pagato", "ho gia pagato", "pagato con", "pagata con", "devo pagare", "da pagare",
	"speso", "spesa", "spese", "acquisto", "acquistato", "comprato", "comprata",
	"scontrino", "bolletta", "costo", "costato", "uscita", "uscite",
	"fornitore", "noleggio", "affitto", "rifornimento",
	"expense", "paid", "bought", "spent", "purchase",
}

// keywords lists income keywords first, then expense keywords, so both sets
// compete for the same words: "got paid" is one income hit, not also "paid".
var keywords = append(slices.Clone(incomeKeywords), expenseKeywords...)

// Score counts non-overlapping income and expense keyword occurrences in the transcript.
func Score(matcher normalize.Matcher, transcript string) (income, expense int) {
	counts := matcher.CountEach(normalize.NewText(transcript), keywords)
	for i, n := range counts {
		if i < len(incomeKeywords) {
			income += n
		} else {
			expense += n
		}
	}
	return income, expense
}

// DetectKind picks the kind with more keyword hits. Ties, including no hits
// at all, resolve to expense.
func DetectKind(matcher normalize.Matcher, transcript string) models.Kind {
	income, expense := Score(matcher, transcript)
	if income > expense {
		return models.KindIncome
	}
	return models.KindExpense
}
