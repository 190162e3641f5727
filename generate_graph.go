//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/cashflow-ledger/internal/ledger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

func main() {
	expense := func(counterparty string, amount float64) models.Record {
		return models.Record{Kind: models.KindExpense, Counterparty: counterparty, Amount: decimal.NewFromFloat(amount)}
	}
	records := []models.Record{
		expense("Enel Energia", 150.50),
		expense("Bar Roma", 37.43),
		expense("Trenitalia", 60.00),
		expense("Telecom Italia", 25.00),
		expense("Esselunga", 120.00),
		expense("Bar Roma", 12.80),
	}

	chartData, err := ledger.ExpenseChart(records, "June 2024")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("graph.png", chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Created graph.png - Example expense breakdown by counterparty")
}
