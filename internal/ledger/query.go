package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-analyze/charts"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/cashflow-ledger/internal/authz"
	"gitlab.com/yelinaung/cashflow-ledger/internal/exchange"
	"gitlab.com/yelinaung/cashflow-ledger/internal/logger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/repository"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("no records to chart")

// chartLimit bounds the rows loaded for a chart.
const chartLimit = 1000

// maxChartSlices keeps the pie readable; the rest is grouped as "Other".
const maxChartSlices = 8

// Query selects records visible to the actor. An empty Kind covers every
// kind the actor may read; an empty Scope uses the role's scope.
type Query struct {
	Scope models.Scope
	Kind  models.Kind
	From  time.Time
	To    time.Time
	Limit int
}

// Stats summarizes the visible records. Totals are in Currency; daily totals
// in a currency that could not be converted are listed in Unconverted and
// left out of every sum.
type Stats struct {
	Currency        string                `json:"currency"`
	TotalExpenses   decimal.Decimal       `json:"total_expenses"`
	TotalIncomes    decimal.Decimal       `json:"total_incomes"`
	Net             decimal.Decimal       `json:"net"`
	Count           int                   `json:"count"`
	Days            int                   `json:"days"`
	AveragePerDay   decimal.Decimal       `json:"average_expense_per_day"`
	TopCounterparty string                `json:"top_counterparty"`
	ByDay           []repository.DayTotal `json:"by_day"`
	Unconverted     []repository.DayTotal `json:"unconverted,omitempty"`
}

// List returns the visible records, newest first.
func (s *Service) List(ctx context.Context, actor Actor, q Query) ([]models.Record, error) {
	filters, err := s.readFilters(ctx, actor, q)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	for _, f := range filters {
		batch, err := s.store.ListByTenant(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}
		records = append(records, batch...)
	}

	slices.SortStableFunc(records, func(a, b models.Record) int {
		if c := b.OccurredOn.Compare(a.OccurredOn); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Stats returns totals, the number of records, the average expense per day
// with expenses and the most frequent expense counterparty.
func (s *Service) Stats(ctx context.Context, actor Actor, q Query) (*Stats, error) {
	filters, err := s.readFilters(ctx, actor, q)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Currency: s.currency}
	expenseDays := map[time.Time]bool{}
	counterparties := map[string]int{}
	rates := map[string]exchange.Rate{}

	for _, f := range filters {
		totals, err := s.store.TotalsByDay(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to load totals: %w", err)
		}
		for _, t := range totals {
			converted, ok := s.toBaseCurrency(ctx, t, rates)
			if !ok {
				stats.Unconverted = append(stats.Unconverted, t)
				continue
			}
			stats.ByDay = append(stats.ByDay, converted)
		}

		if f.Kind != models.KindExpense {
			continue
		}
		f.Limit = chartLimit
		expenses, err := s.store.ListByTenant(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to list expenses: %w", err)
		}
		for _, e := range expenses {
			if e.Counterparty != "" {
				counterparties[e.Counterparty]++
			}
		}
	}
	stats.ByDay = mergeDayTotals(stats.ByDay)

	days := map[time.Time]bool{}
	for _, t := range stats.ByDay {
		stats.Count += t.Count
		days[t.Day] = true
		switch t.Kind {
		case models.KindExpense:
			stats.TotalExpenses = stats.TotalExpenses.Add(t.Total)
			expenseDays[t.Day] = true
		case models.KindIncome:
			stats.TotalIncomes = stats.TotalIncomes.Add(t.Total)
		}
	}

	stats.Days = len(days)
	stats.Net = stats.TotalIncomes.Sub(stats.TotalExpenses)
	if len(expenseDays) > 0 {
		stats.AveragePerDay = stats.TotalExpenses.Div(decimal.NewFromInt(int64(len(expenseDays)))).Round(2)
	}
	stats.TopCounterparty = topKey(counterparties)

	return stats, nil
}

// toBaseCurrency converts a daily total into the service currency. Rates are
// looked up once per currency per call and remembered in rates.
func (s *Service) toBaseCurrency(ctx context.Context, t repository.DayTotal, rates map[string]exchange.Rate) (repository.DayTotal, bool) {
	if t.Currency == "" || t.Currency == s.currency {
		t.Currency = s.currency
		return t, true
	}
	if s.rates == nil {
		return t, false
	}

	rate, ok := rates[t.Currency]
	if !ok {
		var err error
		rate, err = s.rates.Rate(ctx, t.Currency, s.currency)
		if err != nil {
			logger.FromContext(ctx).Warn().Err(err).
				Str("from", t.Currency).
				Str("to", s.currency).
				Msg("exchange rate unavailable, total left unconverted")
			return t, false
		}
		rates[t.Currency] = rate
	}

	t.Total = rate.Apply(t.Total)
	t.Currency = s.currency
	return t, true
}

// mergeDayTotals folds totals sharing day and kind, oldest first.
func mergeDayTotals(totals []repository.DayTotal) []repository.DayTotal {
	slices.SortStableFunc(totals, func(a, b repository.DayTotal) int {
		if c := a.Day.Compare(b.Day); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})

	var out []repository.DayTotal
	for _, t := range totals {
		if n := len(out); n > 0 && out[n-1].Day.Equal(t.Day) && out[n-1].Kind == t.Kind {
			out[n-1].Total = out[n-1].Total.Add(t.Total)
			out[n-1].Count += t.Count
			continue
		}
		out = append(out, t)
	}
	return out
}

// StatsChart renders a PNG pie chart of visible expenses by counterparty.
func (s *Service) StatsChart(ctx context.Context, actor Actor, q Query) ([]byte, error) {
	q.Kind = models.KindExpense
	q.Limit = chartLimit

	records, err := s.List(ctx, actor, q)
	if err != nil {
		return nil, err
	}
	return ExpenseChart(records, chartTitle(q))
}

// ExpenseChart renders expense totals per counterparty as a PNG pie chart.
func ExpenseChart(records []models.Record, title string) ([]byte, error) {
	names, values := aggregateByCounterparty(records)
	if len(values) == 0 {
		return nil, ErrNoData
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{Text: title}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// aggregateByCounterparty sums expenses per counterparty, largest first,
// folding everything past maxChartSlices into "Other".
func aggregateByCounterparty(records []models.Record) ([]string, []float64) {
	totals := map[string]decimal.Decimal{}
	for _, r := range records {
		if r.Kind != models.KindExpense {
			continue
		}
		name := r.Counterparty
		if name == "" {
			name = "Unknown"
		}
		totals[name] = totals[name].Add(r.Amount)
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := totals[b].Cmp(totals[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	var other decimal.Decimal
	if len(names) > maxChartSlices {
		for _, name := range names[maxChartSlices-1:] {
			other = other.Add(totals[name])
		}
		names = append(names[:maxChartSlices-1], "Other")
		totals["Other"] = other
	}

	values := make([]float64, len(names))
	for i, name := range names {
		values[i] = totals[name].InexactFloat64()
	}
	return names, values
}

func chartTitle(q Query) string {
	switch {
	case !q.From.IsZero() && !q.To.IsZero():
		return fmt.Sprintf("Expenses %s to %s", q.From.Format(models.DateLayout), q.To.Format(models.DateLayout))
	case !q.From.IsZero():
		return "Expenses since " + q.From.Format(models.DateLayout)
	default:
		return "Expenses by counterparty"
	}
}

func topKey(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	if best == "" {
		return "N/A"
	}
	return best
}

// readFilters authorizes reads for each requested kind and returns one row
// filter per kind the actor may read. It fails only when no kind is readable.
func (s *Service) readFilters(ctx context.Context, actor Actor, q Query) ([]repository.RecordFilter, error) {
	m, err := s.membership(ctx, actor)
	if err != nil {
		return nil, err
	}

	kinds := []models.Kind{models.KindExpense, models.KindIncome}
	if q.Kind != "" {
		kinds = []models.Kind{q.Kind}
	}

	var filters []repository.RecordFilter
	for _, kind := range kinds {
		d := authz.Resolve(m, authz.ResourceForKind(kind), authz.ActionRead, q.Scope)
		if !d.Allowed {
			continue
		}
		f := d.Filter(actor.ID, actor.TenantID)
		filters = append(filters, repository.RecordFilter{
			TenantID:   f.TenantID,
			OwnerID:    f.OwnerID,
			AllTenants: f.AllTenants,
			Kind:       kind,
			From:       q.From,
			To:         q.To,
			Limit:      q.Limit,
		})
	}

	if len(filters) == 0 {
		// Report the denial of the first kind asked for.
		_, err := s.decide(ctx, m, authz.ResourceForKind(kinds[0]), authz.ActionRead, q.Scope)
		return nil, err
	}
	return filters, nil
}
