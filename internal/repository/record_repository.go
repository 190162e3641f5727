package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/cashflow-ledger/internal/database"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

var (
	// ErrRecordNotFound is returned when no record matches the id within the tenant.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateDocument is returned when a document reference is reused within a tenant and kind.
	ErrDuplicateDocument = errors.New("document reference already recorded")
)

const uniqueViolation = "23505"

// DefaultListLimit caps listings that do not set a limit.
const DefaultListLimit = 100

// RecordFilter restricts which rows a listing returns. TenantID is ignored
// when AllTenants is set; OwnerID restricts to a single actor's rows.
type RecordFilter struct {
	TenantID   string
	OwnerID    string
	AllTenants bool
	Kind       models.Kind
	From       time.Time
	To         time.Time
	Limit      int
}

// DayTotal is the sum of amounts of one kind and currency on one day.
type DayTotal struct {
	Day      time.Time       `json:"day"`
	Kind     models.Kind     `json:"kind"`
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// RecordRepository handles ledger record database operations.
type RecordRepository struct {
	db database.PGXDB
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(db database.PGXDB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `id, kind, amount, currency, occurred_on, recorded_at, counterparty, payment_method,
	payment_terms, bank, document_ref, document_type, status, description, source, owner_id, tenant_id`

// Insert stores a new record and fills its id and recorded_at.
func (r *RecordRepository) Insert(ctx context.Context, record *models.Record) error {
	if record.Status == "" {
		record.Status = models.RecordStatusConfirmed
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO records (kind, amount, currency, occurred_on, recorded_at, counterparty, payment_method,
			payment_terms, bank, document_ref, document_type, status, description, source, owner_id, tenant_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`, record.Kind, record.Amount, record.Currency, record.OccurredOn, record.RecordedAt, record.Counterparty,
		record.PaymentMethod, record.PaymentTerms, record.Bank, record.DocumentRef, record.DocumentType,
		record.Status, record.Description, record.Source, record.OwnerID, record.TenantID,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", mapWriteError(err))
	}
	return nil
}

// GetByID retrieves a record by id within a tenant.
func (r *RecordRepository) GetByID(ctx context.Context, id int64, tenantID string) (*models.Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// Update replaces every mutable column of the record identified by id within
// the tenant. Kind, owner and recorded_at are kept from the stored row.
func (r *RecordRepository) Update(ctx context.Context, id int64, tenantID string, record *models.Record) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE records SET
			amount = $3,
			currency = $4,
			occurred_on = $5,
			counterparty = $6,
			payment_method = $7,
			payment_terms = $8,
			bank = $9,
			document_ref = $10,
			document_type = $11,
			status = $12,
			description = $13,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, record.Amount, record.Currency, record.OccurredOn, record.Counterparty,
		record.PaymentMethod, record.PaymentTerms, record.Bank, record.DocumentRef, record.DocumentType,
		record.Status, record.Description)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", mapWriteError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	record.ID = id
	record.TenantID = tenantID
	return nil
}

// Delete removes a record by id within a tenant.
func (r *RecordRepository) Delete(ctx context.Context, id int64, tenantID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM records WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListByTenant returns records matching the filter, newest first.
func (r *RecordRepository) ListByTenant(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	where, args := filterClause(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)

	rows, err := r.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		`+where+`
		ORDER BY occurred_on DESC, id DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// TotalsByDay sums amounts per day, kind and currency for the filtered rows.
func (r *RecordRepository) TotalsByDay(ctx context.Context, filter RecordFilter) ([]DayTotal, error) {
	where, args := filterClause(filter)

	rows, err := r.db.Query(ctx, `
		SELECT occurred_on, kind, currency, COALESCE(SUM(amount), 0), COUNT(*)
		FROM records
		`+where+`
		GROUP BY occurred_on, kind, currency
		ORDER BY occurred_on, kind, currency
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	var totals []DayTotal
	for rows.Next() {
		var dt DayTotal
		if err := rows.Scan(&dt.Day, &dt.Kind, &dt.Currency, &dt.Total, &dt.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		totals = append(totals, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily totals: %w", err)
	}
	return totals, nil
}

func filterClause(f RecordFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.AllTenants {
		add("tenant_id = $%d", f.TenantID)
	}
	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if !f.From.IsZero() {
		add("occurred_on >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_on <= $%d", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (*models.Record, error) {
	var rec models.Record
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Amount, &rec.Currency, &rec.OccurredOn, &rec.RecordedAt,
		&rec.Counterparty, &rec.PaymentMethod, &rec.PaymentTerms, &rec.Bank, &rec.DocumentRef,
		&rec.DocumentType, &rec.Status, &rec.Description, &rec.Source, &rec.OwnerID, &rec.TenantID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateDocument
	}
	return err
}
