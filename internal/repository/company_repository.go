package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/cashflow-ledger/internal/database"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

// ErrCompanyNotFound is returned when no company has the given id.
var ErrCompanyNotFound = errors.New("company not found")

// CompanyRepository handles tenant database operations.
type CompanyRepository struct {
	db database.PGXDB
}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository(db database.PGXDB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Upsert creates the company or renames an existing one.
func (r *CompanyRepository) Upsert(ctx context.Context, company *models.Company) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO companies (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at
	`, company.ID, company.Name).Scan(&company.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}

// GetByID retrieves a company.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	var c models.Company
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}
