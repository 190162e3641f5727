package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/cashflow-ledger/internal/database"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

// ErrRoleNotFound is returned when assigning a role that does not exist.
var ErrRoleNotFound = errors.New("role not found")

// MembershipRepository handles actor-to-company role bindings.
type MembershipRepository struct {
	db database.PGXDB
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(db database.PGXDB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// GetMembership returns the actor's membership with its role and permissions.
// It returns nil and no error when the actor is not a member of the company.
func (r *MembershipRepository) GetMembership(ctx context.Context, actorID, tenantID string) (*models.Membership, error) {
	var (
		m     models.Membership
		perms []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT uc.actor_id, uc.company_id, uc.created_at, r.id, r.name, r.permissions
		FROM user_companies uc
		JOIN roles r ON r.id = uc.role_id
		WHERE uc.actor_id = $1 AND uc.company_id = $2
	`, actorID, tenantID).Scan(&m.ActorID, &m.CompanyID, &m.CreatedAt, &m.Role.ID, &m.Role.Name, &perms)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	m.Role.Permissions = models.RolePermissionSet{}
	if err := json.Unmarshal(perms, &m.Role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions of role %q: %w", m.Role.Name, err)
	}
	return &m, nil
}

// Assign binds the actor to the company with the named role, replacing any
// previous role.
func (r *MembershipRepository) Assign(ctx context.Context, actorID, tenantID, roleName string) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO user_companies (actor_id, company_id, role_id)
		SELECT $1, $2, id FROM roles WHERE name = $3
		ON CONFLICT (actor_id, company_id) DO UPDATE SET role_id = EXCLUDED.role_id
	`, actorID, tenantID, roleName)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, roleName)
	}
	return nil
}

// Remove deletes the actor's membership in the company.
func (r *MembershipRepository) Remove(ctx context.Context, actorID, tenantID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_companies WHERE actor_id = $1 AND company_id = $2`, actorID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}

// ListTenants returns the companies the actor belongs to, ordered by name.
func (r *MembershipRepository) ListTenants(ctx context.Context, actorID string) ([]models.Company, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.name, c.created_at
		FROM user_companies uc
		JOIN companies c ON c.id = uc.company_id
		WHERE uc.actor_id = $1
		ORDER BY c.name
	`, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}
	return companies, nil
}
