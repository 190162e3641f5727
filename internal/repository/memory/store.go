// Package memory provides in-memory record and membership stores with the
// same semantics as the PostgreSQL repositories.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/repository"
)

// RecordStore keeps records in a map. It is safe for concurrent use.
type RecordStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]models.Record
}

// NewRecordStore creates an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[int64]models.Record)}
}

// Insert stores a copy of record and assigns its id.
func (s *RecordStore) Insert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.DocumentRef != "" && !models.IsSynthesizedRef(record.DocumentRef) {
		for _, r := range s.records {
			if r.TenantID == record.TenantID && r.Kind == record.Kind && r.DocumentRef == record.DocumentRef {
				return repository.ErrDuplicateDocument
			}
		}
	}

	s.nextID++
	record.ID = s.nextID
	if record.Status == "" {
		record.Status = models.RecordStatusConfirmed
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}
	s.records[record.ID] = *record
	return nil
}

// GetByID returns the record with id in the tenant.
func (s *RecordStore) GetByID(_ context.Context, id int64, tenantID string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.TenantID != tenantID {
		return nil, repository.ErrRecordNotFound
	}
	return &r, nil
}

// Update replaces the record, keeping its kind, owner, source and recorded_at.
func (s *RecordStore) Update(_ context.Context, id int64, tenantID string, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[id]
	if !ok || old.TenantID != tenantID {
		return repository.ErrRecordNotFound
	}

	updated := *record
	updated.ID = id
	updated.TenantID = tenantID
	updated.Kind = old.Kind
	updated.OwnerID = old.OwnerID
	updated.Source = old.Source
	updated.RecordedAt = old.RecordedAt
	s.records[id] = updated

	record.ID = id
	record.TenantID = tenantID
	return nil
}

// Delete removes the record with id in the tenant.
func (s *RecordStore) Delete(_ context.Context, id int64, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[id]
	if !ok || old.TenantID != tenantID {
		return repository.ErrRecordNotFound
	}
	delete(s.records, id)
	return nil
}

// ListByTenant returns the records matching filter, newest first.
func (s *RecordStore) ListByTenant(_ context.Context, filter repository.RecordFilter) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.match(filter)
	slices.SortFunc(records, func(a, b models.Record) int {
		if c := b.OccurredOn.Compare(a.OccurredOn); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// TotalsByDay sums the matching records per day, kind and currency, oldest first.
func (s *RecordStore) TotalsByDay(_ context.Context, filter repository.RecordFilter) ([]repository.DayTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		day      time.Time
		kind     models.Kind
		currency string
	}
	sums := map[key]*repository.DayTotal{}
	for _, r := range s.match(filter) {
		k := key{r.OccurredOn, r.Kind, r.Currency}
		if sums[k] == nil {
			sums[k] = &repository.DayTotal{Day: r.OccurredOn, Kind: r.Kind, Currency: r.Currency}
		}
		sums[k].Total = sums[k].Total.Add(r.Amount)
		sums[k].Count++
	}

	totals := make([]repository.DayTotal, 0, len(sums))
	for _, t := range sums {
		totals = append(totals, *t)
	}
	slices.SortFunc(totals, func(a, b repository.DayTotal) int {
		if c := a.Day.Compare(b.Day); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Currency, b.Currency)
	})
	return totals, nil
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *RecordStore) match(f repository.RecordFilter) []models.Record {
	var out []models.Record
	for _, r := range s.records {
		if !f.AllTenants && r.TenantID != f.TenantID {
			continue
		}
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if !f.From.IsZero() && r.OccurredOn.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && r.OccurredOn.After(f.To) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MembershipStore maps actor and company to a membership.
type MembershipStore struct {
	mu          sync.RWMutex
	memberships map[string]models.Membership
	companies   map[string]models.Company
}

// NewMembershipStore creates an empty MembershipStore.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		memberships: make(map[string]models.Membership),
		companies:   make(map[string]models.Company),
	}
}

// AddCompany registers a company name for ListTenants. Unknown tenants are
// listed under their id.
func (s *MembershipStore) AddCompany(company models.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[company.ID] = company
}

func membershipKey(actorID, tenantID string) string {
	return actorID + "\x00" + tenantID
}

// Assign binds actor to tenant with role.
func (s *MembershipStore) Assign(actorID, tenantID string, role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[membershipKey(actorID, tenantID)] = models.Membership{
		ActorID:   actorID,
		CompanyID: tenantID,
		Role:      role,
		CreatedAt: time.Now(),
	}
}

// GetMembership returns nil and no error for non-members.
func (s *MembershipStore) GetMembership(_ context.Context, actorID, tenantID string) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[membershipKey(actorID, tenantID)]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ListTenants returns the companies the actor belongs to, ordered by name.
func (s *MembershipStore) ListTenants(_ context.Context, actorID string) ([]models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Company
	for _, m := range s.memberships {
		if m.ActorID != actorID {
			continue
		}
		c, ok := s.companies[m.CompanyID]
		if !ok {
			c = models.Company{ID: m.CompanyID, Name: m.CompanyID}
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b models.Company) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}
