package suppliers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	suppliers map[int64]Supplier
	balances  map[int64]Balance
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{suppliers: make(map[int64]Supplier), balances: make(map[int64]Balance)}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return nil, &shared.NotFoundError{Entity: entity, ID: id}
	}
	return &s, nil
}

func (m *memoryRepo) Balance(_ context.Context, id int64) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[id]
	if !ok {
		return Balance{Pending: decimal.Zero, Overdue: decimal.Zero}, nil
	}
	return b, nil
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Supplier, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []Supplier
	for _, s := range m.suppliers {
		if term != "" && !strings.Contains(strings.ToLower(s.Name), term) &&
			!strings.Contains(strings.ToLower(s.TaxID), term) && !strings.Contains(strings.ToLower(s.Email), term) {
			continue
		}
		if filter.Kind != nil && s.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.Category != "" && s.Category != filter.Category {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := len(matched)
	start := min(filter.Page.Offset(), total)
	end := min(start+filter.Page.PerPage, total)
	return append([]Supplier{}, matched[start:end]...), total, nil
}

func (m *memoryRepo) taxIDTaken(taxID string, except int64) bool {
	for id, s := range m.suppliers {
		if id != except && s.TaxID == taxID {
			return true
		}
	}
	return false
}

func (m *memoryRepo) Create(_ context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taxIDTaken(s.TaxID, 0) {
		return &shared.ConflictError{Entity: entity, Field: "tax_id", Value: s.TaxID}
	}
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.suppliers[s.ID] = *s
	return nil
}

func (m *memoryRepo) Update(_ context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.suppliers[s.ID]
	if !ok {
		return &shared.NotFoundError{Entity: entity, ID: s.ID}
	}
	if m.taxIDTaken(s.TaxID, s.ID) {
		return &shared.ConflictError{Entity: entity, Field: "tax_id", Value: s.TaxID}
	}
	s.UserID, s.CreatedAt, s.UpdatedAt = prev.UserID, prev.CreatedAt, time.Now()
	m.suppliers[s.ID] = *s
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suppliers[id]; !ok {
		return &shared.NotFoundError{Entity: entity, ID: id}
	}
	if b, ok := m.balances[id]; ok && b.OpenPayables > 0 {
		return &shared.ConflictError{Entity: entity, Reason: "supplier has accounts payable or payments and cannot be deleted"}
	}
	delete(m.suppliers, id)
	return nil
}
