package payables

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/backoffice/internal/finance"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

var errBoom = errors.New("boom")

type memoryRepo struct {
	mu           sync.Mutex
	suppliers    map[int64]string
	payables     map[int64]AccountPayable
	payments     []SupplierPayment
	movements    []finance.Movement
	nextID       int64
	failMovement error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers: map[int64]string{7: "Redes Andinas SAS"},
		payables:  make(map[int64]AccountPayable),
	}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	payables := make(map[int64]AccountPayable, len(m.payables))
	for k, v := range m.payables {
		payables[k] = v
	}
	payments := append([]SupplierPayment(nil), m.payments...)
	movements := append([]finance.Movement(nil), m.movements...)
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.payables, m.payments, m.movements = payables, payments, movements
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*AccountPayable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payables[id]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "account payable", ID: id}
	}
	return &p, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*AccountPayable, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]AccountPayable, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []AccountPayable
	for _, p := range m.payables {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.SupplierID != nil && p.SupplierID != *filter.SupplierID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].DueDate.Equal(matched[j].DueDate.Time) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].DueDate.Before(matched[j].DueDate.Time)
	})
	total := len(matched)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.PerPage
	if end > total {
		end = total
	}
	return append([]AccountPayable{}, matched[start:end]...), total, nil
}

func (m *memoryRepo) ListOpenForUpdate(_ context.Context) ([]AccountPayable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []AccountPayable
	for _, p := range m.payables {
		if p.Status.Open() {
			open = append(open, p)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open, nil
}

func (m *memoryRepo) SupplierName(_ context.Context, supplierID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.suppliers[supplierID]
	if !ok {
		return "", &shared.NotFoundError{Entity: "supplier", ID: supplierID}
	}
	return name, nil
}

func (m *memoryRepo) Create(_ context.Context, p *AccountPayable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.payables[p.ID] = *p
	return nil
}

func (m *memoryRepo) Save(_ context.Context, p *AccountPayable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payables[p.ID]; !ok {
		return &shared.NotFoundError{Entity: "account payable", ID: p.ID}
	}
	p.UpdatedAt = time.Now()
	m.payables[p.ID] = *p
	return nil
}

func (m *memoryRepo) InsertPayment(_ context.Context, sp *SupplierPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp.ID = m.id()
	sp.CreatedAt = time.Now()
	m.payments = append(m.payments, *sp)
	return nil
}

func (m *memoryRepo) ListPayments(_ context.Context, payableID int64) ([]SupplierPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []SupplierPayment{}
	for i := len(m.payments) - 1; i >= 0; i-- {
		if m.payments[i].PayableID == payableID {
			out = append(out, m.payments[i])
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertMovement(_ context.Context, mv *finance.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMovement != nil {
		return m.failMovement
	}
	mv.ID = m.id()
	mv.CreatedAt = time.Now()
	m.movements = append(m.movements, *mv)
	return nil
}

type countingRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (c *countingRecorder) PaymentRegistered(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}
