package finance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	quotations map[int64]QuotationRef
	payments   []Payment
	movements  []Movement
	payables   []OpenPayable
	nextID     int64
	failInsert error
	sumCalls   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotations: make(map[int64]QuotationRef)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	payments := append([]Payment(nil), m.payments...)
	movements := append([]Movement(nil), m.movements...)
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.payments, m.movements = payments, movements
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryRepo) Execer() shared.Execer { return noopExec{} }

type noopExec struct{}

func (noopExec) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *memoryRepo) GetQuotation(_ context.Context, id int64, _ bool) (QuotationRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return QuotationRef{}, &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	return q, nil
}

func (m *memoryRepo) SumPayments(_ context.Context, quotationID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.QuotationID == quotationID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (m *memoryRepo) InsertPayment(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.payments = append(m.payments, *p)
	return nil
}

func (m *memoryRepo) ListPayments(_ context.Context, quotationID int64) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Payment{}
	for i := len(m.payments) - 1; i >= 0; i-- {
		if m.payments[i].QuotationID == quotationID {
			out = append(out, m.payments[i])
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertMovement(_ context.Context, mv *Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	m.nextID++
	mv.ID = m.nextID
	mv.CreatedAt = time.Now()
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *memoryRepo) ListMovements(_ context.Context, filter MovementFilter) ([]Movement, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Movement{}
	for _, mv := range m.movements {
		if filter.Direction != nil && mv.Direction != *filter.Direction {
			continue
		}
		if filter.Category != "" && mv.Category != filter.Category {
			continue
		}
		out = append(out, mv)
	}
	return out, len(out), nil
}

func (m *memoryRepo) RecentMovements(_ context.Context, limit int) ([]Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Movement(nil), m.movements...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) SumByDirection(_ context.Context, window *DateRange) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sumCalls++
	income, expense := decimal.Zero, decimal.Zero
	for _, mv := range m.movements {
		if window != nil && (mv.Date.Before(window.From.Time) || mv.Date.After(window.To.Time)) {
			continue
		}
		if mv.Direction == DirectionIncome {
			income = income.Add(mv.Amount)
		} else {
			expense = expense.Add(mv.Amount)
		}
	}
	return income, expense, nil
}

func (m *memoryRepo) Receivables(_ context.Context, limit int) ([]Receivable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Receivable
	for _, q := range m.quotations {
		paid := decimal.Zero
		for _, p := range m.payments {
			if p.QuotationID == q.ID {
				paid = paid.Add(p.Amount)
			}
		}
		if q.Total.GreaterThan(paid) {
			out = append(out, Receivable{QuotationID: q.ID, Number: q.Number, Total: q.Total, PendingBalance: q.Total.Sub(paid)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuotationID > out[j].QuotationID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) OpenPayables(_ context.Context, limit int) ([]OpenPayable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]OpenPayable(nil), m.payables...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) MonthlyTotals(_ context.Context, year int) ([]MonthTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byMonth := map[int]*MonthTotals{}
	for _, mv := range m.movements {
		if mv.Date.Year() != year {
			continue
		}
		month := int(mv.Date.Month())
		t, ok := byMonth[month]
		if !ok {
			t = &MonthTotals{Month: month}
			byMonth[month] = t
		}
		if mv.Direction == DirectionIncome {
			t.Income = t.Income.Add(mv.Amount)
		} else {
			t.Expense = t.Expense.Add(mv.Amount)
		}
	}
	var out []MonthTotals
	for _, t := range byMonth {
		out = append(out, *t)
	}
	return out, nil
}

type memoryClaimer struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (c *memoryClaimer) Claim(_ context.Context, _ shared.Execer, module, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	if c.seen[module+"/"+key] {
		return &shared.ConflictError{Entity: module, Reason: "request with this Idempotency-Key was already processed"}
	}
	c.seen[module+"/"+key] = true
	return nil
}

var errBoom = errors.New("boom")
