package quotations

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
	mu         sync.Mutex
	nextID     int64
	nextItemID int64
	quotations map[int64]Quotation
	items      map[int64][]LineItem
	payments   map[int64]decimal.Decimal
	clients    map[int64]ClientSnapshot
	takeNumber string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotations: make(map[int64]Quotation),
		items:      make(map[int64][]LineItem),
		payments:   make(map[int64]decimal.Decimal),
		clients:    make(map[int64]ClientSnapshot),
	}
}

// WithTx restores the previous state when fn fails.
func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	quotations := make(map[int64]Quotation, len(m.quotations))
	for k, v := range m.quotations {
		quotations[k] = v
	}
	items := make(map[int64][]LineItem, len(m.items))
	for k, v := range m.items {
		items[k] = append([]LineItem(nil), v...)
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.quotations = quotations
		m.items = items
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryRepo) LockNumbering(context.Context) error { return nil }

func (m *memoryRepo) LastNumber(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := ""
	for _, q := range m.quotations {
		if len(q.Number) > len(last) || (len(q.Number) == len(last) && q.Number > last) {
			last = q.Number
		}
	}
	return last, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	q.Items = append([]LineItem{}, m.items[id]...)
	sort.SliceStable(q.Items, func(i, j int) bool { return q.Items[i].DisplayOrder < q.Items[j].DisplayOrder })
	return &q, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quotation
	for _, q := range m.quotations {
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(q.Client.Name), strings.ToLower(filter.Search)) &&
			!strings.Contains(q.Number, filter.Search) {
			continue
		}
		q.Items = append([]LineItem{}, m.items[q.ID]...)
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.PerPage
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memoryRepo) Create(_ context.Context, q *Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeNumber != "" && q.Number == m.takeNumber {
		m.takeNumber = ""
		return ErrNumberTaken
	}
	for _, existing := range m.quotations {
		if existing.Number == q.Number {
			return ErrNumberTaken
		}
	}
	m.nextID++
	q.ID = m.nextID
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	stored := *q
	stored.Items = nil
	m.quotations[q.ID] = stored
	return nil
}

func (m *memoryRepo) UpdateHeader(_ context.Context, q *Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotations[q.ID]; !ok {
		return &shared.NotFoundError{Entity: "quotation", ID: q.ID}
	}
	stored := *q
	stored.Items = nil
	m.quotations[q.ID] = stored
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	q.Status = status
	m.quotations[id] = q
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotations[id]; !ok {
		return &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	delete(m.quotations, id)
	delete(m.items, id)
	delete(m.payments, id)
	return nil
}

func (m *memoryRepo) DeleteItems(_ context.Context, quotationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, quotationID)
	return nil
}

func (m *memoryRepo) InsertItems(_ context.Context, quotationID int64, items []LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		m.nextItemID++
		items[i].ID = m.nextItemID
		items[i].QuotationID = quotationID
		m.items[quotationID] = append(m.items[quotationID], items[i])
	}
	return nil
}

func (m *memoryRepo) PaidAmount(_ context.Context, quotationID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[quotationID], nil
}

func (m *memoryRepo) ClientSnapshot(_ context.Context, clientID int64) (ClientSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return ClientSnapshot{}, &shared.NotFoundError{Entity: "client", ID: clientID}
	}
	return c, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []EmailRequest
	err  error
}

func (n *recordingNotifier) NotifyQuotationSent(_ context.Context, req EmailRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, req)
	return nil
}

type countingRecorder struct {
	created  int
	enqueued map[bool]int
}

func (c *countingRecorder) QuotationCreated() { c.created++ }

func (c *countingRecorder) QuotationEmailEnqueued(ok bool) {
	if c.enqueued == nil {
		c.enqueued = make(map[bool]int)
	}
	c.enqueued[ok]++
}
