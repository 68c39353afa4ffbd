package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	Direction *Direction
	Category  string
	From      *shared.Date
	To        *shared.Date
	Search    string
	Page      shared.PageRequest
}

// Repository defines persistence operations for payments, movements and aggregates.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Execer() shared.Execer
	GetQuotation(ctx context.Context, id int64, forUpdate bool) (QuotationRef, error)
	SumPayments(ctx context.Context, quotationID int64) (decimal.Decimal, error)
	InsertPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, quotationID int64) ([]Payment, error)
	InsertMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
	RecentMovements(ctx context.Context, limit int) ([]Movement, error)
	SumByDirection(ctx context.Context, window *DateRange) (income, expense decimal.Decimal, err error)
	Receivables(ctx context.Context, limit int) ([]Receivable, error)
	OpenPayables(ctx context.Context, limit int) ([]OpenPayable, error)
	MonthlyTotals(ctx context.Context, year int) ([]MonthTotals, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Execer() shared.Execer {
	return r.db
}

func (r *repository) GetQuotation(ctx context.Context, id int64, forUpdate bool) (QuotationRef, error) {
	query := `SELECT id, number, client_id, client_name, total, status FROM quotations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var q QuotationRef
	err := r.db.QueryRow(ctx, query, id).Scan(&q.ID, &q.Number, &q.ClientID, &q.ClientName, &q.Total, &q.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return QuotationRef{}, &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	if err != nil {
		return QuotationRef{}, fmt.Errorf("finance: get quotation %d: %w", id, err)
	}
	return q, nil
}

func (r *repository) SumPayments(ctx context.Context, quotationID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE quotation_id = $1`, quotationID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("finance: sum payments %d: %w", quotationID, err)
	}
	return sum, nil
}

func (r *repository) InsertPayment(ctx context.Context, p *Payment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (quotation_id, client_id, payment_type, amount, payment_date, method,
			reference_number, bank, notes, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		p.QuotationID, p.ClientID, p.Type, p.Amount, p.PaymentDate.Time, p.Method,
		p.ReferenceNumber, p.Bank, p.Notes, p.UserID,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("finance: insert payment: %w", err)
	}
	return nil
}

func (r *repository) ListPayments(ctx context.Context, quotationID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.quotation_id, p.client_id, p.payment_type, p.amount, p.payment_date, p.method,
			p.reference_number, p.bank, p.notes, p.user_id, COALESCE(u.name, ''), p.created_at
		FROM payments p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.quotation_id = $1
		ORDER BY p.payment_date DESC, p.id DESC`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("finance: list payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		var (
			p    Payment
			date time.Time
		)
		if err := rows.Scan(&p.ID, &p.QuotationID, &p.ClientID, &p.Type, &p.Amount, &date, &p.Method,
			&p.ReferenceNumber, &p.Bank, &p.Notes, &p.UserID, &p.UserName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("finance: scan payment: %w", err)
		}
		p.PaymentDate = shared.NewDate(date)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) InsertMovement(ctx context.Context, m *Movement) error {
	return InsertMovement(ctx, r.db, m)
}

// RowQuerier is satisfied by pgxpool.Pool and pgx.Tx.
type RowQuerier interface {
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// InsertMovement writes m using q, so other modules can record ledger entries
// inside their own transactions.
func InsertMovement(ctx context.Context, q RowQuerier, m *Movement) error {
	err := q.QueryRow(ctx, `
		INSERT INTO financial_movements (direction, category, subcategory, amount, date, description,
			client_id, quotation_id, payment_id, supplier_id, payable_id, supplier_payment_id,
			method, reference_number, supplier_name, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`,
		m.Direction, m.Category, m.Subcategory, m.Amount, m.Date.Time, m.Description,
		m.ClientID, m.QuotationID, m.PaymentID, m.SupplierID, m.PayableID, m.SupplierPaymentID,
		m.Method, m.ReferenceNumber, m.SupplierName, m.UserID,
	).Scan(&m.ID, &m.CreatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsForeignKeyViolation(err, ""):
		return shared.NewValidationError("links", "a linked client, quotation, supplier or payable does not exist")
	default:
		return fmt.Errorf("finance: insert movement: %w", err)
	}
}

const movementSelect = `
	SELECT m.id, m.direction, m.category, m.subcategory, m.amount, m.date, m.description,
		m.client_id, COALESCE(c.name, ''), m.quotation_id, m.payment_id, m.supplier_id,
		COALESCE(NULLIF(m.supplier_name, ''), s.name, ''), m.payable_id, m.supplier_payment_id,
		m.method, m.reference_number, m.user_id, m.created_at
	FROM financial_movements m
	LEFT JOIN clients c ON c.id = m.client_id
	LEFT JOIN suppliers s ON s.id = m.supplier_id`

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var (
			m    Movement
			date time.Time
		)
		if err := rows.Scan(&m.ID, &m.Direction, &m.Category, &m.Subcategory, &m.Amount, &date, &m.Description,
			&m.ClientID, &m.ClientName, &m.QuotationID, &m.PaymentID, &m.SupplierID,
			&m.SupplierName, &m.PayableID, &m.SupplierPaymentID,
			&m.Method, &m.ReferenceNumber, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("finance: scan movement: %w", err)
		}
		m.Date = shared.NewDate(date)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Direction != nil {
		conditions = append(conditions, fmt.Sprintf("m.direction = $%d", argPos))
		args = append(args, *filter.Direction)
		argPos++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("m.category = $%d", argPos))
		args = append(args, filter.Category)
		argPos++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("m.date >= $%d", argPos))
		args = append(args, filter.From.Time)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("m.date <= $%d", argPos))
		args = append(args, filter.To.Time)
		argPos++
	}
	if strings.TrimSpace(filter.Search) != "" {
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR s.name ILIKE $%d OR m.supplier_name ILIKE $%d OR m.description ILIKE $%d)", argPos, argPos, argPos, argPos))
		args = append(args, shared.LikePattern(filter.Search))
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM financial_movements m
		LEFT JOIN clients c ON c.id = m.client_id
		LEFT JOIN suppliers s ON s.id = m.supplier_id` + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("finance: count movements: %w", err)
	}

	query := movementSelect + whereClause +
		fmt.Sprintf(" ORDER BY m.date DESC, m.created_at DESC, m.id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("finance: list movements: %w", err)
	}
	movements, err := scanMovements(rows)
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *repository) RecentMovements(ctx context.Context, limit int) ([]Movement, error) {
	rows, err := r.db.Query(ctx, movementSelect+` ORDER BY m.date DESC, m.created_at DESC, m.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("finance: recent movements: %w", err)
	}
	return scanMovements(rows)
}

func (r *repository) SumByDirection(ctx context.Context, window *DateRange) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE direction = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE direction = 'expense'), 0)
		FROM financial_movements`
	var args []interface{}
	if window != nil {
		query += ` WHERE date BETWEEN $1 AND $2`
		args = append(args, window.From.Time, window.To.Time)
	}
	var income, expense decimal.Decimal
	if err := r.db.QueryRow(ctx, query, args...).Scan(&income, &expense); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("finance: sum movements: %w", err)
	}
	return income, expense, nil
}

func (r *repository) Receivables(ctx context.Context, limit int) ([]Receivable, error) {
	rows, err := r.db.Query(ctx, `
		SELECT q.id, q.number, q.client_name, q.date, q.status, q.total,
			q.total - COALESCE(p.paid, 0) AS pending_balance
		FROM quotations q
		LEFT JOIN (
			SELECT quotation_id, SUM(amount) AS paid FROM payments GROUP BY quotation_id
		) p ON p.quotation_id = q.id
		WHERE q.total > COALESCE(p.paid, 0)
		ORDER BY q.date DESC, q.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("finance: receivables: %w", err)
	}
	defer rows.Close()

	out := []Receivable{}
	for rows.Next() {
		var (
			rc   Receivable
			date time.Time
		)
		if err := rows.Scan(&rc.QuotationID, &rc.Number, &rc.ClientName, &date, &rc.Status, &rc.Total, &rc.PendingBalance); err != nil {
			return nil, fmt.Errorf("finance: scan receivable: %w", err)
		}
		rc.Date = shared.NewDate(date)
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *repository) OpenPayables(ctx context.Context, limit int) ([]OpenPayable, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ap.id, ap.supplier_id, s.name, ap.concept, ap.due_date, ap.total_amount,
			ap.pending_balance, ap.status, ap.overdue_days
		FROM accounts_payable ap
		JOIN suppliers s ON s.id = ap.supplier_id
		WHERE ap.status IN ('pending', 'partial', 'overdue')
		ORDER BY ap.due_date ASC, ap.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("finance: open payables: %w", err)
	}
	defer rows.Close()

	out := []OpenPayable{}
	for rows.Next() {
		var (
			p   OpenPayable
			due time.Time
		)
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.SupplierName, &p.Concept, &due, &p.TotalAmount,
			&p.PendingBalance, &p.Status, &p.OverdueDays); err != nil {
			return nil, fmt.Errorf("finance: scan payable: %w", err)
		}
		p.DueDate = shared.NewDate(due)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) MonthlyTotals(ctx context.Context, year int) ([]MonthTotals, error) {
	rows, err := r.db.Query(ctx, `
		SELECT EXTRACT(MONTH FROM date)::int AS month,
			COALESCE(SUM(amount) FILTER (WHERE direction = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE direction = 'expense'), 0)
		FROM financial_movements
		WHERE date >= make_date($1, 1, 1) AND date < make_date($1 + 1, 1, 1)
		GROUP BY 1
		ORDER BY 1`, year)
	if err != nil {
		return nil, fmt.Errorf("finance: monthly totals: %w", err)
	}
	defer rows.Close()

	var out []MonthTotals
	for rows.Next() {
		var t MonthTotals
		if err := rows.Scan(&t.Month, &t.Income, &t.Expense); err != nil {
			return nil, fmt.Errorf("finance: scan monthly totals: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
