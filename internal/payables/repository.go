package payables

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/finance"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository defines persistence operations for payables and supplier payments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*AccountPayable, error)
	GetForUpdate(ctx context.Context, id int64) (*AccountPayable, error)
	List(ctx context.Context, filter ListFilter) ([]AccountPayable, int, error)
	ListOpenForUpdate(ctx context.Context) ([]AccountPayable, error)
	SupplierName(ctx context.Context, supplierID int64) (string, error)
	Create(ctx context.Context, p *AccountPayable) error
	Save(ctx context.Context, p *AccountPayable) error
	InsertPayment(ctx context.Context, sp *SupplierPayment) error
	ListPayments(ctx context.Context, payableID int64) ([]SupplierPayment, error)
	InsertMovement(ctx context.Context, m *finance.Movement) error
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

const payableSelect = `
	SELECT ap.id, ap.supplier_id, s.name, ap.expense_type, ap.concept, ap.invoice_number,
		ap.invoice_date, ap.due_date, ap.total_amount, ap.paid_amount, ap.pending_balance,
		ap.status, ap.priority, ap.overdue_days, ap.notes, ap.user_id, ap.created_at, ap.updated_at
	FROM accounts_payable ap
	JOIN suppliers s ON s.id = ap.supplier_id`

func scanPayable(row pgx.Row) (*AccountPayable, error) {
	var (
		p                AccountPayable
		invoiceDate, due time.Time
	)
	if err := row.Scan(&p.ID, &p.SupplierID, &p.SupplierName, &p.ExpenseType, &p.Concept, &p.InvoiceNumber,
		&invoiceDate, &due, &p.TotalAmount, &p.PaidAmount, &p.PendingBalance,
		&p.Status, &p.Priority, &p.OverdueDays, &p.Notes, &p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.InvoiceDate = shared.NewDate(invoiceDate)
	p.DueDate = shared.NewDate(due)
	return &p, nil
}

func (r *repository) get(ctx context.Context, id int64, suffix string) (*AccountPayable, error) {
	p, err := scanPayable(r.db.QueryRow(ctx, payableSelect+` WHERE ap.id = $1`+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shared.NotFoundError{Entity: "account payable", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("payables: get %d: %w", id, err)
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*AccountPayable, error) {
	return r.get(ctx, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*AccountPayable, error) {
	return r.get(ctx, id, ` FOR UPDATE OF ap`)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]AccountPayable, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("ap.status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.SupplierID != nil {
		conditions = append(conditions, fmt.Sprintf("ap.supplier_id = $%d", argPos))
		args = append(args, *filter.SupplierID)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts_payable ap`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("payables: count: %w", err)
	}

	query := payableSelect + whereClause +
		fmt.Sprintf(" ORDER BY ap.due_date ASC, ap.id ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("payables: list: %w", err)
	}
	list, err := collectPayables(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *repository) ListOpenForUpdate(ctx context.Context) ([]AccountPayable, error) {
	rows, err := r.db.Query(ctx, payableSelect+`
		WHERE ap.status IN ('pending', 'partial', 'overdue')
		ORDER BY ap.id
		FOR UPDATE OF ap`)
	if err != nil {
		return nil, fmt.Errorf("payables: list open: %w", err)
	}
	return collectPayables(rows)
}

func collectPayables(rows pgx.Rows) ([]AccountPayable, error) {
	defer rows.Close()
	list := []AccountPayable{}
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, fmt.Errorf("payables: scan: %w", err)
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func (r *repository) SupplierName(ctx context.Context, supplierID int64) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM suppliers WHERE id = $1`, supplierID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &shared.NotFoundError{Entity: "supplier", ID: supplierID}
	}
	if err != nil {
		return "", fmt.Errorf("payables: supplier %d: %w", supplierID, err)
	}
	return name, nil
}

func (r *repository) Create(ctx context.Context, p *AccountPayable) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts_payable (supplier_id, expense_type, concept, invoice_number, invoice_date,
			due_date, total_amount, paid_amount, pending_balance, status, priority, overdue_days, notes, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		p.SupplierID, p.ExpenseType, p.Concept, p.InvoiceNumber, p.InvoiceDate.Time,
		p.DueDate.Time, p.TotalAmount, p.PaidAmount, p.PendingBalance, p.Status, p.Priority,
		p.OverdueDays, p.Notes, p.UserID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsForeignKeyViolation(err, ""):
		return shared.NewValidationError("supplier_id", "supplier does not exist")
	default:
		return fmt.Errorf("payables: create: %w", err)
	}
}

func (r *repository) Save(ctx context.Context, p *AccountPayable) error {
	err := r.db.QueryRow(ctx, `
		UPDATE accounts_payable SET
			supplier_id = $2, expense_type = $3, concept = $4, invoice_number = $5, invoice_date = $6,
			due_date = $7, total_amount = $8, paid_amount = $9, pending_balance = $10, status = $11,
			priority = $12, overdue_days = $13, notes = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.SupplierID, p.ExpenseType, p.Concept, p.InvoiceNumber, p.InvoiceDate.Time,
		p.DueDate.Time, p.TotalAmount, p.PaidAmount, p.PendingBalance, p.Status,
		p.Priority, p.OverdueDays, p.Notes,
	).Scan(&p.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return &shared.NotFoundError{Entity: "account payable", ID: p.ID}
	case db.IsForeignKeyViolation(err, ""):
		return shared.NewValidationError("supplier_id", "supplier does not exist")
	default:
		return fmt.Errorf("payables: save %d: %w", p.ID, err)
	}
}

func (r *repository) InsertPayment(ctx context.Context, sp *SupplierPayment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO supplier_payments (payable_id, supplier_id, amount, payment_date, method,
			reference_number, bank, notes, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		sp.PayableID, sp.SupplierID, sp.Amount, sp.PaymentDate.Time, sp.Method,
		sp.ReferenceNumber, sp.Bank, sp.Notes, sp.UserID,
	).Scan(&sp.ID, &sp.CreatedAt)
	if err != nil {
		return fmt.Errorf("payables: insert payment: %w", err)
	}
	return nil
}

func (r *repository) ListPayments(ctx context.Context, payableID int64) ([]SupplierPayment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, payable_id, supplier_id, amount, payment_date, method, reference_number,
			bank, notes, user_id, created_at
		FROM supplier_payments
		WHERE payable_id = $1
		ORDER BY payment_date DESC, id DESC`, payableID)
	if err != nil {
		return nil, fmt.Errorf("payables: list payments: %w", err)
	}
	defer rows.Close()

	payments := []SupplierPayment{}
	for rows.Next() {
		var (
			sp   SupplierPayment
			date time.Time
		)
		if err := rows.Scan(&sp.ID, &sp.PayableID, &sp.SupplierID, &sp.Amount, &date, &sp.Method,
			&sp.ReferenceNumber, &sp.Bank, &sp.Notes, &sp.UserID, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("payables: scan payment: %w", err)
		}
		sp.PaymentDate = shared.NewDate(date)
		payments = append(payments, sp)
	}
	return payments, rows.Err()
}

func (r *repository) InsertMovement(ctx context.Context, m *finance.Movement) error {
	return finance.InsertMovement(ctx, r.db, m)
}
