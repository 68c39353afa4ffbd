package quotations

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

// ErrNumberTaken signals that a concurrent writer already used the computed number.
var ErrNumberTaken = errors.New("quotations: number already taken")

// numberingLockKey identifies the transaction-scoped advisory lock that
// serialises number assignment.
const numberingLockKey int64 = 0x51554f54

// Repository defines persistence operations for quotations.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LockNumbering(ctx context.Context) error
	LastNumber(ctx context.Context) (string, error)
	Get(ctx context.Context, id int64) (*Quotation, error)
	GetForUpdate(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	Create(ctx context.Context, q *Quotation) error
	UpdateHeader(ctx context.Context, q *Quotation) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	DeleteItems(ctx context.Context, quotationID int64) error
	InsertItems(ctx context.Context, quotationID int64, items []LineItem) error
	PaidAmount(ctx context.Context, quotationID int64) (decimal.Decimal, error)
	ClientSnapshot(ctx context.Context, clientID int64) (ClientSnapshot, error)
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

func (r *repository) LockNumbering(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, numberingLockKey); err != nil {
		return fmt.Errorf("quotations: lock numbering: %w", err)
	}
	return nil
}

func (r *repository) LastNumber(ctx context.Context) (string, error) {
	var number string
	err := r.db.QueryRow(ctx, `SELECT number FROM quotations ORDER BY length(number) DESC, number DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("quotations: last number: %w", err)
	}
	return number, nil
}

const quotationColumns = `q.id, q.number, q.issuer_name, q.issuer_tax_id, q.issuer_address, q.issuer_website,
	q.issuer_contact, q.issuer_email, q.issuer_phone, q.client_id, q.client_name, q.client_tax_id,
	q.client_address, q.client_contact, q.client_email, q.client_phone, q.date, q.validity_days,
	q.currency, q.payment_terms, q.subtotal, q.tax_percentage, q.tax_amount, q.total, q.notes,
	q.terms, q.status, q.user_id, q.created_at, q.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuotation(row scanner) (*Quotation, error) {
	var (
		q    Quotation
		date time.Time
	)
	err := row.Scan(
		&q.ID, &q.Number, &q.Issuer.Name, &q.Issuer.TaxID, &q.Issuer.Address, &q.Issuer.Website,
		&q.Issuer.Contact, &q.Issuer.Email, &q.Issuer.Phone, &q.ClientID, &q.Client.Name, &q.Client.TaxID,
		&q.Client.Address, &q.Client.Contact, &q.Client.Email, &q.Client.Phone, &date, &q.ValidityDays,
		&q.Currency, &q.PaymentTerms, &q.Subtotal, &q.TaxPercentage, &q.TaxAmount, &q.Total, &q.Notes,
		&q.Terms, &q.Status, &q.UserID, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.Date = shared.NewDate(date)
	q.Items = []LineItem{}
	return &q, nil
}

func (r *repository) get(ctx context.Context, id int64, lock bool) (*Quotation, error) {
	query := `SELECT ` + quotationColumns + ` FROM quotations q WHERE q.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	q, err := scanQuotation(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("quotations: get %d: %w", id, err)
	}
	items, err := r.items(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	q.Items = append(q.Items, items[id]...)
	return q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	return r.get(ctx, id, false)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	return r.get(ctx, id, true)
}

func (r *repository) items(ctx context.Context, ids []int64) (map[int64][]LineItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, quotation_id, description, quantity, unit_price, discount_percentage, total, display_order
		FROM quotation_items
		WHERE quotation_id = ANY($1)
		ORDER BY quotation_id, display_order, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("quotations: load items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]LineItem, len(ids))
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.QuotationID, &it.Description, &it.Quantity, &it.UnitPrice,
			&it.DiscountPercentage, &it.Total, &it.DisplayOrder); err != nil {
			return nil, fmt.Errorf("quotations: scan item: %w", err)
		}
		out[it.QuotationID] = append(out[it.QuotationID], it)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if strings.TrimSpace(filter.Search) != "" {
		conditions = append(conditions, fmt.Sprintf("(q.number ILIKE $%d OR q.client_name ILIKE $%d OR q.client_tax_id ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, shared.LikePattern(filter.Search))
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotations q "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("quotations: count: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM quotations q %s ORDER BY q.created_at DESC, q.id DESC LIMIT $%d OFFSET $%d`,
		quotationColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("quotations: list: %w", err)
	}
	defer rows.Close()

	var (
		list []Quotation
		ids  []int64
	)
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("quotations: scan: %w", err)
		}
		list = append(list, *q)
		ids = append(ids, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	if len(ids) == 0 {
		return []Quotation{}, total, nil
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		list[i].Items = append(list[i].Items, items[list[i].ID]...)
	}
	return list, total, nil
}

func (r *repository) Create(ctx context.Context, q *Quotation) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotations (
			number, issuer_name, issuer_tax_id, issuer_address, issuer_website, issuer_contact,
			issuer_email, issuer_phone, client_id, client_name, client_tax_id, client_address,
			client_contact, client_email, client_phone, date, validity_days, currency, payment_terms,
			subtotal, tax_percentage, tax_amount, total, notes, terms, status, user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING id, created_at, updated_at`,
		q.Number, q.Issuer.Name, q.Issuer.TaxID, q.Issuer.Address, q.Issuer.Website, q.Issuer.Contact,
		q.Issuer.Email, q.Issuer.Phone, q.ClientID, q.Client.Name, q.Client.TaxID, q.Client.Address,
		q.Client.Contact, q.Client.Email, q.Client.Phone, q.Date.Time, q.ValidityDays, q.Currency, q.PaymentTerms,
		q.Subtotal, q.TaxPercentage, q.TaxAmount, q.Total, q.Notes, q.Terms, q.Status, q.UserID,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, "quotations_number_key"):
		return ErrNumberTaken
	case db.IsForeignKeyViolation(err, "quotations_client_id_fkey"):
		return &shared.NotFoundError{Entity: "client", ID: derefID(q.ClientID)}
	default:
		return fmt.Errorf("quotations: insert: %w", err)
	}
}

func (r *repository) UpdateHeader(ctx context.Context, q *Quotation) error {
	err := r.db.QueryRow(ctx, `
		UPDATE quotations SET
			issuer_name = $2, issuer_tax_id = $3, issuer_address = $4, issuer_website = $5,
			issuer_contact = $6, issuer_email = $7, issuer_phone = $8, client_id = $9, client_name = $10,
			client_tax_id = $11, client_address = $12, client_contact = $13, client_email = $14,
			client_phone = $15, date = $16, validity_days = $17, currency = $18, payment_terms = $19,
			subtotal = $20, tax_percentage = $21, tax_amount = $22, total = $23, notes = $24, terms = $25,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		q.ID, q.Issuer.Name, q.Issuer.TaxID, q.Issuer.Address, q.Issuer.Website,
		q.Issuer.Contact, q.Issuer.Email, q.Issuer.Phone, q.ClientID, q.Client.Name,
		q.Client.TaxID, q.Client.Address, q.Client.Contact, q.Client.Email,
		q.Client.Phone, q.Date.Time, q.ValidityDays, q.Currency, q.PaymentTerms,
		q.Subtotal, q.TaxPercentage, q.TaxAmount, q.Total, q.Notes, q.Terms,
	).Scan(&q.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return &shared.NotFoundError{Entity: "quotation", ID: q.ID}
	case db.IsForeignKeyViolation(err, "quotations_client_id_fkey"):
		return &shared.NotFoundError{Entity: "client", ID: derefID(q.ClientID)}
	default:
		return fmt.Errorf("quotations: update %d: %w", q.ID, err)
	}
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("quotations: update status %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("quotations: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "quotation", ID: id}
	}
	return nil
}

func (r *repository) DeleteItems(ctx context.Context, quotationID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id = $1`, quotationID); err != nil {
		return fmt.Errorf("quotations: delete items %d: %w", quotationID, err)
	}
	return nil
}

func (r *repository) InsertItems(ctx context.Context, quotationID int64, items []LineItem) error {
	for i := range items {
		items[i].QuotationID = quotationID
		err := r.db.QueryRow(ctx, `
			INSERT INTO quotation_items (quotation_id, description, quantity, unit_price, discount_percentage, total, display_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			quotationID, items[i].Description, items[i].Quantity, items[i].UnitPrice,
			items[i].DiscountPercentage, items[i].Total, items[i].DisplayOrder,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("quotations: insert item %d: %w", i, err)
		}
	}
	return nil
}

func (r *repository) PaidAmount(ctx context.Context, quotationID int64) (decimal.Decimal, error) {
	var paid decimal.Decimal
	if err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE quotation_id = $1`, quotationID).Scan(&paid); err != nil {
		return decimal.Zero, fmt.Errorf("quotations: paid amount %d: %w", quotationID, err)
	}
	return paid, nil
}

func (r *repository) ClientSnapshot(ctx context.Context, clientID int64) (ClientSnapshot, error) {
	var c ClientSnapshot
	err := r.db.QueryRow(ctx, `SELECT name, tax_id, address, email, phone FROM clients WHERE id = $1`, clientID).
		Scan(&c.Name, &c.TaxID, &c.Address, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClientSnapshot{}, &shared.NotFoundError{Entity: "client", ID: clientID}
	}
	if err != nil {
		return ClientSnapshot{}, fmt.Errorf("quotations: client snapshot %d: %w", clientID, err)
	}
	return c, nil
}

func derefID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

var _ Repository = (*repository)(nil)
