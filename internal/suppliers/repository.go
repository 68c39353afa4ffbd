package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

const (
	taxIDConstraint = "suppliers_tax_id_key"
	entity          = "supplier"
)

// Repository defines persistence operations for suppliers.
type Repository interface {
	Get(ctx context.Context, id int64) (*Supplier, error)
	Balance(ctx context.Context, id int64) (Balance, error)
	List(ctx context.Context, filter ListFilter) ([]Supplier, int, error)
	Create(ctx context.Context, s *Supplier) error
	Update(ctx context.Context, s *Supplier) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const supplierColumns = `id, kind, name, tax_id, phone, email, address, city, region, bank, account_type,
	account_number, category, status, notes, user_id, created_at, updated_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Kind, &s.Name, &s.TaxID, &s.Phone, &s.Email, &s.Address, &s.City, &s.Region,
		&s.Bank, &s.AccountType, &s.AccountNumber, &s.Category, &s.Status, &s.Notes, &s.UserID,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shared.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("suppliers: get %d: %w", id, err)
	}
	return s, nil
}

func (r *repository) Balance(ctx context.Context, id int64) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(pending_balance), 0),
			COALESCE(SUM(pending_balance) FILTER (WHERE status = 'overdue'), 0)
		FROM accounts_payable
		WHERE supplier_id = $1 AND status IN ('pending', 'partial', 'overdue')`, id,
	).Scan(&b.OpenPayables, &b.Pending, &b.Overdue)
	if err != nil {
		return Balance{}, fmt.Errorf("suppliers: balance %d: %w", id, err)
	}
	return b, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if strings.TrimSpace(filter.Search) != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR tax_id ILIKE $%d OR email ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, shared.LikePattern(filter.Search))
		argPos++
	}
	if filter.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argPos))
		args = append(args, *filter.Kind)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, filter.Category)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("suppliers: count: %w", err)
	}

	query := `SELECT ` + supplierColumns + ` FROM suppliers` + whereClause +
		fmt.Sprintf(" ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("suppliers: list: %w", err)
	}
	defer rows.Close()

	list := []Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("suppliers: scan: %w", err)
		}
		list = append(list, *s)
	}
	return list, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, s *Supplier) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (kind, name, tax_id, phone, email, address, city, region, bank, account_type,
			account_number, category, status, notes, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		s.Kind, s.Name, s.TaxID, s.Phone, s.Email, s.Address, s.City, s.Region, s.Bank, s.AccountType,
		s.AccountNumber, s.Category, s.Status, s.Notes, s.UserID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if db.IsUniqueViolation(err, taxIDConstraint) {
		return &shared.ConflictError{Entity: entity, Field: "tax_id", Value: s.TaxID}
	}
	if err != nil {
		return fmt.Errorf("suppliers: create: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, s *Supplier) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE suppliers SET kind = $2, name = $3, tax_id = $4, phone = $5, email = $6, address = $7,
			city = $8, region = $9, bank = $10, account_type = $11, account_number = $12, category = $13,
			status = $14, notes = $15, updated_at = NOW()
		WHERE id = $1
		RETURNING user_id, created_at, updated_at`,
		s.ID, s.Kind, s.Name, s.TaxID, s.Phone, s.Email, s.Address, s.City, s.Region, s.Bank, s.AccountType,
		s.AccountNumber, s.Category, s.Status, s.Notes,
	).Scan(&s.UserID, &s.CreatedAt, &s.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return &shared.NotFoundError{Entity: entity, ID: s.ID}
	case db.IsUniqueViolation(err, taxIDConstraint):
		return &shared.ConflictError{Entity: entity, Field: "tax_id", Value: s.TaxID}
	default:
		return fmt.Errorf("suppliers: update %d: %w", s.ID, err)
	}
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err, "") {
		return &shared.ConflictError{Entity: entity, Reason: "supplier has accounts payable or payments and cannot be deleted"}
	}
	if err != nil {
		return fmt.Errorf("suppliers: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
