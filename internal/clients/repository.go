package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

const (
	taxIDConstraint        = "clients_tax_id_key"
	interactionQuotationFK = "client_interactions_quotation_id_fkey"
	entity                 = "client"
	contactEntity          = "contact"
	interactionEntity      = "interaction"
)

// Repository defines persistence operations for clients.
type Repository interface {
	Get(ctx context.Context, id int64) (*Client, error)
	RecentQuotations(ctx context.Context, clientID int64, limit int) ([]QuotationSummary, error)
	List(ctx context.Context, filter ListFilter) ([]Client, int, error)
	Create(ctx context.Context, c *Client) error
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id int64) error

	Contacts(ctx context.Context, clientID int64) ([]Contact, error)
	AddContact(ctx context.Context, c *Contact) error
	DeleteContact(ctx context.Context, clientID, contactID int64) error
	Interactions(ctx context.Context, filter InteractionFilter) ([]Interaction, int, error)
	RecordInteraction(ctx context.Context, it *Interaction) error
	DeleteInteraction(ctx context.Context, clientID, interactionID int64) error
	Export(ctx context.Context, filter ListFilter) ([]ExportRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const clientColumns = `id, kind, name, tax_id, phone, email, address, city, region, website, status,
	sector, notes, last_contact_at, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.Kind, &c.Name, &c.TaxID, &c.Phone, &c.Email, &c.Address, &c.City,
		&c.Region, &c.Website, &c.Status, &c.Sector, &c.Notes, &c.LastContactAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shared.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("clients: get %d: %w", id, err)
	}
	return c, nil
}

func (r *repository) RecentQuotations(ctx context.Context, clientID int64, limit int) ([]QuotationSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number, date, total, status
		FROM quotations
		WHERE client_id = $1
		ORDER BY date DESC, id DESC
		LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("clients: recent quotations: %w", err)
	}
	defer rows.Close()

	out := []QuotationSummary{}
	for rows.Next() {
		var (
			q    QuotationSummary
			date time.Time
		)
		if err := rows.Scan(&q.ID, &q.Number, &date, &q.Total, &q.Status); err != nil {
			return nil, fmt.Errorf("clients: scan quotation: %w", err)
		}
		q.Date = shared.NewDate(date)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Client, int, error) {
	whereClause, args := listConditions(filter)
	argPos := len(args) + 1

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients c`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("clients: count: %w", err)
	}

	query := `SELECT ` + clientColumns + ` FROM clients c` + whereClause +
		fmt.Sprintf(" ORDER BY c.name ASC, c.id ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("clients: list: %w", err)
	}
	defer rows.Close()

	list := []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("clients: scan: %w", err)
		}
		list = append(list, *c)
	}
	return list, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c *Client) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (kind, name, tax_id, phone, email, address, city, region, website, status, sector, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		c.Kind, c.Name, c.TaxID, c.Phone, c.Email, c.Address, c.City, c.Region, c.Website, c.Status, c.Sector, c.Notes,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err, taxIDConstraint) {
		return &shared.ConflictError{Entity: entity, Field: "tax_id", Value: c.TaxID}
	}
	if err != nil {
		return fmt.Errorf("clients: create: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, c *Client) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE clients SET kind = $2, name = $3, tax_id = $4, phone = $5, email = $6, address = $7,
			city = $8, region = $9, website = $10, status = $11, sector = $12, notes = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING last_contact_at, created_at, updated_at`,
		c.ID, c.Kind, c.Name, c.TaxID, c.Phone, c.Email, c.Address, c.City, c.Region, c.Website, c.Status, c.Sector, c.Notes,
	).Scan(&c.LastContactAt, &c.CreatedAt, &c.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return &shared.NotFoundError{Entity: entity, ID: c.ID}
	case db.IsUniqueViolation(err, taxIDConstraint):
		return &shared.ConflictError{Entity: entity, Field: "tax_id", Value: c.TaxID}
	default:
		return fmt.Errorf("clients: update %d: %w", c.ID, err)
	}
}

func listConditions(filter ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if strings.TrimSpace(filter.Search) != "" {
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR c.tax_id ILIKE $%d OR c.email ILIKE $%d OR c.phone ILIKE $%d)", argPos, argPos, argPos, argPos))
		args = append(args, shared.LikePattern(filter.Search))
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.Sector != "" {
		conditions = append(conditions, fmt.Sprintf("c.sector = $%d", argPos))
		args = append(args, filter.Sector)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Delete removes the client. Quotations, payments and movements keep their
// snapshots; their client_id is cleared by the foreign keys.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clients: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

const contactColumns = `id, client_id, name, position, phone, email, is_primary, is_active, created_at`

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.ClientID, &c.Name, &c.Position, &c.Phone, &c.Email, &c.IsPrimary, &c.IsActive, &c.CreatedAt)
	return c, err
}

// Contacts returns the active contacts of a client, primary first.
func (r *repository) Contacts(ctx context.Context, clientID int64) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM client_contacts
		WHERE client_id = $1 AND is_active
		ORDER BY is_primary DESC, name ASC, id ASC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("clients: contacts: %w", err)
	}
	defer rows.Close()

	out := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("clients: scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddContact inserts a contact. A primary contact demotes the previous one in
// the same transaction.
func (r *repository) AddContact(ctx context.Context, c *Contact) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if c.IsPrimary {
			if _, err := tx.Exec(ctx, `UPDATE client_contacts SET is_primary = FALSE
				WHERE client_id = $1 AND is_primary`, c.ClientID); err != nil {
				return err
			}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO client_contacts (client_id, name, position, phone, email, is_primary, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			c.ClientID, c.Name, c.Position, c.Phone, c.Email, c.IsPrimary, c.IsActive,
		).Scan(&c.ID, &c.CreatedAt)
	})
	if db.IsForeignKeyViolation(err, "") {
		return &shared.NotFoundError{Entity: entity, ID: c.ClientID}
	}
	if err != nil {
		return fmt.Errorf("clients: add contact: %w", err)
	}
	return nil
}

func (r *repository) DeleteContact(ctx context.Context, clientID, contactID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM client_contacts WHERE id = $1 AND client_id = $2`, contactID, clientID)
	if err != nil {
		return fmt.Errorf("clients: delete contact %d: %w", contactID, err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: contactEntity, ID: contactID}
	}
	return nil
}

const interactionColumns = `id, client_id, kind, description, occurred_at, quotation_id, duration_minutes,
	outcome, user_id, created_at`

func scanInteraction(row pgx.Row) (Interaction, error) {
	var it Interaction
	err := row.Scan(&it.ID, &it.ClientID, &it.Kind, &it.Description, &it.OccurredAt, &it.QuotationID,
		&it.DurationMinutes, &it.Outcome, &it.UserID, &it.CreatedAt)
	return it, err
}

// Interactions returns a page of a client's history, newest first.
func (r *repository) Interactions(ctx context.Context, filter InteractionFilter) ([]Interaction, int, error) {
	where := ` WHERE client_id = $1`
	args := []interface{}{filter.ClientID}
	if filter.Kind != nil {
		where += ` AND kind = $2`
		args = append(args, *filter.Kind)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM client_interactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("clients: count interactions: %w", err)
	}

	argPos := len(args) + 1
	query := `SELECT ` + interactionColumns + ` FROM client_interactions` + where +
		fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("clients: interactions: %w", err)
	}
	defer rows.Close()

	out := []Interaction{}
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("clients: scan interaction: %w", err)
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// RecordInteraction inserts an interaction and moves the client's
// last_contact_at forward to its timestamp.
func (r *repository) RecordInteraction(ctx context.Context, it *Interaction) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE clients
			SET last_contact_at = GREATEST(COALESCE(last_contact_at, $2), $2)
			WHERE id = $1`, it.ClientID, it.OccurredAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &shared.NotFoundError{Entity: entity, ID: it.ClientID}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO client_interactions (client_id, kind, description, occurred_at, quotation_id,
				duration_minutes, outcome, user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at`,
			it.ClientID, it.Kind, it.Description, it.OccurredAt, it.QuotationID,
			it.DurationMinutes, it.Outcome, it.UserID,
		).Scan(&it.ID, &it.CreatedAt)
	})
	var notFound *shared.NotFoundError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &notFound):
		return err
	case db.IsForeignKeyViolation(err, interactionQuotationFK) && it.QuotationID != nil:
		return &shared.NotFoundError{Entity: "quotation", ID: *it.QuotationID}
	default:
		return fmt.Errorf("clients: record interaction: %w", err)
	}
}

func (r *repository) DeleteInteraction(ctx context.Context, clientID, interactionID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM client_interactions WHERE id = $1 AND client_id = $2`, interactionID, clientID)
	if err != nil {
		return fmt.Errorf("clients: delete interaction %d: %w", interactionID, err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: interactionEntity, ID: interactionID}
	}
	return nil
}

// Export returns every client matching the filter with its active primary
// contact, ordered by name.
func (r *repository) Export(ctx context.Context, filter ListFilter) ([]ExportRow, error) {
	whereClause, args := listConditions(filter)
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.kind, c.name, c.tax_id, c.phone, c.email, c.address, c.city, c.region, c.website,
			c.status, c.sector, c.notes, c.last_contact_at, c.created_at, c.updated_at,
			p.id, p.name, p.position, p.phone, p.email
		FROM clients c
		LEFT JOIN client_contacts p ON p.client_id = c.id AND p.is_primary AND p.is_active`+whereClause+`
		ORDER BY c.name ASC, c.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("clients: export: %w", err)
	}
	defer rows.Close()

	out := []ExportRow{}
	for rows.Next() {
		var (
			row                              ExportRow
			contactID                        *int64
			cName, cPosition, cPhone, cEmail *string
		)
		c := &row.Client
		if err := rows.Scan(&c.ID, &c.Kind, &c.Name, &c.TaxID, &c.Phone, &c.Email, &c.Address, &c.City,
			&c.Region, &c.Website, &c.Status, &c.Sector, &c.Notes, &c.LastContactAt, &c.CreatedAt, &c.UpdatedAt,
			&contactID, &cName, &cPosition, &cPhone, &cEmail); err != nil {
			return nil, fmt.Errorf("clients: scan export: %w", err)
		}
		if contactID != nil {
			row.PrimaryContact = &Contact{
				ID: *contactID, ClientID: c.ID, Name: deref(cName), Position: deref(cPosition),
				Phone: deref(cPhone), Email: deref(cEmail), IsPrimary: true, IsActive: true,
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
