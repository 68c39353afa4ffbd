package clients

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

const (
	recentQuotationsLimit   = 10
	recentInteractionsLimit = 10
)

// Service implements client management.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Get returns a client with its active contacts, latest interactions and
// latest quotations.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	contacts, err := s.repo.Contacts(ctx, id)
	if err != nil {
		return nil, err
	}
	interactions, _, err := s.repo.Interactions(ctx, InteractionFilter{
		ClientID: id,
		Page:     shared.NewPageRequest(1, recentInteractionsLimit),
	})
	if err != nil {
		return nil, err
	}
	quotations, err := s.repo.RecentQuotations(ctx, id, recentQuotationsLimit)
	if err != nil {
		return nil, err
	}
	return &Detail{Client: *c, Contacts: contacts, Interactions: interactions, Quotations: quotations}, nil
}

// List returns a page of clients ordered by name.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Client, shared.Pagination, error) {
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.PerPage)
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Create registers a client. Tax ids are unique.
func (s *Service) Create(ctx context.Context, in Input) (*Client, error) {
	c, err := in.toClient()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, err
	}
	s.logger.Info("client created", append(shared.LogAttrs(ctx),
		slog.Int64("client_id", c.ID), slog.String("name", c.Name))...)
	return &c, nil
}

// Update replaces a client's fields. Existing quotations keep their snapshot.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Client, error) {
	c, err := in.toClient()
	if err != nil {
		return nil, err
	}
	c.ID = id
	if err := s.repo.Update(ctx, &c); err != nil {
		return nil, err
	}
	s.logger.Info("client updated", append(shared.LogAttrs(ctx), slog.Int64("client_id", id))...)
	return &c, nil
}

// Delete removes a client; its quotations survive unlinked.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("client deleted", append(shared.LogAttrs(ctx), slog.Int64("client_id", id))...)
	return nil
}

// AddContact attaches a contact to a client. Marking it primary demotes the
// client's previous primary contact.
func (s *Service) AddContact(ctx context.Context, clientID int64, in ContactInput) (*Contact, error) {
	c, err := in.toContact(clientID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddContact(ctx, &c); err != nil {
		return nil, err
	}
	s.logger.Info("client contact added", append(shared.LogAttrs(ctx),
		slog.Int64("client_id", clientID), slog.Int64("contact_id", c.ID), slog.Bool("primary", c.IsPrimary))...)
	return &c, nil
}

// RemoveContact deletes a contact that belongs to the client.
func (s *Service) RemoveContact(ctx context.Context, clientID, contactID int64) error {
	if err := s.repo.DeleteContact(ctx, clientID, contactID); err != nil {
		return err
	}
	s.logger.Info("client contact removed", append(shared.LogAttrs(ctx),
		slog.Int64("client_id", clientID), slog.Int64("contact_id", contactID))...)
	return nil
}

// ListInteractions returns a page of a client's interaction history.
func (s *Service) ListInteractions(ctx context.Context, filter InteractionFilter) ([]Interaction, shared.Pagination, error) {
	if _, err := s.repo.Get(ctx, filter.ClientID); err != nil {
		return nil, shared.Pagination{}, err
	}
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.PerPage)
	list, total, err := s.repo.Interactions(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// RecordInteraction logs a contact with the client on behalf of the caller
// and advances the client's last contact time.
func (s *Service) RecordInteraction(ctx context.Context, clientID int64, in InteractionInput) (*Interaction, error) {
	it, err := in.toInteraction(clientID, s.now())
	if err != nil {
		return nil, err
	}
	if actor := shared.ActorID(ctx); actor > 0 {
		it.UserID = &actor
	}
	if err := s.repo.RecordInteraction(ctx, &it); err != nil {
		return nil, err
	}
	s.logger.Info("client interaction recorded", append(shared.LogAttrs(ctx),
		slog.Int64("client_id", clientID), slog.Int64("interaction_id", it.ID), slog.String("kind", string(it.Kind)))...)
	return &it, nil
}

// DeleteInteraction removes an interaction that belongs to the client.
// last_contact_at is left untouched.
func (s *Service) DeleteInteraction(ctx context.Context, clientID, interactionID int64) error {
	if err := s.repo.DeleteInteraction(ctx, clientID, interactionID); err != nil {
		return err
	}
	s.logger.Info("client interaction deleted", append(shared.LogAttrs(ctx),
		slog.Int64("client_id", clientID), slog.Int64("interaction_id", interactionID))...)
	return nil
}

// Export returns every client matching the filter, unpaginated, ordered by name.
func (s *Service) Export(ctx context.Context, filter ListFilter) ([]ExportRow, error) {
	return s.repo.Export(ctx, filter)
}
