package suppliers

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Service implements supplier management.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Get returns a supplier with what is still owed to it.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	sup, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	balance, err := s.repo.Balance(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Supplier: *sup, Balance: balance}, nil
}

// List returns a page of suppliers ordered by name.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Supplier, shared.Pagination, error) {
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.PerPage)
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Create registers a supplier. Tax ids are unique.
func (s *Service) Create(ctx context.Context, in Input) (*Supplier, error) {
	sup, err := in.toSupplier()
	if err != nil {
		return nil, err
	}
	if id := shared.ActorID(ctx); id != 0 {
		sup.UserID = &id
	}
	if err := s.repo.Create(ctx, &sup); err != nil {
		return nil, err
	}
	s.logger.Info("supplier created", append(shared.LogAttrs(ctx),
		slog.Int64("supplier_id", sup.ID), slog.String("name", sup.Name))...)
	return &sup, nil
}

// Update replaces a supplier's fields.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Supplier, error) {
	sup, err := in.toSupplier()
	if err != nil {
		return nil, err
	}
	sup.ID = id
	if err := s.repo.Update(ctx, &sup); err != nil {
		return nil, err
	}
	s.logger.Info("supplier updated", append(shared.LogAttrs(ctx), slog.Int64("supplier_id", id))...)
	return &sup, nil
}

// Delete removes a supplier that has no payables.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("supplier deleted", append(shared.LogAttrs(ctx), slog.Int64("supplier_id", id))...)
	return nil
}
