package places

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
)

// Service is the write path for places: every save runs the validator first.
type Service struct {
	store     Store
	validator *Validator
	logger    *zap.Logger
}

func NewService(store Store, validator *Validator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, validator: validator, logger: logger}
}

func (s *Service) List(ctx context.Context, userID string) ([]Place, error) {
	return s.store.ListByUser(ctx, userID)
}

// Get returns the place when userID owns it.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*Place, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("place %s: %w", id, apperrors.ErrForbidden)
	}
	return p, nil
}

// Lookup returns a place regardless of owner.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Place, error) {
	return s.store.Get(ctx, id)
}

// Save validates p and persists it, inserting when p has no id yet.
func (s *Service) Save(ctx context.Context, p *Place) error {
	if err := s.validator.Validate(ctx, p); err != nil {
		return err
	}

	if p.ID == uuid.Nil {
		if err := s.store.Create(ctx, p); err != nil {
			return err
		}
		s.logger.Info("Created place", zap.String("place_id", p.ID.String()), zap.Int("geoids", len(p.Geoids)))
		return nil
	}
	return s.store.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
