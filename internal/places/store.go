package places

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
)

// Store persists places.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]Place, error)
	Get(ctx context.Context, id uuid.UUID) (*Place, error)
	Create(ctx context.Context, p *Place) error
	Update(ctx context.Context, p *Place) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(d *gorm.DB) *GormStore {
	return &GormStore{db: d}
}

func (s *GormStore) ListByUser(ctx context.Context, userID string) ([]Place, error) {
	var out []Place
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*Place, error) {
	var p Place
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("place %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get place: %w", err)
	}
	return &p, nil
}

func (s *GormStore) Create(ctx context.Context, p *Place) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create place: %w", err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, p *Place) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("update place: %w", err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&Place{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete place: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("place %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
