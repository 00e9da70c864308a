package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
)

type Store interface {
	ListByUser(ctx context.Context, userID string) ([]Profile, error)
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(d *gorm.DB) *GormStore {
	return &GormStore{db: d}
}

func (s *GormStore) withAssociations(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Place").
		Preload("Report.DataPoints.Aggregator.Fields").
		Preload("Report.DataPoints.Topic")
}

func (s *GormStore) ListByUser(ctx context.Context, userID string) ([]Profile, error) {
	var out []Profile
	if err := s.db.WithContext(ctx).
		Preload("Place").
		Preload("Report").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	err := s.withAssociations(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// Save writes the profile row only; the place and report are never written
// through a profile.
func (s *GormStore) Save(ctx context.Context, p *Profile) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error; err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&Profile{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
