package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
)

// Store persists one entity type. Links names the many-to-many
// associations to replace on save with the given members.
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id uuid.UUID) (*T, error)
	Save(ctx context.Context, v *T, links map[string][]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RefChecker reports whether a row with id exists in the table of model.
type RefChecker interface {
	Exists(ctx context.Context, model interface{}, id uuid.UUID) (bool, error)
}

type GormStore[T any] struct {
	db      *gorm.DB
	name    string
	preload []string
}

func NewGormStore[T any](d *gorm.DB, name string, preload ...string) *GormStore[T] {
	return &GormStore[T]{db: d, name: name, preload: preload}
}

func (s *GormStore[T]) query(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	for _, p := range s.preload {
		q = q.Preload(p)
	}
	return q
}

func (s *GormStore[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := s.query(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", s.name, err)
	}
	return out, nil
}

func (s *GormStore[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var v T
	err := s.query(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %s: %w", s.name, id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.name, err)
	}
	return &v, nil
}

// Save writes v without touching associated rows, then replaces the join
// rows of every association named in links.
func (s *GormStore[T]) Save(ctx context.Context, v *T, links map[string][]interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(v).Error; err != nil {
			return err
		}
		for name, members := range links {
			assoc := tx.Model(v).Association(name)
			if len(members) == 0 {
				if err := assoc.Clear(); err != nil {
					return fmt.Errorf("clear %s: %w", name, err)
				}
				continue
			}
			if err := assoc.Replace(members...); err != nil {
				return fmt.Errorf("replace %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", s.name, err)
	}
	return nil
}

// Delete removes the row together with its join rows and owned children.
// Associations are only deleted when the loaded row carries its key, so the
// row is read first.
func (s *GormStore[T]) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v T
		err := tx.First(&v, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%s %s: %w", s.name, id, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
		if err := tx.Select(clause.Associations).Delete(&v).Error; err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
		return nil
	})
}

// GormRefs checks references with a primary key count.
type GormRefs struct {
	db *gorm.DB
}

func NewGormRefs(d *gorm.DB) *GormRefs {
	return &GormRefs{db: d}
}

func (g *GormRefs) Exists(ctx context.Context, model interface{}, id uuid.UUID) (bool, error) {
	var n int64
	if err := g.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return n > 0, nil
}
