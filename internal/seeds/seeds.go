package seeds

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
)

// Counts reports what a seeding run created.
type Counts struct {
	Topics      int
	Aggregators int
	Fields      int
}

// SeedAll upserts the catalog by name in one transaction. Existing rows are
// updated in place, so running it twice is harmless.
func SeedAll(ctx context.Context, d *gorm.DB, c *Catalog, logger *zap.Logger) (Counts, error) {
	var counts Counts

	err := d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range c.Topics {
			created, err := seedTopic(tx, t)
			if err != nil {
				return err
			}
			if created {
				counts.Topics++
			}
		}

		for _, a := range c.Aggregators {
			agg, created, err := seedAggregator(tx, a)
			if err != nil {
				return err
			}
			if created {
				counts.Aggregators++
			}

			for _, f := range a.Fields {
				created, err := seedField(tx, agg, f)
				if err != nil {
					return err
				}
				if created {
					counts.Fields++
				}
			}
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}

	logger.Info("Seeded catalog",
		zap.Int("topics_created", counts.Topics),
		zap.Int("aggregators_created", counts.Aggregators),
		zap.Int("fields_created", counts.Fields),
	)
	return counts, nil
}

func seedTopic(tx *gorm.DB, seed TopicSeed) (bool, error) {
	var existing reports.Topic
	err := tx.First(&existing, "name = ?", seed.Name).Error
	if err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("DB error on topic %s: %w", seed.Name, err)
	}

	if err := tx.Create(&reports.Topic{Name: seed.Name}).Error; err != nil {
		return false, fmt.Errorf("failed to create topic %s: %w", seed.Name, err)
	}
	return true, nil
}

func seedAggregator(tx *gorm.DB, seed AggregatorSeed) (*reports.Aggregator, bool, error) {
	var agg reports.Aggregator
	err := tx.First(&agg, "name = ?", seed.Name).Error
	switch {
	case err == nil:
		if agg.URL != seed.URL {
			if err := tx.Model(&agg).Update("url", seed.URL).Error; err != nil {
				return nil, false, fmt.Errorf("failed to update aggregator %s: %w", seed.Name, err)
			}
		}
		return &agg, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("DB error on aggregator %s: %w", seed.Name, err)
	}

	agg = reports.Aggregator{Name: seed.Name, URL: seed.URL}
	if err := tx.Create(&agg).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create aggregator %s: %w", seed.Name, err)
	}
	return &agg, true, nil
}

func seedField(tx *gorm.DB, agg *reports.Aggregator, seed FieldSeed) (bool, error) {
	var field reports.Field
	err := tx.First(&field, "aggregator_id = ? AND name = ?", agg.ID, seed.Name).Error
	switch {
	case err == nil:
		err := tx.Model(&field).Updates(map[string]interface{}{
			"label":     seed.Label,
			"data_type": seed.DataType,
		}).Error
		if err != nil {
			return false, fmt.Errorf("failed to update field %s.%s: %w", agg.Name, seed.Name, err)
		}
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("DB error on field %s.%s: %w", agg.Name, seed.Name, err)
	}

	field = reports.Field{
		AggregatorID: agg.ID,
		Name:         seed.Name,
		Label:        seed.Label,
		DataType:     seed.DataType,
	}
	if err := tx.Create(&field).Error; err != nil {
		return false, fmt.Errorf("failed to create field %s.%s: %w", agg.Name, seed.Name, err)
	}
	return true, nil
}
