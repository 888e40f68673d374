package store

import (
	"context"

	"gorm.io/gorm"
)

func (s *Store) counter(tx *gorm.DB, name string) (eventCounterRow, error) {
	row := eventCounterRow{CounterName: name}
	err := tx.Where(eventCounterRow{CounterName: name}).FirstOrCreate(&row).Error
	return row, err
}

func (s *Store) IncreaseCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.counter(tx, name)
		if err != nil {
			return err
		}
		value = row.CounterValue + 1
		return tx.Model(&row).Update("counter_value", value).Error
	})
	return value, err
}

// DecreaseCounter stops at zero unless allowNegative is set.
func (s *Store) DecreaseCounter(ctx context.Context, name string, allowNegative bool) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.counter(tx, name)
		if err != nil {
			return err
		}
		value = row.CounterValue
		if value > 0 || allowNegative {
			value--
		}
		return tx.Model(&row).Update("counter_value", value).Error
	})
	return value, err
}

func (s *Store) ResetCounter(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.counter(tx, name)
		if err != nil {
			return err
		}
		return tx.Model(&row).Update("counter_value", 0).Error
	})
}

func (s *Store) ReadCounter(ctx context.Context, name string) (int64, error) {
	var row eventCounterRow
	err := s.db.WithContext(ctx).Where("counter_name = ?", name).First(&row).Error
	if isNotFound(err) {
		return 0, nil
	}
	return row.CounterValue, err
}
