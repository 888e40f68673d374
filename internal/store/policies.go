package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/edumfa/edumfa-go/internal/models"
)

// ListPolicies returns all policies, or the one named name.
func (s *Store) ListPolicies(ctx context.Context, name string) ([]models.Policy, error) {
	query := s.db.WithContext(ctx).Order("priority, name")
	if len(name) > 0 {
		query = query.Where("name = ?", name)
	}
	var rows []policyRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Policy, 0, len(rows))
	for _, row := range rows {
		var policy models.Policy
		if err := json.Unmarshal([]byte(row.Data), &policy); err != nil {
			return nil, fmt.Errorf("invalid data for policy %s: %w", row.Name, err)
		}
		policy.Name = row.Name
		out = append(out, policy)
	}
	return out, nil
}

// SetPolicy creates or replaces the policy by name and returns its id.
func (s *Store) SetPolicy(ctx context.Context, policy models.Policy) (int64, error) {
	if len(policy.Name) == 0 {
		return 0, fmt.Errorf("%w: policy name", models.ErrMissingParameter)
	}
	if policy.Priority == 0 {
		policy.Priority = 1
	}
	data, err := json.Marshal(policy)
	if err != nil {
		return 0, err
	}

	var row policyRow
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", policy.Name).First(&row).Error
		if err != nil && !isNotFound(err) {
			return err
		}
		row.Name = policy.Name
		row.Scope = policy.Scope
		row.Active = policy.IsActive()
		row.Priority = policy.Priority
		row.Data = string(data)
		return tx.Save(&row).Error
	})
	return row.ID, err
}

func (s *Store) DeletePolicy(ctx context.Context, name string) (int64, error) {
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&policyRow{})
	return result.RowsAffected, result.Error
}

func (s *Store) ListEvents(ctx context.Context) ([]models.EventDefinition, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Order("ordering, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.EventDefinition, 0, len(rows))
	for _, row := range rows {
		var event models.EventDefinition
		if err := json.Unmarshal([]byte(row.Data), &event); err != nil {
			return nil, fmt.Errorf("invalid data for event %s: %w", row.Name, err)
		}
		event.ID = row.ID
		out = append(out, event)
	}
	return out, nil
}

// SetEvent creates the event, or updates it when event.ID is set.
func (s *Store) SetEvent(ctx context.Context, event models.EventDefinition) (int64, error) {
	if len(event.Name) == 0 || len(event.HandlerModule) == 0 {
		return 0, fmt.Errorf("%w: event name and handlermodule", models.ErrMissingParameter)
	}
	if len(event.Position) == 0 {
		event.Position = "post"
	}

	var row eventRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if event.ID > 0 {
			if err := tx.First(&row, event.ID).Error; err != nil {
				return err
			}
		}
		event.ID = 0
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		row.Name = event.Name
		row.Ordering = event.Ordering
		row.Position = event.Position
		row.Active = event.IsActive()
		row.HandlerModule = event.HandlerModule
		row.Action = event.Action
		row.Data = string(data)
		return tx.Save(&row).Error
	})
	return row.ID, err
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&eventRow{}, id)
	return result.RowsAffected, result.Error
}
