package manage

import (
	"context"
	"fmt"

	"github.com/edumfa/edumfa-go/internal/models"
)

func (m *Manager) GetConfEvent(ctx context.Context, name string) ([]models.EventDefinition, error) {
	all, err := m.Store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		return all, nil
	}
	var out []models.EventDefinition
	for _, event := range all {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out, nil
}

// ImportConfEvent saves the event definitions of the list. Events are
// matched by name. With cleanup every existing event is deleted first.
func (m *Manager) ImportConfEvent(ctx context.Context, list []models.EventDefinition, cleanup, update bool) ([]ImportResult, error) {
	if cleanup {
		m.printf("Cleanup old events.")
		existing, err := m.Store.ListEvents(ctx)
		if err != nil {
			return nil, err
		}
		for _, event := range existing {
			deleted, err := m.Store.DeleteEvent(ctx, event.ID)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(m.Err, "Deleted event '%s' with result %d\n", event.Name, deleted)
		}
	}

	results := make([]ImportResult, 0, len(list))
	for _, event := range list {
		outcome := OutcomeAdded
		existing, err := m.GetConfEvent(ctx, event.Name)
		if err != nil {
			return results, err
		}
		event.ID = 0
		if len(existing) > 0 {
			if !update {
				m.printf("Event %s exists and -u is not specified, skipping import.", event.Name)
				results = append(results, ImportResult{Name: event.Name, Outcome: OutcomeSkipped})
				continue
			}
			outcome = OutcomeUpdated
			event.ID = existing[0].ID
		}
		if len(event.Position) == 0 {
			event.Position = "post"
		}
		if m.Events != nil {
			if err := m.Events.Validate(event); err != nil {
				return results, fmt.Errorf("failed to import event %s: %w", event.Name, err)
			}
		}

		id, err := m.Store.SetEvent(ctx, event)
		if err != nil {
			return results, fmt.Errorf("failed to import event %s: %w", event.Name, err)
		}
		m.printf("%s event %s with result %d", outcome, event.Name, id)
		results = append(results, ImportResult{Name: event.Name, Outcome: outcome})
	}
	return results, nil
}
