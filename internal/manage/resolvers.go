package manage

import (
	"context"
	"fmt"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
)

// ImportConfResolver saves the resolvers of the list. Existing resolvers are
// only overwritten with update. Resolvers are never cleaned up.
func (m *Manager) ImportConfResolver(ctx context.Context, list []models.ResolverRegistration, cleanup, update bool) ([]ImportResult, error) {
	if cleanup {
		m.printf("No cleanup for resolvers implemented")
	}

	results := make([]ImportResult, 0, len(list))
	for _, config := range list {
		outcome := OutcomeAdded
		if _, exists := m.Registry.Current().Registration(config.Name); exists {
			if !update {
				m.printf("Resolver %s exists and -u is not specified, skipping import.", config.Name)
				results = append(results, ImportResult{Name: config.Name, Outcome: OutcomeSkipped})
				continue
			}
			outcome = OutcomeUpdated
		}

		params := map[string]any{"resolver": config.Name, "type": config.Type}
		if config.Priority > 0 {
			params["priority"] = config.Priority
		}
		for key, value := range config.Data {
			params[key] = value
		}
		saved, err := m.Registry.SaveResolver(ctx, params)
		if err != nil {
			return results, fmt.Errorf("failed to import resolver %s: %w", config.Name, err)
		}
		m.printf("%s resolver %s with result %s", outcome, config.Name, saved.Type)
		results = append(results, ImportResult{Name: config.Name, Outcome: outcome})
	}
	return results, nil
}

// GetConfResolver returns the resolvers, or the one named name. Secrets are
// censored unless printPasswords is set.
func (m *Manager) GetConfResolver(name string, printPasswords bool) []models.ResolverRegistration {
	return m.Registry.ListResolvers(registry.ListOptions{Name: name, Censor: !printPasswords})
}
