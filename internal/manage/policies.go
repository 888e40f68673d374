package manage

import (
	"context"
	"fmt"

	"github.com/edumfa/edumfa-go/internal/models"
)

func (m *Manager) GetConfPolicy(ctx context.Context, name string) ([]models.Policy, error) {
	return m.Store.ListPolicies(ctx, name)
}

// ImportConfPolicy saves the policies of the list. With cleanup every
// existing policy is deleted first.
func (m *Manager) ImportConfPolicy(ctx context.Context, list []models.Policy, cleanup, update bool) ([]ImportResult, error) {
	if cleanup {
		m.printf("Cleanup old policies.")
		policies, err := m.Store.ListPolicies(ctx, "")
		if err != nil {
			return nil, err
		}
		for _, policy := range policies {
			deleted, err := m.Store.DeletePolicy(ctx, policy.Name)
			if err != nil {
				return nil, err
			}
			m.printf("Deleted policy %s with result %d", policy.Name, deleted)
		}
	}

	results := make([]ImportResult, 0, len(list))
	for _, policy := range list {
		outcome := OutcomeAdded
		existing, err := m.Store.ListPolicies(ctx, policy.Name)
		if err != nil {
			return results, err
		}
		if len(existing) > 0 {
			if !update {
				m.printf("Policy %s exists and -u is not specified, skipping import.", policy.Name)
				results = append(results, ImportResult{Name: policy.Name, Outcome: OutcomeSkipped})
				continue
			}
			outcome = OutcomeUpdated
		}

		id, err := m.Store.SetPolicy(ctx, policy)
		if err != nil {
			return results, fmt.Errorf("failed to import policy %s: %w", policy.Name, err)
		}
		m.printf("%s policy %s with result %d", outcome, policy.Name, id)
		results = append(results, ImportResult{Name: policy.Name, Outcome: outcome})
	}
	return results, nil
}
