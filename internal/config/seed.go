package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
)

// LoadResolverDefinitions returns the resolvers of the resolver document at
// Resolvers.Path followed by the inline definitions, sorted by name.
func (c *Config) LoadResolverDefinitions() ([]models.ResolverRegistration, error) {
	var found []models.ResolverRegistration

	if len(c.Resolvers.Path) > 0 {
		data, err := os.ReadFile(c.Resolvers.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read resolvers from %s: %w", c.Resolvers.Path, err)
		}
		document, err := common.ReadDataToInterface(data, models.ConfigDocument{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse resolvers from %s: %w", c.Resolvers.Path, err)
		}
		found = append(found, document.Resolver...)
	}

	names := make([]string, 0, len(c.Resolvers.Definitions))
	for name := range c.Resolvers.Definitions {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		found = append(found, c.Resolvers.Definitions[name].Registration(name))
	}

	return found, nil
}

// SeedRegistry adds configured resolvers and realms the registry does not
// know yet. Existing entries are never overwritten.
func (c *Config) SeedRegistry(ctx context.Context, reg *registry.Registry) error {
	definitions, err := c.LoadResolverDefinitions()
	if err != nil {
		return err
	}

	var foundErrors []error

	for _, registration := range definitions {
		if _, exists := reg.Current().Registration(registration.Name); exists {
			logrus.WithField("resolver", registration.Name).Debugln("Resolver already configured, not seeding")
			continue
		}
		if _, err := reg.SaveRegistration(ctx, registration); err != nil {
			logrus.WithError(err).WithField("resolver", registration.Name).Errorln("Failed to seed resolver")
			foundErrors = append(foundErrors, fmt.Errorf("seeding resolver %s: %w", registration.Name, err))
		}
	}

	realmNames := make([]string, 0, len(c.Realms.Definitions))
	for name := range c.Realms.Definitions {
		realmNames = append(realmNames, name)
	}
	slices.Sort(realmNames)

	for _, name := range realmNames {
		definition := c.Realms.Definitions[name]
		if reg.Current().RealmIsDefined(name) {
			continue
		}
		if _, err := reg.SetRealm(ctx, name, definition.Members()); err != nil {
			logrus.WithError(err).WithField("realm", name).Errorln("Failed to seed realm")
			foundErrors = append(foundErrors, fmt.Errorf("seeding realm %s: %w", name, err))
			continue
		}
		if definition.Default {
			if err := reg.SetDefaultRealm(ctx, name); err != nil {
				foundErrors = append(foundErrors, fmt.Errorf("setting default realm %s: %w", name, err))
			}
		}
	}

	return errors.Join(foundErrors...)
}
