package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/events"
	"github.com/edumfa/edumfa-go/internal/manage"
	"github.com/edumfa/edumfa-go/internal/registry"
	"github.com/edumfa/edumfa-go/internal/store"
	"github.com/edumfa/edumfa-go/internal/usercache"
	"github.com/edumfa/edumfa-go/internal/users"

	// Load resolver backends
	_ "github.com/edumfa/edumfa-go/internal/resolvers/httpresolver"
	_ "github.com/edumfa/edumfa-go/internal/resolvers/ldapresolver"
	_ "github.com/edumfa/edumfa-go/internal/resolvers/memoryresolver"
	_ "github.com/edumfa/edumfa-go/internal/resolvers/passwdresolver"
	_ "github.com/edumfa/edumfa-go/internal/resolvers/sqlresolver"
)

// Services bundles the components built from a Config.
type Services struct {
	Store    *store.Store
	Registry *registry.Registry
	Cache    *usercache.Cache
	Users    *users.Service
	Events   *events.Dispatcher
	Manager  *manage.Manager
}

// Initialize opens and migrates the database, loads the registry, seeds the
// configured resolvers and realms and starts the periodic reload.
func (c *Config) Initialize(ctx context.Context) (*Services, error) {
	st, err := store.Open(c.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", c.Database.DSN, err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := registry.New(st)
	if c.Registry.GracePeriod > 0 {
		reg.SetGracePeriod(c.Registry.GracePeriod)
	}

	services := &Services{Store: st, Registry: reg}

	if err := reg.Load(ctx); err != nil {
		_ = services.Close()
		return nil, err
	}
	if err := c.SeedRegistry(ctx, reg); err != nil {
		logrus.WithError(err).Warnln("Some configured resolvers or realms could not be seeded")
	}
	if err := reg.StartReload(ctx, c.Registry.ReloadInterval); err != nil {
		_ = services.Close()
		return nil, err
	}

	services.Cache = usercache.New(c.CacheOptions())
	services.Users = users.NewService(reg, services.Cache, st, c.UserOptions())
	services.Events = events.NewDispatcher(events.NewCounterHandler(st))
	services.Manager = manage.NewManager(reg, st)
	services.Manager.Events = services.Events

	logrus.WithFields(logrus.Fields{
		"resolvers": len(reg.Current().ResolverNames()),
		"realms":    len(reg.Current().RealmNames()),
		"version":   reg.Current().Version(),
	}).Debugln("Services initialized")

	return services, nil
}

func (s *Services) Close() error {
	var errs []error
	if s.Registry != nil {
		errs = append(errs, s.Registry.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	return errors.Join(errs...)
}
