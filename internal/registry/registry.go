package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

// Store persists resolver registrations and realms.
type Store interface {
	ListResolverRegistrations(ctx context.Context) ([]models.ResolverRegistration, error)
	SaveResolverRegistration(ctx context.Context, registration models.ResolverRegistration) error
	DeleteResolverRegistration(ctx context.Context, name string) error
	ListRealms(ctx context.Context) ([]models.Realm, error)
	SaveRealm(ctx context.Context, realm models.Realm) (models.Realm, error)
	DeleteRealm(ctx context.Context, name string) error
	SetDefaultRealm(ctx context.Context, name string) error
}

const DefaultGracePeriod = 30 * time.Second

var validName = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)

// Registry owns the configured resolvers and realms. Readers take the
// current Snapshot; writers are serialised and publish a new Snapshot with
// compare-and-swap after the change is persisted.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	store   Store

	gracePeriod time.Duration
	nextRealmID int64
	scheduler   *gocron.Scheduler
}

// New returns an empty registry. Without a store the configuration lives
// in memory only.
func New(store Store) *Registry {
	r := &Registry{
		store:       store,
		gracePeriod: DefaultGracePeriod,
	}
	r.current.Store(emptySnapshot())
	return r
}

// SetGracePeriod sets how long replaced backends stay open for in-flight
// requests.
func (r *Registry) SetGracePeriod(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gracePeriod = d
}

func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Load rebuilds the configuration from the store. Backends whose
// registration did not change are carried over.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.store.ListResolverRegistrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to load resolvers: %w", err)
	}
	realms, err := r.store.ListRealms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load realms: %w", err)
	}

	old := r.Current()
	registrations := make(map[string]models.ResolverRegistration, len(stored))
	instances := make(map[string]models.ResolverImpl, len(stored))

	for _, registration := range stored {
		registrations[registration.Name] = registration

		if previous, ok := old.registrations[registration.Name]; ok && sameRegistration(previous, registration) {
			if instance := old.resolvers[registration.Name]; instance != nil {
				instances[registration.Name] = instance
				continue
			}
		}

		instance, err := resolvers.CreateInstance(registration)
		if err != nil {
			// the registration stays visible; lookups report it as unavailable
			logrus.WithError(err).WithField("resolver", registration.Name).
				Error("Failed to initialize resolver")
			continue
		}
		instances[registration.Name] = instance
	}

	next := newSnapshot(old.version+1, registrations, instances, realms)
	if unchanged(old, next) {
		return nil
	}
	if err := r.commit(old, next); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"version":   next.version,
		"resolvers": len(registrations),
		"realms":    len(realms),
	}).Debug("Loaded resolver configuration")

	return nil
}

// commit publishes next if old is still current and retires the backends
// that next no longer uses.
func (r *Registry) commit(old, next *Snapshot) error {
	if !r.current.CompareAndSwap(old, next) {
		return fmt.Errorf("%w: configuration changed concurrently", models.ErrConfigConflict)
	}

	var retired []models.ResolverImpl
	for name, instance := range old.resolvers {
		if instance != nil && next.resolvers[name] != instance {
			retired = append(retired, instance)
		}
	}
	if len(retired) > 0 {
		closeLater(retired, r.gracePeriod)
	}
	return nil
}

func closeLater(instances []models.ResolverImpl, grace time.Duration) {
	time.AfterFunc(grace, func() {
		for _, instance := range instances {
			if err := instance.Close(); err != nil {
				logrus.WithError(err).WithField("resolver", instance.GetName()).
					Warn("Failed to close resolver")
			}
		}
	})
}

func sameRegistration(a, b models.ResolverRegistration) bool {
	if a.Type != b.Type || a.Priority != b.Priority {
		return false
	}
	left, err := json.Marshal(a.Data)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b.Data)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}

// unchanged reports whether next carries the same configuration and
// backends as old.
func unchanged(old, next *Snapshot) bool {
	if len(old.registrations) != len(next.registrations) || len(old.resolvers) != len(next.resolvers) {
		return false
	}
	for name, registration := range next.registrations {
		previous, ok := old.registrations[name]
		if !ok || !sameRegistration(previous, registration) || old.resolvers[name] != next.resolvers[name] {
			return false
		}
	}
	return reflect.DeepEqual(old.Realms(), next.Realms())
}

// derive copies the current configuration so a writer can change it.
func derive(s *Snapshot) (map[string]models.ResolverRegistration, map[string]models.ResolverImpl, []models.Realm) {
	return maps.Clone(s.registrations), maps.Clone(s.resolvers), s.Realms()
}

// SaveResolver creates or updates a resolver from flat parameters. The keys
// "resolver", "type" and "priority" are taken out; everything else is
// backend configuration.
func (r *Registry) SaveResolver(ctx context.Context, params map[string]any) (models.ResolverRegistration, error) {
	data := models.BasicConfig{}
	for key, value := range params {
		switch key {
		case "resolver", "type", "priority":
		default:
			data[key] = value
		}
	}
	config := models.BasicConfig(params)
	registration := models.ResolverRegistration{
		Name:     config.GetStringWithDefault("resolver", ""),
		Type:     config.GetStringWithDefault("type", ""),
		Priority: config.GetIntWithDefault("priority", 0),
		Data:     data,
	}
	return r.SaveRegistration(ctx, registration)
}

// SaveRegistration creates or updates a resolver by name. Censored values
// keep the stored secret. The backend is initialised before anything is
// persisted, so an invalid configuration changes nothing.
func (r *Registry) SaveRegistration(ctx context.Context, registration models.ResolverRegistration) (models.ResolverRegistration, error) {
	if len(registration.Name) == 0 {
		return registration, fmt.Errorf("%w: resolver", models.ErrMissingParameter)
	}
	if !validName.MatchString(registration.Name) {
		return registration, fmt.Errorf("%w: resolver name %q", models.ErrInvalidParameter, registration.Name)
	}
	if len(registration.Type) == 0 {
		return registration, fmt.Errorf("%w: type", models.ErrMissingParameter)
	}
	registration.Type = strings.ToLower(registration.Type)
	if _, err := resolvers.Get(registration.Type); err != nil {
		return registration, err
	}
	if registration.Data == nil {
		registration.Data = models.BasicConfig{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.Current()
	if previous, ok := old.registrations[registration.Name]; ok {
		if previous.Type != registration.Type {
			return registration, fmt.Errorf("%w: type of resolver %s can not be changed from %s to %s",
				models.ErrConfigConflict, registration.Name, previous.Type, registration.Type)
		}
		registration.Data = resolvers.RestoreCensored(registration.Data, previous.Data)
	} else {
		registration.Data = resolvers.RestoreCensored(registration.Data, nil)
	}

	instance, err := resolvers.CreateInstance(registration)
	if err != nil {
		return registration, err
	}

	if r.store != nil {
		if err := r.store.SaveResolverRegistration(ctx, registration); err != nil {
			_ = instance.Close()
			return registration, fmt.Errorf("failed to save resolver %s: %w", registration.Name, err)
		}
	}

	registrations, instances, realms := derive(old)
	registrations[registration.Name] = registration
	instances[registration.Name] = instance

	if err := r.commit(old, newSnapshot(old.version+1, registrations, instances, realms)); err != nil {
		_ = instance.Close()
		return registration, err
	}

	logrus.WithFields(logrus.Fields{
		"resolver": registration.Name,
		"type":     registration.Type,
	}).Info("Saved resolver")

	return registration.Clone(), nil
}

// DeleteResolver removes a resolver that is not part of any realm.
func (r *Registry) DeleteResolver(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.Current()
	if _, ok := old.registrations[name]; !ok {
		return fmt.Errorf("%w: %s", models.ErrResolverNotFound, name)
	}
	if realms := old.RealmsForResolver(name); len(realms) > 0 {
		return fmt.Errorf("%w: resolver %s is still contained in realms %s",
			models.ErrConfigConflict, name, strings.Join(realms, ", "))
	}

	if r.store != nil {
		if err := r.store.DeleteResolverRegistration(ctx, name); err != nil {
			return err
		}
	}

	registrations, instances, realms := derive(old)
	delete(registrations, name)
	delete(instances, name)

	if err := r.commit(old, newSnapshot(old.version+1, registrations, instances, realms)); err != nil {
		return err
	}
	logrus.WithField("resolver", name).Info("Deleted resolver")
	return nil
}

// ListOptions filters ListResolvers. Empty fields match everything.
type ListOptions struct {
	Name     string
	Type     string
	Editable *bool
	Censor   bool
}

func (r *Registry) ListResolvers(opts ListOptions) []models.ResolverRegistration {
	snapshot := r.Current()
	var out []models.ResolverRegistration
	for _, name := range snapshot.ResolverNames() {
		registration := snapshot.registrations[name]
		if len(opts.Name) > 0 && opts.Name != name {
			continue
		}
		if len(opts.Type) > 0 && !strings.EqualFold(opts.Type, registration.Type) {
			continue
		}
		if opts.Editable != nil {
			instance := snapshot.resolvers[name]
			if instance == nil || instance.Editable() != *opts.Editable {
				continue
			}
		}
		if opts.Censor {
			out = append(out, resolvers.Censor(registration))
		} else {
			out = append(out, registration.Clone())
		}
	}
	return out
}

// SetRealm creates or replaces the resolver list of a realm. The first realm
// becomes the default realm.
func (r *Registry) SetRealm(ctx context.Context, name string, members []models.RealmResolver) (models.Realm, error) {
	name = models.NormalizeRealm(name)
	if len(name) == 0 {
		return models.Realm{}, fmt.Errorf("%w: realm", models.ErrMissingParameter)
	}
	if !validName.MatchString(name) {
		return models.Realm{}, fmt.Errorf("%w: realm name %q", models.ErrInvalidParameter, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.Current()
	seen := map[string]bool{}
	var cleaned []models.RealmResolver
	for _, member := range members {
		member.Name = strings.TrimSpace(member.Name)
		if len(member.Name) == 0 || seen[member.Name] {
			continue
		}
		if _, ok := old.registrations[member.Name]; !ok {
			return models.Realm{}, fmt.Errorf("%w: %s", models.ErrResolverNotFound, member.Name)
		}
		seen[member.Name] = true
		cleaned = append(cleaned, member)
	}

	realm, exists := old.Realm(name)
	if !exists {
		realm = models.Realm{Name: name, Default: len(old.realms) == 0}
	}
	realm.Resolvers = cleaned

	if r.store != nil {
		saved, err := r.store.SaveRealm(ctx, realm)
		if err != nil {
			return models.Realm{}, err
		}
		realm.ID = saved.ID
	} else if !exists {
		r.nextRealmID++
		realm.ID = r.nextRealmID
	}

	registrations, instances, realms := derive(old)
	realms = slices.DeleteFunc(realms, func(existing models.Realm) bool { return existing.Name == name })
	realms = append(realms, realm)

	if err := r.commit(old, newSnapshot(old.version+1, registrations, instances, realms)); err != nil {
		return models.Realm{}, err
	}

	logrus.WithFields(logrus.Fields{
		"realm":     name,
		"resolvers": len(cleaned),
	}).Info("Saved realm")

	return realm.Clone(), nil
}

// DeleteRealm removes a realm. When the default realm is deleted and a
// single realm is left, that realm becomes the default.
func (r *Registry) DeleteRealm(ctx context.Context, name string) error {
	name = models.NormalizeRealm(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.Current()
	deleted, ok := old.Realm(name)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrRealmNotFound, name)
	}

	registrations, instances, realms := derive(old)
	realms = slices.DeleteFunc(realms, func(existing models.Realm) bool { return existing.Name == name })
	promote := deleted.Default && len(realms) == 1

	if r.store != nil {
		if err := r.store.DeleteRealm(ctx, name); err != nil {
			return err
		}
		if promote {
			if err := r.store.SetDefaultRealm(ctx, realms[0].Name); err != nil {
				return err
			}
		}
	}
	if promote {
		realms[0].Default = true
	}

	if err := r.commit(old, newSnapshot(old.version+1, registrations, instances, realms)); err != nil {
		return err
	}
	logrus.WithField("realm", name).Info("Deleted realm")
	return nil
}

// SetDefaultRealm marks realm as default. An empty name clears the default.
func (r *Registry) SetDefaultRealm(ctx context.Context, name string) error {
	name = models.NormalizeRealm(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.Current()
	if len(name) > 0 && !old.RealmIsDefined(name) {
		return fmt.Errorf("%w: %s", models.ErrRealmNotFound, name)
	}
	if r.store != nil {
		if err := r.store.SetDefaultRealm(ctx, name); err != nil {
			return err
		}
	}

	registrations, instances, realms := derive(old)
	for i := range realms {
		realms[i].Default = realms[i].Name == name
	}
	return r.commit(old, newSnapshot(old.version+1, registrations, instances, realms))
}

// StartReload reloads the configuration from the store every interval, so
// changes made by other processes become visible.
func (r *Registry) StartReload(ctx context.Context, interval time.Duration) error {
	if r.store == nil || interval <= 0 {
		return nil
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	_, err := scheduler.Every(interval).Do(func() {
		if err := r.Load(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to reload resolver configuration")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule configuration reload: %w", err)
	}
	scheduler.StartAsync()

	r.mu.Lock()
	r.scheduler = scheduler
	r.mu.Unlock()

	logrus.WithField("interval", interval).Info("Started configuration reload")
	return nil
}

// Close stops the reload and closes every backend.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scheduler != nil {
		r.scheduler.Stop()
		r.scheduler = nil
	}

	old := r.Current()
	var firstErr error
	for name, instance := range old.resolvers {
		if instance == nil {
			continue
		}
		if err := instance.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close resolver %s: %w", name, err)
		}
	}
	// the version keeps growing so readers notice a later Load
	r.current.Store(newSnapshot(old.version+1,
		map[string]models.ResolverRegistration{},
		map[string]models.ResolverImpl{},
		nil,
	))
	return firstErr
}
