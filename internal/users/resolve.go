package users

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
	"github.com/edumfa/edumfa-go/internal/usercache"
)

// anyResolver as resolver hint means no resolver.
const anyResolver = "**"

// NewUser builds an identity and locates it in the user stores.
//
// Without a resolver the resolvers of the realm are asked in priority order
// and the first one knowing the login wins. A user that exists nowhere is
// returned without resolver and uid; this is not an error.
func (s *Service) NewUser(ctx context.Context, login, realm, resolver, uid string) (*models.Identity, error) {
	snapshot, epoch := s.begin()
	return s.newUser(ctx, snapshot, epoch, login, realm, resolver, uid)
}

// UserFromParams builds an identity from the request parameters "user",
// "realm" and "resolver". A realm in the login is split off; an explicit
// "realm" parameter wins over it.
func (s *Service) UserFromParams(ctx context.Context, params map[string]string) (*models.Identity, error) {
	snapshot, epoch := s.begin()

	login, realm := s.splitUser(snapshot, params["user"])
	if explicit, ok := params["realm"]; ok {
		realm = explicit
	}
	return s.newUser(ctx, snapshot, epoch, login, realm, params["resolver"], "")
}

// ExistingUser is NewUser for callers that need the user to exist.
func (s *Service) ExistingUser(ctx context.Context, login, realm, resolver, uid string) (*models.Identity, error) {
	identity, err := s.NewUser(ctx, login, realm, resolver, uid)
	if err != nil {
		return nil, err
	}
	if !identity.Exists() {
		return nil, fmt.Errorf("%w: %s", models.ErrNotUniquelyLocated, identity)
	}
	return identity, nil
}

func (s *Service) newUser(
	ctx context.Context,
	snapshot *registry.Snapshot,
	epoch uint64,
	login, realm, resolver, uid string,
) (*models.Identity, error) {
	if resolver == anyResolver {
		resolver = ""
	}
	if len(login) == 0 && len(resolver) == 0 && len(uid) > 0 {
		return nil, models.ErrInvalidConstruction
	}

	realm = models.NormalizeRealm(realm)
	if len(login) > 0 && len(realm) == 0 {
		realm = snapshot.DefaultRealm()
	}

	identity := &models.Identity{
		Login:     login,
		UsedLogin: login,
		Realm:     realm,
		Resolver:  resolver,
		UID:       uid,
	}
	if len(login) == 0 && len(uid) == 0 {
		return identity, nil
	}

	key := usercache.IdentityKey{Login: login, Realm: realm, Resolver: resolver, UID: uid}
	if cached, ok := s.cache.Identity(key); ok {
		return &cached, nil
	}

	if err := s.locate(ctx, snapshot, epoch, identity); err != nil {
		return nil, err
	}

	identity.ResolverType = snapshot.ResolverType(identity.Resolver)
	if id, ok := snapshot.RealmID(identity.Realm); ok {
		identity.RealmID = &id
	}

	if identity.Exists() {
		s.cache.PutIdentity(epoch, key, *identity)
	}
	return identity, nil
}

// locate fills in resolver, uid and the canonical login.
func (s *Service) locate(ctx context.Context, snapshot *registry.Snapshot, epoch uint64, identity *models.Identity) error {
	if !identity.HasResolver() {
		s.searchRealm(ctx, snapshot, epoch, identity)
		if !identity.HasResolver() {
			logrus.WithFields(logrus.Fields{
				"user":  identity.Login,
				"realm": identity.Realm,
			}).Debug("User not found in any resolver of the realm")
			return nil
		}
	}

	instance, err := resolverOf(snapshot, identity.Resolver)
	if err != nil {
		return err
	}

	if len(identity.UID) == 0 {
		lookup := s.lookupUserID(ctx, instance, epoch, identity.Login)
		if lookup.IsBackendError() {
			return lookup.Err
		}
		identity.UID = lookup.Value
	}

	if len(identity.Login) == 0 && len(identity.UID) > 0 {
		lookup := s.lookupUsername(ctx, instance, epoch, identity.UID)
		if lookup.IsBackendError() {
			return lookup.Err
		}
		identity.Login = lookup.Value
		identity.UsedLogin = lookup.Value
	}

	if instance.HasMultipleLoginNames() && len(identity.UID) > 0 {
		// the backend knows the primary login, which may differ from the one used
		lookup := s.lookupUsername(ctx, instance, epoch, identity.UID)
		if lookup.IsBackendError() {
			return lookup.Err
		}
		if lookup.IsFound() {
			identity.Login = lookup.Value
		}
	}
	return nil
}

// searchRealm asks the resolvers of the realm in order and stops at the first
// one that knows the login. Failing backends are skipped.
func (s *Service) searchRealm(ctx context.Context, snapshot *registry.Snapshot, epoch uint64, identity *models.Identity) {
	for _, name := range snapshot.ResolversForRealm(identity.Realm) {
		instance, _ := snapshot.Resolver(name)
		if instance == nil {
			logrus.WithField("resolver", name).Warn("Resolver is not available")
			continue
		}

		lookup := s.lookupUserID(ctx, instance, epoch, identity.Login)
		switch {
		case lookup.IsBackendError():
			logrus.WithError(lookup.Err).WithFields(logrus.Fields{
				"resolver": name,
				"user":     identity.Login,
			}).Warn("Failed to look up user, trying next resolver")
		case lookup.IsFound():
			logrus.WithFields(logrus.Fields{
				"resolver": name,
				"user":     identity.Login,
				"uid":      lookup.Value,
			}).Debug("User found in resolver")
			identity.Resolver = name
			identity.UID = lookup.Value
			return
		}
	}
}

func resolverOf(snapshot *registry.Snapshot, name string) (models.ResolverImpl, error) {
	instance, ok := snapshot.Resolver(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrResolverNotFound, name)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrResolverUnavailable, name)
	}
	return instance, nil
}

func (s *Service) lookupUserID(ctx context.Context, instance models.ResolverImpl, epoch uint64, login string) models.Lookup {
	if len(login) == 0 {
		return models.NotFound()
	}
	if uid, ok := s.cache.UserID(login, instance.GetName()); ok {
		return models.Found(uid)
	}
	lookup := instance.GetUserID(ctx, login)
	if lookup.IsFound() {
		s.cache.PutUserID(epoch, login, instance.GetName(), lookup.Value)
	}
	return lookup
}

func (s *Service) lookupUsername(ctx context.Context, instance models.ResolverImpl, epoch uint64, uid string) models.Lookup {
	if len(uid) == 0 {
		return models.NotFound()
	}
	if login, ok := s.cache.Username(uid, instance.GetName()); ok {
		return models.Found(login)
	}
	lookup := instance.GetUsername(ctx, uid)
	if lookup.IsFound() {
		s.cache.PutUsername(epoch, uid, instance.GetName(), lookup.Value)
	}
	return lookup
}

// GetUsername returns the login of uid in resolver, or "" if there is none.
func (s *Service) GetUsername(ctx context.Context, uid, resolver string) (string, error) {
	if len(uid) == 0 {
		return "", nil
	}
	snapshot, epoch := s.begin()
	instance, ok := snapshot.Resolver(resolver)
	if !ok || instance == nil {
		return "", nil
	}
	lookup := s.lookupUsername(ctx, instance, epoch, uid)
	if lookup.IsBackendError() {
		return "", lookup.Err
	}
	return lookup.Value, nil
}
