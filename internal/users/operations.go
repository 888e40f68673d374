package users

import (
	"context"
	"fmt"
	"maps"

	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
)

// located returns the backend of an identity that was bound to exactly one
// user in exactly one resolver.
func located(snapshot *registry.Snapshot, identity *models.Identity) (models.ResolverImpl, error) {
	if identity.IsEmpty() || !identity.HasResolver() || !identity.Exists() {
		return nil, fmt.Errorf("%w: %s", models.ErrNotUniquelyLocated, identity)
	}
	return resolverOf(snapshot, identity.Resolver)
}

// Info returns the user attributes from the backend, overlaid with the
// custom attributes.
func (s *Service) Info(ctx context.Context, identity *models.Identity) (models.UserInfo, error) {
	if identity.IsEmpty() {
		return models.UserInfo{}, nil
	}
	uid, _, resolver, err := identity.GetUserIdentifiers()
	if err != nil {
		return nil, err
	}
	if len(uid) == 0 {
		return models.UserInfo{}, nil
	}

	snapshot, _ := s.begin()
	instance, err := resolverOf(snapshot, resolver)
	if err != nil {
		return nil, err
	}
	info, err := instance.GetUserInfo(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := models.UserInfo{}
	maps.Copy(out, info)

	attributes, err := s.Attributes(ctx, identity)
	if err != nil {
		return nil, err
	}
	for key, value := range attributes {
		out[key] = value
	}
	return out, nil
}

// CheckPassword verifies the password in the user's resolver. It returns
// "login@realm" on success and "" when the password is rejected or the user
// is not found.
func (s *Service) CheckPassword(ctx context.Context, identity *models.Identity, password string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"user":  identity.Login,
		"realm": identity.Realm,
	}).Info("User tries to authenticate")

	if !identity.HasResolver() {
		logrus.WithField("user", identity.String()).Error("The user exists in no resolver")
		return "", nil
	}

	snapshot, _ := s.begin()
	instance, err := resolverOf(snapshot, identity.Resolver)
	if err != nil {
		return "", err
	}
	if !identity.Exists() {
		logrus.WithField("user", identity.String()).Info("User failed to authenticate")
		return "", nil
	}

	ok, err := instance.CheckPassword(ctx, identity.UID, password)
	if err != nil {
		return "", fmt.Errorf("failed to check password of %s: %w", identity, err)
	}
	if !ok {
		logrus.WithField("user", identity.String()).Info("User failed to authenticate")
		return "", nil
	}

	logrus.WithField("user", identity.String()).Debug("Successfully authenticated user")
	return identity.LoginAtRealm(), nil
}

// UpdateUserInfo changes the user in its backend. The cached lookups of the
// user are dropped before and after the backend call.
func (s *Service) UpdateUserInfo(ctx context.Context, identity *models.Identity, attributes models.UserInfo, password *string) error {
	snapshot, _ := s.begin()
	instance, err := located(snapshot, identity)
	if err != nil {
		return err
	}
	if !instance.Editable() {
		return fmt.Errorf("%w: %s", models.ErrNotEditable, identity.Resolver)
	}

	update := models.UserInfo{}
	maps.Copy(update, attributes)
	if password != nil {
		update["password"] = *password
	}
	newLogin := update.GetString("username")

	s.cache.Invalidate(identity.Resolver, identity.Login, identity.UID)
	if len(newLogin) > 0 {
		s.cache.Invalidate(identity.Resolver, newLogin, "")
	}

	ok, err := instance.UpdateUser(ctx, identity.UID, update)
	s.cache.Invalidate(identity.Resolver, identity.Login, identity.UID)
	// a renamed user may now outrank the resolver other realms bound newLogin to
	s.cache.InvalidateLogin(newLogin)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", identity, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrNotUniquelyLocated, identity)
	}

	if len(newLogin) > 0 {
		identity.Login = newLogin
	}
	logrus.WithField("user", identity.String()).Info("Successfully updated user")
	return nil
}

// DeleteUser deletes the user in its backend together with the custom
// attributes and token ownerships kept for it.
func (s *Service) DeleteUser(ctx context.Context, identity *models.Identity) error {
	snapshot, _ := s.begin()
	instance, err := located(snapshot, identity)
	if err != nil {
		return err
	}
	if !instance.Editable() {
		return fmt.Errorf("%w: %s", models.ErrNotEditable, identity.Resolver)
	}

	s.cache.Invalidate(identity.Resolver, identity.Login, identity.UID)
	ok, err := instance.DeleteUser(ctx, identity.UID)
	s.cache.Invalidate(identity.Resolver, identity.Login, identity.UID)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", identity, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrNotUniquelyLocated, identity)
	}

	if s.attributes != nil {
		if err := s.attributes.DeleteUserData(ctx, identity.UID, identity.Resolver); err != nil {
			return fmt.Errorf("user %s deleted, but its data was not: %w", identity, err)
		}
	}
	logrus.WithField("user", identity.String()).Info("Successfully deleted user")
	return nil
}

// CreateUser adds a user to an editable resolver and returns its uid. The
// identity is not returned, since the resolver may be part of several realms.
func (s *Service) CreateUser(ctx context.Context, resolver string, attributes models.UserInfo, password *string) (string, error) {
	snapshot, epoch := s.begin()
	instance, err := resolverOf(snapshot, resolver)
	if err != nil {
		return "", err
	}
	if !instance.Editable() {
		return "", fmt.Errorf("%w: %s", models.ErrNotEditable, resolver)
	}

	create := models.UserInfo{}
	maps.Copy(create, attributes)
	if password != nil {
		create["password"] = *password
	}
	login := create.GetString("username")
	if len(login) == 0 {
		return "", fmt.Errorf("%w: username", models.ErrMissingParameter)
	}

	lookup := s.lookupUserID(ctx, instance, epoch, login)
	if lookup.IsBackendError() {
		return "", lookup.Err
	}
	if lookup.IsFound() {
		return "", fmt.Errorf("%w: %s in %s", models.ErrUserExists, login, resolver)
	}

	uid, err := instance.AddUser(ctx, create)
	s.cache.Invalidate(resolver, login, uid)
	// identities of login cached from a lower priority resolver are stale now
	s.cache.InvalidateLogin(login)
	if err != nil {
		return "", fmt.Errorf("failed to create user %s: %w", login, err)
	}

	logrus.WithFields(logrus.Fields{
		"user":     login,
		"resolver": resolver,
		"uid":      uid,
	}).Info("Created user")
	return uid, nil
}

// GetSearchFields returns the search fields of the user's resolver.
func (s *Service) GetSearchFields(identity *models.Identity) map[string]map[string]string {
	out := map[string]map[string]string{}
	if !identity.HasResolver() {
		return out
	}
	snapshot, _ := s.begin()
	instance, err := resolverOf(snapshot, identity.Resolver)
	if err != nil {
		logrus.WithError(err).WithField("resolver", identity.Resolver).Warn("Failed to get search fields")
		return out
	}
	out[identity.Resolver] = instance.GetSearchFields()
	return out
}

// GetUserRealms returns the realm of the user. Without realm and resolver
// this is the default realm; with only a resolver it is every realm that
// contains the resolver.
func (s *Service) GetUserRealms(identity *models.Identity) []string {
	snapshot, _ := s.begin()
	switch {
	case len(identity.Realm) == 0 && len(identity.Resolver) == 0:
		if realm := snapshot.DefaultRealm(); len(realm) > 0 {
			return []string{realm}
		}
		return []string{}
	case len(identity.Realm) > 0:
		return []string{models.NormalizeRealm(identity.Realm)}
	default:
		realms := snapshot.RealmsForResolver(identity.Resolver)
		if realms == nil {
			return []string{}
		}
		return realms
	}
}

// GetUserPhones returns the phone numbers of the given type, e.g. "phone"
// or "mobile".
func (s *Service) GetUserPhones(ctx context.Context, identity *models.Identity, phoneType string) ([]string, error) {
	info, err := s.Info(ctx, identity)
	if err != nil {
		return nil, err
	}
	value, ok := info[phoneType]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"user": identity.String(),
			"type": phoneType,
		}).Warn("User has no phone of this type")
		return []string{}, nil
	}
	switch phones := value.(type) {
	case []string:
		return phones, nil
	case []any:
		out := make([]string, 0, len(phones))
		for _, phone := range phones {
			out = append(out, fmt.Sprintf("%v", phone))
		}
		return out, nil
	case nil:
		return []string{}, nil
	default:
		return []string{fmt.Sprintf("%v", phones)}, nil
	}
}

// GetUserPhone returns the phone number at index, or "" if there are fewer.
func (s *Service) GetUserPhone(ctx context.Context, identity *models.Identity, phoneType string, index int) (string, error) {
	phones, err := s.GetUserPhones(ctx, identity, phoneType)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(phones) {
		if len(phones) > 0 {
			logrus.WithFields(logrus.Fields{
				"user":  identity.String(),
				"index": index,
			}).Warn("User does not have that many phone numbers")
		}
		return "", nil
	}
	return phones[index], nil
}

// LogUsedUser prefixes text with the login the user logged in with, when it
// differs from the canonical login.
func LogUsedUser(identity *models.Identity, text string) string {
	if identity.UsedLogin != identity.Login {
		return fmt.Sprintf("logged in as %s. %s", identity.UsedLogin, text)
	}
	return text
}
