package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/edumfa/edumfa-go/internal/models"
)

var errNoAttributeStore = errors.New("no attribute store configured")

// Attributes returns the custom attributes of the user.
func (s *Service) Attributes(ctx context.Context, identity *models.Identity) (map[string]string, error) {
	if s.attributes == nil || !identity.Exists() {
		return map[string]string{}, nil
	}
	return s.attributes.GetCustomAttributes(ctx, identity.UID, identity.Resolver, realmID(identity))
}

// SetAttribute sets a custom attribute of a located user.
func (s *Service) SetAttribute(ctx context.Context, identity *models.Identity, key, value, attributeType string) error {
	if s.attributes == nil {
		return errNoAttributeStore
	}
	if !identity.Exists() || !identity.HasResolver() {
		return fmt.Errorf("%w: %s", models.ErrNotUniquelyLocated, identity)
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: key", models.ErrMissingParameter)
	}
	return s.attributes.SetCustomAttribute(ctx, models.CustomAttribute{
		UID:      identity.UID,
		Resolver: identity.Resolver,
		RealmID:  realmID(identity),
		Key:      key,
		Value:    value,
		Type:     attributeType,
	})
}

// DeleteAttribute deletes one custom attribute, or all of them when key is
// empty, and returns the number of deleted attributes.
func (s *Service) DeleteAttribute(ctx context.Context, identity *models.Identity, key string) (int64, error) {
	if s.attributes == nil {
		return 0, errNoAttributeStore
	}
	if !identity.Exists() || !identity.HasResolver() {
		return 0, fmt.Errorf("%w: %s", models.ErrNotUniquelyLocated, identity)
	}
	return s.attributes.DeleteCustomAttribute(ctx, identity.UID, identity.Resolver, realmID(identity), key)
}

// IsAttributeAtAll reports whether any user has a custom attribute.
func (s *Service) IsAttributeAtAll(ctx context.Context) (bool, error) {
	if s.attributes == nil {
		return false, nil
	}
	count, err := s.attributes.CountCustomAttributes(ctx)
	return count > 0, err
}
