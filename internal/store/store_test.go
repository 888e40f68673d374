package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumfa/edumfa-go/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intPtr(v int) *int { return &v }

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Migrate(ctx))

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	assert.True(t, s.DB().Migrator().HasTable("tokenowner"))
}

func TestResolverRegistrations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveResolverRegistration(ctx, models.ResolverRegistration{
		Name: "ldap1",
		Type: "ldapresolver",
		Data: models.BasicConfig{"LDAPURI": "ldap://localhost"},
	}))
	require.NoError(t, s.SaveResolverRegistration(ctx, models.ResolverRegistration{
		Name:     "ldap1",
		Type:     "ldapresolver",
		Priority: 5,
		Data:     models.BasicConfig{"LDAPURI": "ldap://other"},
	}))

	registrations, err := s.ListResolverRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, registrations, 1)
	assert.Equal(t, 5, registrations[0].Priority)
	assert.Equal(t, "ldap://other", registrations[0].Data.GetStringWithDefault("LDAPURI", ""))

	require.NoError(t, s.DeleteResolverRegistration(ctx, "ldap1"))
	err = s.DeleteResolverRegistration(ctx, "ldap1")
	assert.ErrorIs(t, err, models.ErrResolverNotFound)
}

func TestRealms(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"r1", "r2"} {
		require.NoError(t, s.SaveResolverRegistration(ctx, models.ResolverRegistration{Name: name, Type: "memoryresolver"}))
	}

	first, err := s.SaveRealm(ctx, models.Realm{
		Name:      "realm1",
		Default:   true,
		Resolvers: []models.RealmResolver{{Name: "r2", Priority: intPtr(3)}, {Name: "r1"}},
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = s.SaveRealm(ctx, models.Realm{Name: "realm2", Default: true, Resolvers: []models.RealmResolver{{Name: "r1"}}})
	require.NoError(t, err)

	realms, err := s.ListRealms(ctx)
	require.NoError(t, err)
	require.Len(t, realms, 2)
	assert.False(t, realms[0].Default, "only one realm may be default")
	assert.True(t, realms[1].Default)
	require.Len(t, realms[0].Resolvers, 2)
	assert.Equal(t, "r1", realms[0].Resolvers[0].Name)
	assert.Nil(t, realms[0].Resolvers[0].Priority)
	assert.Equal(t, 3, *realms[0].Resolvers[1].Priority)

	_, err = s.SaveRealm(ctx, models.Realm{Name: "realm3", Resolvers: []models.RealmResolver{{Name: "missing"}}})
	assert.ErrorIs(t, err, models.ErrResolverNotFound)

	require.NoError(t, s.SetDefaultRealm(ctx, "realm1"))
	realms, err = s.ListRealms(ctx)
	require.NoError(t, err)
	assert.True(t, realms[0].Default)
	assert.False(t, realms[1].Default)

	assert.ErrorIs(t, s.SetDefaultRealm(ctx, "nope"), models.ErrRealmNotFound)
	require.NoError(t, s.SetDefaultRealm(ctx, ""))

	require.NoError(t, s.DeleteRealm(ctx, "realm2"))
	assert.ErrorIs(t, s.DeleteRealm(ctx, "realm2"), models.ErrRealmNotFound)
}

func TestCustomAttributesAndTokenOwners(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	attribute := models.CustomAttribute{UID: "1000", Resolver: "r1", RealmID: 1, Key: "department", Value: "sales"}
	require.NoError(t, s.SetCustomAttribute(ctx, attribute))
	attribute.Value = "finance"
	require.NoError(t, s.SetCustomAttribute(ctx, attribute))
	require.NoError(t, s.SetCustomAttribute(ctx, models.CustomAttribute{UID: "1000", Resolver: "r1", RealmID: 1, Key: "floor", Value: "3"}))

	attributes, err := s.GetCustomAttributes(ctx, "1000", "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"department": "finance", "floor": "3"}, attributes)

	count, err := s.CountCustomAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	deleted, err := s.DeleteCustomAttribute(ctx, "1000", "r1", 1, "floor")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	owner, err := s.AddTokenOwner(ctx, "HOTP0001", models.TokenOwner{
		Resolver: "r1", ResolverType: "memoryresolver", UserID: "1000", RealmID: 1,
	})
	require.NoError(t, err)
	assert.NotZero(t, owner.TokenID)

	owners, err := s.GetTokenOwners(ctx, "1000", "r1")
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "HOTP0001", owners[0].Serial)

	require.NoError(t, s.DeleteUserData(ctx, "1000", "r1"))
	owners, err = s.GetTokenOwners(ctx, "1000", "r1")
	require.NoError(t, err)
	assert.Empty(t, owners)
	attributes, err = s.GetCustomAttributes(ctx, "1000", "r1", 1)
	require.NoError(t, err)
	assert.Empty(t, attributes)
}

func TestPoliciesAndEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SetPolicy(ctx, models.Policy{Name: "pol1", Scope: "authentication", Action: "otppin=userstore"})
	require.NoError(t, err)
	_, err = s.SetPolicy(ctx, models.Policy{Name: "pol1", Scope: "admin", Action: "enable"})
	require.NoError(t, err)

	policies, err := s.ListPolicies(ctx, "pol1")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "admin", policies[0].Scope)
	assert.Equal(t, 1, policies[0].Priority)

	_, err = s.SetPolicy(ctx, models.Policy{Scope: "admin"})
	assert.ErrorIs(t, err, models.ErrMissingParameter)

	id, err := s.SetEvent(ctx, models.EventDefinition{
		Name: "count", Event: []string{"auth"}, HandlerModule: "Counter", Action: "increase_counter",
	})
	require.NoError(t, err)
	_, err = s.SetEvent(ctx, models.EventDefinition{
		ID: id, Name: "count", Event: []string{"auth"}, HandlerModule: "Counter", Action: "reset_counter",
	})
	require.NoError(t, err)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, "reset_counter", events[0].Action)
	assert.Equal(t, "post", events[0].Position)

	deleted, err := s.DeleteEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	deleted, err = s.DeletePolicy(ctx, "pol1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	value, err := s.ReadCounter(ctx, "fails")
	require.NoError(t, err)
	assert.Zero(t, value)

	value, err = s.DecreaseCounter(ctx, "fails", false)
	require.NoError(t, err)
	assert.Zero(t, value, "counter stops at zero")

	for range 3 {
		value, err = s.IncreaseCounter(ctx, "fails")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), value)

	require.NoError(t, s.ResetCounter(ctx, "fails"))
	value, err = s.DecreaseCounter(ctx, "fails", true)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), value)

	value, err = s.ReadCounter(ctx, "fails")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), value)
}
