package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
	"github.com/edumfa/edumfa-go/internal/store"
	mocks "github.com/edumfa/edumfa-go/internal/testing/mocks/resolvers"
	"github.com/edumfa/edumfa-go/internal/usercache"
	"github.com/edumfa/edumfa-go/internal/users"
)

type fixture struct {
	ctx      context.Context
	registry *registry.Registry
	store    *store.Store
	cache    *usercache.Cache
	service  *users.Service
}

func newFixture(t *testing.T, cacheEnabled bool) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	reg := registry.New(s)
	reg.SetGracePeriod(0)
	cache := usercache.New(usercache.Options{Enabled: cacheEnabled})

	t.Cleanup(func() {
		_ = reg.Close()
		_ = s.Close()
	})

	return &fixture{
		ctx:      ctx,
		registry: reg,
		store:    s,
		cache:    cache,
		service:  users.NewService(reg, cache, s, users.Options{SplitAtSign: true}),
	}
}

func mockUser(uid, login string, info map[string]any, aliases ...string) map[string]any {
	user := map[string]any{"uid": uid, "login": login, "password": login + "-pw"}
	if info != nil {
		user["info"] = info
	}
	if len(aliases) > 0 {
		user["aliases"] = aliases
	}
	return user
}

func (f *fixture) addResolver(t *testing.T, name string, priority int, data models.BasicConfig, users ...map[string]any) {
	t.Helper()
	if data == nil {
		data = models.BasicConfig{}
	}
	list := make([]any, 0, len(users))
	for _, user := range users {
		list = append(list, user)
	}
	data["users"] = list
	_, err := f.registry.SaveRegistration(f.ctx, models.ResolverRegistration{
		Name:     name,
		Type:     mocks.MockResolverType,
		Priority: priority,
		Data:     data,
	})
	require.NoError(t, err)
}

func (f *fixture) setRealm(t *testing.T, name string, resolvers ...string) {
	t.Helper()
	members := make([]models.RealmResolver, 0, len(resolvers))
	for _, resolver := range resolvers {
		members = append(members, models.RealmResolver{Name: resolver})
	}
	_, err := f.registry.SetRealm(f.ctx, name, members)
	require.NoError(t, err)
}

func (f *fixture) mock(t *testing.T, name string) *mocks.MockResolver {
	t.Helper()
	instance, ok := f.registry.Current().Resolver(name)
	require.True(t, ok)
	mock, ok := instance.(*mocks.MockResolver)
	require.True(t, ok)
	return mock
}
