package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumfa/edumfa-go/internal/registry"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "edumfa.db", config.Database.DSN)
	assert.True(t, config.Users.SplitAtSign)
	assert.True(t, config.Users.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, config.Users.Cache.Expiration)
	assert.Equal(t, time.Duration(0), config.Registry.ReloadInterval)
	assert.Equal(t, 30*time.Second, config.Registry.GracePeriod)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("EDUMFA_USERS_CACHE_ENABLED", "false")

	path := filepath.Join(t.TempDir(), "edumfa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: warn
database:
  dsn: ":memory:"
users:
  split_at_sign: false
registry:
  reload_interval: 1m
resolvers:
  definitions:
    local:
      type: memoryresolver
      priority: 10
      data:
        bcrypt_cost: 4
        users:
          - username: alice
            password: test
realms:
  definitions:
    corp:
      default: true
      resolvers:
        - name: local
          priority: 5
`), 0o600))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, ":memory:", config.Database.DSN)
	assert.False(t, config.Users.SplitAtSign)
	assert.False(t, config.Users.Cache.Enabled)
	assert.Equal(t, time.Minute, config.Registry.ReloadInterval)

	require.Contains(t, config.Resolvers.Definitions, "local")
	registration := config.Resolvers.Definitions["local"].Registration("local")
	assert.Equal(t, "memoryresolver", registration.Type)
	assert.Equal(t, 10, registration.Priority)

	members := config.Realms.Definitions["corp"].Members()
	require.Len(t, members, 1)
	require.NotNil(t, members[0].Priority)
	assert.Equal(t, 5, *members[0].Priority)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edumfa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSeedRegistry(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "resolvers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
resolver:
  - resolvername: fromfile
    type: memoryresolver
    data:
      bcrypt_cost: 4
`), 0o600))

	config := DefaultConfig()
	config.Resolvers = ResolverConfig{
		Path: path,
		Definitions: map[string]ResolverDefinition{
			"local": {Type: "memoryresolver", Data: map[string]any{"bcrypt_cost": 4}},
			"bad":   {Type: "nosuchresolver"},
		},
	}
	config.Realms = RealmConfig{
		Definitions: map[string]RealmDefinition{
			"alpha": {Resolvers: []RealmMemberDefinition{{Name: "local"}}},
			"beta":  {Default: true, Resolvers: []RealmMemberDefinition{{Name: "fromfile"}, {Name: "local"}}},
		},
	}

	reg := registry.New(nil)
	reg.SetGracePeriod(0)
	t.Cleanup(func() { _ = reg.Close() })

	err := config.SeedRegistry(ctx, reg)
	assert.Error(t, err, "the unknown resolver type is reported")

	snapshot := reg.Current()
	assert.Equal(t, []string{"fromfile", "local"}, snapshot.ResolverNames())
	assert.Equal(t, []string{"alpha", "beta"}, snapshot.RealmNames())
	assert.Equal(t, "beta", snapshot.DefaultRealm())

	// seeding again leaves existing entries alone
	version := snapshot.Version()
	delete(config.Resolvers.Definitions, "bad")
	require.NoError(t, config.SeedRegistry(ctx, reg))
	assert.Equal(t, version, reg.Current().Version())
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	config := DefaultConfig()
	config.Database.DSN = ":memory:"
	config.Resolvers.Definitions = map[string]ResolverDefinition{
		"local": {
			Type: "memoryresolver",
			Data: map[string]any{
				"bcrypt_cost": 4,
				"users":       []any{map[string]any{"username": "alice", "password": "test"}},
			},
		},
	}
	config.Realms.Definitions = map[string]RealmDefinition{
		"corp": {Resolvers: []RealmMemberDefinition{{Name: "local"}}},
	}

	services, err := config.Initialize(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })

	identity, err := services.Users.UserFromParams(ctx, map[string]string{"user": "alice@corp"})
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Login)
	assert.Equal(t, "corp", identity.Realm)
	assert.Equal(t, "local", identity.Resolver)

	loggedIn, err := services.Users.CheckPassword(ctx, identity, "test")
	require.NoError(t, err)
	assert.Equal(t, "alice@corp", loggedIn)

	registrations, err := services.Store.ListResolverRegistrations(ctx)
	require.NoError(t, err)
	assert.Len(t, registrations, 1)
}
