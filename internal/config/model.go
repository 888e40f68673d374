package config

import (
	"time"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/usercache"
	"github.com/edumfa/edumfa-go/internal/users"
)

// Config represents the application configuration structure
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Users    UsersConfig    `mapstructure:"users"`
	Registry RegistryConfig `mapstructure:"registry"`

	// Resolvers and realms seeded into an empty store
	Resolvers ResolverConfig `mapstructure:"resolvers"`
	Realms    RealmConfig    `mapstructure:"realms"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"text"`
}

type DatabaseConfig struct {
	// DSN is the sqlite path of the configuration database
	DSN string `mapstructure:"dsn" default:"edumfa.db"`
}

type UsersConfig struct {
	SplitAtSign bool        `mapstructure:"split_at_sign" default:"true"`
	Cache       CacheConfig `mapstructure:"cache"`
}

type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled" default:"true"`
	Expiration time.Duration `mapstructure:"expiration" default:"5m"`
	Cleanup    time.Duration `mapstructure:"cleanup" default:"10m"`
}

type RegistryConfig struct {
	// ReloadInterval re-reads resolvers and realms from the store. Zero
	// disables reloading.
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
	GracePeriod    time.Duration `mapstructure:"grace_period" default:"30s"`
}

// ResolverConfig holds resolver definitions. Path points to a resolver
// import document. Viper lowercases map keys, so backends with case
// sensitive data keys belong in Path.
type ResolverConfig struct {
	Path        string                        `mapstructure:"path"`
	Definitions map[string]ResolverDefinition `mapstructure:"definitions"`
}

type ResolverDefinition struct {
	Type     string         `mapstructure:"type"`
	Priority int            `mapstructure:"priority"`
	Data     map[string]any `mapstructure:"data"`
}

type RealmConfig struct {
	Definitions map[string]RealmDefinition `mapstructure:"definitions"`
}

type RealmDefinition struct {
	Default   bool                   `mapstructure:"default"`
	Resolvers []RealmMemberDefinition `mapstructure:"resolvers"`
}

type RealmMemberDefinition struct {
	Name     string `mapstructure:"name"`
	Priority int    `mapstructure:"priority"`
}

func (c *Config) CacheOptions() usercache.Options {
	return usercache.Options{
		Enabled:    c.Users.Cache.Enabled,
		Expiration: c.Users.Cache.Expiration,
		Cleanup:    c.Users.Cache.Cleanup,
	}
}

func (c *Config) UserOptions() users.Options {
	return users.Options{SplitAtSign: c.Users.SplitAtSign}
}

func (d ResolverDefinition) Registration(name string) models.ResolverRegistration {
	data := models.BasicConfig(d.Data)
	return models.ResolverRegistration{
		Name:     name,
		Type:     d.Type,
		Priority: d.Priority,
		Data:     data.Clone(),
	}
}

func (d RealmDefinition) Members() []models.RealmResolver {
	members := make([]models.RealmResolver, 0, len(d.Resolvers))
	for _, member := range d.Resolvers {
		m := models.RealmResolver{Name: member.Name}
		if member.Priority > 0 {
			priority := member.Priority
			m.Priority = &priority
		}
		members = append(members, m)
	}
	return members
}
