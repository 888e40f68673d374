package resolvers

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/edumfa/edumfa-go/internal/interpolate"
	"github.com/edumfa/edumfa-go/internal/models"
)

// Factory returns a fresh, uninitialised backend.
type Factory func() models.ResolverImpl

// Descriptor describes a resolver type. SecretKeys lists the data keys that
// are redacted on export.
type Descriptor struct {
	Type        string
	Description string
	SecretKeys  []string
	Factory     Factory
}

var (
	registry      = make(map[string]Descriptor)
	registryMutex sync.RWMutex
)

// Register adds a resolver type to the registry.
func Register(descriptor Descriptor) {
	name := strings.ToLower(descriptor.Type)
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := registry[name]; exists {
		return
	}
	registry[name] = descriptor
}

// Set replaces a resolver type in the registry (useful for testing)
func Set(descriptor Descriptor) {
	name := strings.ToLower(descriptor.Type)
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registry[name] = descriptor
}

// Get returns the descriptor of a resolver type.
func Get(resolverType string) (Descriptor, error) {
	name := strings.ToLower(resolverType)
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	descriptor, exists := registry[name]
	if !exists {
		return Descriptor{}, fmt.Errorf("%w: %s", models.ErrUnknownResolverType, resolverType)
	}
	return descriptor, nil
}

// Types returns the registered resolver types, sorted.
func Types() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// CreateInstance builds and initialises a backend for the registration.
// Strict expressions in the data ("${ $ENV.BINDPW }") are evaluated before
// the backend sees them; the registration itself is left untouched.
func CreateInstance(registration models.ResolverRegistration) (models.ResolverImpl, error) {
	descriptor, err := Get(registration.Type)
	if err != nil {
		return nil, err
	}

	resolved, err := interpolate.NewTraverse(map[string]any(registration.Data.Clone()), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate configuration of resolver %s: %w", registration.Name, err)
	}

	initRegistration := registration.Clone()
	initRegistration.Type = strings.ToLower(registration.Type)
	if data, ok := resolved.(map[string]any); ok {
		initRegistration.Data = models.BasicConfig(data)
	}

	instance := descriptor.Factory()
	if err := instance.Initialize(initRegistration); err != nil {
		return nil, fmt.Errorf("failed to initialize resolver %s: %w", registration.Name, err)
	}
	return instance, nil
}

// IsSecretKey reports whether key holds a secret for the resolver type.
func IsSecretKey(resolverType string, key string) bool {
	descriptor, err := Get(resolverType)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(descriptor.SecretKeys, func(secret string) bool {
		return strings.EqualFold(secret, key)
	})
}

// Censor returns a copy of the registration with secret values replaced by
// models.CensoredValue.
func Censor(registration models.ResolverRegistration) models.ResolverRegistration {
	out := registration.Clone()
	for key := range out.Data {
		if IsSecretKey(out.Type, key) {
			out.Data[key] = models.CensoredValue
		}
	}
	return out
}

// RestoreCensored replaces censored values in update with the stored ones.
func RestoreCensored(update models.BasicConfig, stored models.BasicConfig) models.BasicConfig {
	out := update.Clone()
	for key, value := range out {
		if str, ok := value.(string); ok && str == models.CensoredValue {
			if previous, exists := stored[key]; exists {
				out[key] = previous
			} else {
				delete(out, key)
			}
		}
	}
	return out
}
