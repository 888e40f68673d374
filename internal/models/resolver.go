package models

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// DefaultResolverPriority is used when neither the realm membership nor the
// registration carries a priority.
const DefaultResolverPriority = 1000

// CensoredValue replaces secret configuration values on export.
const CensoredValue = "__CENSORED__"

/*
resolvername: corp-ldap
type: ldapresolver
priority: 10
data:

	LDAPURI: ldap://ldap.example.com
	BINDPW: secret
*/
type ResolverRegistration struct {
	Name     string      `json:"resolvername" yaml:"resolvername"`
	Type     string      `json:"type" yaml:"type"`
	Priority int         `json:"priority,omitempty" yaml:"priority,omitempty"`
	Data     BasicConfig `json:"data" yaml:"data"`
}

// EffectivePriority returns the registration priority, falling back to the
// default for unset values.
func (r *ResolverRegistration) EffectivePriority() int {
	if r == nil || r.Priority <= 0 {
		return DefaultResolverPriority
	}
	return r.Priority
}

func (r *ResolverRegistration) Clone() ResolverRegistration {
	return ResolverRegistration{
		Name:     r.Name,
		Type:     r.Type,
		Priority: r.Priority,
		Data:     r.Data.Clone(),
	}
}

type ResolverCapability string

const (
	ResolverCapabilityLookupByLogin ResolverCapability = "lookup_by_login"
	ResolverCapabilityLookupByID    ResolverCapability = "lookup_by_id"
	ResolverCapabilitySearch        ResolverCapability = "search"
	ResolverCapabilityPassword      ResolverCapability = "check_password"
	ResolverCapabilityEditable      ResolverCapability = "editable"
)

func GetCapabilityFromString(capability string) (ResolverCapability, error) {
	switch strings.ToLower(capability) {
	case string(ResolverCapabilityLookupByLogin):
		return ResolverCapabilityLookupByLogin, nil
	case string(ResolverCapabilityLookupByID):
		return ResolverCapabilityLookupByID, nil
	case string(ResolverCapabilitySearch):
		return ResolverCapabilitySearch, nil
	case string(ResolverCapabilityPassword):
		return ResolverCapabilityPassword, nil
	case string(ResolverCapabilityEditable):
		return ResolverCapabilityEditable, nil
	default:
		return "", fmt.Errorf("unknown capability: %s", capability)
	}
}

// UserInfo is the attribute map a backend returns for a single user.
type UserInfo map[string]any

func (u UserInfo) GetString(key string) string {
	if u == nil {
		return ""
	}
	switch v := u[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ResolverImpl is the contract every backend variant implements. Lookups never
// return "not found" as an error; see Lookup.
//
// Implementations perform backend I/O only and must not cache.
type ResolverImpl interface {
	Initialize(registration ResolverRegistration) error

	GetConfig() *BasicConfig
	GetName() string
	GetType() string

	GetCapabilities() []ResolverCapability
	HasCapability(capability ResolverCapability) bool
	Editable() bool
	HasMultipleLoginNames() bool

	GetUserID(ctx context.Context, login string) Lookup
	GetUsername(ctx context.Context, uid string) Lookup
	GetUserInfo(ctx context.Context, uid string) (UserInfo, error)
	CheckPassword(ctx context.Context, uid string, password string) (bool, error)
	Search(ctx context.Context, criteria map[string]string) ([]UserInfo, error)
	GetSearchFields() map[string]string

	// Mutations are only valid when Editable returns true.
	AddUser(ctx context.Context, attributes UserInfo) (string, error)
	UpdateUser(ctx context.Context, uid string, attributes UserInfo) (bool, error)
	DeleteUser(ctx context.Context, uid string) (bool, error)

	Close() error
}

type BaseResolver struct {
	registration ResolverRegistration
	capabilities []ResolverCapability
}

func NewBaseResolver(registration ResolverRegistration, capabilities ...ResolverCapability) *BaseResolver {
	return &BaseResolver{
		registration: registration,
		capabilities: capabilities,
	}
}

func (r *BaseResolver) Initialize(registration ResolverRegistration) error {
	r.registration = registration
	return nil
}

func (r *BaseResolver) GetConfig() *BasicConfig {
	return &r.registration.Data
}

func (r *BaseResolver) GetName() string {
	return r.registration.Name
}

func (r *BaseResolver) GetType() string {
	return r.registration.Type
}

func (r *BaseResolver) GetCapabilities() []ResolverCapability {
	return r.capabilities
}

func (r *BaseResolver) HasCapability(capability ResolverCapability) bool {
	return slices.Contains(r.capabilities, capability)
}

func (r *BaseResolver) Editable() bool {
	return r.HasCapability(ResolverCapabilityEditable)
}

func (r *BaseResolver) HasMultipleLoginNames() bool {
	return false
}

func (r *BaseResolver) GetUserID(ctx context.Context, login string) Lookup {
	return BackendError(ErrNotImplemented)
}

func (r *BaseResolver) GetUsername(ctx context.Context, uid string) Lookup {
	return BackendError(ErrNotImplemented)
}

func (r *BaseResolver) GetUserInfo(ctx context.Context, uid string) (UserInfo, error) {
	return nil, ErrNotImplemented
}

func (r *BaseResolver) CheckPassword(ctx context.Context, uid string, password string) (bool, error) {
	return false, ErrNotImplemented
}

func (r *BaseResolver) Search(ctx context.Context, criteria map[string]string) ([]UserInfo, error) {
	return nil, ErrNotImplemented
}

func (r *BaseResolver) GetSearchFields() map[string]string {
	return map[string]string{}
}

func (r *BaseResolver) AddUser(ctx context.Context, attributes UserInfo) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNotEditable, r.GetName())
}

func (r *BaseResolver) UpdateUser(ctx context.Context, uid string, attributes UserInfo) (bool, error) {
	return false, fmt.Errorf("%w: %s", ErrNotEditable, r.GetName())
}

func (r *BaseResolver) DeleteUser(ctx context.Context, uid string) (bool, error) {
	return false, fmt.Errorf("%w: %s", ErrNotEditable, r.GetName())
}

func (r *BaseResolver) Close() error {
	return nil
}
