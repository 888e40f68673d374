package resolvers

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/models"
	coreResolvers "github.com/edumfa/edumfa-go/internal/resolvers"
)

const MockResolverType = "mockresolver"

func init() {
	coreResolvers.Set(coreResolvers.Descriptor{
		Type:        MockResolverType,
		Description: "In-memory resolver for tests",
		SecretKeys:  []string{"password"},
		Factory: func() models.ResolverImpl {
			return &MockResolver{}
		},
	})
}

// MockUser is a user entry in the "users" data key.
type MockUser struct {
	UID      string         `json:"uid"`
	Login    string         `json:"login"`
	Aliases  []string       `json:"aliases,omitempty"`
	Password string         `json:"password,omitempty"`
	Info     map[string]any `json:"info,omitempty"`
}

// MockResolver serves users from its registration data. "fail" makes every
// call report a backend error, "multiple_loginnames" enables alias logins.
type MockResolver struct {
	*models.BaseResolver

	mu       sync.RWMutex
	users    []MockUser
	nextID   int
	fail     atomic.Bool
	multiple bool

	LoginLookups atomic.Int64
	UIDLookups   atomic.Int64
}

func (m *MockResolver) Initialize(registration models.ResolverRegistration) error {
	capabilities := []models.ResolverCapability{
		models.ResolverCapabilityLookupByLogin,
		models.ResolverCapabilityLookupByID,
		models.ResolverCapabilitySearch,
		models.ResolverCapabilityPassword,
	}
	if registration.Data.GetBoolWithDefault("editable", false) {
		capabilities = append(capabilities, models.ResolverCapabilityEditable)
	}
	m.BaseResolver = models.NewBaseResolver(registration, capabilities...)

	var users []MockUser
	if raw, ok := registration.Data["users"]; ok {
		if err := common.ConvertInterfaceToInterface(raw, &users); err != nil {
			return fmt.Errorf("invalid users: %w", err)
		}
	}
	m.users = users
	m.nextID = len(users) + 1000
	m.multiple = registration.Data.GetBoolWithDefault("multiple_loginnames", false)
	m.fail.Store(registration.Data.GetBoolWithDefault("fail", false))
	return nil
}

func (m *MockResolver) SetFail(fail bool) {
	m.fail.Store(fail)
}

func (m *MockResolver) HasMultipleLoginNames() bool {
	return m.multiple
}

func (m *MockResolver) GetUserID(ctx context.Context, login string) models.Lookup {
	m.LoginLookups.Add(1)
	if m.fail.Load() {
		return models.BackendError(fmt.Errorf("%w: %s", models.ErrResolverUnavailable, m.GetName()))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []string
	for _, user := range m.users {
		if user.Login == login || (m.multiple && slices.Contains(user.Aliases, login)) {
			found = append(found, user.UID)
		}
	}
	switch len(found) {
	case 0:
		return models.NotFound()
	case 1:
		return models.Found(found[0])
	default:
		return models.BackendError(fmt.Errorf("%w: %s", models.ErrAmbiguousIdentity, login))
	}
}

func (m *MockResolver) GetUsername(ctx context.Context, uid string) models.Lookup {
	m.UIDLookups.Add(1)
	if m.fail.Load() {
		return models.BackendError(fmt.Errorf("%w: %s", models.ErrResolverUnavailable, m.GetName()))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if user := m.find(uid); user != nil {
		return models.Found(user.Login)
	}
	return models.NotFound()
}

func (m *MockResolver) GetUserInfo(ctx context.Context, uid string) (models.UserInfo, error) {
	if m.fail.Load() {
		return nil, fmt.Errorf("%w: %s", models.ErrResolverUnavailable, m.GetName())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	user := m.find(uid)
	if user == nil {
		return models.UserInfo{}, nil
	}
	return toInfo(user), nil
}

func (m *MockResolver) CheckPassword(ctx context.Context, uid string, password string) (bool, error) {
	if m.fail.Load() {
		return false, fmt.Errorf("%w: %s", models.ErrResolverUnavailable, m.GetName())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	user := m.find(uid)
	return user != nil && len(user.Password) > 0 && user.Password == password, nil
}

func (m *MockResolver) Search(ctx context.Context, criteria map[string]string) ([]models.UserInfo, error) {
	if m.fail.Load() {
		return nil, fmt.Errorf("%w: %s", models.ErrResolverUnavailable, m.GetName())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.UserInfo
	for i := range m.users {
		info := toInfo(&m.users[i])
		matched := true
		for key, pattern := range criteria {
			if !common.MatchWildcard(pattern, info.GetString(key)) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, info)
		}
	}
	return out, nil
}

func (m *MockResolver) GetSearchFields() map[string]string {
	return map[string]string{"username": "text", "email": "text"}
}

func (m *MockResolver) AddUser(ctx context.Context, attributes models.UserInfo) (string, error) {
	if !m.Editable() {
		return m.BaseResolver.AddUser(ctx, attributes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user := MockUser{
		UID:      strconv.Itoa(m.nextID),
		Login:    attributes.GetString("username"),
		Password: attributes.GetString("password"),
		Info:     map[string]any{},
	}
	for key, value := range attributes {
		if key != "username" && key != "password" {
			user.Info[key] = value
		}
	}
	m.users = append(m.users, user)
	return user.UID, nil
}

func (m *MockResolver) UpdateUser(ctx context.Context, uid string, attributes models.UserInfo) (bool, error) {
	if !m.Editable() {
		return m.BaseResolver.UpdateUser(ctx, uid, attributes)
	}
	if m.fail.Load() {
		return false, fmt.Errorf("%w: %s", models.ErrResolverUnavailable, m.GetName())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.find(uid)
	if user == nil {
		return false, nil
	}
	for key, value := range attributes {
		switch key {
		case "username":
			user.Login = fmt.Sprintf("%v", value)
		case "password":
			user.Password = fmt.Sprintf("%v", value)
		default:
			if user.Info == nil {
				user.Info = map[string]any{}
			}
			user.Info[key] = value
		}
	}
	return true, nil
}

func (m *MockResolver) DeleteUser(ctx context.Context, uid string) (bool, error) {
	if !m.Editable() {
		return m.BaseResolver.DeleteUser(ctx, uid)
	}
	if m.fail.Load() {
		return false, fmt.Errorf("%w: %s", models.ErrResolverUnavailable, m.GetName())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].UID == uid {
			m.users = slices.Delete(m.users, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockResolver) find(uid string) *MockUser {
	for i := range m.users {
		if m.users[i].UID == uid {
			return &m.users[i]
		}
	}
	return nil
}

func toInfo(user *MockUser) models.UserInfo {
	info := models.UserInfo{}
	for key, value := range user.Info {
		info[key] = value
	}
	info["username"] = user.Login
	info["userid"] = user.UID
	return info
}
