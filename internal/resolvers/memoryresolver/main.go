package memoryresolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

const MemoryResolverType = "memoryresolver"

func init() {
	resolvers.Register(resolvers.Descriptor{
		Type:        MemoryResolverType,
		Description: "Editable in-process user store seeded from configuration",
		Factory: func() models.ResolverImpl {
			return &memoryResolver{}
		},
	})
}

type memoryUser struct {
	uid          string
	username     string
	passwordHash []byte
	info         models.UserInfo
}

/*
type: memoryresolver
data:

	editable: true
	users:
	  - username: alice
	    password: test
	    email: alice@example.com
*/
type memoryResolver struct {
	*models.BaseResolver

	mu    sync.RWMutex
	users map[string]*memoryUser
	index *resolvers.SearchIndex
	cost  int
}

func (m *memoryResolver) Initialize(registration models.ResolverRegistration) error {
	capabilities := []models.ResolverCapability{
		models.ResolverCapabilityLookupByLogin,
		models.ResolverCapabilityLookupByID,
		models.ResolverCapabilitySearch,
		models.ResolverCapabilityPassword,
	}
	if registration.Data.GetBoolWithDefault("editable", true) {
		capabilities = append(capabilities, models.ResolverCapabilityEditable)
	}
	m.BaseResolver = models.NewBaseResolver(registration, capabilities...)
	m.users = make(map[string]*memoryUser)
	m.cost = registration.Data.GetIntWithDefault("bcrypt_cost", bcrypt.DefaultCost)

	index, err := resolvers.NewSearchIndex()
	if err != nil {
		return err
	}
	m.index = index

	var seed []map[string]any
	if raw, ok := registration.Data["users"]; ok {
		if err := common.ConvertInterfaceToInterface(raw, &seed); err != nil {
			return fmt.Errorf("invalid users for resolver %s: %w", registration.Name, err)
		}
	}

	for _, entry := range seed {
		if _, err := m.addUser(models.UserInfo(entry)); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"resolver": registration.Name,
		"users":    len(m.users),
	}).Debug("Memory resolver ready")

	return nil
}

func (m *memoryResolver) GetUserID(ctx context.Context, login string) models.Lookup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.username == login {
			return models.Found(user.uid)
		}
	}
	return models.NotFound()
}

func (m *memoryResolver) GetUsername(ctx context.Context, uid string) models.Lookup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if user, ok := m.users[uid]; ok {
		return models.Found(user.username)
	}
	return models.NotFound()
}

func (m *memoryResolver) GetUserInfo(ctx context.Context, uid string) (models.UserInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[uid]
	if !ok {
		return models.UserInfo{}, nil
	}
	return user.toInfo(), nil
}

func (m *memoryResolver) CheckPassword(ctx context.Context, uid string, password string) (bool, error) {
	m.mu.RLock()
	user, ok := m.users[uid]
	m.mu.RUnlock()
	if !ok || len(user.passwordHash) == 0 {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)) == nil, nil
}

func (m *memoryResolver) Search(ctx context.Context, criteria map[string]string) ([]models.UserInfo, error) {
	ids, err := m.index.Search(criteria)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.UserInfo, 0, len(ids))
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out = append(out, user.toInfo())
		}
	}
	return out, nil
}

func (m *memoryResolver) GetSearchFields() map[string]string {
	return map[string]string{
		"username":  "text",
		"givenname": "text",
		"surname":   "text",
		"email":     "text",
		"phone":     "text",
		"mobile":    "text",
	}
}

func (m *memoryResolver) AddUser(ctx context.Context, attributes models.UserInfo) (string, error) {
	if !m.Editable() {
		return m.BaseResolver.AddUser(ctx, attributes)
	}
	return m.addUser(attributes)
}

func (m *memoryResolver) addUser(attributes models.UserInfo) (string, error) {
	username := attributes.GetString("username")
	if len(username) == 0 {
		return "", fmt.Errorf("%w: username", models.ErrMissingParameter)
	}
	uid := attributes.GetString("userid")
	if len(uid) == 0 {
		uid = uuid.NewString()
	}

	user := &memoryUser{uid: uid, username: username, info: models.UserInfo{}}
	if err := m.applyAttributes(user, attributes); err != nil {
		return "", err
	}

	m.mu.Lock()
	for _, existing := range m.users {
		if existing.username == username || existing.uid == uid {
			m.mu.Unlock()
			return "", fmt.Errorf("%w: %s", models.ErrUserExists, username)
		}
	}
	m.users[uid] = user
	m.mu.Unlock()

	return uid, m.index.Index(uid, user.searchable())
}

func (m *memoryResolver) UpdateUser(ctx context.Context, uid string, attributes models.UserInfo) (bool, error) {
	if !m.Editable() {
		return m.BaseResolver.UpdateUser(ctx, uid, attributes)
	}
	m.mu.Lock()
	user, ok := m.users[uid]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	updated := *user
	updated.info = user.toInfo()
	if err := m.applyAttributes(&updated, attributes); err != nil {
		m.mu.Unlock()
		return false, err
	}
	m.users[uid] = &updated
	m.mu.Unlock()

	return true, m.index.Index(uid, updated.searchable())
}

func (m *memoryResolver) DeleteUser(ctx context.Context, uid string) (bool, error) {
	if !m.Editable() {
		return m.BaseResolver.DeleteUser(ctx, uid)
	}
	m.mu.Lock()
	_, ok := m.users[uid]
	delete(m.users, uid)
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, m.index.Delete(uid)
}

func (m *memoryResolver) Close() error {
	if m.index != nil {
		return m.index.Close()
	}
	return nil
}

func (m *memoryResolver) applyAttributes(user *memoryUser, attributes models.UserInfo) error {
	for key, value := range attributes {
		switch key {
		case "userid":
		case "username":
			user.username = fmt.Sprintf("%v", value)
		case "password":
			hash, err := hashPassword(fmt.Sprintf("%v", value), m.cost)
			if err != nil {
				return err
			}
			user.passwordHash = hash
		default:
			user.info[key] = value
		}
	}
	return nil
}

// hashPassword accepts cleartext or an existing bcrypt hash.
func hashPassword(password string, cost int) ([]byte, error) {
	if len(password) == 0 {
		return nil, nil
	}
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$") {
		return []byte(password), nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

func (u *memoryUser) toInfo() models.UserInfo {
	info := models.UserInfo{}
	for key, value := range u.info {
		info[key] = value
	}
	info["userid"] = u.uid
	info["username"] = u.username
	return info
}

func (u *memoryUser) searchable() map[string]string {
	out := map[string]string{}
	for key, value := range u.toInfo() {
		out[key] = fmt.Sprintf("%v", value)
	}
	return out
}
