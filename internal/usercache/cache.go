package usercache

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/models"
)

const (
	kindIdentity = "identity"
	kindUsername = "username"
	kindUserID   = "userid"
)

// IdentityKey is the identity as supplied by the caller, before resolution.
type IdentityKey struct {
	Login    string
	Realm    string
	Resolver string
	UID      string
}

func (k IdentityKey) cacheKey() string {
	return join(kindIdentity, k.Login, k.Realm, k.Resolver, k.UID)
}

type Options struct {
	Enabled    bool
	Expiration time.Duration
	Cleanup    time.Duration
}

// entry remembers the (login, resolver, uid) it was derived from so that
// invalidation can find it regardless of how it was keyed.
type entry struct {
	login    string
	resolver string
	uid      string
	value    any

	// requested is the login an identity entry was asked for. It is empty
	// for the username and uid views.
	requested string
}

// Cache memoizes identity resolution and username/uid lookups.
//
// Writes carry the epoch observed before the backend was asked. Every
// invalidation bumps the epoch, so a result computed before an invalidation
// is dropped instead of becoming visible after it.
type Cache struct {
	mu      sync.Mutex
	items   *gocache.Cache
	epoch   uint64
	enabled bool
}

func New(opts Options) *Cache {
	if opts.Expiration == 0 {
		opts.Expiration = 5 * time.Minute
	}
	if opts.Cleanup == 0 {
		opts.Cleanup = 10 * time.Minute
	}

	logrus.WithFields(logrus.Fields{
		"enabled":    opts.Enabled,
		"expiration": opts.Expiration,
		"cleanup":    opts.Cleanup,
	}).Debug("User cache initialized")

	return &Cache{
		items:   gocache.New(opts.Expiration, opts.Cleanup),
		enabled: opts.Enabled,
	}
}

// Disabled returns a cache that never holds anything.
func Disabled() *Cache {
	return New(Options{Enabled: false})
}

func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Epoch returns the current invalidation epoch.
func (c *Cache) Epoch() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Cache) get(key string) (any, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	return raw.(entry).value, true
}

func (c *Cache) put(epoch uint64, key string, e entry) bool {
	if !c.Enabled() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		logrus.WithField("key", key).Debug("Dropping stale user cache write")
		return false
	}
	c.items.SetDefault(key, e)
	return true
}

func (c *Cache) Identity(key IdentityKey) (models.Identity, bool) {
	value, ok := c.get(key.cacheKey())
	if !ok {
		return models.Identity{}, false
	}
	return value.(models.Identity), true
}

// PutIdentity stores a resolved identity under the key it was requested with.
func (c *Cache) PutIdentity(epoch uint64, key IdentityKey, identity models.Identity) bool {
	return c.put(epoch, key.cacheKey(), entry{
		login:     identity.Login,
		resolver:  identity.Resolver,
		uid:       identity.UID,
		value:     identity,
		requested: key.Login,
	})
}

func (c *Cache) Username(uid, resolver string) (string, bool) {
	value, ok := c.get(join(kindUsername, uid, resolver))
	if !ok {
		return "", false
	}
	return value.(string), true
}

func (c *Cache) PutUsername(epoch uint64, uid, resolver, login string) bool {
	return c.put(epoch, join(kindUsername, uid, resolver), entry{
		login:    login,
		resolver: resolver,
		uid:      uid,
		value:    login,
	})
}

func (c *Cache) UserID(login, resolver string) (string, bool) {
	value, ok := c.get(join(kindUserID, login, resolver))
	if !ok {
		return "", false
	}
	return value.(string), true
}

func (c *Cache) PutUserID(epoch uint64, login, resolver, uid string) bool {
	return c.put(epoch, join(kindUserID, login, resolver), entry{
		login:    login,
		resolver: resolver,
		uid:      uid,
		value:    uid,
	})
}

// Invalidate drops every entry of resolver that refers to login or uid.
// Either of login and uid may be empty.
func (c *Cache) Invalidate(resolver, login, uid string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++

	removed := 0
	for key, item := range c.items.Items() {
		e, ok := item.Object.(entry)
		if !ok || e.resolver != resolver {
			continue
		}
		if (len(login) > 0 && e.login == login) || (len(uid) > 0 && e.uid == uid) {
			c.items.Delete(key)
			removed++
		}
	}

	logrus.WithFields(logrus.Fields{
		"resolver": resolver,
		"login":    login,
		"removed":  removed,
	}).Debug("Invalidated user cache entries")

	return removed
}

// InvalidateLogin drops the identities requested as, or resolved to, login in
// any resolver. A new user named login may outrank the resolver an identity
// was bound to.
func (c *Cache) InvalidateLogin(login string) int {
	if c == nil || len(login) == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++

	removed := 0
	for key, item := range c.items.Items() {
		e, ok := item.Object.(entry)
		if !ok || !strings.HasPrefix(key, kindIdentity+"\x00") {
			continue
		}
		if e.requested == login || e.login == login {
			c.items.Delete(key)
			removed++
		}
	}

	logrus.WithFields(logrus.Fields{
		"login":   login,
		"removed": removed,
	}).Debug("Invalidated cached identities of login")

	return removed
}

// InvalidateResolver drops every entry of resolver.
func (c *Cache) InvalidateResolver(resolver string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++

	removed := 0
	for key, item := range c.items.Items() {
		if e, ok := item.Object.(entry); ok && e.resolver == resolver {
			c.items.Delete(key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Flush() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.items.Flush()
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.items.ItemCount()
}

func join(parts ...string) string {
	return strings.Join(parts, "\x00")
}
