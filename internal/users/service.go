package users

import (
	"context"
	"sync/atomic"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
	"github.com/edumfa/edumfa-go/internal/usercache"
)

// AttributeStore keeps custom user attributes and the other user side data.
type AttributeStore interface {
	SetCustomAttribute(ctx context.Context, attribute models.CustomAttribute) error
	GetCustomAttributes(ctx context.Context, uid, resolver string, realmID int64) (map[string]string, error)
	DeleteCustomAttribute(ctx context.Context, uid, resolver string, realmID int64, key string) (int64, error)
	CountCustomAttributes(ctx context.Context) (int64, error)
	DeleteUserData(ctx context.Context, uid, resolver string) error
}

type Options struct {
	// SplitAtSign enables splitting "user@realm" and "realm\user" logins.
	SplitAtSign bool
}

// Service resolves identities against the configured resolvers and realms.
type Service struct {
	registry    *registry.Registry
	cache       *usercache.Cache
	attributes  AttributeStore
	splitAtSign bool

	seenVersion atomic.Uint64
}

// NewService creates the service. cache and attributes may be nil.
func NewService(reg *registry.Registry, cache *usercache.Cache, attributes AttributeStore, opts Options) *Service {
	if cache == nil {
		cache = usercache.Disabled()
	}
	return &Service{
		registry:    reg,
		cache:       cache,
		attributes:  attributes,
		splitAtSign: opts.SplitAtSign,
	}
}

func (s *Service) Cache() *usercache.Cache {
	return s.cache
}

// begin captures the cache epoch and the configuration snapshot for one
// operation. The epoch is taken first: a flush caused by a newer snapshot
// then always drops the writes of this operation.
func (s *Service) begin() (*registry.Snapshot, uint64) {
	epoch := s.cache.Epoch()
	snapshot := s.registry.Current()
	version := snapshot.Version()
	for {
		seen := s.seenVersion.Load()
		if version <= seen {
			break
		}
		if s.seenVersion.CompareAndSwap(seen, version) {
			// cached resolutions belong to an older configuration
			s.cache.Flush()
			fresh := s.cache.Epoch()
			if s.seenVersion.Load() == version {
				epoch = fresh
			}
			break
		}
	}
	return snapshot, epoch
}

func realmID(identity *models.Identity) int64 {
	if identity.RealmID == nil {
		return 0
	}
	return *identity.RealmID
}
