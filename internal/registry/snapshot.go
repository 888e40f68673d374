package registry

import (
	"sort"

	"github.com/edumfa/edumfa-go/internal/models"
)

// Member is a resolver of a realm with its effective priority.
type Member struct {
	Name     string
	Priority int
}

// Snapshot is one immutable version of the resolver and realm configuration.
// Callers keep a single snapshot for the duration of an operation.
type Snapshot struct {
	version       uint64
	registrations map[string]models.ResolverRegistration
	resolvers     map[string]models.ResolverImpl
	realms        map[string]models.Realm
	members       map[string][]Member
	defaultRealm  string
}

func newSnapshot(
	version uint64,
	registrations map[string]models.ResolverRegistration,
	resolvers map[string]models.ResolverImpl,
	realms []models.Realm,
) *Snapshot {
	s := &Snapshot{
		version:       version,
		registrations: registrations,
		resolvers:     resolvers,
		realms:        make(map[string]models.Realm, len(realms)),
		members:       make(map[string][]Member, len(realms)),
	}

	for _, realm := range realms {
		realm = realm.Clone()
		realm.Name = models.NormalizeRealm(realm.Name)
		s.realms[realm.Name] = realm
		if realm.Default {
			s.defaultRealm = realm.Name
		}

		members := make([]Member, 0, len(realm.Resolvers))
		for _, member := range realm.Resolvers {
			registration, ok := registrations[member.Name]
			if !ok {
				continue
			}
			priority := registration.EffectivePriority()
			if member.Priority != nil && *member.Priority > 0 {
				priority = *member.Priority
			}
			members = append(members, Member{Name: member.Name, Priority: priority})
		}
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].Priority != members[j].Priority {
				return members[i].Priority < members[j].Priority
			}
			return members[i].Name < members[j].Name
		})
		s.members[realm.Name] = members
	}
	return s
}

func emptySnapshot() *Snapshot {
	return newSnapshot(0, map[string]models.ResolverRegistration{}, map[string]models.ResolverImpl{}, nil)
}

func (s *Snapshot) Version() uint64 {
	return s.version
}

// Resolver returns the backend instance of a registered resolver. It is nil
// when the registration exists but its backend could not be initialised.
func (s *Snapshot) Resolver(name string) (models.ResolverImpl, bool) {
	if _, ok := s.registrations[name]; !ok {
		return nil, false
	}
	return s.resolvers[name], true
}

func (s *Snapshot) Registration(name string) (models.ResolverRegistration, bool) {
	registration, ok := s.registrations[name]
	if !ok {
		return models.ResolverRegistration{}, false
	}
	return registration.Clone(), true
}

func (s *Snapshot) ResolverType(name string) string {
	return s.registrations[name].Type
}

func (s *Snapshot) ResolverNames() []string {
	names := make([]string, 0, len(s.registrations))
	for name := range s.registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members returns the resolvers of realm ordered by (priority, name).
func (s *Snapshot) Members(realm string) []Member {
	members := s.members[models.NormalizeRealm(realm)]
	out := make([]Member, len(members))
	copy(out, members)
	return out
}

// ResolversForRealm returns the resolver names of realm in search order.
func (s *Snapshot) ResolversForRealm(realm string) []string {
	members := s.members[models.NormalizeRealm(realm)]
	names := make([]string, 0, len(members))
	for _, member := range members {
		names = append(names, member.Name)
	}
	return names
}

// DefaultRealm returns the name of the default realm, or "".
func (s *Snapshot) DefaultRealm() string {
	return s.defaultRealm
}

func (s *Snapshot) RealmIsDefined(realm string) bool {
	_, ok := s.realms[models.NormalizeRealm(realm)]
	return ok
}

func (s *Snapshot) Realm(realm string) (models.Realm, bool) {
	found, ok := s.realms[models.NormalizeRealm(realm)]
	if !ok {
		return models.Realm{}, false
	}
	return found.Clone(), true
}

func (s *Snapshot) Realms() []models.Realm {
	out := make([]models.Realm, 0, len(s.realms))
	for _, name := range s.RealmNames() {
		realm := s.realms[name]
		out = append(out, realm.Clone())
	}
	return out
}

func (s *Snapshot) RealmNames() []string {
	names := make([]string, 0, len(s.realms))
	for name := range s.realms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Snapshot) RealmID(realm string) (int64, bool) {
	found, ok := s.realms[models.NormalizeRealm(realm)]
	return found.ID, ok
}

// RealmsForResolver returns the realms containing resolver, sorted.
func (s *Snapshot) RealmsForResolver(resolver string) []string {
	var out []string
	for _, name := range s.RealmNames() {
		realm := s.realms[name]
		if realm.HasResolver(resolver) {
			out = append(out, name)
		}
	}
	return out
}
