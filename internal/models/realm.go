package models

import "strings"

// RealmResolver is a resolver membership inside a realm. A nil priority falls
// back to the resolver registration.
type RealmResolver struct {
	Name     string `json:"name" yaml:"name"`
	Priority *int   `json:"priority,omitempty" yaml:"priority,omitempty"`
}

type Realm struct {
	ID        int64           `json:"id,omitempty" yaml:"-"`
	Name      string          `json:"name" yaml:"name"`
	Default   bool            `json:"default" yaml:"default"`
	Resolvers []RealmResolver `json:"resolvers" yaml:"resolvers"`
}

func (r *Realm) HasResolver(name string) bool {
	for _, member := range r.Resolvers {
		if member.Name == name {
			return true
		}
	}
	return false
}

func (r *Realm) Clone() Realm {
	out := Realm{ID: r.ID, Name: r.Name, Default: r.Default}
	out.Resolvers = make([]RealmResolver, len(r.Resolvers))
	for i, member := range r.Resolvers {
		out.Resolvers[i] = RealmResolver{Name: member.Name}
		if member.Priority != nil {
			p := *member.Priority
			out.Resolvers[i].Priority = &p
		}
	}
	return out
}

// NormalizeRealm lowercases and trims realm names. Realm names are case-insensitive.
func NormalizeRealm(realm string) string {
	return strings.ToLower(strings.TrimSpace(realm))
}

// CustomAttribute is stored next to the user, not in the backend.
type CustomAttribute struct {
	UID      string `json:"user_id"`
	Resolver string `json:"resolver"`
	RealmID  int64  `json:"realm_id"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
}

// TokenOwner binds a token to a user in a resolver and realm.
type TokenOwner struct {
	ID           int64  `json:"id"`
	TokenID      int64  `json:"token_id"`
	Serial       string `json:"serial,omitempty"`
	Resolver     string `json:"resolver"`
	ResolverType string `json:"resolver_type"`
	UserID       string `json:"user_id"`
	RealmID      int64  `json:"realm_id"`
}
