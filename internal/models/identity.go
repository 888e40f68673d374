package models

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Identity is a logical reference to a user, resolved to at most one
// (resolver, uid) pair. Identities are built per request and never stored.
//
// An identity with an empty login and an empty realm is the empty identity.
type Identity struct {
	Login string `json:"login"`
	// UsedLogin is the login as supplied by the caller. It differs from Login
	// when the backend returns a canonical login name.
	UsedLogin    string `json:"used_login,omitempty"`
	Realm        string `json:"realm"`
	Resolver     string `json:"resolver"`
	UID          string `json:"uid,omitempty"`
	ResolverType string `json:"resolver_type,omitempty"`
	RealmID      *int64 `json:"realm_id,omitempty"`
}

func (i *Identity) IsEmpty() bool {
	if i == nil {
		return true
	}
	// a lone resolver makes no sense, so it is ignored here
	return len(i.Login)+len(i.Realm) == 0
}

// Exists reports whether the identity was found in a user store.
func (i *Identity) Exists() bool {
	return i != nil && len(i.UID) > 0
}

func (i *Identity) HasResolver() bool {
	return i != nil && len(i.Resolver) > 0
}

// Equal compares two identities. Identities in different resolvers or realms
// are never equal. The uid is compared when both sides have one, otherwise
// the login is.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	if i.Resolver != other.Resolver || i.Realm != other.Realm {
		logrus.Debugf("Users are not in the same resolver and realm: %s != %s", i, other)
		return false
	}
	if len(i.UID) > 0 && len(other.UID) > 0 {
		return i.UID == other.UID
	}
	return i.Login == other.Login
}

// GetUserIdentifiers returns the uid, the resolver type and the resolver name.
func (i *Identity) GetUserIdentifiers() (string, string, string, error) {
	if !i.HasResolver() {
		return "", "", "", fmt.Errorf("%w: the user can not be found in any resolver in this realm", ErrNotUniquelyLocated)
	}
	return i.UID, i.ResolverType, i.Resolver, nil
}

func (i *Identity) String() string {
	if i.IsEmpty() {
		return "<empty user>"
	}
	conf := ""
	if len(i.Resolver) > 0 {
		conf = "." + i.Resolver
	}
	return fmt.Sprintf("<%s%s@%s>", i.Login, conf, i.Realm)
}

func (i *Identity) GoString() string {
	if i == nil {
		return "User(nil)"
	}
	return fmt.Sprintf("User(login=%q, realm=%q, resolver=%q)", i.Login, i.Realm, i.Resolver)
}

// LoginAtRealm renders the identity as login@realm.
func (i *Identity) LoginAtRealm() string {
	return fmt.Sprintf("%s@%s", i.Login, i.Realm)
}
