package users

import (
	"strings"

	"github.com/edumfa/edumfa-go/internal/registry"
)

// SplitUser splits "user@realm" and "realm\user" into login and realm.
//
// Only the last "@" is considered and only when the part behind it is a
// defined realm, so "alice@example.com" stays a login. The backslash form is
// tried when there is no "@" at all.
func (s *Service) SplitUser(login string) (string, string) {
	snapshot, _ := s.begin()
	return s.splitUser(snapshot, login)
}

func (s *Service) splitUser(snapshot *registry.Snapshot, login string) (string, string) {
	user := strings.TrimSpace(login)
	if !s.splitAtSign {
		return user, ""
	}

	if strings.Contains(user, "@") {
		at := strings.LastIndex(user, "@")
		if snapshot.RealmIsDefined(user[at+1:]) {
			return user[:at], user[at+1:]
		}
		return user, ""
	}

	if slash := strings.LastIndex(user, `\`); slash >= 0 {
		return user[slash+1:], user[:slash]
	}
	return user, ""
}
