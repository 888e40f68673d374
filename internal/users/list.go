package users

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/models"
)

var scopeKeys = map[string]bool{"realm": true, "resolver": true, "user": true, "username": true}

// GetUserList searches the users of the resolvers in scope. The scope is the
// "resolver" and "realm" parameters plus the resolver and realm of user; with
// none of them every resolver of every realm is searched. Every other
// parameter is a search criterion. Failing resolvers are logged and skipped.
func (s *Service) GetUserList(ctx context.Context, params map[string]string, user *models.Identity, customAttributes bool) ([]models.UserInfo, error) {
	snapshot, _ := s.begin()

	criteria := map[string]string{"username": "*"}
	for key, value := range params {
		if !scopeKeys[key] {
			criteria[key] = value
		}
	}
	if username, ok := params["username"]; ok {
		criteria["username"] = username
	}
	if login, ok := params["user"]; ok {
		criteria["username"] = login
	}

	var userResolver, userRealm string
	if user != nil {
		userResolver = user.Resolver
		userRealm = user.Realm
	}

	names := map[string]bool{}
	for _, name := range []string{params["resolver"], userResolver} {
		if len(name) > 0 {
			names[name] = true
		}
	}
	for _, realm := range []string{params["realm"], userRealm} {
		if len(realm) > 0 {
			for _, name := range snapshot.ResolversForRealm(realm) {
				names[name] = true
			}
		}
	}
	if len(params["resolver"]) == 0 && len(params["realm"]) == 0 && len(userResolver) == 0 && len(userRealm) == 0 {
		for _, realm := range snapshot.RealmNames() {
			for _, name := range snapshot.ResolversForRealm(realm) {
				names[name] = true
			}
		}
	}

	scopeRealm := params["realm"]
	if len(scopeRealm) == 0 {
		scopeRealm = userRealm
	}
	realmID, hasRealm := snapshot.RealmID(scopeRealm)

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	users := []models.UserInfo{}
	for _, name := range sorted {
		instance, err := resolverOf(snapshot, name)
		if err != nil {
			logrus.WithError(err).WithField("resolver", name).Error("Failed to list users")
			continue
		}
		found, err := instance.Search(ctx, criteria)
		if err != nil {
			logrus.WithError(err).WithField("resolver", name).Error("Failed to list users")
			continue
		}
		for _, entry := range found {
			entry["resolver"] = name
			entry["editable"] = instance.Editable()
			if customAttributes && hasRealm && s.attributes != nil {
				attributes, err := s.attributes.GetCustomAttributes(ctx, entry.GetString("userid"), name, realmID)
				if err != nil {
					return nil, err
				}
				for key, value := range attributes {
					entry[key] = value
				}
			}
			users = append(users, entry)
		}
	}
	return users, nil
}
