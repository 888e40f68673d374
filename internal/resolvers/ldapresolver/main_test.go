package ldapresolver

import (
	"context"
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumfa/edumfa-go/internal/models"
)

type fakeDirectory struct {
	results   map[string][]*ldap.Entry
	passwords map[string]string
	searchErr error
	filters   []string
	added     []*ldap.AddRequest
	modified  []*ldap.ModifyRequest
	deleted   []string
}

func (f *fakeDirectory) dial() (directory, func(), error) {
	return f, func() {}, nil
}

func (f *fakeDirectory) Bind(username, password string) error {
	if expected, ok := f.passwords[username]; ok && expected == password {
		return nil
	}
	return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
}

func (f *fakeDirectory) Search(request *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	key := request.Filter
	if request.Scope == ldap.ScopeBaseObject {
		key = "base:" + request.BaseDN
	}
	f.filters = append(f.filters, key)
	return &ldap.SearchResult{Entries: f.results[key]}, nil
}

func (f *fakeDirectory) Add(request *ldap.AddRequest) error {
	f.added = append(f.added, request)
	return nil
}

func (f *fakeDirectory) Modify(request *ldap.ModifyRequest) error {
	f.modified = append(f.modified, request)
	return nil
}

func (f *fakeDirectory) Del(request *ldap.DelRequest) error {
	f.deleted = append(f.deleted, request.DN)
	return nil
}

const aliceDN = "uid=alice,ou=people,dc=example,dc=com"

func newTestResolver(t *testing.T, fake *fakeDirectory, data models.BasicConfig) *ldapResolver {
	t.Helper()
	base := models.BasicConfig{
		"LDAPURI":          "ldap://localhost",
		"LDAPBASE":         "ou=people,dc=example,dc=com",
		"BINDDN":           "cn=admin,dc=example,dc=com",
		"BINDPW":           "adminpw",
		"LDAPSEARCHFILTER": "(objectClass=person)",
		"USERINFO":         `{"username": "uid", "email": "mail", "givenname": "givenName"}`,
	}
	base.Update(data)
	r := &ldapResolver{dial: fake.dial}
	require.NoError(t, r.Initialize(models.ResolverRegistration{Name: "ldap1", Type: LDAPResolverType, Data: base}))
	return r
}

func aliceEntry() *ldap.Entry {
	return ldap.NewEntry(aliceDN, map[string][]string{
		"uid":       {"alice"},
		"mail":      {"alice@example.com"},
		"givenName": {"Alice"},
		"entryUUID": {"0d9b1c2a-1111-2222-3333-444455556666"},
	})
}

func TestLDAPResolver_LookupsByDN(t *testing.T) {
	fake := &fakeDirectory{
		passwords: map[string]string{"cn=admin,dc=example,dc=com": "adminpw", aliceDN: "test"},
		results: map[string][]*ldap.Entry{
			"(&(objectClass=person)(uid=alice))": {aliceEntry()},
			"base:" + aliceDN:                    {aliceEntry()},
		},
	}
	r := newTestResolver(t, fake, nil)
	ctx := context.Background()

	assert.False(t, r.HasMultipleLoginNames())

	lookup := r.GetUserID(ctx, "alice")
	require.True(t, lookup.IsFound())
	assert.Equal(t, aliceDN, lookup.Value)
	assert.True(t, r.GetUserID(ctx, "bob").IsNotFound())

	assert.Equal(t, "alice", r.GetUsername(ctx, aliceDN).Value)

	info, err := r.GetUserInfo(ctx, aliceDN)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info["email"])
	assert.Equal(t, "Alice", info["givenname"])

	ok, err := r.CheckPassword(ctx, aliceDN, "test")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.CheckPassword(ctx, aliceDN, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.CheckPassword(ctx, aliceDN, "")
	require.NoError(t, err)
	assert.False(t, ok, "empty password never binds")
}

func TestLDAPResolver_MultipleLoginNames(t *testing.T) {
	fake := &fakeDirectory{
		passwords: map[string]string{"cn=admin,dc=example,dc=com": "adminpw"},
		results: map[string][]*ldap.Entry{
			"(&(objectClass=person)(|(uid=alice@example.com)(mail=alice@example.com)))": {aliceEntry()},
			"(&(objectClass=person)(entryUUID=0d9b1c2a-1111-2222-3333-444455556666))":   {aliceEntry()},
		},
	}
	r := newTestResolver(t, fake, models.BasicConfig{
		"LOGINNAMEATTRIBUTE": "uid, mail",
		"UIDTYPE":            "entryUUID",
	})
	ctx := context.Background()

	assert.True(t, r.HasMultipleLoginNames())

	lookup := r.GetUserID(ctx, "alice@example.com")
	require.True(t, lookup.IsFound())
	assert.Equal(t, "0d9b1c2a-1111-2222-3333-444455556666", lookup.Value)

	canonical := r.GetUsername(ctx, lookup.Value)
	require.True(t, canonical.IsFound())
	assert.Equal(t, "alice", canonical.Value)
}

func TestLDAPResolver_Ambiguous(t *testing.T) {
	fake := &fakeDirectory{
		passwords: map[string]string{"cn=admin,dc=example,dc=com": "adminpw"},
		results: map[string][]*ldap.Entry{
			"(&(objectClass=person)(uid=alice))": {aliceEntry(), aliceEntry()},
		},
	}
	r := newTestResolver(t, fake, nil)

	lookup := r.GetUserID(context.Background(), "alice")
	require.True(t, lookup.IsBackendError())
	assert.True(t, errors.Is(lookup.Err, models.ErrAmbiguousIdentity))
}

func TestLDAPResolver_Unavailable(t *testing.T) {
	fake := &fakeDirectory{
		passwords: map[string]string{"cn=admin,dc=example,dc=com": "adminpw"},
		searchErr: ldap.NewError(ldap.LDAPResultUnavailable, errors.New("server down")),
	}
	r := newTestResolver(t, fake, nil)

	lookup := r.GetUserID(context.Background(), "alice")
	require.True(t, lookup.IsBackendError())
	assert.True(t, errors.Is(lookup.Err, models.ErrResolverUnavailable))
}

func TestLDAPResolver_SearchEscapesValues(t *testing.T) {
	fake := &fakeDirectory{passwords: map[string]string{"cn=admin,dc=example,dc=com": "adminpw"}}
	r := newTestResolver(t, fake, nil)

	_, err := r.Search(context.Background(), map[string]string{"username": "al(*", "unknown": "x"})
	require.NoError(t, err)
	require.Len(t, fake.filters, 1)
	assert.Equal(t, `(&(objectClass=person)(uid=al\28*))`, fake.filters[0])
}

func TestLDAPResolver_Mutations(t *testing.T) {
	fake := &fakeDirectory{
		passwords: map[string]string{"cn=admin,dc=example,dc=com": "adminpw"},
		results: map[string][]*ldap.Entry{
			"base:" + aliceDN: {aliceEntry()},
		},
	}
	r := newTestResolver(t, fake, models.BasicConfig{
		"EDITABLE":    true,
		"DN_TEMPLATE": "uid=<username>,<basedn>",
	})
	ctx := context.Background()
	require.True(t, r.Editable())

	uid, err := r.AddUser(ctx, models.UserInfo{"username": "bob", "email": "bob@example.com", "password": "pw"})
	require.NoError(t, err)
	assert.Equal(t, "uid=bob,ou=people,dc=example,dc=com", uid)
	require.Len(t, fake.added, 1)

	updated, err := r.UpdateUser(ctx, aliceDN, models.UserInfo{"email": "new@example.com"})
	require.NoError(t, err)
	assert.True(t, updated)
	require.Len(t, fake.modified, 1)

	deleted, err := r.DeleteUser(ctx, aliceDN)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{aliceDN}, fake.deleted)
}
