package sqlresolver

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

func newTestDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("test"), bcrypt.MinCost)
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, login TEXT, mail TEXT, pw TEXT, active INTEGER DEFAULT 1)`,
		`INSERT INTO users (id, login, mail, pw) VALUES (1, 'alice', 'alice@example.com', '` + string(hash) + `')`,
		`INSERT INTO users (id, login, mail) VALUES (2, 'bob', 'bob@example.org')`,
		`INSERT INTO users (id, login, mail) VALUES (3, 'twin', 'a@example.com')`,
		`INSERT INTO users (id, login, mail) VALUES (4, 'twin', 'b@example.com')`,
		`INSERT INTO users (id, login, mail, active) VALUES (5, 'gone', 'gone@example.com', 0)`,
	}
	for _, statement := range statements {
		_, err := db.Exec(statement)
		require.NoError(t, err)
	}
	return path
}

func newTestResolver(t *testing.T, editable bool) models.ResolverImpl {
	t.Helper()
	instance, err := resolvers.CreateInstance(models.ResolverRegistration{
		Name: "sql1",
		Type: SQLResolverType,
		Data: models.BasicConfig{
			"Driver":     "sqlite3",
			"DSN":        newTestDatabase(t),
			"Table":      "users",
			"Map":        `{"userid": "id", "username": "login", "email": "mail", "password": "pw"}`,
			"Where":      "active = 1",
			"Editable":   editable,
			"BcryptCost": bcrypt.MinCost,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = instance.Close() })
	return instance
}

func TestSQLResolver_Lookups(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, false)

	lookup := r.GetUserID(ctx, "alice")
	require.True(t, lookup.IsFound())
	assert.Equal(t, "1", lookup.Value)

	assert.True(t, r.GetUserID(ctx, "nobody").IsNotFound())
	assert.True(t, r.GetUserID(ctx, "gone").IsNotFound(), "filtered by Where")

	twin := r.GetUserID(ctx, "twin")
	require.True(t, twin.IsBackendError())
	assert.True(t, errors.Is(twin.Err, models.ErrAmbiguousIdentity))

	assert.Equal(t, "bob", r.GetUsername(ctx, "2").Value)

	info, err := r.GetUserInfo(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info["email"])
	assert.NotContains(t, info, "password")

	ok, err := r.CheckPassword(ctx, "1", "test")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.CheckPassword(ctx, "2", "test")
	require.NoError(t, err)
	assert.False(t, ok, "no password stored")

	found, err := r.Search(ctx, map[string]string{"email": "*@example.com"})
	require.NoError(t, err)
	assert.Len(t, found, 3)

	_, err = r.AddUser(ctx, models.UserInfo{"username": "carol"})
	assert.True(t, errors.Is(err, models.ErrNotEditable))
}

func TestSQLResolver_Mutations(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, true)

	uid, err := r.AddUser(ctx, models.UserInfo{"username": "carol", "email": "carol@example.com", "password": "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	ok, err := r.CheckPassword(ctx, uid, "pw")
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := r.UpdateUser(ctx, uid, models.UserInfo{"email": "c@example.com"})
	require.NoError(t, err)
	assert.True(t, updated)
	info, err := r.GetUserInfo(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "c@example.com", info["email"])

	deleted, err := r.DeleteUser(ctx, uid)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, r.GetUsername(ctx, uid).IsNotFound())
}

func TestSQLResolver_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		data models.BasicConfig
	}{
		{"bad driver", models.BasicConfig{"Driver": "oracle", "DSN": "x", "Table": "users", "Map": `{"userid":"id","username":"login"}`}},
		{"missing dsn", models.BasicConfig{"Driver": "sqlite3", "Table": "users", "Map": `{"userid":"id","username":"login"}`}},
		{"bad table", models.BasicConfig{"Driver": "sqlite3", "DSN": "x", "Table": "users; drop", "Map": `{"userid":"id","username":"login"}`}},
		{"missing username", models.BasicConfig{"Driver": "sqlite3", "DSN": "x", "Table": "users", "Map": `{"userid":"id"}`}},
		{"bad column", models.BasicConfig{"Driver": "sqlite3", "DSN": "x", "Table": "users", "Map": `{"userid":"id","username":"lo gin"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolvers.CreateInstance(models.ResolverRegistration{Name: "sql1", Type: SQLResolverType, Data: tt.data})
			require.Error(t, err)
		})
	}
}

func TestSQLResolver_Unavailable(t *testing.T) {
	r := newTestResolver(t, false)
	require.NoError(t, r.Close())

	lookup := r.GetUserID(context.Background(), "alice")
	require.True(t, lookup.IsBackendError())
	assert.True(t, errors.Is(lookup.Err, models.ErrResolverUnavailable))
}
