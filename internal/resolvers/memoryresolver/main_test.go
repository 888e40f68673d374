package memoryresolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

func newTestResolver(t *testing.T, data models.BasicConfig) models.ResolverImpl {
	t.Helper()
	data["bcrypt_cost"] = bcrypt.MinCost
	instance, err := resolvers.CreateInstance(models.ResolverRegistration{
		Name: "mem1",
		Type: MemoryResolverType,
		Data: data,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = instance.Close() })
	return instance
}

func TestMemoryResolver_Lookups(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, models.BasicConfig{
		"users": []any{
			map[string]any{"username": "alice", "userid": "u1", "password": "test", "email": "alice@example.com"},
			map[string]any{"username": "bob", "password": "secret"},
		},
	})

	lookup := r.GetUserID(ctx, "alice")
	require.True(t, lookup.IsFound())
	assert.Equal(t, "u1", lookup.Value)
	assert.True(t, r.GetUserID(ctx, "carol").IsNotFound())

	name := r.GetUsername(ctx, "u1")
	require.True(t, name.IsFound())
	assert.Equal(t, "alice", name.Value)

	info, err := r.GetUserInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info["email"])
	assert.NotContains(t, info, "password")

	ok, err := r.CheckPassword(ctx, "u1", "test")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.CheckPassword(ctx, "u1", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	bob := r.GetUserID(ctx, "bob")
	require.True(t, bob.IsFound())
	assert.NotEmpty(t, bob.Value, "generated uid")
}

func TestMemoryResolver_Mutations(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, models.BasicConfig{})
	require.True(t, r.Editable())

	uid, err := r.AddUser(ctx, models.UserInfo{"username": "carol", "password": "pw", "email": "carol@example.com"})
	require.NoError(t, err)

	_, err = r.AddUser(ctx, models.UserInfo{"username": "carol"})
	assert.True(t, errors.Is(err, models.ErrUserExists))

	found, err := r.Search(ctx, map[string]string{"email": "carol@*"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "carol", found[0]["username"])

	updated, err := r.UpdateUser(ctx, uid, models.UserInfo{"username": "caroline"})
	require.NoError(t, err)
	assert.True(t, updated)
	assert.True(t, r.GetUserID(ctx, "carol").IsNotFound())
	assert.Equal(t, uid, r.GetUserID(ctx, "caroline").Value)

	ok, err := r.CheckPassword(ctx, uid, "pw")
	require.NoError(t, err)
	assert.True(t, ok, "password survives rename")

	deleted, err := r.DeleteUser(ctx, uid)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, r.GetUsername(ctx, uid).IsNotFound())

	found, err = r.Search(ctx, map[string]string{"username": "*"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMemoryResolver_ReadOnly(t *testing.T) {
	r := newTestResolver(t, models.BasicConfig{"editable": false})
	assert.False(t, r.Editable())
	_, err := r.AddUser(context.Background(), models.UserInfo{"username": "dave"})
	assert.True(t, errors.Is(err, models.ErrNotEditable))
}
