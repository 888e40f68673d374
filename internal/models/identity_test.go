package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_IsEmpty(t *testing.T) {
	var nilIdentity *Identity
	assert.True(t, nilIdentity.IsEmpty())
	assert.True(t, (&Identity{}).IsEmpty())
	assert.True(t, (&Identity{Resolver: "reso1"}).IsEmpty(), "a lone resolver is still empty")
	assert.False(t, (&Identity{Login: "alice"}).IsEmpty())
	assert.False(t, (&Identity{Realm: "realm1"}).IsEmpty())
}

func TestIdentity_Equal(t *testing.T) {
	tests := []struct {
		name     string
		a        Identity
		b        Identity
		expected bool
	}{
		{
			name:     "both uids equal",
			a:        Identity{Login: "alice", Realm: "r", Resolver: "x", UID: "1"},
			b:        Identity{Login: "ALICE", Realm: "r", Resolver: "x", UID: "1"},
			expected: true,
		},
		{
			name:     "both uids differ",
			a:        Identity{Login: "alice", Realm: "r", Resolver: "x", UID: "1"},
			b:        Identity{Login: "alice", Realm: "r", Resolver: "x", UID: "2"},
			expected: false,
		},
		{
			name:     "only a has uid falls back to login",
			a:        Identity{Login: "alice", Realm: "r", Resolver: "x", UID: "1"},
			b:        Identity{Login: "alice", Realm: "r", Resolver: "x"},
			expected: true,
		},
		{
			name:     "only b has uid falls back to login",
			a:        Identity{Login: "alice", Realm: "r", Resolver: "x"},
			b:        Identity{Login: "bob", Realm: "r", Resolver: "x", UID: "2"},
			expected: false,
		},
		{
			name:     "no uids same login",
			a:        Identity{Login: "alice", Realm: "r", Resolver: "x"},
			b:        Identity{Login: "alice", Realm: "r", Resolver: "x"},
			expected: true,
		},
		{
			name:     "same uid different resolver",
			a:        Identity{Login: "alice", Realm: "r", Resolver: "x", UID: "1"},
			b:        Identity{Login: "alice", Realm: "r", Resolver: "y", UID: "1"},
			expected: false,
		},
		{
			name:     "same login different realm",
			a:        Identity{Login: "alice", Realm: "r1", Resolver: "x"},
			b:        Identity{Login: "alice", Realm: "r2", Resolver: "x"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Equal(&tt.b))
			assert.Equal(t, tt.expected, tt.b.Equal(&tt.a), "equality must be symmetric")
		})
	}
}

func TestIdentity_String(t *testing.T) {
	assert.Equal(t, "<empty user>", (&Identity{}).String())
	assert.Equal(t, "<alice@realm1>", (&Identity{Login: "alice", Realm: "realm1"}).String())
	assert.Equal(t, "<alice.reso1@realm1>", (&Identity{Login: "alice", Realm: "realm1", Resolver: "reso1"}).String())
}

func TestIdentity_GetUserIdentifiers(t *testing.T) {
	t.Run("located", func(t *testing.T) {
		user := Identity{Login: "alice", Realm: "r", Resolver: "x", ResolverType: "sqlresolver", UID: "42"}
		uid, rtype, resolver, err := user.GetUserIdentifiers()
		require.NoError(t, err)
		assert.Equal(t, "42", uid)
		assert.Equal(t, "sqlresolver", rtype)
		assert.Equal(t, "x", resolver)
	})

	t.Run("not located", func(t *testing.T) {
		user := Identity{Login: "alice", Realm: "r"}
		_, _, _, err := user.GetUserIdentifiers()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotUniquelyLocated))
	})
}

func TestLookup(t *testing.T) {
	assert.True(t, Found("1").IsFound())
	assert.Equal(t, "1", Found("1").Value)
	assert.True(t, NotFound().IsNotFound())
	failure := BackendError(ErrResolverUnavailable)
	assert.True(t, failure.IsBackendError())
	assert.ErrorIs(t, failure.Err, ErrResolverUnavailable)
	assert.Equal(t, "backend_error", failure.Status.String())
}
