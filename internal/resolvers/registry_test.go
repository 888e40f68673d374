package resolvers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
	mocks "github.com/edumfa/edumfa-go/internal/testing/mocks/resolvers"
)

func TestCreateInstance(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := resolvers.CreateInstance(models.ResolverRegistration{Name: "x", Type: "nope"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrUnknownResolverType))
	})

	t.Run("type lookup is case-insensitive", func(t *testing.T) {
		instance, err := resolvers.CreateInstance(models.ResolverRegistration{
			Name: "reso1",
			Type: "MockResolver",
		})
		require.NoError(t, err)
		assert.Equal(t, "reso1", instance.GetName())
		assert.Equal(t, mocks.MockResolverType, instance.GetType())
	})

	t.Run("evaluates environment expressions", func(t *testing.T) {
		t.Setenv("EDUMFA_TEST_PASSWORD", "from-env")
		registration := models.ResolverRegistration{
			Name: "reso1",
			Type: mocks.MockResolverType,
			Data: models.BasicConfig{
				"password": "${ $ENV.EDUMFA_TEST_PASSWORD }",
				"users": []any{
					map[string]any{"uid": "1", "login": "alice", "password": "pw"},
				},
			},
		}

		instance, err := resolvers.CreateInstance(registration)
		require.NoError(t, err)

		value, _ := instance.GetConfig().GetString("password")
		assert.Equal(t, "from-env", value)
		assert.Equal(t, "${ $ENV.EDUMFA_TEST_PASSWORD }", registration.Data["password"], "registration must not change")

		lookup := instance.GetUserID(context.Background(), "alice")
		assert.True(t, lookup.IsFound())
		assert.Equal(t, "1", lookup.Value)
	})
}

func TestCensor(t *testing.T) {
	registration := models.ResolverRegistration{
		Name: "reso1",
		Type: mocks.MockResolverType,
		Data: models.BasicConfig{"password": "secret", "host": "db"},
	}

	censored := resolvers.Censor(registration)
	assert.Equal(t, models.CensoredValue, censored.Data["password"])
	assert.Equal(t, "db", censored.Data["host"])
	assert.Equal(t, "secret", registration.Data["password"])

	restored := resolvers.RestoreCensored(censored.Data, registration.Data)
	assert.Equal(t, "secret", restored["password"])
}

func TestTypes(t *testing.T) {
	assert.Contains(t, resolvers.Types(), mocks.MockResolverType)
	assert.True(t, resolvers.IsSecretKey(mocks.MockResolverType, "PASSWORD"))
	assert.False(t, resolvers.IsSecretKey(mocks.MockResolverType, "host"))
}
