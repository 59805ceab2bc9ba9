package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushbridge/internal/constants"
	"pushbridge/internal/registration"
)

func TestRedisStore_GetMissing(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx := context.Background()
	store := registration.NewRedisStore(infra.RedisClient)

	_, found, err := store.Get(ctx, constants.RegistrationHashKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_SetThenGet(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx := context.Background()
	store := registration.NewRedisStore(infra.RedisClient)

	hash := registration.Hash("tok123", "app-key", "mkt.example.com")
	require.NoError(t, store.Set(ctx, constants.RegistrationHashKey, hash))

	value, found, err := store.Get(ctx, constants.RegistrationHashKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, hash, value)
}

func TestRedisStore_Overwrite(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx := context.Background()
	store := registration.NewRedisStore(infra.RedisClient)

	first := registration.Hash("tok123", "app-key", "mkt.example.com")
	second := registration.Hash("tok456", "app-key", "mkt.example.com")

	require.NoError(t, store.Set(ctx, constants.RegistrationHashKey, first))
	require.NoError(t, store.Set(ctx, constants.RegistrationHashKey, second))

	value, found, err := store.Get(ctx, constants.RegistrationHashKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, second, value)
}

func TestRedisStore_ContextCancellation(t *testing.T) {
	infra := SetupTestInfra(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := registration.NewRedisStore(infra.RedisClient)
	_, _, err := store.Get(ctx, constants.RegistrationHashKey)
	require.Error(t, err)
}
