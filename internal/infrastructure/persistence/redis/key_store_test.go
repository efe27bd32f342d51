package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/infrastructure/persistence/redis"
)

func newTestStore(t *testing.T) *redis.KeyStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redis.NewKeyStore(client)
}

func record(id string, active bool) *models.KeyRecord {
	return &models.KeyRecord{
		KeyID:         id,
		PublicKeyPEM:  "pub-pem",
		PrivateKeyPEM: "priv-pem",
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		IsActive:      active,
	}
}

func TestKeyStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("k1", true)))
	require.NoError(t, store.Save(ctx, record("k2", false)))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]bool{}
	for _, rec := range records {
		byID[rec.KeyID] = rec.IsActive
	}
	assert.True(t, byID["k1"])
	assert.False(t, byID["k2"])
}

func TestKeyStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("k1", true)))

	updated := record("k1", false)
	retired := time.Now().UTC().Truncate(time.Second)
	updated.RetiredAt = &retired
	require.NoError(t, store.Save(ctx, updated))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].IsActive)
	require.NotNil(t, records[0].RetiredAt)
}

func TestKeyStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("k1", true)))
	require.NoError(t, store.Delete(ctx, "k1"))

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestKeyStore_EmptyList(t *testing.T) {
	store := newTestStore(t)
	records, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
