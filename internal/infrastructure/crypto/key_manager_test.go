package crypto

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	wardenerrors "github.com/wardenauth/warden/pkg/errors"
	"github.com/wardenauth/warden/pkg/logger"
)

// memStore is an in-memory key store with switchable failure modes.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.KeyRecord
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.KeyRecord)}
}

func (s *memStore) List(context.Context) ([]*models.KeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("store down")
	}
	out := make([]*models.KeyRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, rec *models.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store down")
	}
	s.records[rec.KeyID] = rec.Clone()
	return nil
}

func (s *memStore) Delete(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store down")
	}
	delete(s.records, keyID)
	return nil
}

func (s *memStore) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.IsActive {
			n++
		}
	}
	return n
}

func testKeysConfig() config.KeysConfig {
	return config.KeysConfig{
		Store:             "fs",
		RotationInterval:  24 * time.Hour,
		RetentionWindow:   90 * 24 * time.Hour,
		PublicationWindow: 24 * time.Hour,
	}
}

func newTestManager(t *testing.T, store *memStore) *KeyManager {
	t.Helper()
	m := NewKeyManager(testKeysConfig(), "development", store, logger.NewNoopLogger(), nil)
	t.Cleanup(m.Close)
	return m
}

func TestKeyManager_InitializeGeneratesFirstKey(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	require.NoError(t, m.Initialize(context.Background()))

	kid, err := m.CurrentKeyID()
	require.NoError(t, err)
	assert.NotEmpty(t, kid)
	assert.Equal(t, 1, store.activeCount())
	assert.False(t, m.Degraded())
}

func TestKeyManager_InitializeLoadsExistingKeys(t *testing.T) {
	store := newMemStore()
	first := newTestManager(t, store)
	require.NoError(t, first.Initialize(context.Background()))
	firstID, _ := first.CurrentKeyID()

	second := newTestManager(t, store)
	require.NoError(t, second.Initialize(context.Background()))
	secondID, err := second.CurrentKeyID()
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)
}

func TestKeyManager_InitializePrefersOverrideKey(t *testing.T) {
	store := newMemStore()
	first := newTestManager(t, store)
	require.NoError(t, first.Initialize(context.Background()))
	oldID, _ := first.CurrentKeyID()
	_, err := first.Rotate(context.Background())
	require.NoError(t, err)

	cfg := testKeysConfig()
	cfg.ActiveKeyID = oldID
	m := NewKeyManager(cfg, "development", store, logger.NewNoopLogger(), nil)
	t.Cleanup(m.Close)

	require.NoError(t, m.Initialize(context.Background()))
	kid, err := m.CurrentKeyID()
	require.NoError(t, err)
	assert.Equal(t, oldID, kid)
	assert.Equal(t, 1, store.activeCount())
}

func TestKeyManager_InitializeFallsBackToNewestWithoutOverride(t *testing.T) {
	store := newMemStore()
	first := newTestManager(t, store)
	require.NoError(t, first.Initialize(context.Background()))
	_, err := first.Rotate(context.Background())
	require.NoError(t, err)
	newestID, _ := first.CurrentKeyID()

	cfg := testKeysConfig()
	cfg.ActiveKeyID = "no-such-key"
	m := NewKeyManager(cfg, "development", store, logger.NewNoopLogger(), nil)
	t.Cleanup(m.Close)

	require.NoError(t, m.Initialize(context.Background()))
	kid, err := m.CurrentKeyID()
	require.NoError(t, err)
	assert.Equal(t, newestID, kid)
}

func TestKeyManager_RotateKeepsExactlyOneActive(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	require.NoError(t, m.Initialize(context.Background()))

	for i := 0; i < 3; i++ {
		_, err := m.Rotate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, store.activeCount())

		active := 0
		for _, rec := range m.Keys() {
			if rec.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
	}
}

func TestKeyManager_RetiredKeyStillVerifies(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	require.NoError(t, m.Initialize(context.Background()))

	oldID, _ := m.CurrentKeyID()
	token, err := m.MintToken(jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	_, err = m.Rotate(context.Background())
	require.NoError(t, err)

	newID, _ := m.CurrentKeyID()
	assert.NotEqual(t, oldID, newID)

	claims := jwt.RegisteredClaims{}
	parsed, err := m.VerifyToken(token, &claims)
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, oldID, parsed.Header["kid"])
}

func TestKeyManager_PublicationWindow(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	require.NoError(t, m.Initialize(context.Background()))

	oldID, _ := m.CurrentKeyID()
	_, err := m.Rotate(context.Background())
	require.NoError(t, err)
	newID, _ := m.CurrentKeyID()

	// Freshly retired: published alongside the active key.
	set, err := m.PublishedKeySet()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{oldID, newID}, kids(set))

	// Past the publication window the retired key drops out.
	m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	set, err = m.PublishedKeySet()
	require.NoError(t, err)
	assert.Equal(t, []string{newID}, kids(set))
}

func TestKeyManager_SweepDropsKeysPastRetention(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	require.NoError(t, m.Initialize(context.Background()))
	oldID, _ := m.CurrentKeyID()

	// Jump past the retention window; the next rotation sweeps.
	m.now = func() time.Time { return time.Now().Add(91 * 24 * time.Hour) }
	_, err := m.Rotate(context.Background())
	require.NoError(t, err)

	_, err = m.VerificationKey(oldID)
	require.Error(t, err)
	assert.Equal(t, wardenerrors.CodeKeyNotFound, wardenerrors.CodeOf(err))

	_, inStore := store.records[oldID]
	assert.False(t, inStore)
}

func TestKeyManager_DegradesWhenStoreFails(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	m := newTestManager(t, store)

	// A dead store must not block startup; the manager falls back to a
	// fresh in-memory key.
	require.NoError(t, m.Initialize(context.Background()))
	assert.True(t, m.Degraded())

	kid, err := m.CurrentKeyID()
	require.NoError(t, err)
	assert.NotEmpty(t, kid)

	// Rotation keeps working in memory.
	_, err = m.Rotate(context.Background())
	require.NoError(t, err)
}

func TestKeyManager_NilStoreRunsInMemory(t *testing.T) {
	m := NewKeyManager(testKeysConfig(), "development", nil, logger.NewNoopLogger(), nil)
	t.Cleanup(m.Close)

	require.NoError(t, m.Initialize(context.Background()))
	_, err := m.CurrentKeyID()
	require.NoError(t, err)
	assert.False(t, m.Degraded())
}

func TestKeyManager_VerifyRejectsUnknownKid(t *testing.T) {
	m := newTestManager(t, newMemStore())
	require.NoError(t, m.Initialize(context.Background()))

	other := newTestManager(t, newMemStore())
	require.NoError(t, other.Initialize(context.Background()))

	token, err := other.MintToken(jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	_, err = m.VerifyToken(token, &jwt.RegisteredClaims{})
	require.Error(t, err)
	assert.Equal(t, wardenerrors.CodeUnauthenticated, wardenerrors.CodeOf(err))
}

func TestKeyManager_JWKSShape(t *testing.T) {
	m := newTestManager(t, newMemStore())
	require.NoError(t, m.Initialize(context.Background()))

	set, err := m.PublishedKeySet()
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)

	jwk := set.Keys[0]
	assert.Equal(t, "RSA", jwk.Kty)
	assert.Equal(t, "sig", jwk.Use)
	assert.Equal(t, "RS256", jwk.Alg)
	assert.NotEmpty(t, jwk.Kid)
	assert.NotEmpty(t, jwk.N)
	assert.NotEmpty(t, jwk.E)
}

func kids(set *models.JWKS) []string {
	out := make([]string, 0, len(set.Keys))
	for _, k := range set.Keys {
		out = append(out, k.Kid)
	}
	return out
}
