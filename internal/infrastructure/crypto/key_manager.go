// Package crypto implements the signing key lifecycle: generation,
// rotation, retention, JWKS publication and RS256 token operations.
package crypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/domain/repository"
	"github.com/wardenauth/warden/internal/infrastructure/monitoring"
	"github.com/wardenauth/warden/pkg/constants"
	"github.com/wardenauth/warden/pkg/errors"
	"github.com/wardenauth/warden/pkg/logger"
)

const (
	rsaKeyBits     = 2048
	pemTypePrivate = "RSA PRIVATE KEY"
	pemTypePublic  = "PUBLIC KEY"
)

// KeyManager owns the signing key set. Exactly one key is active at any
// time after Initialize succeeds; retired keys remain verifiable until
// the retention window expires and published until the publication
// window expires.
type KeyManager struct {
	mu       sync.RWMutex
	keys     map[string]*models.KeyRecord
	parsed   map[string]*rsa.PrivateKey
	activeID string

	store    repository.KeyStore
	degraded bool

	cfg     config.KeysConfig
	profile string
	logger  logger.Logger
	metrics *monitoring.Metrics

	rotateTicker *time.Ticker
	stopRotate   chan struct{}
	stopOnce     sync.Once

	// now is swapped in tests to control the clock.
	now func() time.Time
}

// NewKeyManager wires the manager; call Initialize before use.
// store may be nil, which keeps all keys in memory.
func NewKeyManager(cfg config.KeysConfig, profile string, store repository.KeyStore, log logger.Logger, metrics *monitoring.Metrics) *KeyManager {
	return &KeyManager{
		keys:       make(map[string]*models.KeyRecord),
		parsed:     make(map[string]*rsa.PrivateKey),
		store:      store,
		cfg:        cfg,
		profile:    profile,
		logger:     log.WithComponent("key_manager"),
		metrics:    metrics,
		stopRotate: make(chan struct{}),
		now:        time.Now,
	}
}

// Initialize loads persisted keys and establishes the single active
// key. Selection precedence: the configured active-key override when
// it names a loaded key, else the most recently created record. A
// failing store degrades the manager to memory-only operation rather
// than blocking startup; an empty store triggers an immediate
// rotation. The manager never finishes initialization with zero keys.
func (m *KeyManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	loaded := m.loadLocked(ctx)
	if loaded > 0 {
		m.selectActiveLocked(ctx)
	}
	activeID := m.activeID
	m.mu.Unlock()

	if loaded > 0 {
		m.logger.Info(ctx, "loaded persisted signing keys",
			logger.Int("count", loaded),
			logger.String("active_key_id", activeID))
		return nil
	}

	if _, err := m.Rotate(ctx); err != nil {
		return errors.Wrap(err, errors.CodeNoActiveKey, "establish initial signing key")
	}
	return nil
}

func (m *KeyManager) loadLocked(ctx context.Context) int {
	if m.store == nil {
		return 0
	}
	records, err := m.store.List(ctx)
	if err != nil {
		m.markDegradedLocked(ctx, err)
		return 0
	}
	for _, rec := range records {
		parsed, perr := parsePrivatePEM(rec.PrivateKeyPEM)
		if perr != nil {
			m.logger.Warn(ctx, "skipping unparseable persisted key",
				logger.String("key_id", rec.KeyID), logger.Error(perr))
			continue
		}
		m.keys[rec.KeyID] = rec.Clone()
		m.parsed[rec.KeyID] = parsed
	}
	return len(m.keys)
}

// selectActiveLocked picks and marks the single active key among the
// loaded records, retiring any other record still flagged active.
func (m *KeyManager) selectActiveLocked(ctx context.Context) {
	var chosen *models.KeyRecord
	if m.cfg.ActiveKeyID != "" {
		chosen = m.keys[m.cfg.ActiveKeyID]
	}
	if chosen == nil {
		for _, rec := range m.keys {
			if chosen == nil || rec.CreatedAt.After(chosen.CreatedAt) {
				chosen = rec
			}
		}
	}

	retiredAt := m.now()
	for _, rec := range m.keys {
		if rec.KeyID == chosen.KeyID {
			continue
		}
		if rec.IsActive {
			rec.IsActive = false
			rec.RetiredAt = &retiredAt
			m.persist(ctx, rec)
		}
	}
	if !chosen.IsActive {
		chosen.IsActive = true
		chosen.RetiredAt = nil
		m.persist(ctx, chosen)
	}
	m.activeID = chosen.KeyID
}

// Rotate generates a fresh RSA-2048 key, retires every currently
// active key, activates the new one and sweeps records past the
// retention window. Returns the new key id.
func (m *KeyManager) Rotate(ctx context.Context) (string, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "generate rsa key")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := &models.KeyRecord{
		KeyID:         uuid.NewString(),
		PrivateKeyPEM: encodePrivatePEM(priv),
		PublicKeyPEM:  encodePublicPEM(&priv.PublicKey),
		CreatedAt:     now,
		IsActive:      true,
	}

	for _, old := range m.keys {
		if old.IsActive {
			old.IsActive = false
			retiredAt := now
			old.RetiredAt = &retiredAt
			m.persist(ctx, old)
		}
	}

	m.keys[rec.KeyID] = rec
	m.parsed[rec.KeyID] = priv
	m.activeID = rec.KeyID
	m.persist(ctx, rec)
	m.sweepLocked(ctx)

	m.metrics.KeyRotated()
	m.metrics.SetActiveKeyAge(0)
	m.logger.Info(ctx, "rotated signing key",
		logger.String("key_id", rec.KeyID),
		logger.Int("retained_keys", len(m.keys)))
	return rec.KeyID, nil
}

// sweepLocked drops retired keys older than the retention window. The
// active key is never swept.
func (m *KeyManager) sweepLocked(ctx context.Context) {
	cutoff := m.now().Add(-m.cfg.RetentionWindow)
	for id, rec := range m.keys {
		if rec.IsActive || rec.CreatedAt.After(cutoff) {
			continue
		}
		delete(m.keys, id)
		delete(m.parsed, id)
		if m.store != nil && !m.degraded {
			if err := m.store.Delete(ctx, id); err != nil {
				m.markDegradedLocked(ctx, err)
			}
		}
		m.logger.Info(ctx, "swept expired signing key", logger.String("key_id", id))
	}
}

// persist writes one record, degrading to memory-only on failure.
// Callers hold the write lock.
func (m *KeyManager) persist(ctx context.Context, rec *models.KeyRecord) {
	if m.store == nil || m.degraded {
		return
	}
	if err := m.store.Save(ctx, rec.Clone()); err != nil {
		m.markDegradedLocked(ctx, err)
	}
}

func (m *KeyManager) markDegradedLocked(ctx context.Context, cause error) {
	if !m.degraded {
		m.logger.Warn(ctx, "key persistence unavailable, continuing in memory",
			logger.Error(cause))
	}
	m.degraded = true
	m.metrics.SetStoreDegraded(true)
}

// Degraded reports whether the manager lost its persistence backend.
func (m *KeyManager) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// CurrentKeyID returns the active key id.
func (m *KeyManager) CurrentKeyID() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeID == "" {
		return "", errors.New(errors.CodeNoActiveKey, "no active signing key")
	}
	return m.activeID, nil
}

// SigningKey returns the active private key and its id.
func (m *KeyManager) SigningKey() (*rsa.PrivateKey, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeID == "" {
		return nil, "", errors.New(errors.CodeNoActiveKey, "no active signing key")
	}
	return m.parsed[m.activeID], m.activeID, nil
}

// VerificationKey returns the public key for the given id, or the
// active key's when keyID is empty. Keys inside the retention window
// remain resolvable after retirement.
func (m *KeyManager) VerificationKey(keyID string) (*rsa.PublicKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if keyID == "" {
		if m.activeID == "" {
			return nil, errors.New(errors.CodeNoActiveKey, "no active signing key")
		}
		keyID = m.activeID
	}
	priv, ok := m.parsed[keyID]
	if !ok {
		return nil, errors.New(errors.CodeKeyNotFound, "unknown signing key %q", keyID)
	}
	return &priv.PublicKey, nil
}

// Keys returns a snapshot of all retained key records, newest first.
func (m *KeyManager) Keys() []*models.KeyRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.KeyRecord, 0, len(m.keys))
	for _, rec := range m.keys {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// PublishedKeySet returns the JWKS document: the active key plus any
// key retired within the publication window, so verifiers holding
// tokens signed just before a rotation can still verify them.
func (m *KeyManager) PublishedKeySet() (*models.JWKS, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-m.cfg.PublicationWindow)
	set := &models.JWKS{Keys: []models.JWK{}}
	ids := make([]string, 0, len(m.keys))
	for id := range m.keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.keys[ids[i]].CreatedAt.After(m.keys[ids[j]].CreatedAt)
	})
	for _, id := range ids {
		rec := m.keys[id]
		publish := rec.IsActive ||
			(rec.RetiredAt != nil && rec.RetiredAt.After(cutoff))
		if !publish {
			continue
		}
		set.Keys = append(set.Keys, rsaToJWK(id, &m.parsed[id].PublicKey))
	}
	if len(set.Keys) == 0 {
		return nil, errors.New(errors.CodeNoActiveKey, "no publishable signing keys")
	}
	return set, nil
}

// MintToken signs the claims with the active key. The kid header names
// the signer so verifiers can pick the right key from the JWKS.
func (m *KeyManager) MintToken(claims jwt.Claims) (string, error) {
	priv, kid, err := m.SigningKey()
	if err != nil {
		return "", err
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(priv)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "sign token")
	}
	return signed, nil
}

// VerifyToken parses and verifies a token against the retained key
// set, resolving the signer through the kid header.
func (m *KeyManager) VerifyToken(tokenString string, claims jwt.Claims) (*jwt.Token, error) {
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return m.VerificationKey(kid)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnauthenticated, "verify token")
	}
	return tok, nil
}

// StartRotationSchedule arms the periodic rotation ticker. Only the
// production profile rotates automatically; other profiles rotate on
// demand through the admin surface.
func (m *KeyManager) StartRotationSchedule(ctx context.Context) {
	if !m.cfg.AutoRotate || m.profile != constants.ProfileProduction {
		m.logger.Info(ctx, "automatic key rotation disabled",
			logger.String("profile", m.profile))
		return
	}

	m.rotateTicker = time.NewTicker(m.cfg.RotationInterval)
	go func() {
		for {
			select {
			case <-m.rotateTicker.C:
				if _, err := m.Rotate(ctx); err != nil {
					m.logger.Error(ctx, "scheduled key rotation failed", err)
				}
			case <-m.stopRotate:
				return
			}
		}
	}()
	m.logger.Info(ctx, "automatic key rotation armed",
		logger.Duration("interval", m.cfg.RotationInterval))
}

// Close stops the rotation schedule. Idempotent.
func (m *KeyManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopRotate)
		if m.rotateTicker != nil {
			m.rotateTicker.Stop()
		}
	})
}

func encodePrivatePEM(priv *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePrivate,
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	}))
}

func encodePublicPEM(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		// MarshalPKIXPublicKey cannot fail for a valid *rsa.PublicKey.
		panic(fmt.Sprintf("marshal rsa public key: %v", err))
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}))
}

func parsePrivatePEM(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no pem block found")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// ParsePublicPEM decodes a PKIX public key PEM. Exported for callers
// that verify against records rather than the live manager.
func ParsePublicPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no pem block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an rsa public key")
	}
	return rsaPub, nil
}

func rsaToJWK(kid string, pub *rsa.PublicKey) models.JWK {
	return models.JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
