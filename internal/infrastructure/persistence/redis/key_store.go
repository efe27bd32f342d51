// Package redis persists key records in Redis, one JSON value per key
// plus a set of known ids.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/domain/repository"
)

const (
	keyPrefix = "warden:signing-key:"
	idSetKey  = "warden:signing-keys"
)

// KeyStore is the Redis-backed key store.
type KeyStore struct {
	client *goredis.Client
}

var _ repository.KeyStore = (*KeyStore)(nil)

// Connect opens and pings a Redis connection per the configuration.
func Connect(ctx context.Context, cfg config.RedisConfig) (*KeyStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &KeyStore{client: client}, nil
}

// NewKeyStore wraps an existing client; used by tests with miniredis.
func NewKeyStore(client *goredis.Client) *KeyStore {
	return &KeyStore{client: client}
}

func (s *KeyStore) List(ctx context.Context) ([]*models.KeyRecord, error) {
	ids, err := s.client.SMembers(ctx, idSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list signing key ids: %w", err)
	}
	out := make([]*models.KeyRecord, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, keyPrefix+id).Result()
		if err == goredis.Nil {
			// Id set and value drifted; drop the stale member.
			s.client.SRem(ctx, idSetKey, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load signing key %s: %w", id, err)
		}
		rec := &models.KeyRecord{}
		if err := json.Unmarshal([]byte(data), rec); err != nil {
			return nil, fmt.Errorf("decode signing key %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *KeyStore) Save(ctx context.Context, rec *models.KeyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode signing key %s: %w", rec.KeyID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+rec.KeyID, data, 0)
	pipe.SAdd(ctx, idSetKey, rec.KeyID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save signing key %s: %w", rec.KeyID, err)
	}
	return nil
}

func (s *KeyStore) Delete(ctx context.Context, keyID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keyPrefix+keyID)
	pipe.SRem(ctx, idSetKey, keyID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete signing key %s: %w", keyID, err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *KeyStore) Close() error {
	return s.client.Close()
}
