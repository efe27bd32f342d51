// Package fs persists key records as one JSON file per key under a
// configured directory.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/domain/repository"
)

const fileSuffix = ".json"

// KeyStore stores key records on the local filesystem. Writes are
// atomic: the record lands in a temp file that is fsynced and renamed
// into place, so a crash never leaves a half-written key.
type KeyStore struct {
	dir string
}

var _ repository.KeyStore = (*KeyStore)(nil)

// NewKeyStore creates the directory if needed. Key material lives
// here, so the directory is owner-only.
func NewKeyStore(dir string) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", dir, err)
	}
	return &KeyStore{dir: dir}, nil
}

func (s *KeyStore) List(_ context.Context) ([]*models.KeyRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}
	var out []*models.KeyRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", e.Name(), err)
		}
		rec := &models.KeyRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return nil, fmt.Errorf("decode key file %s: %w", e.Name(), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *KeyStore) Save(_ context.Context, rec *models.KeyRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key %s: %w", rec.KeyID, err)
	}

	final := s.path(rec.KeyID)
	tmp, err := os.CreateTemp(s.dir, rec.KeyID+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write key %s: %w", rec.KeyID, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod key %s: %w", rec.KeyID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync key %s: %w", rec.KeyID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close key %s: %w", rec.KeyID, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("publish key %s: %w", rec.KeyID, err)
	}
	return nil
}

func (s *KeyStore) Delete(_ context.Context, keyID string) error {
	err := os.Remove(s.path(keyID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete key %s: %w", keyID, err)
	}
	return nil
}

func (s *KeyStore) path(keyID string) string {
	return filepath.Join(s.dir, keyID+fileSuffix)
}
