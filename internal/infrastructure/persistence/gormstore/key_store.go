// Package gormstore persists key records in a relational database
// through GORM, supporting postgres and sqlite drivers.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/domain/repository"
)

// keyRow is the table mapping for a key record.
type keyRow struct {
	KeyID         string     `gorm:"primaryKey;column:key_id"`
	PublicKeyPEM  string     `gorm:"column:public_key_pem;type:text"`
	PrivateKeyPEM string     `gorm:"column:private_key_pem;type:text"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	IsActive      bool       `gorm:"column:is_active"`
	RetiredAt     *time.Time `gorm:"column:retired_at"`
}

func (keyRow) TableName() string { return "signing_keys" }

// KeyStore is the GORM-backed key store.
type KeyStore struct {
	db *gorm.DB
}

var _ repository.KeyStore = (*KeyStore)(nil)

// Open connects per the configured driver and migrates the schema.
func Open(cfg config.DatabaseConfig) (*KeyStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&keyRow{}); err != nil {
		return nil, fmt.Errorf("migrate signing_keys: %w", err)
	}
	return &KeyStore{db: db}, nil
}

// NewKeyStore wraps an existing GORM handle; used by tests with an
// in-memory sqlite database.
func NewKeyStore(db *gorm.DB) (*KeyStore, error) {
	if err := db.AutoMigrate(&keyRow{}); err != nil {
		return nil, fmt.Errorf("migrate signing_keys: %w", err)
	}
	return &KeyStore{db: db}, nil
}

func (s *KeyStore) List(ctx context.Context) ([]*models.KeyRecord, error) {
	var rows []keyRow
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list signing keys: %w", err)
	}
	out := make([]*models.KeyRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, &models.KeyRecord{
			KeyID:         r.KeyID,
			PublicKeyPEM:  r.PublicKeyPEM,
			PrivateKeyPEM: r.PrivateKeyPEM,
			CreatedAt:     r.CreatedAt,
			IsActive:      r.IsActive,
			RetiredAt:     r.RetiredAt,
		})
	}
	return out, nil
}

func (s *KeyStore) Save(ctx context.Context, rec *models.KeyRecord) error {
	row := keyRow{
		KeyID:         rec.KeyID,
		PublicKeyPEM:  rec.PublicKeyPEM,
		PrivateKeyPEM: rec.PrivateKeyPEM,
		CreatedAt:     rec.CreatedAt,
		IsActive:      rec.IsActive,
		RetiredAt:     rec.RetiredAt,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save signing key %s: %w", rec.KeyID, err)
	}
	return nil
}

func (s *KeyStore) Delete(ctx context.Context, keyID string) error {
	if err := s.db.WithContext(ctx).Delete(&keyRow{}, "key_id = ?", keyID).Error; err != nil {
		return fmt.Errorf("delete signing key %s: %w", keyID, err)
	}
	return nil
}
