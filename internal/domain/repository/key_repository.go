// Package repository defines persistence contracts for the domain.
package repository

import (
	"context"

	"github.com/wardenauth/warden/internal/domain/models"
)

// KeyStore is the credential store adapter: a thin collaborator that
// persists and loads serialized key-pair records, one unit of storage
// per key. Implementations live under internal/infrastructure/persistence.
type KeyStore interface {
	// List loads every persisted key record.
	List(ctx context.Context) ([]*models.KeyRecord, error)

	// Save persists a record, overwriting any record with the same id.
	Save(ctx context.Context, rec *models.KeyRecord) error

	// Delete removes the record with the given id; deleting an unknown
	// id is not an error.
	Delete(ctx context.Context, keyID string) error
}
