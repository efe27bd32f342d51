package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wardenauth/warden/internal/infrastructure/crypto"
)

// KeysHandler exposes the administrative key lifecycle surface.
type KeysHandler struct {
	keys *crypto.KeyManager
}

// NewKeysHandler creates the handler.
func NewKeysHandler(keys *crypto.KeyManager) *KeysHandler {
	return &KeysHandler{keys: keys}
}

// keySummary is the external view of a key record. Private material
// never leaves the manager.
type keySummary struct {
	KeyID     string     `json:"keyId"`
	CreatedAt time.Time  `json:"createdAt"`
	IsActive  bool       `json:"isActive"`
	RetiredAt *time.Time `json:"retiredAt,omitempty"`
}

// List handles GET /api/v1/admin/keys.
func (h *KeysHandler) List(c *gin.Context) {
	records := h.keys.Keys()
	out := make([]keySummary, 0, len(records))
	for _, rec := range records {
		out = append(out, keySummary{
			KeyID:     rec.KeyID,
			CreatedAt: rec.CreatedAt,
			IsActive:  rec.IsActive,
			RetiredAt: rec.RetiredAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// Rotate handles POST /api/v1/admin/keys/rotate: on-demand rotation
// for operators and non-production environments.
func (h *KeysHandler) Rotate(c *gin.Context) {
	keyID, err := h.keys.Rotate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keyId": keyID})
}
