package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wardenauth/warden/internal/infrastructure/crypto"
)

// JWKSHandler serves the published verification key set.
type JWKSHandler struct {
	keys *crypto.KeyManager
}

// NewJWKSHandler creates the handler.
func NewJWKSHandler(keys *crypto.KeyManager) *JWKSHandler {
	return &JWKSHandler{keys: keys}
}

// GetJWKS handles GET /.well-known/jwks.json. The set contains the
// active key and any key retired within the publication window.
func (h *JWKSHandler) GetJWKS(c *gin.Context) {
	set, err := h.keys.PublishedKeySet()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, set)
}
