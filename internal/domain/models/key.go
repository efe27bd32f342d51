package models

import "time"

// KeyRecord is a signing key pair owned by the key lifecycle manager.
// Records are never mutated after creation except for the IsActive flag
// and the RetiredAt stamp set when the flag is cleared.
type KeyRecord struct {
	KeyID         string     `json:"keyId"`
	PublicKeyPEM  string     `json:"publicKey"`
	PrivateKeyPEM string     `json:"privateKey"`
	CreatedAt     time.Time  `json:"createdAt"`
	IsActive      bool       `json:"isActive"`
	RetiredAt     *time.Time `json:"retiredAt,omitempty"`
}

// Clone returns a copy safe to hand outside the manager's lock.
func (k *KeyRecord) Clone() *KeyRecord {
	c := *k
	if k.RetiredAt != nil {
		t := *k.RetiredAt
		c.RetiredAt = &t
	}
	return &c
}

// JWK is the public portion of one key in JWKS exchange format.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the published key set consumed by external verifiers.
type JWKS struct {
	Keys []JWK `json:"keys"`
}
