package crypto

import (
	"context"

	"github.com/persistorai/tenantseal/internal/config"
)

// keySize is the AES-256 key length in bytes.
const keySize = 32

// KeyRing is an immutable registry of versioned keys built once from
// configuration. Keys are decoded at construction; a version whose material
// is not base64 for exactly 32 bytes is remembered as malformed and reported
// as missing when resolved.
type KeyRing struct {
	keys      map[int][]byte
	malformed map[int]string
	active    int
}

// NewKeyRing builds a KeyRing from base64-encoded keys. An active version
// below 1 falls back to 1.
func NewKeyRing(encoded map[int]config.Secret, active int) *KeyRing {
	if active < 1 {
		active = 1
	}

	r := &KeyRing{
		keys:      make(map[int][]byte, len(encoded)),
		malformed: make(map[int]string),
		active:    active,
	}

	for version, secret := range encoded {
		key, err := decodeB64(secret.Value())
		switch {
		case err != nil:
			r.malformed[version] = "not valid base64"
		case len(key) != keySize:
			r.malformed[version] = "key must decode to 32 bytes"
		default:
			r.keys[version] = key
		}
	}

	return r
}

// NewKeyRingFromConfig builds a KeyRing from the loaded configuration.
func NewKeyRingFromConfig(cfg *config.Config) *KeyRing {
	return NewKeyRing(cfg.EncryptionKeys, cfg.ActiveKeyVersion)
}

// GetKey returns a copy of the key registered under version.
func (r *KeyRing) GetKey(_ context.Context, version int) ([]byte, error) {
	key, ok := r.keys[version]
	if !ok {
		if reason, bad := r.malformed[version]; bad {
			return nil, keyMissing(version, reason)
		}

		return nil, keyMissing(version, "not configured")
	}

	out := make([]byte, len(key))
	copy(out, key)

	return out, nil
}

// ActiveVersion returns the version used for new encryptions.
func (r *KeyRing) ActiveVersion() int {
	return r.active
}

// Versions returns the number of usable keys in the ring.
func (r *KeyRing) Versions() int {
	return len(r.keys)
}
