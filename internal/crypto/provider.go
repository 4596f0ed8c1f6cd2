// Package crypto provides tenant-scoped AES-256-GCM envelope encryption with
// versioned keys.
//
// Every ciphertext is bound to a (tenant, record) pair through GCM additional
// authenticated data, so a blob copied into another tenant or another record
// fails to decrypt even though the key is unchanged. Blobs carry the key
// version they were sealed with; rotating the active version leaves older
// blobs readable for as long as their key stays registered.
package crypto

import "context"

// KeyProvider resolves versioned AES-256 keys. Implementations must be safe
// for concurrent use and must never mutate the registry they read from.
type KeyProvider interface {
	// GetKey returns the 32-byte key registered under version. It fails with
	// an error of kind KindKeyMissing when the version is unknown or its
	// material is not a valid 32-byte key.
	GetKey(ctx context.Context, version int) ([]byte, error)

	// ActiveVersion returns the version used for new encryptions.
	ActiveVersion() int
}
