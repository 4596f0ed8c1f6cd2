package crypto

import (
	"context"
	"encoding/json"
)

// NeedsMigration reports whether blob was sealed under a key version older
// than the active one.
func (s *Service) NeedsMigration(blob *EncryptedBlob) bool {
	return blob.KeyVersion < s.keys.ActiveVersion()
}

// MigrateBlob decrypts blob under its own key version and re-seals the
// payload under the active version with the same context. The result is not
// persisted here; concurrent migrations of one record each return an
// independently valid blob.
func (s *Service) MigrateBlob(ctx context.Context, blob *EncryptedBlob, cc Context) (*EncryptedBlob, error) {
	var payload json.RawMessage
	if err := s.DecryptInto(ctx, blob, cc, &payload); err != nil {
		return nil, err
	}

	return s.seal(ctx, payload, cc)
}
