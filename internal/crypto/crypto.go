package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// Service provides tenant-aware AES-256-GCM envelope encryption.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	keys KeyProvider
}

// NewService creates an encryption service backed by the given key provider.
func NewService(keys KeyProvider) *Service {
	return &Service{keys: keys}
}

// ActiveVersion returns the key version new blobs are sealed with.
func (s *Service) ActiveVersion() int {
	return s.keys.ActiveVersion()
}

type encryptOptions struct {
	keyVersion int
}

// EncryptOption customizes a single Encrypt call.
type EncryptOption func(*encryptOptions)

// WithKeyVersion seals under the given key version instead of the active one.
func WithKeyVersion(version int) EncryptOption {
	return func(o *encryptOptions) { o.keyVersion = version }
}

// Encrypt serializes payload to JSON and seals it under the tenant/record context.
func (s *Service) Encrypt(ctx context.Context, payload any, cc Context, opts ...EncryptOption) (*EncryptedBlob, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal payload: %w", err)
	}

	return s.seal(ctx, plain, cc, opts...)
}

// EncryptString seals a single string as {"value": text}.
func (s *Service) EncryptString(ctx context.Context, text string, cc Context, opts ...EncryptOption) (*EncryptedBlob, error) {
	return s.Encrypt(ctx, stringPayload{Value: text}, cc, opts...)
}

// DecryptInto opens blob under cc and unmarshals the JSON payload into out.
func (s *Service) DecryptInto(ctx context.Context, blob *EncryptedBlob, cc Context, out any) error {
	plain, err := s.open(ctx, blob, cc)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(plain, out); err != nil {
		return decryptFailed()
	}

	return nil
}

// DecryptString opens a blob produced by EncryptString.
func (s *Service) DecryptString(ctx context.Context, blob *EncryptedBlob, cc Context) (string, error) {
	var p stringPayload
	if err := s.DecryptInto(ctx, blob, cc, &p); err != nil {
		return "", err
	}

	return p.Value, nil
}

// Decrypt opens blob under cc and returns the payload decoded as T.
func Decrypt[T any](ctx context.Context, s *Service, blob *EncryptedBlob, cc Context) (T, error) {
	var out T
	if err := s.DecryptInto(ctx, blob, cc, &out); err != nil {
		var zero T
		return zero, err
	}

	return out, nil
}

type stringPayload struct {
	Value string `json:"value"`
}

func (s *Service) seal(ctx context.Context, plain []byte, cc Context, opts ...EncryptOption) (*EncryptedBlob, error) {
	o := encryptOptions{keyVersion: s.keys.ActiveVersion()}
	for _, opt := range opts {
		opt(&o)
	}

	key, err := s.keys.GetKey(ctx, o.keyVersion)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("crypto: generate iv: %w", err)
	}

	out := gcm.Seal(nil, iv, plain, cc.AAD())
	ct, tag := out[:len(out)-tagSize], out[len(out)-tagSize:]

	return &EncryptedBlob{
		V:          BlobVersion,
		Alg:        BlobAlgorithm,
		KeyVersion: o.keyVersion,
		IVB64:      base64.StdEncoding.EncodeToString(iv),
		TagB64:     base64.StdEncoding.EncodeToString(tag),
		CtB64:      base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// open validates the blob before resolving any key, then authenticates and
// decrypts it. Every authentication failure maps to the same error.
func (s *Service) open(ctx context.Context, blob *EncryptedBlob, cc Context) ([]byte, error) {
	parts, err := blob.decode()
	if err != nil {
		return nil, err
	}

	key, err := s.keys.GetKey(ctx, blob.KeyVersion)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealedData := make([]byte, 0, len(parts.ct)+len(parts.tag))
	sealedData = append(sealedData, parts.ct...)
	sealedData = append(sealedData, parts.tag...)

	plain, err := gcm.Open(nil, parts.iv, sealedData, cc.AAD())
	if err != nil {
		return nil, decryptFailed()
	}

	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	return gcm, nil
}

// CheckActiveKey resolves the active key without using it. Servers call it
// at startup and from readiness probes.
func (s *Service) CheckActiveKey(ctx context.Context) error {
	_, err := s.keys.GetKey(ctx, s.keys.ActiveVersion())
	return err
}
