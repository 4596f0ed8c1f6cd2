package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Envelope format constants. These are the only values Decrypt accepts.
const (
	BlobVersion   = 1
	BlobAlgorithm = "aes-256-gcm"

	ivSize  = 12
	tagSize = 16
)

// EncryptedBlob is the persisted envelope. It is stored verbatim as JSON and
// is immutable once produced.
type EncryptedBlob struct {
	V          int    `json:"v"`
	Alg        string `json:"alg"`
	KeyVersion int    `json:"keyVersion"`
	IVB64      string `json:"ivB64"`
	TagB64     string `json:"tagB64"`
	CtB64      string `json:"ctB64"`
}

// sealed holds the decoded binary parts of a validated blob.
type sealed struct {
	iv  []byte
	tag []byte
	ct  []byte
}

// ParseBlob deserializes an untrusted JSON envelope and validates it. Any
// syntax, type or format problem is reported as KindInvalidBlob.
func ParseBlob(data []byte) (*EncryptedBlob, error) {
	var blob EncryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, invalidBlob("malformed JSON")
	}

	if _, err := blob.decode(); err != nil {
		return nil, err
	}

	return &blob, nil
}

// Validate checks the envelope tag and the encoding and length of every
// binary field without touching key material.
func (b *EncryptedBlob) Validate() error {
	_, err := b.decode()
	return err
}

// Marshal returns the canonical JSON encoding of the blob.
func (b *EncryptedBlob) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

func (b *EncryptedBlob) decode() (*sealed, error) {
	if b == nil {
		return nil, invalidBlob("nil blob")
	}

	if b.V != BlobVersion {
		return nil, invalidBlob("unsupported version %d", b.V)
	}

	if b.Alg != BlobAlgorithm {
		return nil, invalidBlob("unsupported algorithm %q", b.Alg)
	}

	if b.KeyVersion < 1 {
		return nil, invalidBlob("key version must be positive, got %d", b.KeyVersion)
	}

	iv, err := decodeB64(b.IVB64)
	if err != nil {
		return nil, invalidBlob("iv is not valid base64")
	}

	if len(iv) != ivSize {
		return nil, invalidBlob("iv must be %d bytes, got %d", ivSize, len(iv))
	}

	tag, err := decodeB64(b.TagB64)
	if err != nil {
		return nil, invalidBlob("tag is not valid base64")
	}

	if len(tag) != tagSize {
		return nil, invalidBlob("tag must be %d bytes, got %d", tagSize, len(tag))
	}

	ct, err := decodeB64(b.CtB64)
	if err != nil {
		return nil, invalidBlob("ciphertext is not valid base64")
	}

	return &sealed{iv: iv, tag: tag, ct: ct}, nil
}

var errNonCanonical = errors.New("non-canonical base64")

// decodeB64 accepts only the canonical padded encoding, so every distinct
// string maps to distinct bytes.
func decodeB64(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, errNonCanonical
	}

	return base64.StdEncoding.Strict().DecodeString(s)
}
