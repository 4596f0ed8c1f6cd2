package crypto

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the codec can report. The set is closed:
// callers may switch over it exhaustively.
type ErrorKind int

const (
	// KindUnknown is returned by KindOf for errors that did not come from this package.
	KindUnknown ErrorKind = iota
	// KindKeyMissing means the requested key version is not configured or is malformed.
	KindKeyMissing
	// KindInvalidBlob means the blob is not a well-formed v1 aes-256-gcm envelope.
	KindInvalidBlob
	// KindDecryptFailed means authentication failed or the plaintext was not JSON.
	KindDecryptFailed
)

// String returns the snake_case name used in API error codes and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindKeyMissing:
		return "key_missing"
	case KindInvalidBlob:
		return "invalid_blob"
	case KindDecryptFailed:
		return "decrypt_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the codec.
//
// A DecryptFailed error never carries its cause: wrong key, tampering and
// context mismatch are indistinguishable to the caller.
type Error struct {
	Kind ErrorKind
	// Version is the key version involved, set for KindKeyMissing.
	Version int

	detail string
}

// Sentinels for errors.Is. Matching is by kind only.
var (
	ErrKeyMissing    = &Error{Kind: KindKeyMissing}
	ErrInvalidBlob   = &Error{Kind: KindInvalidBlob}
	ErrDecryptFailed = &Error{Kind: KindDecryptFailed}
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindKeyMissing:
		if e.detail != "" {
			return fmt.Sprintf("crypto: key version %d missing: %s", e.Version, e.detail)
		}
		return fmt.Sprintf("crypto: key version %d missing", e.Version)
	case KindInvalidBlob:
		if e.detail != "" {
			return "crypto: invalid blob: " + e.detail
		}
		return "crypto: invalid blob"
	case KindDecryptFailed:
		return "crypto: decrypt failed"
	default:
		return "crypto: unknown error"
	}
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf returns the ErrorKind of err, or KindUnknown when err does not wrap an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

func keyMissing(version int, detail string) error {
	return &Error{Kind: KindKeyMissing, Version: version, detail: detail}
}

func invalidBlob(format string, args ...any) error {
	return &Error{Kind: KindInvalidBlob, detail: fmt.Sprintf(format, args...)}
}

func decryptFailed() error {
	return &Error{Kind: KindDecryptFailed}
}
