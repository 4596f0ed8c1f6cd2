// Package masking produces display-safe and audit-safe representations of
// secret values. Nothing here is reversible and nothing here is a security
// boundary.
package masking

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Placeholder is shown in place of short or absent values.
const Placeholder = "****"

const visibleSuffix = 4

// Mask returns a fixed display pattern ending in the last four characters of
// text, or Placeholder when text has four characters or fewer.
func Mask(text string) string {
	runes := []rune(text)
	if len(runes) <= visibleSuffix {
		return Placeholder
	}

	return "****-****-****-" + string(runes[len(runes)-visibleSuffix:])
}

// MaskValue masks every string leaf of a decoded JSON value. Non-string
// scalars, including null, become Placeholder. Object keys are kept.
func MaskValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = MaskValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = MaskValue(item)
		}
		return out
	case string:
		return Mask(val)
	default:
		return Placeholder
	}
}

// HashForAudit returns the lowercase hex SHA-256 of text. The boolean is
// false for empty input, which has no hash.
func HashForAudit(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:]), true
}

// HashValue hashes a decoded JSON value for audit comparison. Strings hash as
// their raw text so HashValue("x") == HashForAudit("x"); other values hash
// their JSON encoding, which sorts object keys.
func HashValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return HashForAudit(val)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}

	return HashForAudit(string(data))
}
