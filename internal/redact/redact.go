// Package redact scrubs secret-shaped data from log messages and fields
// before they reach a sink.
package redact

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Redacted replaces every secret value.
const Redacted = "[REDACTED]"

// secretKeys are matched as substrings of lowercased field names.
var secretKeys = []string{
	"apikey", "api_key", "authorization", "cookie", "secret",
	"token", "password", "credential", "credentials",
}

// secretValue is the value half of a key/value pair: a quoted string up to
// its closing quote (or end of input), or a bare word.
const secretValue = `["']?\s*[:=]\s*` +
	`(?:"(?:[^"\\]|\\.)*"?|'(?:[^'\\]|\\.)*'?|%s[^\s,;&"'}]+)`

// secretPattern matches an allowlisted word, optionally followed by a
// key/value separator and the value. Authorization values may carry a scheme
// word (Bearer, Basic, Digest) before the credential. Go's leftmost-first
// alternation makes the key/value form win whenever a value is present.
var secretPattern = regexp.MustCompile(
	`(?i)(authorization)(` + fmt.Sprintf(secretValue, `(?:\w+\s+)?`) + `)?` +
		`|(api[_-]?key|cookie|credentials?|password|secret|token)(` + fmt.Sprintf(secretValue, "") + `)?`,
)

// IsSecretKey reports whether a field name looks like it holds a secret.
func IsSecretKey(name string) bool {
	key := strings.ReplaceAll(strings.ToLower(name), "-", "")
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}

	return false
}

// String rewrites "key: value" and "key=value" pairs with an allowlisted key
// to "key: [REDACTED]" and blanks any other occurrence of an allowlisted word.
func String(s string) string {
	if s == "" {
		return s
	}

	return secretPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := secretPattern.FindStringSubmatch(match)
		key, value := m[1], m[2]
		if key == "" {
			key, value = m[3], m[4]
		}

		if value != "" {
			return key + ": " + Redacted
		}

		return Redacted
	})
}

// Fields returns a redacted copy of fields. The input is not modified.
func Fields(fields logrus.Fields) logrus.Fields {
	if fields == nil {
		return nil
	}

	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		if IsSecretKey(k) {
			out[k] = Redacted
			continue
		}

		out[k] = Value(v)
	}

	return out
}

// Value redacts an arbitrary log value. Maps, slices and structs are walked
// recursively; structs are walked through their JSON form.
func Value(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return String(val)
	case error:
		return String(val.Error())
	case logrus.Fields:
		return Fields(val)
	case map[string]any:
		return map[string]any(Fields(val))
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			if IsSecretKey(k) {
				out[k] = Redacted
				continue
			}
			out[k] = String(s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Value(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, s := range val {
			out[i] = String(s)
		}
		return out
	case json.RawMessage:
		return viaJSON(val)
	}

	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice:
		data, err := json.Marshal(v)
		if err != nil {
			return Redacted
		}
		return viaJSON(data)
	default:
		return v
	}
}

func viaJSON(data []byte) any {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return String(string(data))
	}

	return Value(decoded)
}
