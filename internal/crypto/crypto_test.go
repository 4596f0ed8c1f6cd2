package crypto_test

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/persistorai/tenantseal/internal/config"
	"github.com/persistorai/tenantseal/internal/crypto"
)

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func rawKey(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, 32)
}

func encodedKey(fill byte) config.Secret {
	return config.Secret(base64.StdEncoding.EncodeToString(rawKey(fill)))
}

func newService(t *testing.T, active int, versions ...int) *crypto.Service {
	t.Helper()

	keys := make(map[int]config.Secret, len(versions))
	for _, v := range versions {
		keys[v] = encodedKey(byte(v))
	}

	return crypto.NewService(crypto.NewKeyRing(keys, active))
}

var ctxT1R1 = crypto.Context{TenantID: "t1", RecordID: "r1"}

// flipChar replaces the character at i with the one whose 6-bit value
// differs by mask.
func flipChar(s string, i int, mask int) string {
	idx := strings.IndexByte(b64Alphabet, s[i])
	b := []byte(s)
	b[i] = b64Alphabet[idx^mask]

	return string(b)
}

// countingProvider records key lookups to prove validation happens first.
type countingProvider struct {
	inner crypto.KeyProvider
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) GetKey(ctx context.Context, version int) ([]byte, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	return p.inner.GetKey(ctx, version)
}

func (p *countingProvider) ActiveVersion() int { return p.inner.ActiveVersion() }

func TestEncryptDecryptRoundtrip(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	payloads := []any{
		map[string]any{"apiKey": "sk-live-abc123", "port": float64(587)},
		"plain string",
		float64(42),
		true,
		nil,
		[]any{"a", float64(1), map[string]any{"nested": "yes"}},
		map[string]any{},
	}

	for _, p := range payloads {
		blob, err := svc.Encrypt(ctx, p, ctxT1R1)
		if err != nil {
			t.Fatalf("encrypt %v: %v", p, err)
		}

		got, err := crypto.Decrypt[any](ctx, svc, blob, ctxT1R1)
		if err != nil {
			t.Fatalf("decrypt %v: %v", p, err)
		}

		if !reflect.DeepEqual(got, p) {
			t.Errorf("roundtrip mismatch: got %#v, want %#v", got, p)
		}
	}
}

func TestDecryptTyped(t *testing.T) {
	type smtpSettings struct {
		Host     string `json:"host"`
		Password string `json:"password"`
	}

	svc := newService(t, 1, 1)
	ctx := context.Background()
	in := smtpSettings{Host: "smtp.example.com", Password: "hunter2"}

	blob, err := svc.Encrypt(ctx, in, ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	out, err := crypto.Decrypt[smtpSettings](ctx, svc, blob, ctxT1R1)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestEncryptBlobShape(t *testing.T) {
	svc := newService(t, 1, 1)

	blob, err := svc.Encrypt(context.Background(), map[string]string{"k": "v"}, ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if blob.V != 1 || blob.Alg != "aes-256-gcm" || blob.KeyVersion != 1 {
		t.Fatalf("unexpected header: %+v", blob)
	}

	iv, err := base64.StdEncoding.DecodeString(blob.IVB64)
	if err != nil || len(iv) != 12 {
		t.Fatalf("iv: len=%d err=%v", len(iv), err)
	}

	tag, err := base64.StdEncoding.DecodeString(blob.TagB64)
	if err != nil || len(tag) != 16 {
		t.Fatalf("tag: len=%d err=%v", len(tag), err)
	}

	raw, err := blob.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, k := range []string{"v", "alg", "keyVersion", "ivB64", "tagB64", "ctB64"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("wire format missing field %q", k)
		}
	}

	if len(fields) != 6 {
		t.Errorf("wire format has %d fields, want 6", len(fields))
	}
}

func TestEncryptProducesDifferentCiphertexts(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	a, _ := svc.Encrypt(ctx, "same", ctxT1R1)
	b, _ := svc.Encrypt(ctx, "same", ctxT1R1)

	if a.IVB64 == b.IVB64 || a.CtB64 == b.CtB64 {
		t.Fatal("two encryptions of same plaintext should differ (random iv)")
	}

	for _, blob := range []*crypto.EncryptedBlob{a, b} {
		got, err := crypto.Decrypt[string](ctx, svc, blob, ctxT1R1)
		if err != nil || got != "same" {
			t.Fatalf("decrypt: got %q, err %v", got, err)
		}
	}
}

func TestContextBinding(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, "payload", crypto.Context{TenantID: "t1", RecordID: "r1"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := crypto.Decrypt[string](ctx, svc, blob, crypto.Context{TenantID: "t1", RecordID: "r1"}); err != nil {
		t.Fatalf("same context should decrypt: %v", err)
	}

	for _, cc := range []crypto.Context{
		{TenantID: "t2", RecordID: "r1"},
		{TenantID: "t1", RecordID: "r2"},
		{TenantID: "t1|rec:r1", RecordID: ""},
	} {
		_, err := crypto.Decrypt[string](ctx, svc, blob, cc)
		if !errors.Is(err, crypto.ErrDecryptFailed) {
			t.Errorf("context %+v: expected ErrDecryptFailed, got %v", cc, err)
		}
	}
}

func TestTamperDetection(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, map[string]string{"password": "hunter2"}, ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	fields := map[string]func(b *crypto.EncryptedBlob) *string{
		"iv":  func(b *crypto.EncryptedBlob) *string { return &b.IVB64 },
		"tag": func(b *crypto.EncryptedBlob) *string { return &b.TagB64 },
		"ct":  func(b *crypto.EncryptedBlob) *string { return &b.CtB64 },
	}

	for name, field := range fields {
		value := *field(blob)
		for i := 0; i < len(value) && value[i] != '='; i++ {
			for _, mask := range []int{0x20, 0x01} {
				tampered := *blob
				*field(&tampered) = flipChar(value, i, mask)

				_, err := crypto.Decrypt[any](ctx, svc, &tampered, ctxT1R1)
				if !errors.Is(err, crypto.ErrDecryptFailed) && !errors.Is(err, crypto.ErrInvalidBlob) {
					t.Fatalf("%s[%d] flipped by %#x: expected rejection, got %v", name, i, mask, err)
				}
			}
		}
	}
}

func TestDecryptRejectsNonCanonicalBase64(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, map[string]string{"apiKey": "sk-live-abc123"}, ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// A 16-byte tag leaves 4 unused bits in its last data character.
	last := strings.IndexByte(blob.TagB64, '=') - 1
	if last < 0 {
		t.Fatalf("expected padded tag, got %q", blob.TagB64)
	}

	tests := map[string]func(b *crypto.EncryptedBlob){
		"tag padding bits": func(b *crypto.EncryptedBlob) { b.TagB64 = flipChar(b.TagB64, last, 0x01) },
		"newline in iv":    func(b *crypto.EncryptedBlob) { b.IVB64 = b.IVB64[:4] + "\n" + b.IVB64[4:] },
		"trailing crlf":    func(b *crypto.EncryptedBlob) { b.CtB64 += "\r\n" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			tampered := *blob
			mutate(&tampered)

			if err := tampered.Validate(); !errors.Is(err, crypto.ErrInvalidBlob) {
				t.Fatalf("Validate: expected ErrInvalidBlob, got %v", err)
			}

			value, err := crypto.Decrypt[map[string]string](ctx, svc, &tampered, ctxT1R1)
			if !errors.Is(err, crypto.ErrInvalidBlob) {
				t.Fatalf("Decrypt: expected ErrInvalidBlob, got value=%v err=%v", value, err)
			}
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	ctx := context.Background()
	svc1 := newService(t, 1, 1)
	other := crypto.NewService(crypto.NewKeyRing(map[int]config.Secret{1: encodedKey(0xee)}, 1))

	blob, err := svc1.Encrypt(ctx, "secret", ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	_, err = crypto.Decrypt[string](ctx, other, blob, ctxT1R1)
	if !errors.Is(err, crypto.ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}

	if crypto.KindOf(err) != crypto.KindDecryptFailed {
		t.Fatalf("KindOf = %v", crypto.KindOf(err))
	}
}

func TestDecryptRejectsUnsupportedFormatBeforeKeyLookup(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{inner: crypto.NewKeyRing(map[int]config.Secret{1: encodedKey(1)}, 1)}
	svc := crypto.NewService(provider)

	blob, err := svc.Encrypt(ctx, "x", ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	provider.calls = 0

	mutations := map[string]func(b *crypto.EncryptedBlob){
		"version 2":       func(b *crypto.EncryptedBlob) { b.V = 2 },
		"aes-128-gcm":     func(b *crypto.EncryptedBlob) { b.Alg = "aes-128-gcm" },
		"zero keyVersion": func(b *crypto.EncryptedBlob) { b.KeyVersion = 0 },
		"iv not base64":   func(b *crypto.EncryptedBlob) { b.IVB64 = "!!!!" },
		"short iv":        func(b *crypto.EncryptedBlob) { b.IVB64 = base64.StdEncoding.EncodeToString(make([]byte, 8)) },
		"long tag":        func(b *crypto.EncryptedBlob) { b.TagB64 = base64.StdEncoding.EncodeToString(make([]byte, 20)) },
		"ct not base64":   func(b *crypto.EncryptedBlob) { b.CtB64 = "%%%" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			bad := *blob
			mutate(&bad)

			_, err := crypto.Decrypt[string](ctx, svc, &bad, ctxT1R1)
			if !errors.Is(err, crypto.ErrInvalidBlob) {
				t.Fatalf("expected ErrInvalidBlob, got %v", err)
			}
		})
	}

	if provider.calls != 0 {
		t.Fatalf("expected no key lookups for invalid blobs, got %d", provider.calls)
	}
}

func TestDecryptNilBlob(t *testing.T) {
	svc := newService(t, 1, 1)

	_, err := crypto.Decrypt[string](context.Background(), svc, nil, ctxT1R1)
	if !errors.Is(err, crypto.ErrInvalidBlob) {
		t.Fatalf("expected ErrInvalidBlob, got %v", err)
	}
}

func TestDecryptNonJSONPlaintext(t *testing.T) {
	svc := newService(t, 1, 1)

	block, err := aes.NewCipher(rawKey(1))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("new gcm: %v", err)
	}

	iv := make([]byte, 12)
	out := gcm.Seal(nil, iv, []byte("not json {"), ctxT1R1.AAD())

	blob := &crypto.EncryptedBlob{
		V:          1,
		Alg:        "aes-256-gcm",
		KeyVersion: 1,
		IVB64:      base64.StdEncoding.EncodeToString(iv),
		TagB64:     base64.StdEncoding.EncodeToString(out[len(out)-16:]),
		CtB64:      base64.StdEncoding.EncodeToString(out[:len(out)-16]),
	}

	_, err = crypto.Decrypt[any](context.Background(), svc, blob, ctxT1R1)
	if !errors.Is(err, crypto.ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestDecryptFailedHidesCause(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	blob, _ := svc.Encrypt(ctx, "x", ctxT1R1)

	_, errCtx := crypto.Decrypt[string](ctx, svc, blob, crypto.Context{TenantID: "t2", RecordID: "r1"})

	tampered := *blob
	tampered.TagB64 = flipChar(blob.TagB64, 0, 0x20)
	_, errTamper := crypto.Decrypt[string](ctx, svc, &tampered, ctxT1R1)

	if errCtx == nil || errTamper == nil {
		t.Fatal("expected both decrypts to fail")
	}

	if errCtx.Error() != errTamper.Error() {
		t.Fatalf("error messages differ: %q vs %q", errCtx, errTamper)
	}

	if errors.Unwrap(errCtx) != nil {
		t.Fatal("decrypt failure must not wrap a cause")
	}
}

func TestEncryptStringRoundtrip(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	blob, err := svc.EncryptString(ctx, "smtp-password", ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := svc.DecryptString(ctx, blob, ctxT1R1)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if got != "smtp-password" {
		t.Fatalf("got %q", got)
	}

	wrapped, err := crypto.Decrypt[map[string]string](ctx, svc, blob, ctxT1R1)
	if err != nil {
		t.Fatalf("decrypt as map: %v", err)
	}

	if wrapped["value"] != "smtp-password" {
		t.Fatalf("expected {value: ...} wrapper, got %v", wrapped)
	}
}

func TestEncryptWithKeyVersion(t *testing.T) {
	svc := newService(t, 2, 1, 2)
	ctx := context.Background()

	blob, err := svc.Encrypt(ctx, "x", ctxT1R1, crypto.WithKeyVersion(1))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if blob.KeyVersion != 1 {
		t.Fatalf("expected key version 1, got %d", blob.KeyVersion)
	}

	if !svc.NeedsMigration(blob) {
		t.Fatal("blob under version 1 should need migration when 2 is active")
	}
}

func TestRotation(t *testing.T) {
	ctx := context.Background()
	keys := map[int]config.Secret{1: encodedKey(1), 2: encodedKey(2)}
	payload := map[string]any{"apiKey": "sk-live-abc123"}

	v1 := crypto.NewService(crypto.NewKeyRing(keys, 1))

	blob, err := v1.Encrypt(ctx, payload, ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if blob.KeyVersion != 1 {
		t.Fatalf("expected key version 1, got %d", blob.KeyVersion)
	}

	if v1.NeedsMigration(blob) {
		t.Fatal("fresh blob should not need migration")
	}

	v2 := crypto.NewService(crypto.NewKeyRing(keys, 2))

	got, err := crypto.Decrypt[map[string]any](ctx, v2, blob, ctxT1R1)
	if err != nil {
		t.Fatalf("old blob should still decrypt after rotation: %v", err)
	}

	if !reflect.DeepEqual(got, payload) {
		t.Fatalf("got %v", got)
	}

	if !v2.NeedsMigration(blob) {
		t.Fatal("expected NeedsMigration after rotation")
	}

	migrated, err := v2.MigrateBlob(ctx, blob, ctxT1R1)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if migrated.KeyVersion != 2 {
		t.Fatalf("expected migrated key version 2, got %d", migrated.KeyVersion)
	}

	if v2.NeedsMigration(migrated) {
		t.Fatal("migrated blob should not need migration")
	}

	got, err = crypto.Decrypt[map[string]any](ctx, v2, migrated, ctxT1R1)
	if err != nil {
		t.Fatalf("decrypt migrated: %v", err)
	}

	if !reflect.DeepEqual(got, payload) {
		t.Fatalf("migrated payload mismatch: %v", got)
	}
}

func TestMigrateBlobRequiresSameContext(t *testing.T) {
	ctx := context.Background()
	keys := map[int]config.Secret{1: encodedKey(1), 2: encodedKey(2)}

	blob, _ := crypto.NewService(crypto.NewKeyRing(keys, 1)).Encrypt(ctx, "x", ctxT1R1)
	v2 := crypto.NewService(crypto.NewKeyRing(keys, 2))

	_, err := v2.MigrateBlob(ctx, blob, crypto.Context{TenantID: "t1", RecordID: "other"})
	if !errors.Is(err, crypto.ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}

	tampered := *blob
	tampered.CtB64 = flipChar(blob.CtB64, 0, 0x20)

	_, err = v2.MigrateBlob(ctx, &tampered, ctxT1R1)
	if !errors.Is(err, crypto.ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for tampered blob, got %v", err)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := context.Background()
	full := crypto.NewService(crypto.NewKeyRing(map[int]config.Secret{1: encodedKey(1)}, 1))

	blob, err := full.Encrypt(ctx, "x", ctxT1R1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	empty := crypto.NewService(crypto.NewKeyRing(map[int]config.Secret{}, 1))

	_, err = empty.Encrypt(ctx, "x", ctxT1R1)
	if !errors.Is(err, crypto.ErrKeyMissing) {
		t.Fatalf("encrypt: expected ErrKeyMissing, got %v", err)
	}

	_, err = crypto.Decrypt[string](ctx, empty, blob, ctxT1R1)
	if !errors.Is(err, crypto.ErrKeyMissing) {
		t.Fatalf("decrypt: expected ErrKeyMissing, got %v", err)
	}

	var cerr *crypto.Error
	if !errors.As(err, &cerr) || cerr.Version != 1 {
		t.Fatalf("expected *crypto.Error with version 1, got %#v", err)
	}

	_, err = empty.MigrateBlob(ctx, blob, ctxT1R1)
	if !errors.Is(err, crypto.ErrKeyMissing) {
		t.Fatalf("migrate: expected ErrKeyMissing, got %v", err)
	}
}

func TestKeyRingMalformedKeys(t *testing.T) {
	ring := crypto.NewKeyRing(map[int]config.Secret{
		1: config.Secret("not base64!!"),
		2: config.Secret(base64.StdEncoding.EncodeToString([]byte("too short"))),
		3: encodedKey(3),
		5: config.Secret(flipChar(string(encodedKey(5)), 42, 0x01)),
	}, 3)

	for _, v := range []int{1, 2, 4, 5} {
		_, err := ring.GetKey(context.Background(), v)
		if crypto.KindOf(err) != crypto.KindKeyMissing {
			t.Errorf("version %d: expected KindKeyMissing, got %v", v, err)
		}
	}

	key, err := ring.GetKey(context.Background(), 3)
	if err != nil {
		t.Fatalf("version 3: %v", err)
	}

	if !bytes.Equal(key, rawKey(3)) {
		t.Fatal("unexpected key bytes")
	}

	key[0] ^= 0xff
	again, _ := ring.GetKey(context.Background(), 3)
	if !bytes.Equal(again, rawKey(3)) {
		t.Fatal("GetKey must return a copy")
	}

	if ring.Versions() != 1 {
		t.Fatalf("expected 1 usable key, got %d", ring.Versions())
	}
}

func TestKeyRingDefaultsActiveVersion(t *testing.T) {
	ring := crypto.NewKeyRing(nil, 0)
	if ring.ActiveVersion() != 1 {
		t.Fatalf("expected active version 1, got %d", ring.ActiveVersion())
	}
}

func TestParseBlob(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	blob, _ := svc.Encrypt(ctx, map[string]any{"a": "b"}, ctxT1R1)
	raw, _ := blob.Marshal()

	parsed, err := crypto.ParseBlob(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if *parsed != *blob {
		t.Fatalf("parsed blob differs: %+v vs %+v", parsed, blob)
	}

	bad := []string{
		`not json`,
		`{"v":"1","alg":"aes-256-gcm"}`,
		`{"v":2,"alg":"aes-256-gcm","keyVersion":1,"ivB64":"","tagB64":"","ctB64":""}`,
		`{}`,
	}

	for _, b := range bad {
		if _, err := crypto.ParseBlob([]byte(b)); !errors.Is(err, crypto.ErrInvalidBlob) {
			t.Errorf("%s: expected ErrInvalidBlob, got %v", b, err)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	if crypto.KindOf(errors.New("other")) != crypto.KindUnknown {
		t.Fatal("foreign errors should be KindUnknown")
	}

	if errors.Is(crypto.ErrKeyMissing, crypto.ErrDecryptFailed) {
		t.Fatal("different kinds must not match")
	}

	names := map[crypto.ErrorKind]string{
		crypto.KindKeyMissing:    "key_missing",
		crypto.KindInvalidBlob:   "invalid_blob",
		crypto.KindDecryptFailed: "decrypt_failed",
	}
	for k, want := range names {
		if k.String() != want {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}

func TestEndToEndScenario(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()
	cc := crypto.Context{TenantID: "tenant-123", RecordID: "record-456"}

	blob, err := svc.Encrypt(ctx, map[string]string{"apiKey": "sk-live-abc123"}, cc)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if blob.V != 1 || blob.Alg != "aes-256-gcm" || blob.KeyVersion != 1 {
		t.Fatalf("unexpected blob header: %+v", blob)
	}

	got, err := crypto.Decrypt[map[string]string](ctx, svc, blob, cc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if got["apiKey"] != "sk-live-abc123" || len(got) != 1 {
		t.Fatalf("got %v", got)
	}

	_, err = crypto.Decrypt[map[string]string](ctx, svc, blob, crypto.Context{TenantID: "tenant-123", RecordID: "record-999"})
	if !errors.Is(err, crypto.ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestConcurrentUse(t *testing.T) {
	svc := newService(t, 1, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			cc := crypto.Context{TenantID: "t", RecordID: string(rune('a' + i%26))}
			blob, err := svc.Encrypt(ctx, i, cc)
			if err != nil {
				errs <- err
				return
			}

			got, err := crypto.Decrypt[int](ctx, svc, blob, cc)
			if err != nil {
				errs <- err
				return
			}

			if got != i {
				errs <- errors.New("payload mismatch")
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}

func TestCheckActiveKey(t *testing.T) {
	ctx := context.Background()

	if err := newService(t, 2, 1, 2).CheckActiveKey(ctx); err != nil {
		t.Fatalf("CheckActiveKey: %v", err)
	}

	if err := newService(t, 3, 1, 2).CheckActiveKey(ctx); !errors.Is(err, crypto.ErrKeyMissing) {
		t.Fatalf("expected ErrKeyMissing, got %v", err)
	}
}
