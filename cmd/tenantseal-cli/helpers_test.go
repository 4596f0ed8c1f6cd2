package main

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
)

// isolate points HOME at a temp dir and clears the CLI's env variables so the
// developer's own configuration never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TENANTSEAL_URL", "")
	t.Setenv("TENANTSEAL_API_KEY", "")
	return home
}

// setKeys configures the env key provider with one key per version.
func setKeys(t *testing.T, active int, versions ...int) {
	t.Helper()
	t.Setenv("ENCRYPTION_PROVIDER", "env")
	t.Setenv("ENCRYPTION_ACTIVE_KEY_VERSION", strconv.Itoa(active))
	for _, v := range versions {
		key := bytes.Repeat([]byte{byte(v)}, 32)
		t.Setenv("ENCRYPTION_KEY_V"+strconv.Itoa(v), base64.StdEncoding.EncodeToString(key))
	}
}

// runCLI executes the full command tree and returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
