package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// resetFlags restores global flag state after each test.
func resetFlags(t *testing.T) {
	t.Helper()
	orig := struct{ url, key, fmt, profile string }{flagURL, flagKey, flagFmt, flagProfile}
	t.Cleanup(func() {
		flagURL = orig.url
		flagKey = orig.key
		flagFmt = orig.fmt
		flagProfile = orig.profile
	})
}

func writeTestConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".tenantseal")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

const twoProfiles = `
active_profile: staging
profiles:
  default:
    url: http://default:3040
    api_key: ts_default
  staging:
    url: http://staging:3040
    api_key: ts_staging
`

func TestResolveConfigEnv(t *testing.T) {
	resetFlags(t)
	isolate(t)
	t.Setenv("TENANTSEAL_URL", "http://env-server:9090")
	t.Setenv("TENANTSEAL_API_KEY", "ts_env")

	flagURL, flagKey, flagProfile = defaultURL, "", ""
	resolveConfig()

	if flagURL != "http://env-server:9090" || flagKey != "ts_env" {
		t.Fatalf("got url=%q key=%q", flagURL, flagKey)
	}
}

func TestResolveConfigActiveProfile(t *testing.T) {
	resetFlags(t)
	home := isolate(t)
	writeTestConfig(t, home, twoProfiles)

	flagURL, flagKey, flagProfile = defaultURL, "", ""
	resolveConfig()

	if flagURL != "http://staging:3040" || flagKey != "ts_staging" {
		t.Fatalf("got url=%q key=%q", flagURL, flagKey)
	}
}

func TestResolveConfigExplicitProfile(t *testing.T) {
	resetFlags(t)
	home := isolate(t)
	writeTestConfig(t, home, twoProfiles)

	flagURL, flagKey, flagProfile = defaultURL, "", "default"
	resolveConfig()

	if flagURL != "http://default:3040" || flagKey != "ts_default" {
		t.Fatalf("got url=%q key=%q", flagURL, flagKey)
	}
}

func TestResolveConfigFlagsWin(t *testing.T) {
	resetFlags(t)
	home := isolate(t)
	writeTestConfig(t, home, twoProfiles)
	t.Setenv("TENANTSEAL_API_KEY", "ts_env")

	flagURL, flagKey, flagProfile = "http://flag:1", "ts_flag", ""
	resolveConfig()

	if flagURL != "http://flag:1" || flagKey != "ts_flag" {
		t.Fatalf("got url=%q key=%q", flagURL, flagKey)
	}
}

func TestResolveConfigMalformedFile(t *testing.T) {
	resetFlags(t)
	home := isolate(t)
	writeTestConfig(t, home, "profiles: [not, a, map")

	flagURL, flagKey, flagProfile = defaultURL, "", ""
	resolveConfig()

	if flagURL != defaultURL || flagKey != "" {
		t.Fatalf("malformed config must be ignored, got url=%q key=%q", flagURL, flagKey)
	}
}

func TestWriteConfigKeepsOtherProfiles(t *testing.T) {
	resetFlags(t)
	home := isolate(t)
	writeTestConfig(t, home, twoProfiles)

	cfgPath, err := writeConfig("prod", "https://prod:3040", "ts_prod")
	if err != nil {
		t.Fatalf("writeConfig: %v", err)
	}

	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config must be private, got %v", info.Mode().Perm())
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ActiveProfile != "prod" || len(cfg.Profiles) != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Profiles["staging"].APIKey != "ts_staging" {
		t.Error("existing profiles must be kept")
	}
}

func TestRunInitNonInteractiveSkipCheck(t *testing.T) {
	resetFlags(t)
	isolate(t)
	flagProfile = ""

	var out strings.Builder
	err := runInit(context.Background(), strings.NewReader(""), &out, "http://x:3040", "ts_abc", true, true)
	if err != nil {
		t.Fatalf("runInit: %v", err)
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p := cfg.Profiles["default"]; p.URL != "http://x:3040" || p.APIKey != "ts_abc" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestRunInitRequiresKey(t *testing.T) {
	resetFlags(t)
	isolate(t)

	err := runInit(context.Background(), strings.NewReader("\n\n"), io.Discard, "", "", false, true)
	if err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("24h", now)
	if err != nil || !got.Equal(now.Add(-24*time.Hour)) {
		t.Fatalf("duration: got %v err=%v", got, err)
	}

	got, err = parseSince("2026-02-01T00:00:00Z", now)
	if err != nil || got.Month() != time.February {
		t.Fatalf("rfc3339: got %v err=%v", got, err)
	}

	for _, bad := range []string{"yesterday", "-1h"} {
		if _, err := parseSince(bad, now); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}
