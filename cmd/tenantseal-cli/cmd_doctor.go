package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/tenantseal/client"
	"github.com/persistorai/tenantseal/internal/config"
	"github.com/persistorai/tenantseal/internal/crypto"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, keys and connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			return runDoctor(ctx, cmd.OutOrStdout())
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor(ctx context.Context, out io.Writer) error {
	fmt.Fprintln(out, "\ntenantseal doctor")
	fmt.Fprintln(out, "=================")

	var results []checkResult

	cfgPath, _, cfgErr := loadConfigFile()
	if cfgErr != nil {
		results = append(results, checkResult{Name: "Config file", Detail: cfgPath, Hint: "Run: tenantseal init"})
	} else {
		results = append(results, checkResult{Name: "Config file", Passed: true, Detail: cfgPath})
	}

	// resolveConfig already ran in PersistentPreRun.
	if flagKey == "" {
		results = append(results, checkResult{
			Name: "API key",
			Hint: "Set --api-key, TENANTSEAL_API_KEY, or run tenantseal init",
		})
	} else {
		results = append(results, checkResult{Name: "API key", Passed: true, Detail: "configured"})
	}

	results = append(results, doctorServerChecks(ctx, apiClient)...)
	results = append(results, doctorLocalKeys(ctx)...)

	fmt.Fprintln(out)
	allPassed := true
	for _, r := range results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
			allPassed = false
		}
		line := fmt.Sprintf("[%s] %s", mark, r.Name)
		if r.Detail != "" {
			line += ": " + r.Detail
		}
		fmt.Fprintln(out, line)
		if !r.Passed && r.Hint != "" {
			fmt.Fprintf(out, "       hint: %s\n", r.Hint)
		}
	}

	fmt.Fprintln(out)
	if !allPassed {
		fmt.Fprintln(out, "Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}
	fmt.Fprintln(out, "All checks passed.")
	return nil
}

func doctorServerChecks(ctx context.Context, c *client.Client) []checkResult {
	health, err := c.Health(ctx)
	if err != nil {
		return []checkResult{{
			Name: "Server reachable", Detail: flagURL,
			Hint: fmt.Sprintf("Is the tenantseal server running? Error: %v", err),
		}}
	}

	results := []checkResult{{
		Name: "Server reachable", Passed: true,
		Detail: fmt.Sprintf("%s (version %s, active key v%d)", flagURL, health.Version, health.ActiveKeyVersion),
	}}

	ready, err := c.Ready(ctx)
	switch {
	case err == nil:
		results = append(results, checkResult{Name: "Server ready", Passed: true})
	case ready != nil:
		results = append(results, checkResult{
			Name: "Server ready", Detail: formatChecks(ready.Checks),
			Hint: "Check the server log for database, schema or key errors",
		})
	default:
		results = append(results, checkResult{Name: "Server ready", Hint: err.Error()})
	}

	if flagKey != "" {
		if _, err := c.Keys.Status(ctx); err != nil {
			hint := err.Error()
			if client.IsUnauthorized(err) {
				hint = "The API key was rejected; create one with: tenantseal tenant create <name>"
			}
			results = append(results, checkResult{Name: "Authentication", Hint: hint})
		} else {
			results = append(results, checkResult{Name: "Authentication", Passed: true, Detail: "valid"})
		}
	}

	return results
}

// doctorLocalKeys validates local key material only when some is configured.
func doctorLocalKeys(ctx context.Context) []checkResult {
	if os.Getenv("ENCRYPTION_PROVIDER") == "" && !hasKeyEnv() {
		return nil
	}

	cfg, err := config.LoadEncryption()
	if err != nil {
		return []checkResult{{Name: "Local keys", Hint: err.Error()}}
	}
	provider, err := crypto.NewProvider(cfg)
	if err != nil {
		return []checkResult{{Name: "Local keys", Hint: err.Error()}}
	}
	if err := crypto.NewService(provider).CheckActiveKey(ctx); err != nil {
		return []checkResult{{Name: "Local keys", Hint: err.Error()}}
	}
	return []checkResult{{
		Name: "Local keys", Passed: true,
		Detail: fmt.Sprintf("%s provider, active v%d", cfg.EncryptionProvider, cfg.ActiveKeyVersion),
	}}
}

func hasKeyEnv() bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "ENCRYPTION_KEY_V") {
			return true
		}
	}
	return false
}

func formatChecks(checks map[string]string) string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+checks[name])
	}
	return strings.Join(parts, " ")
}
