package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/tenantseal/client"
)

func newInitCmd() *cobra.Command {
	var (
		initURL    string
		initAPIKey string
		skipCheck  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up tenantseal CLI configuration",
		Long:  "Interactive setup that writes a profile to ~/.tenantseal/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			nonInteractive := initURL != "" || initAPIKey != ""
			return runInit(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), initURL, initAPIKey, nonInteractive, skipCheck)
		},
	}

	cmd.Flags().StringVar(&initURL, "server", "", "Server URL (non-interactive mode)")
	cmd.Flags().StringVar(&initAPIKey, "key", "", "Tenant API key (non-interactive mode)")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Do not verify the key against the server")
	return cmd
}

func runInit(ctx context.Context, in io.Reader, out io.Writer, url, apiKey string, nonInteractive, skipCheck bool) error {
	if !nonInteractive {
		fmt.Fprintln(out, "\n  tenantseal setup")
		fmt.Fprintln(out)

		reader := bufio.NewReader(in)

		fmt.Fprintf(out, "  Server URL [%s]: ", defaultURL)
		line, _ := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			url = line
		}

		fmt.Fprint(out, "  API key: ")
		keyLine, _ := reader.ReadString('\n')
		apiKey = strings.TrimSpace(keyLine)
	}

	if url == "" {
		url = defaultURL
	}

	if apiKey == "" {
		return fmt.Errorf("API key is required")
	}

	if !skipCheck {
		ver, err := testConnection(ctx, url, apiKey)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		fmt.Fprintf(out, "Connected to tenantseal %s\n", ver)
	}

	profile := flagProfile
	if profile == "" {
		profile = "default"
	}

	cfgPath, err := writeConfig(profile, url, apiKey)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(out, "Profile %q saved to %s\n", profile, cfgPath)
	return nil
}

// testConnection checks liveness and that the key authenticates.
func testConnection(ctx context.Context, url, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := client.New(url, client.WithAPIKey(apiKey))

	health, err := c.Health(ctx)
	if err != nil {
		return "", err
	}
	if _, err := c.Keys.Status(ctx); err != nil {
		return "", err
	}
	return health.Version, nil
}

// writeConfig adds or replaces one profile, keeping the others, and makes it active.
func writeConfig(profile, url, apiKey string) (string, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", err
	}

	cfg := &configFile{}
	if _, existing, err := loadConfigFile(); err == nil {
		cfg = existing
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]configProfile{}
	}
	cfg.Profiles[profile] = configProfile{URL: url, APIKey: apiKey}
	cfg.ActiveProfile = profile

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return "", err
	}

	return cfgPath, nil
}
