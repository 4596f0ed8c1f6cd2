// Command tenantseal-cli seals and opens secret envelopes locally and manages
// secrets on a tenantseal server.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/tenantseal/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3040"

var (
	apiClient   *client.Client
	flagURL     string
	flagKey     string
	flagFmt     string
	flagProfile string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("tenantseal version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("tenantseal version %s-dev", version)
}

// configFile is ~/.tenantseal/config.yaml.
type configFile struct {
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "tenantseal",
		Short:   "tenantseal CLI: tenant-scoped secret envelopes",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			apiClient = client.New(flagURL, opts...)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "tenantseal server URL (env: TENANTSEAL_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "tenant API key (env: TENANTSEAL_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Config profile (default: active_profile)")

	// Local commands: keys come from ENCRYPTION_KEY_V{n} / Vault, no server needed.
	rootCmd.AddCommand(newEncryptCmd())
	rootCmd.AddCommand(newDecryptCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newMaskCmd())
	rootCmd.AddCommand(newHashCmd())
	rootCmd.AddCommand(newTenantCmd())

	// Remote commands go through the client SDK.
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newSecretCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newAuditCmd())

	return rootCmd
}

func main() {
	// A missing .env is fine; real environment variables take precedence.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tenantseal", "config.yaml"), nil
}

func loadConfigFile() (string, *configFile, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfgPath, nil, err
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfgPath, nil, fmt.Errorf("parse %s: %w", cfgPath, err)
	}
	return cfgPath, &cfg, nil
}

// profile returns the selected profile: --profile, then active_profile, then "default".
func (c *configFile) profile(name string) (configProfile, bool) {
	if name == "" {
		name = c.ActiveProfile
	}
	if name == "" {
		name = "default"
	}
	p, ok := c.Profiles[name]
	return p, ok
}

// resolveConfig fills flagURL and flagKey. Flags take precedence, then env,
// then the config file.
func resolveConfig() {
	if flagURL == defaultURL {
		if v := os.Getenv("TENANTSEAL_URL"); v != "" {
			flagURL = v
		}
	}
	if flagKey == "" {
		flagKey = os.Getenv("TENANTSEAL_API_KEY")
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		return
	}
	p, ok := cfg.profile(flagProfile)
	if !ok {
		return
	}
	if flagURL == defaultURL && p.URL != "" {
		flagURL = p.URL
	}
	if flagKey == "" && p.APIKey != "" {
		flagKey = p.APIKey
	}
}
