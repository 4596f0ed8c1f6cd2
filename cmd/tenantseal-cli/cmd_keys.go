package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/tenantseal/internal/config"
	"github.com/persistorai/tenantseal/internal/crypto"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Encryption key status and rotation",
	}
	cmd.AddCommand(keysStatusCmd())
	cmd.AddCommand(keysRemoteStatusCmd())
	cmd.AddCommand(keysReencryptCmd())
	return cmd
}

type localKeyStatus struct {
	Version int    `json:"version"`
	Active  bool   `json:"active"`
	Status  string `json:"status"`
}

type localKeysReport struct {
	Provider      string           `json:"provider"`
	ActiveVersion int              `json:"active_version"`
	Keys          []localKeyStatus `json:"keys"`
}

// checkLocalKeys resolves every configured key version. The env provider
// reports the versions present in the environment; Vault is probed for
// versions 1..active.
func checkLocalKeys(ctx context.Context, cfg *config.Config, provider crypto.KeyProvider) localKeysReport {
	var versions []int
	if cfg.EncryptionProvider == config.ProviderEnv {
		for v := range cfg.EncryptionKeys {
			versions = append(versions, v)
		}
		if _, ok := cfg.EncryptionKeys[cfg.ActiveKeyVersion]; !ok {
			versions = append(versions, cfg.ActiveKeyVersion)
		}
	} else {
		for v := 1; v <= cfg.ActiveKeyVersion; v++ {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)

	report := localKeysReport{Provider: cfg.EncryptionProvider, ActiveVersion: provider.ActiveVersion()}
	for _, v := range versions {
		st := localKeyStatus{Version: v, Active: v == provider.ActiveVersion(), Status: "ok"}
		if _, err := provider.GetKey(ctx, v); err != nil {
			st.Status = err.Error()
			if crypto.KindOf(err) == crypto.KindKeyMissing {
				st.Status = "missing or malformed"
			}
		}
		report.Keys = append(report.Keys, st)
	}
	return report
}

func keysStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check locally configured key versions (no server)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEncryption()
			if err != nil {
				return err
			}
			provider, err := crypto.NewProvider(cfg)
			if err != nil {
				return err
			}

			report := checkLocalKeys(cmd.Context(), cfg, provider)
			if flagFmt == "table" {
				rows := make([][]string, 0, len(report.Keys))
				for _, k := range report.Keys {
					active := ""
					if k.Active {
						active = "*"
					}
					rows = append(rows, []string{strconv.Itoa(k.Version), active, k.Status})
				}
				formatTable(cmd.OutOrStdout(), []string{"VERSION", "ACTIVE", "STATUS"}, rows)
				return nil
			}
			return output(cmd.OutOrStdout(), report, strconv.Itoa(report.ActiveVersion))
		},
	}
}

func keysRemoteStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remote-status",
		Short: "Show how many of the tenant's secrets use each key version",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := apiClient.Keys.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("keys status: %w", err)
			}
			if flagFmt == "table" {
				versions := make([]string, 0, len(st.Counts))
				for v := range st.Counts {
					versions = append(versions, v)
				}
				sort.Slice(versions, func(i, j int) bool {
					a, _ := strconv.Atoi(versions[i])
					b, _ := strconv.Atoi(versions[j])
					return a < b
				})
				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{v, strconv.Itoa(st.Counts[v])})
				}
				formatTable(cmd.OutOrStdout(), []string{"KEY_VERSION", "SECRETS"}, rows)
				return nil
			}
			return output(cmd.OutOrStdout(), st, strconv.Itoa(st.Stale))
		},
	}
}

func keysReencryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reencrypt",
		Short: "Re-seal every stale secret of the tenant under the active key",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := apiClient.Keys.Reencrypt(cmd.Context())
			if err != nil {
				return fmt.Errorf("reencrypt: %w", err)
			}
			if err := output(cmd.OutOrStdout(), res, strconv.Itoa(res.Migrated)); err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d secrets could not be re-encrypted", res.Failed)
			}
			return nil
		},
	}
}
