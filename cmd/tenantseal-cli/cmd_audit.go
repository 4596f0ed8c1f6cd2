package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/tenantseal/client"
)

func newAuditCmd() *cobra.Command {
	var (
		entityID, action, since string
		limit, keyVersion       int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the tenant's secret audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &client.AuditQueryOptions{
				EntityID:   entityID,
				Action:     action,
				KeyVersion: keyVersion,
				Limit:      limit,
			}
			if since != "" {
				t, err := parseSince(since, time.Now())
				if err != nil {
					return err
				}
				opts.Since = &t
			}

			entries, _, err := apiClient.Audit.Query(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("audit query: %w", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "ACTION", "ENTITY_ID", "ACTOR", "CREATED_AT"}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10), e.Action, e.EntityID, e.Actor,
						e.CreatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				formatTable(cmd.OutOrStdout(), headers, rows)
				return nil
			}
			return output(cmd.OutOrStdout(), entries, strconv.Itoa(len(entries)))
		},
	}
	cmd.Flags().StringVar(&entityID, "secret", "", "Filter by secret name")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action (secret.put, secret.reveal, ...)")
	cmd.Flags().StringVar(&since, "since", "", "Only entries newer than an RFC3339 time or a duration like 24h")
	cmd.Flags().IntVar(&keyVersion, "key-version", 0, "Only entries that used this key version")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")

	cmd.AddCommand(auditPurgeCmd())
	return cmd
}

// parseSince accepts an RFC3339 timestamp or a duration relative to now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return time.Time{}, fmt.Errorf("--since must be RFC3339 or a positive duration, got %q", s)
	}
	return now.Add(-d), nil
}

func auditPurgeCmd() *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge old audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := apiClient.Audit.Purge(cmd.Context(), retentionDays)
			if err != nil {
				return fmt.Errorf("audit purge: %w", err)
			}
			return output(cmd.OutOrStdout(), map[string]int{"deleted": deleted}, strconv.Itoa(deleted))
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 90, "Delete entries older than N days")
	return cmd
}
