package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/persistorai/tenantseal/internal/dbpool"
	"github.com/persistorai/tenantseal/internal/store"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant administration (connects to DATABASE_URL directly)",
	}
	cmd.AddCommand(tenantCreateCmd())
	return cmd
}

func tenantCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tenant and print its API key (shown once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := os.Getenv("DATABASE_URL")
			if dsn == "" {
				return errors.New("DATABASE_URL is required")
			}

			pool, err := dbpool.NewPool(cmd.Context(), dsn, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenantID, apiKey, err := store.NewTenantStore(pool).CreateTenant(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Store the API key now; only its hash is kept.")
			return output(cmd.OutOrStdout(), map[string]string{
				"tenant_id": tenantID,
				"name":      args[0],
				"api_key":   apiKey,
			}, apiKey)
		},
	}
}
