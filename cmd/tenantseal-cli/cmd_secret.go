package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/tenantseal/client"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the tenant's secrets on the server",
	}
	cmd.AddCommand(secretPutCmd())
	cmd.AddCommand(secretGetCmd())
	cmd.AddCommand(secretRevealCmd())
	cmd.AddCommand(secretListCmd())
	cmd.AddCommand(secretDeleteCmd())
	return cmd
}

func secretPutCmd() *cobra.Command {
	var (
		asString bool
		in       string
	)
	cmd := &cobra.Command{
		Use:   "put <name> [value]",
		Short: "Store a JSON value (or --string text) under name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1:], in)
			if err != nil {
				return err
			}

			var value any
			if asString {
				value = strings.TrimSuffix(string(data), "\n")
			} else if value, err = parseValue(data); err != nil {
				return err
			}

			res, err := apiClient.Secrets.Put(cmd.Context(), args[0], value)
			if err != nil {
				return fmt.Errorf("put secret: %w", err)
			}
			return output(cmd.OutOrStdout(), res, res.ID)
		},
	}
	cmd.Flags().BoolVar(&asString, "string", false, "Store the value as a plain string")
	cmd.Flags().StringVar(&in, "in", "", "Read the value from file ('-' for stdin)")
	return cmd
}

func secretGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a secret with its value masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := apiClient.Secrets.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get secret: %w", err)
			}
			return output(cmd.OutOrStdout(), view, fmt.Sprint(view.Masked))
		},
	}
}

func secretRevealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reveal <name>",
		Short: "Print the plaintext value of a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := apiClient.Secrets.Reveal(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reveal secret: %w", err)
			}
			if flagFmt == "quiet" {
				if s, ok := val.Value.(string); ok {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
					return err
				}
				return formatJSON(cmd.OutOrStdout(), val.Value)
			}
			return formatJSON(cmd.OutOrStdout(), val)
		},
	}
}

func secretListCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List secret names and key versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, hasMore, err := apiClient.Secrets.List(cmd.Context(), &client.ListOptions{Limit: limit, Offset: offset})
			if err != nil {
				return fmt.Errorf("list secrets: %w", err)
			}
			switch flagFmt {
			case "table":
				rows := make([][]string, 0, len(secrets))
				for _, s := range secrets {
					rows = append(rows, []string{s.Name, strconv.Itoa(s.KeyVersion), s.UpdatedAt.Format("2006-01-02 15:04:05")})
				}
				formatTable(cmd.OutOrStdout(), []string{"NAME", "KEY_VERSION", "UPDATED_AT"}, rows)
				return nil
			case "quiet":
				for _, s := range secrets {
					fmt.Fprintln(cmd.OutOrStdout(), s.Name)
				}
				return nil
			}
			return formatJSON(cmd.OutOrStdout(), map[string]any{"secrets": secrets, "has_more": hasMore})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many results")
	return cmd
}

func secretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Secrets.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete secret: %w", err)
			}
			return output(cmd.OutOrStdout(), map[string]string{"deleted": args[0]}, args[0])
		},
	}
}
