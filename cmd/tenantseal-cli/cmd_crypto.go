package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/tenantseal/internal/config"
	"github.com/persistorai/tenantseal/internal/crypto"
	"github.com/persistorai/tenantseal/internal/masking"
)

// envelopeFlags are shared by the local encrypt, decrypt and migrate commands.
type envelopeFlags struct {
	tenant string
	record string
	in     string
	str    bool
}

func (f *envelopeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "Tenant ID bound into the envelope (required)")
	cmd.Flags().StringVar(&f.record, "record", "", "Record ID bound into the envelope (required)")
	cmd.Flags().StringVar(&f.in, "in", "", "Read input from file instead of argument or stdin ('-' for stdin)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("record")
}

func (f *envelopeFlags) context() crypto.Context {
	return crypto.Context{TenantID: f.tenant, RecordID: f.record}
}

// loadCrypto builds a crypto service from ENCRYPTION_* / VAULT_* settings.
func loadCrypto() (*crypto.Service, *config.Config, error) {
	cfg, err := config.LoadEncryption()
	if err != nil {
		return nil, nil, err
	}
	provider, err := crypto.NewProvider(cfg)
	if err != nil {
		return nil, nil, err
	}
	return crypto.NewService(provider), cfg, nil
}

// readInput returns the positional argument, the --in file, or stdin.
func readInput(cmd *cobra.Command, args []string, in string) ([]byte, error) {
	switch {
	case len(args) > 0:
		return []byte(args[0]), nil
	case in != "" && in != "-":
		data, err := os.ReadFile(in)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", in, err)
		}
		return data, nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
}

// parseValue decodes a JSON value, keeping numbers exact.
func parseValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("value is not valid JSON (use --string for plain text): %w", err)
	}
	if dec.More() {
		return nil, errors.New("value must be a single JSON document")
	}
	return v, nil
}

func newEncryptCmd() *cobra.Command {
	var (
		f          envelopeFlags
		keyVersion int
	)
	cmd := &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Seal a JSON value (or --string text) into an envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadCrypto()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args, f.in)
			if err != nil {
				return err
			}

			var opts []crypto.EncryptOption
			if keyVersion > 0 {
				opts = append(opts, crypto.WithKeyVersion(keyVersion))
			}

			var blob *crypto.EncryptedBlob
			if f.str {
				blob, err = svc.EncryptString(cmd.Context(), strings.TrimSuffix(string(data), "\n"), f.context(), opts...)
			} else {
				var v any
				if v, err = parseValue(data); err != nil {
					return err
				}
				blob, err = svc.Encrypt(cmd.Context(), v, f.context(), opts...)
			}
			if err != nil {
				return fmt.Errorf("encrypt: %w", err)
			}
			return formatJSON(cmd.OutOrStdout(), blob)
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&f.str, "string", false, "Treat input as plain text")
	cmd.Flags().IntVar(&keyVersion, "key-version", 0, "Seal under this key version instead of the active one")
	return cmd
}

func newDecryptCmd() *cobra.Command {
	var f envelopeFlags
	cmd := &cobra.Command{
		Use:   "decrypt [blob-json]",
		Short: "Open an envelope and print its value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadCrypto()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args, f.in)
			if err != nil {
				return err
			}
			blob, err := crypto.ParseBlob(data)
			if err != nil {
				return err
			}

			if f.str {
				text, err := svc.DecryptString(cmd.Context(), blob, f.context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			}

			var raw json.RawMessage
			if err := svc.DecryptInto(cmd.Context(), blob, f.context(), &raw); err != nil {
				return err
			}
			return formatJSON(cmd.OutOrStdout(), raw)
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&f.str, "string", false, "Envelope holds plain text sealed with --string")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var f envelopeFlags
	cmd := &cobra.Command{
		Use:   "migrate [blob-json]",
		Short: "Re-seal an envelope under the active key version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadCrypto()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args, f.in)
			if err != nil {
				return err
			}
			blob, err := crypto.ParseBlob(data)
			if err != nil {
				return err
			}

			if !svc.NeedsMigration(blob) {
				fmt.Fprintf(cmd.ErrOrStderr(), "envelope already at key version %d, unchanged\n", blob.KeyVersion)
				return formatJSON(cmd.OutOrStdout(), blob)
			}

			migrated, err := svc.MigrateBlob(cmd.Context(), blob, f.context())
			if err != nil {
				return err
			}
			return formatJSON(cmd.OutOrStdout(), migrated)
		},
	}
	f.bind(cmd)
	return cmd
}

func newMaskCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "mask [text]",
		Short: "Mask a value for display, keeping the last 4 characters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args, "")
			if err != nil {
				return err
			}
			if !asJSON {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), masking.Mask(strings.TrimSuffix(string(data), "\n")))
				return err
			}
			v, err := parseValue(data)
			if err != nil {
				return err
			}
			return formatJSON(cmd.OutOrStdout(), masking.MaskValue(v))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Input is JSON; mask every leaf")
	return cmd
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [text]",
		Short: "Print the audit hash (hex SHA-256) of a value, or null when empty",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args, "")
			if err != nil {
				return err
			}
			sum, ok := masking.HashForAudit(strings.TrimSuffix(string(data), "\n"))
			if !ok {
				sum = "null"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}
}
