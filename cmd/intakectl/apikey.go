package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"matter_intake_backend/internal/intake"

	"github.com/spf13/cobra"
)

func newAPIKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage intake API keys",
	}
	cmd.AddCommand(newAPIKeyCreateCommand(), newAPIKeyListCommand(), newAPIKeyRevokeCommand())
	return cmd
}

func newAPIKeyCreateCommand() *cobra.Command {
	var tenant, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a key; the plaintext key is printed once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			plaintext, hash, prefix, err := intake.GenerateAPIKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			key, err := intake.NewRepository(e.pool).Create(cmd.Context(), tenant, name, hash, prefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:  %s\nkey: %s\n", key.ID, plaintext)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant the key submits for")
	cmd.Flags().StringVar(&name, "name", "", "Label for the key")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAPIKeyListCommand() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			keys, err := intake.NewRepository(e.pool).ListByTenant(cmd.Context(), tenant)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tACTIVE\tCREATED")
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", k.ID, k.Name, k.KeyPrefix, k.IsActive, k.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant to list")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newAPIKeyRevokeCommand() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "revoke <keyId>",
		Short: "Deactivate a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := intake.NewRepository(e.pool).Revoke(cmd.Context(), args[0], tenant); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant owning the key")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
