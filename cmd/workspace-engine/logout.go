package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout <account-id>",
		Short: "Stage an account's token for invalidation and remove it locally",
		Long: `Removes the account row from the App DB and stages its current token in
deleted_tokens for the cleanup task to invalidate server-side (spec.md §5).

State databases (Account DB, Workspace DBs, file blobs) are kept so the
account can be re-added without a full re-sync. Pass --purge to also delete
them.`,
		Args: cobra.ExactArgs(1),
		RunE: runLogout,
	}

	cmd.Flags().Bool("purge", false, "also delete the account's on-disk state")

	return cmd
}

func runLogout(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	accountID := args[0]

	purge, err := cmd.Flags().GetBool("purge")
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := cc.App.LogoutAccount(cmd.Context(), accountID, now); err != nil {
		return fmt.Errorf("logging out %s: %w", accountID, err)
	}

	if purge {
		if err := os.RemoveAll(cc.Paths.AccountDir(accountID)); err != nil {
			return fmt.Errorf("purging account state: %w", err)
		}
	}

	statusf(flagQuiet, "logged out %s; token staged for server-side invalidation\n", accountID)

	return nil
}
