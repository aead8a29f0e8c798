package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts known to the local App DB",
		RunE:  runAccounts,
	}
}

func runAccounts(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	accounts, err := cc.App.ListAccounts(cmd.Context(), "")
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(accounts)
	}

	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{a.ID, a.Email, a.Server, formatTime(a.SyncedAt)})
	}

	printTable(os.Stdout, []string{"ID", "EMAIL", "SERVER", "SYNCED"}, rows)

	return nil
}
