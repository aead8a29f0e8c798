package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workspace-engine/core/internal/appdb"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show known servers, accounts, and their workspaces",
		Long: `Display every server and account known to the local App DB, and for
each account the workspaces its Account DB has cached.`,
		RunE: runStatus,
	}
}

// statusServer groups accounts under the server they authenticated against.
type statusServer struct {
	Domain   string          `json:"domain"`
	Name     string          `json:"name"`
	Accounts []statusAccount `json:"accounts"`
}

type statusAccount struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	SyncedAt   string            `json:"synced_at"`
	Workspaces []statusWorkspace `json:"workspaces"`
}

type statusWorkspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	servers, err := cc.App.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("listing servers: %w", err)
	}

	result := make([]statusServer, 0, len(servers))
	for _, sv := range servers {
		accounts, err := cc.App.ListAccounts(ctx, sv.Domain)
		if err != nil {
			return fmt.Errorf("listing accounts for %s: %w", sv.Domain, err)
		}

		entry := statusServer{Domain: sv.Domain, Name: sv.Name, Accounts: make([]statusAccount, 0, len(accounts))}

		for _, acct := range accounts {
			workspaces, err := accountWorkspaces(ctx, cc, acct.ID)
			if err != nil {
				cc.Logger.Warn("could not read account workspaces", "account_id", acct.ID, "error", err.Error())
			}

			entry.Accounts = append(entry.Accounts, statusAccount{
				ID: acct.ID, Email: acct.Email, Name: acct.Name, SyncedAt: acct.SyncedAt, Workspaces: workspaces,
			})
		}

		result = append(result, entry)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printStatusText(result)

	return nil
}

// accountWorkspaces opens the account's Account DB (a debug-surface read,
// not a persistent handle) and lists the workspaces cached there.
func accountWorkspaces(ctx context.Context, cc *CLIContext, accountID string) ([]statusWorkspace, error) {
	store, err := appdb.OpenAccount(ctx, cc.Paths.AccountDB(accountID), cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening account database: %w", err)
	}
	defer store.Close()

	workspaces, err := store.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}

	out := make([]statusWorkspace, 0, len(workspaces))
	for _, ws := range workspaces {
		out = append(out, statusWorkspace{ID: ws.ID, Name: ws.Name, Role: ws.Role})
	}

	return out, nil
}

func printStatusText(servers []statusServer) {
	for _, sv := range servers {
		fmt.Printf("Server %s (%s)\n", sv.Domain, sv.Name)

		if len(sv.Accounts) == 0 {
			fmt.Println("  (no accounts)")
			continue
		}

		for _, acct := range sv.Accounts {
			fmt.Printf("  %s  %s  synced %s\n", acct.ID, acct.Email, formatTime(acct.SyncedAt))

			if len(acct.Workspaces) == 0 {
				fmt.Println("    (no cached workspaces)")
				continue
			}

			rows := make([][]string, 0, len(acct.Workspaces))
			for _, ws := range acct.Workspaces {
				rows = append(rows, []string{ws.ID, ws.Name, ws.Role})
			}

			printTable(os.Stdout, []string{"WORKSPACE", "NAME", "ROLE"}, rows)
		}
	}
}
