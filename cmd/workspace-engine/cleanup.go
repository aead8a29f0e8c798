package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/workspace-engine/core/internal/appservice"
	"github.com/workspace-engine/core/internal/config"
)

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run the app-level cleanup task (spec.md §5)",
		Long: `Attempts server-side invalidation of any staged deleted_tokens and deletes
temp files older than 24 hours.

Without --watch, runs once and exits. With --watch, runs continuously on
the configured 10-minute interval (debounced 1 minute) until interrupted.`,
		RunE: runCleanup,
	}

	cmd.Flags().Bool("watch", false, "run continuously instead of once")

	return cmd
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}

	resolved := config.Resolve(cc.Cfg, "")

	invalidator := newHTTPTokenInvalidator(resolved.Server, resolved.Network)
	task := appservice.New(cc.App, cc.Paths, invalidator, cc.Logger)
	if d, err := time.ParseDuration(cc.Cfg.Cleanup.Interval); err == nil && d > 0 {
		task.WithInterval(d)
	}
	if d, err := time.ParseDuration(cc.Cfg.Cleanup.Debounce); err == nil && d > 0 {
		task.WithDebounce(d)
	}
	if d, err := time.ParseDuration(cc.Cfg.Cleanup.TempFileMaxAge); err == nil && d > 0 {
		task.WithTempFileMaxAge(d)
	}

	if !watch {
		return task.RunOnce(cmd.Context())
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	return task.Run(ctx)
}

// httpTokenInvalidator performs spec.md §6's `DELETE /v1/accounts/logout`
// call, classifying AuthError-family status codes as the account already
// being gone (spec.md §7: "observed during cleanup ⇒ drop the staged token").
type httpTokenInvalidator struct {
	client *http.Client
	server config.ServerConfig
}

func newHTTPTokenInvalidator(server config.ServerConfig, net config.NetworkConfig) *httpTokenInvalidator {
	timeout := 30 * time.Second
	if d, err := time.ParseDuration(net.RequestTimeout); err == nil {
		timeout = d
	}

	return &httpTokenInvalidator{client: &http.Client{Timeout: timeout}, server: server}
}

func (h *httpTokenInvalidator) InvalidateToken(ctx context.Context, server, token string) error {
	url := fmt.Sprintf("https://%s/v1/accounts/logout", server)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("building invalidation request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("ClientType", h.server.ClientType)
	req.Header.Set("ClientPlatform", h.server.ClientPlatform)
	req.Header.Set("ClientVersion", h.server.ClientVersion)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("invalidation request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return appservice.ErrAccountGone
	default:
		return fmt.Errorf("invalidation request: unexpected status %d", resp.StatusCode)
	}
}
