// Package accountauth provides the OAuth2 token refresh flow backing
// appdb.Account.Token (§3 Account), modeled on internal/graph/auth.go's
// TokenSource bridge but generalized from Microsoft's device-code/PKCE
// flows to a generic server-issued refresh token.
package accountauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/workspace-engine/core/internal/appdb"
)

// TokenSource provides bearer tokens to an HTTP or socket client.
// Defined at the consumer per "accept interfaces, return structs" — the
// socket session and synchronizer's HTTP sender each take this interface,
// not a concrete type.
type TokenSource interface {
	Token() (string, error)
}

// ServerEndpoint is the subset of a server's attributes.authConfig needed to
// drive a refresh-token exchange (§3 Server "attributes JSON").
type ServerEndpoint struct {
	TokenURL string
	ClientID string
	Scopes   []string
}

// tokenBridge adapts oauth2.TokenSource to accountauth.TokenSource, and
// persists every silently-refreshed token back to the App DB so a restart
// doesn't force a re-login.
type tokenBridge struct {
	src       oauth2.TokenSource
	accountID string
	store     *appdb.AppStore
	logger    *slog.Logger
	nowFunc   func() string
}

// NewTokenSource builds a TokenSource for an account from its stored refresh
// token. The first call to Token exchanges eagerly if the cached token is
// expired; subsequent calls reuse the cached access token until it expires,
// mirroring oauth2.ReuseTokenSource.
func NewTokenSource(
	ctx context.Context, ep ServerEndpoint, acct appdb.Account, store *appdb.AppStore,
	logger *slog.Logger, nowFunc func() string,
) TokenSource {
	cfg := &oauth2.Config{
		ClientID: ep.ClientID,
		Scopes:   ep.Scopes,
		Endpoint: oauth2.Endpoint{TokenURL: ep.TokenURL},
	}

	seed := &oauth2.Token{RefreshToken: acct.Token}
	src := cfg.TokenSource(ctx, seed)

	return &tokenBridge{src: src, accountID: acct.ID, store: store, logger: logger, nowFunc: nowFunc}
}

// Token returns a current access token, refreshing it first if the cached
// one has expired. Every call writes the current refresh token (or, when
// there is none, the access token) to the App DB.
func (b *tokenBridge) Token() (string, error) {
	t, err := b.src.Token()
	if err != nil {
		b.logger.Warn("account token refresh failed",
			slog.String("account_id", b.accountID), slog.String("error", err.Error()))

		return "", fmt.Errorf("accountauth: refreshing token: %w", err)
	}

	// oauth2.Token carries the refresh token forward only when the server
	// issues a new one; persist whichever value is current so a crash
	// between refreshes never leaves a stale token in the App DB.
	persisted := t.RefreshToken
	if persisted == "" {
		persisted = t.AccessToken
	}

	if err := b.store.UpdateAccountToken(context.Background(), b.accountID, persisted, b.now()); err != nil {
		b.logger.Warn("persisting refreshed account token failed",
			slog.String("account_id", b.accountID), slog.String("error", err.Error()))
	}

	b.logger.Debug("account token acquired",
		slog.String("account_id", b.accountID), slog.Time("expiry", t.Expiry), slog.Bool("valid", t.Valid()))

	return t.AccessToken, nil
}

func (b *tokenBridge) now() string {
	if b.nowFunc != nil {
		return b.nowFunc()
	}

	return time.Now().UTC().Format(time.RFC3339)
}
