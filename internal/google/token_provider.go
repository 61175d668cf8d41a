package google

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/teemow/yoteibot/internal/logging"
	"github.com/teemow/yoteibot/internal/store"
)

// TokenProvider is an interface for providing OAuth tokens for Google APIs.
// This abstraction allows tests to substitute a fake without a database.
type TokenProvider interface {
	// TokenSourceForUser returns an auto-refreshing token source for the user.
	TokenSourceForUser(ctx context.Context, userID string) (oauth2.TokenSource, error)

	// HasTokenForUser checks if a credential exists for the user.
	HasTokenForUser(ctx context.Context, userID string) bool
}

// StoreTokenProvider provides tokens from the credential store, wrapping them
// in a refreshing token source. Refreshed tokens are written back so the
// stored refresh token stays current.
type StoreTokenProvider struct {
	conf  *oauth2.Config
	creds store.CredentialStore
}

// NewStoreTokenProvider creates a token provider backed by the given store.
func NewStoreTokenProvider(conf *oauth2.Config, creds store.CredentialStore) *StoreTokenProvider {
	return &StoreTokenProvider{conf: conf, creds: creds}
}

// TokenSourceForUser returns an auto-refreshing token source for the user.
func (p *StoreTokenProvider) TokenSourceForUser(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	token, err := p.creds.GetToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for user: %w", err)
	}

	return &persistingTokenSource{
		ctx:      ctx,
		base:     p.conf.TokenSource(ctx, token),
		creds:    p.creds,
		userID:   userID,
		lastSeen: token.AccessToken,
	}, nil
}

// HasTokenForUser checks if a credential exists for the user.
func (p *StoreTokenProvider) HasTokenForUser(ctx context.Context, userID string) bool {
	return p.creds.HasToken(ctx, userID)
}

// persistingTokenSource wraps a refreshing token source and writes refreshed
// tokens back to the credential store. Persistence failures are logged, not
// fatal; the refreshed token is still usable for the current call.
type persistingTokenSource struct {
	ctx      context.Context
	base     oauth2.TokenSource
	creds    store.CredentialStore
	userID   string
	lastSeen string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != s.lastSeen {
		if err := s.creds.SetToken(s.ctx, s.userID, token); err != nil {
			slog.Warn("failed to persist refreshed token",
				logging.UserHash(s.userID), logging.Err(err))
		}
		s.lastSeen = token.AccessToken
	}

	return token, nil
}
