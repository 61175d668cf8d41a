// Package store persists per-user OAuth credentials.
//
// Each LINE user maps to exactly one credential bundle. Absence of a
// credential means the user has not linked their Google account yet.
package store

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned when no credential exists for a user.
var ErrNotFound = errors.New("credential not found")

// CredentialStore provides access to per-user OAuth token bundles.
type CredentialStore interface {
	// GetToken returns the stored token for the user, or ErrNotFound.
	GetToken(ctx context.Context, userID string) (*oauth2.Token, error)

	// SetToken stores or replaces the token for the user.
	SetToken(ctx context.Context, userID string, token *oauth2.Token) error

	// HasToken reports whether a credential exists for the user.
	HasToken(ctx context.Context, userID string) bool
}
