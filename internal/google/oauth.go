// Package google handles OAuth2 configuration and token management for the
// Google Calendar API.
//
// The authorization flow is the web redirect flow: the bot sends the user a
// consent URL carrying their LINE user ID as the OAuth state parameter, and
// the HTTP callback exchanges the returned code for a token bundle which is
// persisted in the credential store under that user ID.
package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// NewOAuthConfig returns the OAuth2 configuration for Google Calendar access.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes: []string{
			calendar.CalendarEventsScope, // read and write events on the user's calendars
		},
	}
}

// AuthURL builds the consent URL for a user. The LINE user ID travels as the
// opaque state parameter so the callback can associate the exchanged
// credential with the right user. Offline access with forced consent ensures
// a refresh token is issued even on re-authorization.
func AuthURL(conf *oauth2.Config, userID string) string {
	return conf.AuthCodeURL(userID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token bundle.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}
