// Package auth provides Google OAuth2 authentication for mailnudge.
//
// Tokens are kept in the authorized-user token.json format written by
// Google's client libraries, next to the credentials.json they came from.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes covers reading and marking trigger mail, sending replies, and
// reading and writing calendar events.
var Scopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailSendScope,
	calendar.CalendarScope,
}

const expiryLayout = "2006-01-02T15:04:05.999999Z"

// storedToken is the on-disk token.json layout.
type storedToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// LoadGmailService returns an authenticated Gmail API service.
// credentialsPath should point to the OAuth client credentials.json file.
func LoadGmailService(ctx context.Context, credentialsPath string, logger *slog.Logger) (*gmail.Service, error) {
	client, err := HTTPClient(ctx, credentialsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

// LoadCalendarService returns an authenticated Google Calendar service.
func LoadCalendarService(ctx context.Context, credentialsPath string, logger *slog.Logger) (*calendar.Service, error) {
	client, err := HTTPClient(ctx, credentialsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// HTTPClient returns an authenticated HTTP client from credentials.json and
// the token.json beside it. A refreshed token is written back.
func HTTPClient(ctx context.Context, credentialsPath string, logger *slog.Logger) (*http.Client, error) {
	config, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	tokenPath := TokenPath(credentialsPath)
	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token from %s: %w", tokenPath, err)
	}

	ts := config.TokenSource(ctx, token)
	newToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		if saveErr := saveToken(tokenPath, newToken, config); saveErr != nil && logger != nil {
			logger.Warn("could not save refreshed token", "path", tokenPath, "err", saveErr)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// TokenPath returns where the token for credentialsPath is stored.
func TokenPath(credentialsPath string) string {
	return filepath.Join(filepath.Dir(credentialsPath), "token.json")
}

func loadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}

	config, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

func loadToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  st.Token,
		RefreshToken: st.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       parseExpiry(st.Expiry),
	}, nil
}

// parseExpiry accepts the microsecond layout the client libraries write
// as well as plain RFC 3339. Unparseable values yield the zero time.
func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{expiryLayout, "2006-01-02T15:04:05Z", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func saveToken(tokenPath string, token *oauth2.Token, config *oauth2.Config) error {
	st := storedToken{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       Scopes,
		Expiry:       token.Expiry.UTC().Format(expiryLayout),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath, data, 0o600)
}
