package services

import (
	"context"
	"fmt"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// YouTubeReadonlyScope grants read access to the account's YouTube data.
const YouTubeReadonlyScope = "https://www.googleapis.com/auth/youtube.readonly"

// NewGoogleOAuthConfig builds the consent configuration for the YouTube library.
func NewGoogleOAuthConfig(cfg shared.GoogleConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: google client id and secret", shared.ErrMissingCredentials)
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{YouTubeReadonlyScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// AuthURL returns the consent URL for state. Offline access with a forced prompt makes Google return a refresh token.
func AuthURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, config *oauth2.Config, code string) (*oauth2.Token, error) {
	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthorizationRequired, err)
	}
	return token, nil
}

// TokenFromCredential converts a stored credential to an [oauth2.Token].
func TokenFromCredential(c *models.YouTubeCredential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// CredentialFromToken converts token to a storable credential for userID.
func CredentialFromToken(userID int64, token *oauth2.Token) *models.YouTubeCredential {
	return &models.YouTubeCredential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry.UTC(),
	}
}
