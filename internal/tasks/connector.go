package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Connector resolves an authenticated [services.VideoSource] for a user.
type Connector interface {
	Connect(ctx context.Context, user models.User) (services.VideoSource, error)
}

// ConnectorFunc adapts a function to [Connector].
type ConnectorFunc func(ctx context.Context, user models.User) (services.VideoSource, error)

func (f ConnectorFunc) Connect(ctx context.Context, user models.User) (services.VideoSource, error) {
	return f(ctx, user)
}

// YouTubeConnector builds a [services.YouTubeService] from the token stored for the user.
//
// The token is refreshed up front so an expired grant surfaces as [shared.ErrAuthorizationRequired]
// before any playlist is fetched. A refreshed token is written back to Credentials.
type YouTubeConnector struct {
	OAuth       *oauth2.Config
	Credentials *repositories.CredentialRepository
	BaseURL     string
	Limiter     *rate.Limiter
}

func (c *YouTubeConnector) Connect(ctx context.Context, user models.User) (services.VideoSource, error) {
	if c.OAuth == nil {
		return nil, fmt.Errorf("%w: google oauth client is not configured", shared.ErrMissingConfig)
	}

	cred, err := c.Credentials.Get(user.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: no youtube credentials for %s", shared.ErrAuthorizationRequired, user.Email)
	} else if err != nil {
		return nil, err
	}

	stored := services.TokenFromCredential(cred)
	ts := c.OAuth.TokenSource(ctx, stored)

	token, err := ts.Token()
	if err != nil {
		return nil, refreshError(err)
	}

	if token.AccessToken != stored.AccessToken {
		if err := c.Credentials.Save(services.CredentialFromToken(user.ID, token)); err != nil {
			return nil, fmt.Errorf("failed to store refreshed token: %w", err)
		}
	}

	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, ts))
	return services.NewYouTubeService(c.BaseURL, client, c.Limiter), nil
}

// refreshError maps a failed refresh. Only a rejection by the token endpoint means the grant is
// gone; network failures and upstream 5xx answers may succeed on a later attempt.
func refreshError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && (re.Response == nil || re.Response.StatusCode < 500) {
		return fmt.Errorf("%w: token refresh failed: %v", shared.ErrAuthorizationRequired, err)
	}
	return fmt.Errorf("%w: token refresh failed: %v", shared.ErrAPIRequest, err)
}
