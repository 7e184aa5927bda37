package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/keithriordan/foyer/internal/shared"
)

// DefaultApiLeapBaseURL is the ApiLeap URL-to-image endpoint.
const DefaultApiLeapBaseURL = "https://apileap.com/api/screenshot/v1/urltoimage"

// ApiLeapService implements [ScreenshotSource] with the ApiLeap screenshot API.
type ApiLeapService struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
}

// NewApiLeapService creates a screenshot client. An empty baseURL uses [DefaultApiLeapBaseURL].
func NewApiLeapService(baseURL, accessKey string, client *http.Client) *ApiLeapService {
	if baseURL == "" {
		baseURL = DefaultApiLeapBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ApiLeapService{baseURL: baseURL, accessKey: accessKey, httpClient: client}
}

// Capture requests a full-page JPEG of pageURL and returns the response body unread.
func (a *ApiLeapService) Capture(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	if a.accessKey == "" {
		return nil, fmt.Errorf("%w: apileap access key", shared.ErrMissingCredentials)
	}

	params := url.Values{
		"url":        {pageURL},
		"access_key": {a.accessKey},
		"full_page":  {"true"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrScreenshot, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", shared.ErrScreenshot, resp.StatusCode)
	}
	return resp.Body, nil
}
