// Package github adapts the GitHub API to the engine's Remote and listing
// interfaces. Listings use the REST API; project boards are read and written
// through the Projects V2 GraphQL API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/logging"
)

// Client wraps the authenticated REST and GraphQL transports for one token.
type Client struct {
	rest       *github.Client
	httpClient *http.Client
	graphqlURL string
	username   string
}

// NewClient authenticates against the GitHub API with the given token and
// tests the connection. domain selects a GitHub Enterprise host; empty means
// github.com.
func NewClient(token, domain string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}
	if domain == "" {
		domain = "github.com"
	}
	apiURL, graphqlURL := apiEndpoints(domain)

	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)
	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	// Test the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		mapped := mapRESTError(resp, err)
		logging.Error("failed to test github token", "error", err)
		return nil, fmt.Errorf("testing github token: %w", mapped)
	}

	logging.Info("github authentication successful",
		"username", user.GetLogin())

	return &Client{
		rest:       client,
		httpClient: tc,
		graphqlURL: graphqlURL,
		username:   user.GetLogin(),
	}, nil
}

// Username returns the login the token authenticated as.
func (c *Client) Username() string {
	return c.username
}

// apiEndpoints returns the REST base URL and the GraphQL endpoint for a
// domain. GitHub Enterprise hosts both under the instance's own hostname.
func apiEndpoints(domain string) (restURL, graphqlURL string) {
	if domain == "github.com" {
		return "https://api.github.com/", "https://api.github.com/graphql"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain),
		fmt.Sprintf("https://%s/api/graphql", domain)
}

// mapRESTError translates a go-github failure into the engine's error
// taxonomy, keeping the original message.
func mapRESTError(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %v", engine.ErrRateLimited, err)
	}

	if resp == nil {
		return fmt.Errorf("%w: %v", engine.ErrTransient, err)
	}
	return mapStatus(resp.StatusCode, err)
}

func mapStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", engine.ErrUnauthorized, err)
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", engine.ErrRateLimited, err)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", engine.ErrRemoteNotFound, err)
	case status == http.StatusUnprocessableEntity:
		return &engine.RejectedError{Reason: err.Error()}
	case status >= 500:
		return fmt.Errorf("%w: %v", engine.ErrTransient, err)
	default:
		return err
	}
}
