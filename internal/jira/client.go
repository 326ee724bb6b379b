// Package jira adapts a Jira instance to the engine's Remote and listing
// interfaces. A Jira project is exposed as a board whose schema is fixed:
// Status and Priority single-selects, a Labels text field, and a Due date.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// Client wraps an authenticated go-jira client for one instance.
type Client struct {
	client  *jira.Client
	baseURL string
}

// NewClient authenticates against a Jira instance with basic auth (username
// plus API token) and tests the connection.
func NewClient(baseURL, username, token string) (*Client, error) {
	if baseURL == "" || username == "" || token == "" {
		return nil, fmt.Errorf("jira url, username and token are all required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	logging.Info("jira configuration",
		"url", baseURL,
		"username", username,
		"token", logging.MaskSensitive(token))

	tp := jira.BasicAuthTransport{
		Username: username,
		Password: token,
	}
	client, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("creating jira client: %w", err)
	}

	// Test the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	self, resp, err := client.User.GetSelfWithContext(ctx)
	if err != nil {
		mapped := mapJiraError(resp, err)
		logging.Error("failed to test jira token", "error", err)
		return nil, fmt.Errorf("testing jira token: %w", mapped)
	}

	logging.Info("jira authentication successful", "username", self.DisplayName)

	return &Client{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// ListProjects returns the projects the account can browse.
func (c *Client) ListProjects(ctx context.Context) ([]models.Summary, error) {
	logging.Debug("listing jira projects")

	list, resp, err := c.client.Project.GetListWithContext(ctx)
	if err != nil {
		logging.Error("failed to list jira projects", "error", err)
		return nil, mapJiraError(resp, err)
	}

	var rows []models.Summary
	for _, p := range *list {
		rows = append(rows, models.Summary{
			Kind: models.KindProject,
			ID:   p.Key,
			Name: p.Name,
			URL:  c.baseURL + "/projects/" + p.Key,
		})
	}

	logging.Debug("listed jira projects", "count", len(rows))
	return rows, nil
}

// ListRepositories returns an empty listing. Jira tracks issues, not source
// repositories.
func (c *Client) ListRepositories(ctx context.Context) ([]models.Summary, error) {
	logging.Debug("jira has no repositories to list")
	return []models.Summary{}, nil
}

// mapJiraError translates a go-jira failure into the engine's error
// taxonomy, keeping the original message.
func mapJiraError(resp *jira.Response, err error) error {
	if resp == nil {
		return fmt.Errorf("%w: %v", engine.ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", engine.ErrUnauthorized, err)
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", engine.ErrRateLimited, err)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", engine.ErrRemoteNotFound, err)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return &engine.RejectedError{Reason: err.Error()}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %v", engine.ErrTransient, err)
	default:
		return err
	}
}
