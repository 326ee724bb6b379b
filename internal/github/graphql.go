package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/logging"
)

// graphqlRequest is the POST body of a GraphQL call.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlError is one entry of a GraphQL error response.
type graphqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// doGraphQL posts one query and decodes the data payload into out. The
// Projects V2 API is GraphQL-only, so this is the transport for everything
// go-github's REST surface does not cover.
func (c *Client) doGraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encoding graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading graphql response: %v", engine.ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return mapStatus(resp.StatusCode, fmt.Errorf("graphql status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var decoded graphqlResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decoding graphql response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return mapGraphQLErrors(decoded.Errors)
	}

	if out != nil {
		if err := json.Unmarshal(decoded.Data, out); err != nil {
			return fmt.Errorf("decoding graphql data: %w", err)
		}
	}
	return nil
}

// mapGraphQLErrors translates the errors array of a 200 response into the
// engine's taxonomy. GitHub reports schema and permission problems this way
// rather than through HTTP status codes.
func mapGraphQLErrors(errs []graphqlError) error {
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Message
		logging.Debug("graphql error", "type", e.Type, "message", e.Message)
	}
	joined := strings.Join(messages, "; ")

	switch errs[0].Type {
	case "NOT_FOUND":
		return fmt.Errorf("%w: %s", engine.ErrRemoteNotFound, joined)
	case "FORBIDDEN", "INSUFFICIENT_SCOPES":
		return fmt.Errorf("%w: %s", engine.ErrUnauthorized, joined)
	case "RATE_LIMITED":
		return fmt.Errorf("%w: %s", engine.ErrRateLimited, joined)
	default:
		return &engine.RejectedError{Reason: joined}
	}
}
