package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v41/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/pkg/models"
)

// newRESTClient points the go-github transport at an in-process server.
func newRESTClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rest := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	rest.BaseURL = base

	return &Client{rest: rest, username: "octocat"}
}

func TestListRepositories(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user/repos", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"node_id": "R_1", "full_name": "acme/api", "description": "Backend", "html_url": "https://github.com/acme/api", "updated_at": "2024-03-05T12:00:00Z"},
			{"node_id": "R_2", "full_name": "acme/web", "html_url": "https://github.com/acme/web"}
		]`)
	})

	rows, err := client.ListRepositories(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, models.Summary{
		Kind:        models.KindRepository,
		ID:          "R_1",
		Name:        "acme/api",
		Description: "Backend",
		URL:         "https://github.com/acme/api",
		UpdatedAt:   time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	}, rows[0])
	assert.Equal(t, "acme/web", rows[1].Name)
	assert.Empty(t, rows[1].Description)
}

func TestListRepositoriesPaginates(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", `</user/repos?page=2>; rel="next", </user/repos?page=2>; rel="last"`)
			fmt.Fprint(w, `[{"node_id": "R_1", "full_name": "acme/api"}]`)
			return
		}
		fmt.Fprint(w, `[{"node_id": "R_2", "full_name": "acme/web"}]`)
	})

	rows, err := client.ListRepositories(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "acme/api", rows[0].Name)
	assert.Equal(t, "acme/web", rows[1].Name)
}

func TestListRepositoriesUnauthorized(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Bad credentials"}`, http.StatusUnauthorized)
	})

	_, err := client.ListRepositories(context.Background())
	require.ErrorIs(t, err, engine.ErrUnauthorized)
}

func TestListProjects(t *testing.T) {
	var cursors []any
	client := newTestClient(t, func(req graphqlRequest) map[string]any {
		cursors = append(cursors, req.Variables["cursor"])
		if len(cursors) == 1 {
			return map[string]any{"data": map[string]any{"viewer": map[string]any{
				"projectsV2": map[string]any{
					"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "CURSOR_1"},
					"nodes": []any{map[string]any{
						"id":               "PVT_1",
						"title":            "Roadmap",
						"shortDescription": "Quarter planning",
						"url":              "https://github.com/orgs/acme/projects/7",
						"updatedAt":        "2024-03-05T12:00:00Z",
					}},
				},
			}}}
		}
		return map[string]any{"data": map[string]any{"viewer": map[string]any{
			"projectsV2": map[string]any{
				"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
				"nodes": []any{map[string]any{
					"id":        "PVT_2",
					"title":     "Bugs",
					"updatedAt": "2024-01-01T00:00:00Z",
				}},
			},
		}}}
	})

	rows, err := client.ListProjects(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, models.Summary{
		Kind:        models.KindProject,
		ID:          "PVT_1",
		Name:        "Roadmap",
		Description: "Quarter planning",
		URL:         "https://github.com/orgs/acme/projects/7",
		UpdatedAt:   time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	}, rows[0])
	assert.Equal(t, "Bugs", rows[1].Name)
	require.Equal(t, []any{nil, "CURSOR_1"}, cursors)
}

func TestListProjectsRateLimited(t *testing.T) {
	client := newTestClient(t, func(req graphqlRequest) map[string]any {
		return map[string]any{"errors": []any{
			map[string]any{"type": "RATE_LIMITED", "message": "API rate limit exceeded"},
		}}
	})

	_, err := client.ListProjects(context.Background())
	require.ErrorIs(t, err, engine.ErrRateLimited)
}
