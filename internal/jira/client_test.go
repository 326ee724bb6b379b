package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	jira "github.com/andygrunwald/go-jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/pkg/models"
)

// newTestClient points a Client at an in-process Jira mock without running
// the NewClient token test.
func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := jira.NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	return &Client{client: client, baseURL: srv.URL}
}

func TestNewClientValidation(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		username string
		token    string
	}{
		{name: "missing url", username: "user@example.com", token: "tok"},
		{name: "missing username", url: "https://example.atlassian.net", token: "tok"},
		{name: "missing token", url: "https://example.atlassian.net", username: "user@example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(tc.url, tc.username, tc.token)
			require.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestListProjects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/project", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": "10000", "key": "ENG", "name": "Engineering"},
			{"id": "10001", "key": "OPS", "name": "Operations"}
		]`)
	})
	client := newTestClient(t, mux)

	rows, err := client.ListProjects(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, models.Summary{
		Kind: models.KindProject,
		ID:   "ENG",
		Name: "Engineering",
		URL:  client.baseURL + "/projects/ENG",
	}, rows[0])
	assert.Equal(t, "OPS", rows[1].ID)
}

func TestListRepositoriesIsEmpty(t *testing.T) {
	client := &Client{}

	rows, err := client.ListRepositories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMapJiraError(t *testing.T) {
	cause := fmt.Errorf("request failed")
	respWith := func(status int) *jira.Response {
		return &jira.Response{Response: &http.Response{StatusCode: status}}
	}

	testCases := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: engine.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: engine.ErrRateLimited},
		{name: "too many requests", status: http.StatusTooManyRequests, want: engine.ErrRateLimited},
		{name: "not found", status: http.StatusNotFound, want: engine.ErrRemoteNotFound},
		{name: "server error", status: http.StatusServiceUnavailable, want: engine.ErrTransient},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapJiraError(respWith(tc.status), cause)
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("no response means transient", func(t *testing.T) {
		err := mapJiraError(nil, cause)
		require.ErrorIs(t, err, engine.ErrTransient)
	})

	t.Run("bad request becomes rejection", func(t *testing.T) {
		err := mapJiraError(respWith(http.StatusBadRequest), cause)
		var rejected *engine.RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "request failed", rejected.Reason)
	})
}
