package jira

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	jira "github.com/andygrunwald/go-jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/pkg/models"
)

func boardMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/project/ENG", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "10000", "key": "ENG", "name": "Engineering", "description": "Core team"}`)
	})
	mux.HandleFunc("/rest/api/2/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"name": "To Do", "statusCategory": {"key": "new"}},
			{"name": "In Progress", "statusCategory": {"key": "indeterminate"}},
			{"name": "Done", "statusCategory": {"key": "done"}},
			{"name": "To Do", "statusCategory": {"key": "new"}}
		]`)
	})
	mux.HandleFunc("/rest/api/2/priority", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"name": "High"}, {"name": "Medium"}, {"name": "Low"}]`)
	})
	return mux
}

func TestFetchProject(t *testing.T) {
	mux := boardMux(t)
	var jql string
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		jql = r.URL.Query().Get("jql")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"startAt": 0, "maxResults": 100, "total": 2, "issues": [
			{"id": "10101", "key": "ENG-1", "fields": {
				"summary": "Fix login flow",
				"status": {"name": "In Progress", "statusCategory": {"key": "indeterminate"}},
				"priority": {"name": "High"},
				"labels": ["backend", "auth"],
				"duedate": "2024-04-01",
				"assignee": {"displayName": "Alice"},
				"fixVersions": [{"name": "v1"}]
			}},
			{"id": "10102", "key": "ENG-2", "fields": {
				"summary": "Write docs",
				"status": {"name": "Done", "statusCategory": {"key": "done"}}
			}}
		]}`)
	})
	client := newTestClient(t, mux)

	record, err := client.FetchProject(context.Background(), "ENG")
	require.NoError(t, err)

	assert.Equal(t, "ENG", record.ID)
	assert.Equal(t, 10000, record.Number)
	assert.Equal(t, "Engineering", record.Name)
	assert.Equal(t, "Core team", record.Description)
	assert.Equal(t, "open", record.State)
	assert.Equal(t, client.baseURL+"/projects/ENG", record.URL)
	assert.Equal(t, `project = "ENG" ORDER BY created ASC`, jql)

	require.Len(t, record.Fields, 4)
	assert.Equal(t, models.Field{
		Name:    "Status",
		Type:    models.FieldTypeSingleSelect,
		Options: []string{"To Do", "In Progress", "Done"},
	}, record.Fields[0])
	assert.Equal(t, models.Field{
		Name:    "Priority",
		Type:    models.FieldTypeSingleSelect,
		Options: []string{"High", "Medium", "Low"},
	}, record.Fields[1])
	assert.Equal(t, models.Field{Name: "Labels", Type: models.FieldTypeText}, record.Fields[2])
	assert.Equal(t, models.Field{Name: "Due", Type: models.FieldTypeDate}, record.Fields[3])

	require.Len(t, record.Items, 2)

	first := record.Items[0]
	assert.Equal(t, "ENG-1", first.ID)
	assert.Equal(t, map[string]string{
		"Status":   "In Progress",
		"Priority": "High",
		"Labels":   "backend, auth",
		"Due":      "2024-04-01",
	}, first.Values)
	require.NotNil(t, first.Content)
	assert.Equal(t, models.ContentIssue, first.Content.Kind)
	assert.Equal(t, 1, first.Content.Number)
	assert.Equal(t, "Fix login flow", first.Content.Title)
	assert.Equal(t, "open", first.Content.State)
	assert.Equal(t, client.baseURL+"/browse/ENG-1", first.Content.URL)
	assert.Equal(t, []string{"Alice"}, first.Content.Assignees)
	assert.Equal(t, "v1", first.Content.Milestone)

	second := record.Items[1]
	assert.Equal(t, "ENG-2", second.ID)
	assert.Equal(t, map[string]string{"Status": "Done"}, second.Values)
	require.NotNil(t, second.Content)
	assert.Equal(t, "closed", second.Content.State)
}

func TestFetchProjectPaginatesIssues(t *testing.T) {
	mux := boardMux(t)
	var starts []string
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		starts = append(starts, r.URL.Query().Get("startAt"))
		w.Header().Set("Content-Type", "application/json")
		if len(starts) == 1 {
			fmt.Fprint(w, `{"startAt": 0, "maxResults": 1, "total": 2, "issues": [
				{"id": "10101", "key": "ENG-1", "fields": {"summary": "First"}}
			]}`)
			return
		}
		fmt.Fprint(w, `{"startAt": 1, "maxResults": 1, "total": 2, "issues": [
			{"id": "10102", "key": "ENG-2", "fields": {"summary": "Second"}}
		]}`)
	})
	client := newTestClient(t, mux)

	record, err := client.FetchProject(context.Background(), "ENG")
	require.NoError(t, err)

	require.Len(t, record.Items, 2)
	assert.Equal(t, "ENG-1", record.Items[0].ID)
	assert.Equal(t, "ENG-2", record.Items[1].ID)
	assert.Len(t, starts, 2)
}

func TestFetchProjectNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages": ["No project could be found"]}`, http.StatusNotFound)
	})
	client := newTestClient(t, mux)

	_, err := client.FetchProject(context.Background(), "GONE")
	require.ErrorIs(t, err, engine.ErrRemoteNotFound)
}

func TestConvertIssueMinimal(t *testing.T) {
	c := &Client{baseURL: "https://jira.example.com"}

	item := c.convertIssue(jira.Issue{Key: "ENG-7"})
	assert.Equal(t, "ENG-7", item.ID)
	assert.NotNil(t, item.Values)
	assert.Empty(t, item.Values)
	assert.Nil(t, item.Content)
}

func TestIssueState(t *testing.T) {
	assert.Equal(t, "", issueState(nil))
	assert.Equal(t, "open", issueState(&jira.Status{
		Name:           "To Do",
		StatusCategory: jira.StatusCategory{Key: "new"},
	}))
	assert.Equal(t, "closed", issueState(&jira.Status{
		Name:           "Done",
		StatusCategory: jira.StatusCategory{Key: "done"},
	}))
}

func TestIssueNumber(t *testing.T) {
	assert.Equal(t, 42, issueNumber("ENG-42"))
	assert.Equal(t, 7, issueNumber("A-B-7"))
	assert.Equal(t, 0, issueNumber("ENG"))
	assert.Equal(t, 0, issueNumber("ENG-abc"))
}
