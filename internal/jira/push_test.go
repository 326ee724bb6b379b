package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/pkg/models"
)

func TestPushEditsEmpty(t *testing.T) {
	client := &Client{}
	require.NoError(t, client.PushEdits(context.Background(), "ENG", engine.ChangeSet{}))
}

func TestPushValueEdits(t *testing.T) {
	var updates []string
	var transitionBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/ENG-1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		updates = append(updates, string(body))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/rest/api/2/issue/ENG-1/transitions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"transitions": [
				{"id": "31", "name": "Start", "to": {"name": "In Progress"}},
				{"id": "41", "name": "Finish", "to": {"name": "Done"}}
			]}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		transitionBody = string(body)
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, mux)

	edits := []engine.Edit{
		{Kind: engine.EditValueChanged, ItemID: "ENG-1", FieldName: "Priority", NewValue: "High"},
		{Kind: engine.EditValueChanged, ItemID: "ENG-1", FieldName: "Labels", NewValue: "backend, auth"},
		{Kind: engine.EditValueChanged, ItemID: "ENG-1", FieldName: "Due", OldValue: "2024-04-01", NewValue: ""},
		{Kind: engine.EditValueChanged, ItemID: "ENG-1", FieldName: "Status", NewValue: "Done"},
	}
	require.NoError(t, client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: edits}))

	require.Len(t, updates, 3)
	assert.JSONEq(t, `{"fields": {"priority": {"name": "High"}}}`, updates[0])
	assert.JSONEq(t, `{"fields": {"labels": ["backend", "auth"]}}`, updates[1])
	assert.JSONEq(t, `{"fields": {"duedate": null}}`, updates[2])

	// The transition payload carries extra empty sections; only the chosen
	// transition id matters.
	var transition struct {
		Transition struct {
			ID string `json:"id"`
		} `json:"transition"`
	}
	require.NoError(t, json.Unmarshal([]byte(transitionBody), &transition))
	assert.Equal(t, "41", transition.Transition.ID)
}

func TestPushStatusTransitionUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/ENG-1/transitions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"transitions": [
			{"id": "31", "name": "Start", "to": {"name": "In Progress"}}
		]}`)
	})
	client := newTestClient(t, mux)

	edits := []engine.Edit{
		{Kind: engine.EditValueChanged, ItemID: "ENG-1", FieldName: "Status", NewValue: "Done"},
	}
	err := client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: edits})

	var rejected *engine.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, `no transition to status "Done"`)
}

func TestPushCreatesIssue(t *testing.T) {
	var createBody map[string]any
	var transitioned bool
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "10113", "key": "ENG-3"}`)
	})
	mux.HandleFunc("/rest/api/2/issue/ENG-3/transitions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"transitions": [{"id": "21", "name": "Start", "to": {"name": "In Progress"}}]}`)
			return
		}
		transitioned = true
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, mux)

	edits := []engine.Edit{
		{Kind: engine.EditItemAdded, ItemID: "local-1", Item: &models.Item{
			ID: "local-1",
			Values: map[string]string{
				"Status":   "In Progress",
				"Priority": "High",
				"Labels":   "backend",
			},
			Content: &models.Content{Kind: models.ContentIssue, Title: "Spike caching"},
		}},
	}
	require.NoError(t, client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: edits}))

	fields, ok := createBody["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"key": "ENG"}, fields["project"])
	assert.Equal(t, "Spike caching", fields["summary"])
	assert.Equal(t, map[string]any{"name": "Task"}, fields["issuetype"])
	assert.Equal(t, map[string]any{"name": "High"}, fields["priority"])
	assert.Equal(t, []any{"backend"}, fields["labels"])

	// The status lands through a transition against the created key.
	assert.True(t, transitioned)
}

func TestPushCreateRejectsBadDueDate(t *testing.T) {
	client := &Client{}

	edits := []engine.Edit{
		{Kind: engine.EditItemAdded, ItemID: "local-1", Item: &models.Item{
			ID:     "local-1",
			Values: map[string]string{"Due": "soon"},
		}},
	}
	err := client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: edits})

	var rejected *engine.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "YYYY-MM-DD")
}

func TestPushDeletesIssue(t *testing.T) {
	var deleted bool
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/ENG-9", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, mux)

	edits := []engine.Edit{
		{Kind: engine.EditItemRemoved, ItemID: "ENG-9"},
	}
	require.NoError(t, client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: edits}))
	assert.True(t, deleted)
}

func TestPushSchemaEditsRejected(t *testing.T) {
	client := &Client{}

	testCases := []struct {
		name string
		edit engine.Edit
	}{
		{
			name: "field added",
			edit: engine.Edit{Kind: engine.EditFieldAdded, FieldName: "Estimate", Field: &models.Field{
				Name: "Estimate", Type: models.FieldTypeNumber,
			}},
		},
		{
			name: "field removed",
			edit: engine.Edit{Kind: engine.EditFieldRemoved, FieldName: "Priority"},
		},
		{
			name: "field type changed",
			edit: engine.Edit{
				Kind: engine.EditFieldTypeChanged, FieldName: "Labels",
				OldType: models.FieldTypeText, NewType: models.FieldTypeNumber,
				Field: &models.Field{Name: "Labels", Type: models.FieldTypeNumber},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: []engine.Edit{tc.edit}})
			var rejected *engine.RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Contains(t, rejected.Reason, "fixed schema")
		})
	}
}

func TestPushUnknownFieldRejected(t *testing.T) {
	client := &Client{}

	edits := []engine.Edit{
		{Kind: engine.EditValueChanged, ItemID: "ENG-1", FieldName: "Ghost", NewValue: "x"},
	}
	err := client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: edits})

	var rejected *engine.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, `unknown field "Ghost"`)
}

func TestPushStatusUnsetRejected(t *testing.T) {
	client := &Client{}

	edits := []engine.Edit{
		{Kind: engine.EditValueChanged, ItemID: "ENG-1", FieldName: "Status", NewValue: ""},
	}
	err := client.PushEdits(context.Background(), "ENG", engine.ChangeSet{Edits: edits})

	var rejected *engine.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "status cannot be unset")
}

func TestSplitLabels(t *testing.T) {
	assert.Equal(t, []string{}, splitLabels(""))
	assert.Equal(t, []string{"backend", "auth"}, splitLabels("backend, auth"))
	assert.Equal(t, []string{"a", "b"}, splitLabels(" a ,, b "))
}
