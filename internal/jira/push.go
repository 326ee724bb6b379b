package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// PushEdits applies local edits to the Jira project. Value edits map to
// field updates and workflow transitions; schema edits are refused because
// the board's fields mirror fixed Jira concepts.
func (c *Client) PushEdits(ctx context.Context, id string, edits engine.ChangeSet) error {
	if edits.Empty() {
		return nil
	}
	logging.Info("pushing edits", "project", id, "count", len(edits.Edits))

	for _, edit := range edits.Edits {
		logging.Debug("applying edit", "project", id, "edit", edit.Describe())
		if err := c.pushEdit(ctx, id, edit); err != nil {
			logging.Error("failed to push edit",
				"project", id,
				"edit", edit.Describe(),
				"error", err)
			return fmt.Errorf("pushing %s: %w", edit.Describe(), err)
		}
	}

	logging.Info("pushed edits", "project", id, "count", len(edits.Edits))
	return nil
}

func (c *Client) pushEdit(ctx context.Context, id string, edit engine.Edit) error {
	switch edit.Kind {
	case engine.EditValueChanged:
		return c.applyValue(ctx, edit.ItemID, edit.FieldName, edit.NewValue)
	case engine.EditItemAdded:
		return c.createIssue(ctx, id, edit.Item)
	case engine.EditItemRemoved:
		resp, err := c.client.Issue.DeleteWithContext(ctx, edit.ItemID)
		if err != nil {
			return mapJiraError(resp, err)
		}
		logging.Debug("deleted issue", "issue", edit.ItemID)
		return nil
	default:
		return &engine.RejectedError{
			Reason: fmt.Sprintf("jira boards have a fixed schema, cannot apply %s", edit.Describe()),
		}
	}
}

func (c *Client) applyValue(ctx context.Context, itemID, field, value string) error {
	switch field {
	case "Status":
		if value == "" {
			return &engine.RejectedError{Reason: "status cannot be unset"}
		}
		return c.transitionIssue(ctx, itemID, value)
	case "Priority":
		var priority any
		if value != "" {
			priority = map[string]any{"name": value}
		}
		return c.updateFields(ctx, itemID, map[string]any{"priority": priority})
	case "Labels":
		return c.updateFields(ctx, itemID, map[string]any{"labels": splitLabels(value)})
	case "Due":
		var due any
		if value != "" {
			due = value
		}
		return c.updateFields(ctx, itemID, map[string]any{"duedate": due})
	default:
		return &engine.RejectedError{Reason: fmt.Sprintf("unknown field %q", field)}
	}
}

func (c *Client) updateFields(ctx context.Context, itemID string, fields map[string]any) error {
	resp, err := c.client.Issue.UpdateIssueWithContext(ctx, itemID, map[string]any{"fields": fields})
	if err != nil {
		return mapJiraError(resp, err)
	}
	return nil
}

// transitionIssue moves an issue to the named status. Jira only allows the
// transitions its workflow offers from the current status.
func (c *Client) transitionIssue(ctx context.Context, itemID, target string) error {
	transitions, resp, err := c.client.Issue.GetTransitionsWithContext(ctx, itemID)
	if err != nil {
		return mapJiraError(resp, err)
	}

	for _, tr := range transitions {
		if tr.To.Name != target {
			continue
		}
		resp, err := c.client.Issue.DoTransitionWithContext(ctx, itemID, tr.ID)
		if err != nil {
			return mapJiraError(resp, err)
		}
		logging.Debug("transitioned issue", "issue", itemID, "status", target)
		return nil
	}
	return &engine.RejectedError{
		Reason: fmt.Sprintf("no transition to status %q from the issue's current status", target),
	}
}

func (c *Client) createIssue(ctx context.Context, projectKey string, item *models.Item) error {
	if item == nil {
		return &engine.RejectedError{Reason: "item edit carries no row"}
	}

	title := "Untitled"
	if item.Content != nil && item.Content.Title != "" {
		title = item.Content.Title
	}

	fields := &jira.IssueFields{
		Project: jira.Project{Key: projectKey},
		Summary: title,
		Type:    jira.IssueType{Name: "Task"},
	}
	if v := item.Values["Priority"]; v != "" {
		fields.Priority = &jira.Priority{Name: v}
	}
	if v := item.Values["Labels"]; v != "" {
		fields.Labels = splitLabels(v)
	}
	if v := item.Values["Due"]; v != "" {
		due, err := time.Parse("2006-01-02", v)
		if err != nil {
			return &engine.RejectedError{
				Reason: fmt.Sprintf("field %q expects YYYY-MM-DD, got %q", "Due", v),
			}
		}
		fields.Duedate = jira.Date(due)
	}

	created, resp, err := c.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: fields})
	if err != nil {
		return mapJiraError(resp, err)
	}
	logging.Debug("created issue", "local_id", item.ID, "key", created.Key)

	// The status can only be set after creation, through a transition
	// against the issue's real key.
	if v := item.Values["Status"]; v != "" {
		return c.transitionIssue(ctx, created.Key, v)
	}
	return nil
}

// splitLabels turns the board's comma-joined label value back into Jira's
// label list. The result is never nil so a cleared value serializes as an
// empty array.
func splitLabels(value string) []string {
	labels := []string{}
	for _, label := range strings.Split(value, ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
