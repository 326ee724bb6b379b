package jira

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// FetchProject reads a Jira project as a board. id is the project key. The
// board's fields are projections of built-in Jira concepts, so the schema is
// the same for every project; only the option lists vary by instance.
func (c *Client) FetchProject(ctx context.Context, id string) (*models.ProjectRecord, error) {
	logging.Debug("fetching jira project", "project", id)

	project, resp, err := c.client.Project.GetWithContext(ctx, id)
	if err != nil {
		logging.Error("failed to fetch jira project", "project", id, "error", err)
		return nil, mapJiraError(resp, err)
	}

	statuses, err := c.statusNames(ctx)
	if err != nil {
		return nil, err
	}
	priorities, err := c.priorityNames(ctx)
	if err != nil {
		return nil, err
	}

	number, _ := strconv.Atoi(project.ID)
	record := &models.ProjectRecord{
		ID:          project.Key,
		Number:      number,
		Name:        project.Name,
		Description: project.Description,
		State:       "open",
		URL:         c.baseURL + "/projects/" + project.Key,
		Fields: []models.Field{
			{Name: "Status", Type: models.FieldTypeSingleSelect, Options: statuses},
			{Name: "Priority", Type: models.FieldTypeSingleSelect, Options: priorities},
			{Name: "Labels", Type: models.FieldTypeText},
			{Name: "Due", Type: models.FieldTypeDate},
		},
	}

	jql := fmt.Sprintf("project = %q ORDER BY created ASC", project.Key)
	opts := &jira.SearchOptions{
		MaxResults: 100,
		Fields:     []string{"summary", "status", "priority", "labels", "duedate", "assignee", "fixVersions"},
	}
	for {
		issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			logging.Error("failed to search jira issues", "project", id, "error", err)
			return nil, mapJiraError(resp, err)
		}

		for _, issue := range issues {
			record.Items = append(record.Items, c.convertIssue(issue))
		}

		if resp.StartAt+len(issues) >= resp.Total || len(issues) == 0 {
			break
		}
		opts.StartAt = resp.StartAt + len(issues)
	}

	logging.Debug("fetched jira project",
		"project", id,
		"items", len(record.Items))
	return record, nil
}

func (c *Client) statusNames(ctx context.Context) ([]string, error) {
	statuses, resp, err := c.client.Status.GetAllStatusesWithContext(ctx)
	if err != nil {
		return nil, mapJiraError(resp, err)
	}

	// Workflows repeat status names; the board wants each once, in order.
	seen := make(map[string]bool)
	var names []string
	for _, s := range statuses {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		names = append(names, s.Name)
	}
	return names, nil
}

func (c *Client) priorityNames(ctx context.Context) ([]string, error) {
	priorities, resp, err := c.client.Priority.GetListWithContext(ctx)
	if err != nil {
		return nil, mapJiraError(resp, err)
	}

	var names []string
	for _, p := range priorities {
		names = append(names, p.Name)
	}
	return names, nil
}

func (c *Client) convertIssue(issue jira.Issue) models.Item {
	item := models.Item{
		ID:     issue.Key,
		Values: make(map[string]string),
	}
	f := issue.Fields
	if f == nil {
		return item
	}

	if f.Status != nil {
		item.Values["Status"] = f.Status.Name
	}
	if f.Priority != nil {
		item.Values["Priority"] = f.Priority.Name
	}
	if len(f.Labels) > 0 {
		item.Values["Labels"] = strings.Join(f.Labels, ", ")
	}
	if due := time.Time(f.Duedate); !due.IsZero() {
		item.Values["Due"] = due.Format("2006-01-02")
	}

	content := &models.Content{
		Kind:   models.ContentIssue,
		Number: issueNumber(issue.Key),
		Title:  f.Summary,
		State:  issueState(f.Status),
		URL:    c.baseURL + "/browse/" + issue.Key,
	}
	if f.Assignee != nil {
		name := f.Assignee.DisplayName
		if name == "" {
			name = f.Assignee.Name
		}
		content.Assignees = []string{name}
	}
	if len(f.FixVersions) > 0 {
		content.Milestone = f.FixVersions[0].Name
	}
	item.Content = content

	return item
}

// issueState folds Jira's status categories into the model's open/closed.
func issueState(status *jira.Status) string {
	if status == nil {
		return ""
	}
	if status.StatusCategory.Key == "done" {
		return "closed"
	}
	return "open"
}

// issueNumber extracts the numeric part of an issue key like "ENG-42".
func issueNumber(key string) int {
	i := strings.LastIndex(key, "-")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return 0
	}
	return n
}
