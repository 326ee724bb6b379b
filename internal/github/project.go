package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// projectQuery reads one board page by node id: the schema with option and
// iteration names, and a page of items with their backing content and field
// values. Fields like TITLE or ASSIGNEES have no data type of their own
// here; their information arrives with the item content.
const projectQuery = `
query($id: ID!, $cursor: String) {
  node(id: $id) {
    ... on ProjectV2 {
      id
      title
      number
      closed
      shortDescription
      url
      createdAt
      updatedAt
      fields(first: 50) {
        nodes {
          ... on ProjectV2FieldCommon {
            name
            dataType
          }
          ... on ProjectV2SingleSelectField {
            options {
              id
              name
            }
          }
          ... on ProjectV2IterationField {
            configuration {
              iterations {
                id
                title
              }
              completedIterations {
                id
                title
              }
            }
          }
        }
      }
      items(first: 100, after: $cursor) {
        pageInfo {
          hasNextPage
          endCursor
        }
        nodes {
          id
          content {
            __typename
            ... on Issue {
              title
              number
              state
              url
              repository {
                nameWithOwner
              }
              milestone {
                title
              }
              assignees(first: 10) {
                nodes {
                  login
                }
              }
            }
            ... on PullRequest {
              title
              number
              state
              url
              repository {
                nameWithOwner
              }
              milestone {
                title
              }
              assignees(first: 10) {
                nodes {
                  login
                }
              }
            }
            ... on DraftIssue {
              title
            }
          }
          fieldValues(first: 50) {
            nodes {
              ... on ProjectV2ItemFieldTextValue {
                text
                field {
                  ... on ProjectV2FieldCommon {
                    name
                  }
                }
              }
              ... on ProjectV2ItemFieldNumberValue {
                number
                field {
                  ... on ProjectV2FieldCommon {
                    name
                  }
                }
              }
              ... on ProjectV2ItemFieldDateValue {
                date
                field {
                  ... on ProjectV2FieldCommon {
                    name
                  }
                }
              }
              ... on ProjectV2ItemFieldSingleSelectValue {
                name
                field {
                  ... on ProjectV2FieldCommon {
                    name
                  }
                }
              }
              ... on ProjectV2ItemFieldIterationValue {
                title
                field {
                  ... on ProjectV2FieldCommon {
                    name
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

type projectQueryData struct {
	Node *projectNode `json:"node"`
}

type projectNode struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Number           int       `json:"number"`
	Closed           bool      `json:"closed"`
	ShortDescription string    `json:"shortDescription"`
	URL              string    `json:"url"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Fields           struct {
		Nodes []fieldNode `json:"nodes"`
	} `json:"fields"`
	Items struct {
		PageInfo pageInfo   `json:"pageInfo"`
		Nodes    []itemNode `json:"nodes"`
	} `json:"items"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type fieldNode struct {
	Name          string           `json:"name"`
	DataType      string           `json:"dataType"`
	Options       []optionNode     `json:"options"`
	Configuration *iterationConfig `json:"configuration"`
}

type optionNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type iterationConfig struct {
	Iterations          []iterationNode `json:"iterations"`
	CompletedIterations []iterationNode `json:"completedIterations"`
}

type iterationNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type itemNode struct {
	ID          string       `json:"id"`
	Content     *contentNode `json:"content"`
	FieldValues struct {
		Nodes []valueNode `json:"nodes"`
	} `json:"fieldValues"`
}

type contentNode struct {
	Typename   string `json:"__typename"`
	Title      string `json:"title"`
	Number     int    `json:"number"`
	State      string `json:"state"`
	URL        string `json:"url"`
	Repository *struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	Assignees struct {
		Nodes []struct {
			Login string `json:"login"`
		} `json:"nodes"`
	} `json:"assignees"`
}

// valueNode is the union of the field value fragments; exactly one of the
// value pointers is set per node.
type valueNode struct {
	Text   *string  `json:"text"`
	Number *float64 `json:"number"`
	Date   *string  `json:"date"`
	Name   *string  `json:"name"`
	Title  *string  `json:"title"`
	Field  *struct {
		Name string `json:"name"`
	} `json:"field"`
}

// FetchProject reads the complete board state for a Projects V2 node id,
// paging through items until exhausted.
func (c *Client) FetchProject(ctx context.Context, id string) (*models.ProjectRecord, error) {
	logging.Debug("fetching project", "project", id)

	var record *models.ProjectRecord
	fieldSet := make(map[string]models.FieldType)
	cursor := ""

	for {
		variables := map[string]any{"id": id}
		if cursor != "" {
			variables["cursor"] = cursor
		}

		var data projectQueryData
		if err := c.doGraphQL(ctx, projectQuery, variables, &data); err != nil {
			logging.Error("failed to fetch project", "project", id, "error", err)
			return nil, err
		}
		if data.Node == nil || data.Node.ID == "" {
			return nil, fmt.Errorf("%w: %s", engine.ErrRemoteNotFound, id)
		}
		node := data.Node

		if record == nil {
			record = &models.ProjectRecord{
				ID:          node.ID,
				Number:      node.Number,
				Name:        node.Title,
				Description: node.ShortDescription,
				State:       projectState(node.Closed),
				URL:         node.URL,
				CreatedAt:   node.CreatedAt,
				UpdatedAt:   node.UpdatedAt,
			}
			for _, f := range node.Fields.Nodes {
				fieldType, ok := mapDataType(f.DataType)
				if !ok {
					continue
				}
				record.Fields = append(record.Fields, models.Field{
					Name:    f.Name,
					Type:    fieldType,
					Options: fieldOptions(f),
				})
				fieldSet[f.Name] = fieldType
			}
		}

		for _, it := range node.Items.Nodes {
			record.Items = append(record.Items, convertItem(it, fieldSet))
		}

		if !node.Items.PageInfo.HasNextPage {
			break
		}
		cursor = node.Items.PageInfo.EndCursor
	}

	logging.Debug("fetched project",
		"project", id,
		"fields", len(record.Fields),
		"items", len(record.Items))
	return record, nil
}

func convertItem(node itemNode, fieldSet map[string]models.FieldType) models.Item {
	item := models.Item{
		ID:     node.ID,
		Values: make(map[string]string),
	}

	for _, v := range node.FieldValues.Nodes {
		if v.Field == nil {
			continue
		}
		name := v.Field.Name
		if _, known := fieldSet[name]; !known {
			continue
		}
		switch {
		case v.Text != nil:
			item.Values[name] = *v.Text
		case v.Number != nil:
			item.Values[name] = strconv.FormatFloat(*v.Number, 'f', -1, 64)
		case v.Date != nil:
			item.Values[name] = normalizeDate(*v.Date)
		case v.Name != nil:
			item.Values[name] = *v.Name
		case v.Title != nil:
			item.Values[name] = *v.Title
		}
	}

	if node.Content != nil {
		item.Content = convertContent(node.Content)
	}
	return item
}

func convertContent(node *contentNode) *models.Content {
	content := &models.Content{
		Title:  node.Title,
		Number: node.Number,
		State:  normalizeState(node.State),
		URL:    node.URL,
	}

	switch node.Typename {
	case "Issue":
		content.Kind = models.ContentIssue
	case "PullRequest":
		content.Kind = models.ContentPullRequest
	case "DraftIssue":
		content.Kind = models.ContentDraft
	default:
		return nil
	}

	if node.Repository != nil {
		content.Repository = node.Repository.NameWithOwner
	}
	if node.Milestone != nil {
		content.Milestone = node.Milestone.Title
	}
	for _, a := range node.Assignees.Nodes {
		content.Assignees = append(content.Assignees, a.Login)
	}
	return content
}

func mapDataType(dataType string) (models.FieldType, bool) {
	switch dataType {
	case "TEXT":
		return models.FieldTypeText, true
	case "NUMBER":
		return models.FieldTypeNumber, true
	case "DATE":
		return models.FieldTypeDate, true
	case "SINGLE_SELECT":
		return models.FieldTypeSingleSelect, true
	case "ITERATION":
		return models.FieldTypeIteration, true
	default:
		return "", false
	}
}

func fieldOptions(f fieldNode) []string {
	var options []string
	for _, opt := range f.Options {
		options = append(options, opt.Name)
	}
	if f.Configuration != nil {
		for _, it := range f.Configuration.Iterations {
			options = append(options, it.Title)
		}
		for _, it := range f.Configuration.CompletedIterations {
			options = append(options, it.Title)
		}
	}
	return options
}

func projectState(closed bool) string {
	if closed {
		return "closed"
	}
	return "open"
}

// normalizeState lowercases the SCREAMING_CASE GraphQL enums ("OPEN",
// "MERGED") into the model's form.
func normalizeState(state string) string {
	return strings.ToLower(state)
}

// normalizeDate trims a timestamp suffix off date field values so that the
// stored form is always YYYY-MM-DD.
func normalizeDate(s string) string {
	if len(s) > 10 && s[10] == 'T' {
		return s[:10]
	}
	return s
}
