package github

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// fieldMeta holds the node ids a mutation needs: the field's own id and the
// option (or iteration) ids behind each allowed value.
type fieldMeta struct {
	id      string
	typ     models.FieldType
	options map[string]string
}

const fieldMetaQuery = `
query($id: ID!) {
  node(id: $id) {
    ... on ProjectV2 {
      id
      fields(first: 50) {
        nodes {
          ... on ProjectV2FieldCommon {
            id
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
    }
  }
}`

type metaFieldNode struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	DataType      string           `json:"dataType"`
	Options       []optionNode     `json:"options"`
	Configuration *iterationConfig `json:"configuration"`
}

type fieldMetaData struct {
	Node *struct {
		ID     string `json:"id"`
		Fields struct {
			Nodes []metaFieldNode `json:"nodes"`
		} `json:"fields"`
	} `json:"node"`
}

// PushEdits applies local edits to the hosted project. Edits arrive in a
// safe order (a field definition lands before values that reference it), so
// they are applied one at a time; a failure leaves earlier edits in place
// and the error tells the caller which edit was refused.
func (c *Client) PushEdits(ctx context.Context, id string, edits engine.ChangeSet) error {
	if edits.Empty() {
		return nil
	}
	logging.Info("pushing edits", "project", id, "count", len(edits.Edits))

	meta, err := c.fetchFieldMeta(ctx, id)
	if err != nil {
		logging.Error("failed to load field metadata", "project", id, "error", err)
		return err
	}

	for _, edit := range edits.Edits {
		logging.Debug("applying edit", "project", id, "edit", edit.Describe())
		if err := c.pushEdit(ctx, id, edit, meta); err != nil {
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

func (c *Client) fetchFieldMeta(ctx context.Context, id string) (map[string]fieldMeta, error) {
	var data fieldMetaData
	if err := c.doGraphQL(ctx, fieldMetaQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Node == nil || data.Node.ID == "" {
		return nil, fmt.Errorf("%w: %s", engine.ErrRemoteNotFound, id)
	}

	meta := make(map[string]fieldMeta)
	for _, f := range data.Node.Fields.Nodes {
		fieldType, ok := mapDataType(f.DataType)
		if !ok {
			continue
		}
		options := make(map[string]string)
		for _, opt := range f.Options {
			options[opt.Name] = opt.ID
		}
		if f.Configuration != nil {
			for _, it := range f.Configuration.Iterations {
				options[it.Title] = it.ID
			}
			for _, it := range f.Configuration.CompletedIterations {
				options[it.Title] = it.ID
			}
		}
		meta[f.Name] = fieldMeta{id: f.ID, typ: fieldType, options: options}
	}
	return meta, nil
}

func (c *Client) pushEdit(ctx context.Context, id string, edit engine.Edit, meta map[string]fieldMeta) error {
	switch edit.Kind {
	case engine.EditFieldAdded:
		return c.createField(ctx, id, edit.Field, meta)
	case engine.EditFieldRemoved:
		return c.deleteField(ctx, edit.FieldName, meta)
	case engine.EditFieldTypeChanged:
		if err := c.deleteField(ctx, edit.FieldName, meta); err != nil {
			return err
		}
		return c.createField(ctx, id, edit.Field, meta)
	case engine.EditItemAdded:
		return c.addItem(ctx, id, edit.Item, meta)
	case engine.EditItemRemoved:
		return c.deleteItem(ctx, id, edit.ItemID)
	case engine.EditValueChanged:
		if edit.NewValue == "" {
			return c.clearValue(ctx, id, edit.ItemID, edit.FieldName, meta)
		}
		return c.setValue(ctx, id, edit.ItemID, edit.FieldName, edit.NewValue, meta)
	default:
		return &engine.RejectedError{Reason: fmt.Sprintf("unsupported edit kind %q", edit.Kind)}
	}
}

const createFieldMutation = `
mutation($input: CreateProjectV2FieldInput!) {
  createProjectV2Field(input: $input) {
    projectV2Field {
      ... on ProjectV2FieldCommon {
        id
        name
      }
      ... on ProjectV2SingleSelectField {
        options {
          id
          name
        }
      }
    }
  }
}`

type createFieldData struct {
	CreateProjectV2Field struct {
		ProjectV2Field struct {
			ID      string       `json:"id"`
			Name    string       `json:"name"`
			Options []optionNode `json:"options"`
		} `json:"projectV2Field"`
	} `json:"createProjectV2Field"`
}

func (c *Client) createField(ctx context.Context, id string, field *models.Field, meta map[string]fieldMeta) error {
	if field == nil {
		return &engine.RejectedError{Reason: "field edit carries no definition"}
	}
	if field.Type == models.FieldTypeIteration {
		return &engine.RejectedError{
			Reason: fmt.Sprintf("iteration field %q must be created in the web UI", field.Name),
		}
	}

	input := map[string]any{
		"projectId": id,
		"name":      field.Name,
		"dataType":  strings.ToUpper(string(field.Type)),
	}
	if field.Type == models.FieldTypeSingleSelect {
		options := make([]map[string]any, 0, len(field.Options))
		for _, name := range field.Options {
			options = append(options, map[string]any{
				"name":        name,
				"color":       "GRAY",
				"description": "",
			})
		}
		input["singleSelectOptions"] = options
	}

	var data createFieldData
	if err := c.doGraphQL(ctx, createFieldMutation, map[string]any{"input": input}, &data); err != nil {
		return err
	}

	created := data.CreateProjectV2Field.ProjectV2Field
	options := make(map[string]string)
	for _, opt := range created.Options {
		options[opt.Name] = opt.ID
	}
	meta[field.Name] = fieldMeta{id: created.ID, typ: field.Type, options: options}
	logging.Debug("created field", "field", field.Name, "id", created.ID)
	return nil
}

const deleteFieldMutation = `
mutation($input: DeleteProjectV2FieldInput!) {
  deleteProjectV2Field(input: $input) {
    projectV2Field {
      ... on ProjectV2FieldCommon {
        id
      }
    }
  }
}`

func (c *Client) deleteField(ctx context.Context, name string, meta map[string]fieldMeta) error {
	fm, ok := meta[name]
	if !ok {
		logging.Debug("field already absent", "field", name)
		return nil
	}

	input := map[string]any{"fieldId": fm.id}
	if err := c.doGraphQL(ctx, deleteFieldMutation, map[string]any{"input": input}, nil); err != nil {
		return err
	}
	delete(meta, name)
	logging.Debug("deleted field", "field", name)
	return nil
}

const addDraftMutation = `
mutation($input: AddProjectV2DraftIssueInput!) {
  addProjectV2DraftIssue(input: $input) {
    projectItem {
      id
    }
  }
}`

const addItemMutation = `
mutation($input: AddProjectV2ItemByIdInput!) {
  addProjectV2ItemById(input: $input) {
    item {
      id
    }
  }
}`

const contentIDQuery = `
query($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    issueOrPullRequest(number: $number) {
      ... on Issue {
        id
      }
      ... on PullRequest {
        id
      }
    }
  }
}`

// addItem creates the remote row and then fills in its field values. The
// remote assigns a fresh item id, so the values are set against that id,
// not the one the local copy invented.
func (c *Client) addItem(ctx context.Context, id string, item *models.Item, meta map[string]fieldMeta) error {
	if item == nil {
		return &engine.RejectedError{Reason: "item edit carries no row"}
	}

	newID, err := c.createItem(ctx, id, item)
	if err != nil {
		return err
	}
	logging.Debug("added item", "local_id", item.ID, "remote_id", newID)

	names := make([]string, 0, len(item.Values))
	for name := range item.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := item.Values[name]
		if value == "" {
			continue
		}
		if err := c.setValue(ctx, id, newID, name, value, meta); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) createItem(ctx context.Context, id string, item *models.Item) (string, error) {
	if item.Content == nil || item.Content.Kind == models.ContentDraft {
		title := ""
		if item.Content != nil {
			title = item.Content.Title
		}
		if title == "" {
			title = "Untitled"
		}
		input := map[string]any{"projectId": id, "title": title}
		var data struct {
			AddProjectV2DraftIssue struct {
				ProjectItem struct {
					ID string `json:"id"`
				} `json:"projectItem"`
			} `json:"addProjectV2DraftIssue"`
		}
		if err := c.doGraphQL(ctx, addDraftMutation, map[string]any{"input": input}, &data); err != nil {
			return "", err
		}
		return data.AddProjectV2DraftIssue.ProjectItem.ID, nil
	}

	contentID, err := c.resolveContentID(ctx, item.Content)
	if err != nil {
		return "", err
	}
	input := map[string]any{"projectId": id, "contentId": contentID}
	var data struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	if err := c.doGraphQL(ctx, addItemMutation, map[string]any{"input": input}, &data); err != nil {
		return "", err
	}
	return data.AddProjectV2ItemByID.Item.ID, nil
}

func (c *Client) resolveContentID(ctx context.Context, content *models.Content) (string, error) {
	owner, name, ok := strings.Cut(content.Repository, "/")
	if !ok || owner == "" || name == "" {
		return "", &engine.RejectedError{
			Reason: fmt.Sprintf("cannot locate %s #%d: no repository", content.Kind, content.Number),
		}
	}

	variables := map[string]any{"owner": owner, "name": name, "number": content.Number}
	var data struct {
		Repository *struct {
			IssueOrPullRequest *struct {
				ID string `json:"id"`
			} `json:"issueOrPullRequest"`
		} `json:"repository"`
	}
	if err := c.doGraphQL(ctx, contentIDQuery, variables, &data); err != nil {
		return "", err
	}
	if data.Repository == nil || data.Repository.IssueOrPullRequest == nil {
		return "", fmt.Errorf("%w: %s#%d", engine.ErrRemoteNotFound, content.Repository, content.Number)
	}
	return data.Repository.IssueOrPullRequest.ID, nil
}

const deleteItemMutation = `
mutation($input: DeleteProjectV2ItemInput!) {
  deleteProjectV2Item(input: $input) {
    deletedItemId
  }
}`

func (c *Client) deleteItem(ctx context.Context, id, itemID string) error {
	input := map[string]any{"projectId": id, "itemId": itemID}
	if err := c.doGraphQL(ctx, deleteItemMutation, map[string]any{"input": input}, nil); err != nil {
		return err
	}
	logging.Debug("deleted item", "item", itemID)
	return nil
}

const setValueMutation = `
mutation($input: UpdateProjectV2ItemFieldValueInput!) {
  updateProjectV2ItemFieldValue(input: $input) {
    projectV2Item {
      id
    }
  }
}`

const clearValueMutation = `
mutation($input: ClearProjectV2ItemFieldValueInput!) {
  clearProjectV2ItemFieldValue(input: $input) {
    projectV2Item {
      id
    }
  }
}`

func (c *Client) setValue(ctx context.Context, id, itemID, fieldName, value string, meta map[string]fieldMeta) error {
	fm, ok := meta[fieldName]
	if !ok {
		return &engine.RejectedError{Reason: fmt.Sprintf("unknown field %q", fieldName)}
	}

	typed, err := typedValue(fm, fieldName, value)
	if err != nil {
		return err
	}
	input := map[string]any{
		"projectId": id,
		"itemId":    itemID,
		"fieldId":   fm.id,
		"value":     typed,
	}
	return c.doGraphQL(ctx, setValueMutation, map[string]any{"input": input}, nil)
}

func (c *Client) clearValue(ctx context.Context, id, itemID, fieldName string, meta map[string]fieldMeta) error {
	fm, ok := meta[fieldName]
	if !ok {
		logging.Debug("field already absent, nothing to clear", "field", fieldName)
		return nil
	}

	input := map[string]any{
		"projectId": id,
		"itemId":    itemID,
		"fieldId":   fm.id,
	}
	return c.doGraphQL(ctx, clearValueMutation, map[string]any{"input": input}, nil)
}

// typedValue shapes a stored string into the typed value object the update
// mutation expects for the field's data type.
func typedValue(fm fieldMeta, fieldName, value string) (map[string]any, error) {
	switch fm.typ {
	case models.FieldTypeNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &engine.RejectedError{
				Reason: fmt.Sprintf("field %q expects a number, got %q", fieldName, value),
			}
		}
		return map[string]any{"number": n}, nil
	case models.FieldTypeDate:
		return map[string]any{"date": value}, nil
	case models.FieldTypeSingleSelect:
		optionID, ok := fm.options[value]
		if !ok {
			return nil, &engine.RejectedError{
				Reason: fmt.Sprintf("field %q has no option %q", fieldName, value),
			}
		}
		return map[string]any{"singleSelectOptionId": optionID}, nil
	case models.FieldTypeIteration:
		iterationID, ok := fm.options[value]
		if !ok {
			return nil, &engine.RejectedError{
				Reason: fmt.Sprintf("field %q has no iteration %q", fieldName, value),
			}
		}
		return map[string]any{"iterationId": iterationID}, nil
	default:
		return map[string]any{"text": value}, nil
	}
}
