// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// FieldType identifies the declared type of a project field.
type FieldType string

const (
	// FieldTypeText is a free-form text field.
	FieldTypeText FieldType = "text"

	// FieldTypeNumber is a numeric field, stored as its decimal string form.
	FieldTypeNumber FieldType = "number"

	// FieldTypeSingleSelect is a field restricted to one of a set of options.
	FieldTypeSingleSelect FieldType = "single_select"

	// FieldTypeDate is a calendar date field in YYYY-MM-DD form.
	FieldTypeDate FieldType = "date"

	// FieldTypeIteration is a sprint/iteration field restricted to named iterations.
	FieldTypeIteration FieldType = "iteration"
)

// Field describes one column of a project board.
type Field struct {
	// Name is the field's display name, unique within a project.
	Name string `json:"name" yaml:"name"`

	// Type is the field's declared type. It never changes in place; a
	// remote type change is surfaced as a schema conflict.
	Type FieldType `json:"type" yaml:"type"`

	// Options lists the allowed values for single-select and iteration
	// fields. Empty for other types.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// HasOption reports whether value is one of the field's allowed options.
func (f Field) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Restricted reports whether the field only accepts values from Options.
func (f Field) Restricted() bool {
	return f.Type == FieldTypeSingleSelect || f.Type == FieldTypeIteration
}

// ContentKind identifies what a project item points back to.
type ContentKind string

const (
	// ContentIssue marks an item backed by an issue.
	ContentIssue ContentKind = "issue"

	// ContentPullRequest marks an item backed by a pull request.
	ContentPullRequest ContentKind = "pull_request"

	// ContentDraft marks a draft item with no backing issue or pull request.
	ContentDraft ContentKind = "draft"
)

// Content is the issue or pull request a project item refers to.
type Content struct {
	// Kind says whether the item is backed by an issue, a pull request,
	// or is a draft.
	Kind ContentKind `json:"kind" yaml:"kind"`

	// Number is the issue or pull request number (e.g. 42). Zero for drafts.
	Number int `json:"number,omitempty" yaml:"number,omitempty"`

	// Title is the backing issue's or pull request's title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// State is the backing object's state (e.g. "open", "closed", "merged").
	State string `json:"state,omitempty" yaml:"state,omitempty"`

	// URL is the backing object's web address.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Repository is the "owner/name" of the repository holding the backing
	// object. Empty for drafts.
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`

	// Assignees lists the usernames assigned to the backing object.
	Assignees []string `json:"assignees,omitempty" yaml:"assignees,omitempty"`

	// Milestone is the title of the backing object's milestone, if any.
	Milestone string `json:"milestone,omitempty" yaml:"milestone,omitempty"`
}

// Item is one row of a project board.
type Item struct {
	// ID is the remote-assigned identifier, immutable for the item's lifetime.
	ID string `json:"id" yaml:"id"`

	// Values maps field names to the item's value for that field. A field
	// missing from the map is unset for this item.
	Values map[string]string `json:"values" yaml:"values"`

	// Content is the issue or pull request backing this item, nil for
	// items whose backing object was not resolved.
	Content *Content `json:"content,omitempty" yaml:"content,omitempty"`
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.Values != nil {
		vals := make(map[string]string, len(it.Values))
		for k, v := range it.Values {
			vals[k] = v
		}
		out.Values = vals
	}
	if it.Content != nil {
		c := *it.Content
		if c.Assignees != nil {
			c.Assignees = append([]string(nil), c.Assignees...)
		}
		out.Content = &c
	}
	return out
}

// ProjectRecord is the complete mirrored state of one remote project.
type ProjectRecord struct {
	// ID is the remote-assigned project identifier, immutable once fetched.
	ID string `json:"id" yaml:"id"`

	// Number is the project's human-facing number on the remote service.
	Number int `json:"number,omitempty" yaml:"number,omitempty"`

	// Name is the project's title.
	Name string `json:"name" yaml:"name"`

	// Description is the project's short description, when the remote has one.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// State is "open" or "closed".
	State string `json:"state,omitempty" yaml:"state,omitempty"`

	// URL is the project's web address.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// CreatedAt is when the project was created on the remote service.
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`

	// UpdatedAt is when the remote last reported a change to the project.
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`

	// Fields is the project's column schema, in remote display order.
	Fields []Field `json:"fields" yaml:"fields"`

	// Items is the project's rows, in remote display order.
	Items []Item `json:"items" yaml:"items"`
}

// FieldByName returns the field with the given name, or nil when absent.
func (p *ProjectRecord) FieldByName(name string) *Field {
	for i := range p.Fields {
		if p.Fields[i].Name == name {
			return &p.Fields[i]
		}
	}
	return nil
}

// ItemByID returns the item with the given id, or nil when absent.
func (p *ProjectRecord) ItemByID(id string) *Item {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the record.
func (p *ProjectRecord) Clone() *ProjectRecord {
	if p == nil {
		return nil
	}
	out := *p
	out.Fields = make([]Field, len(p.Fields))
	for i, f := range p.Fields {
		out.Fields[i] = f
		if f.Options != nil {
			out.Fields[i].Options = append([]string(nil), f.Options...)
		}
	}
	out.Items = make([]Item, len(p.Items))
	for i, it := range p.Items {
		out.Items[i] = it.Clone()
	}
	return &out
}

// Snapshot is the last fully synchronized state of a project, used as the
// base of the next three-way comparison.
type Snapshot struct {
	// Record is the project state at the time the snapshot was taken.
	Record ProjectRecord `json:"record" yaml:"record"`

	// TakenAt is when the snapshot was persisted.
	TakenAt time.Time `json:"taken_at" yaml:"taken_at"`

	// Fingerprint is the canonical content hash of Record.
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// SummaryKind identifies what a listing row describes.
type SummaryKind string

const (
	// KindRepository marks a repository listing row.
	KindRepository SummaryKind = "repository"

	// KindProject marks a project listing row.
	KindProject SummaryKind = "project"
)

// Summary is one row of a cached remote listing.
type Summary struct {
	// Kind says whether the row is a repository or a project.
	Kind SummaryKind `json:"kind"`

	// ID is the remote identifier of the listed object.
	ID string `json:"id"`

	// Name is the listed object's display name.
	Name string `json:"name"`

	// Description is the listed object's short description.
	Description string `json:"description,omitempty"`

	// URL is the listed object's web address.
	URL string `json:"url,omitempty"`

	// UpdatedAt is the remote's last-modified stamp for the object.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Identity names the account a cached listing belongs to. A token change
// produces a new TokenDigest and therefore a cache miss.
type Identity struct {
	// Username is the account's login name.
	Username string `json:"username"`

	// TokenDigest is a short hash of the account's credential, never the
	// credential itself.
	TokenDigest string `json:"token_digest"`
}

// Key returns the identity's cache key form.
func (id Identity) Key() string {
	return id.Username + "/" + id.TokenDigest
}
