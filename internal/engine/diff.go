package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielolaszy/tether/pkg/models"
)

// EditKind identifies what an Edit does.
type EditKind string

const (
	// EditFieldAdded introduces a field definition.
	EditFieldAdded EditKind = "field_added"
	// EditFieldRemoved drops a field definition and its item values.
	EditFieldRemoved EditKind = "field_removed"
	// EditFieldTypeChanged replaces a field definition with one of a
	// different declared type. Never auto-resolved.
	EditFieldTypeChanged EditKind = "field_type_changed"
	// EditItemAdded introduces an item. Applying it to a record that
	// already holds the item id replaces the item wholesale.
	EditItemAdded EditKind = "item_added"
	// EditItemRemoved drops an item.
	EditItemRemoved EditKind = "item_removed"
	// EditValueChanged sets one field value on one item. An empty new
	// value unsets the field.
	EditValueChanged EditKind = "value_changed"
)

// EntityKind says which kind of entity an EditKey addresses.
type EntityKind string

const (
	// EntityField addresses a field definition by name.
	EntityField EntityKind = "field"
	// EntityItem addresses an item by id, optionally narrowed to one field.
	EntityItem EntityKind = "item"
)

// EditKey is the (entity, field) pair an Edit targets. Conflict verdicts are
// assigned per key.
type EditKey struct {
	// Entity says whether ID names a field or an item.
	Entity EntityKind
	// ID is the field name for field entities, the item id for items.
	ID string
	// Field narrows an item key to one field value; empty for structural
	// edits and for field entities.
	Field string
}

func (k EditKey) String() string {
	if k.Field != "" {
		return fmt.Sprintf("%s %s.%s", k.Entity, k.ID, k.Field)
	}
	return fmt.Sprintf("%s %s", k.Entity, k.ID)
}

// Edit is one structural or value difference between two records. Edits are
// self-contained: they carry the definitions and rows needed to apply them
// to another record.
type Edit struct {
	Kind EditKind

	// FieldName is set for field edits and value edits.
	FieldName string
	// ItemID is set for item edits and value edits.
	ItemID string

	// OldValue and NewValue are set for value edits; empty means unset.
	OldValue string
	NewValue string

	// Field carries the definition for field-added and type-change edits.
	Field *models.Field
	// OldType and NewType are set for type-change edits.
	OldType models.FieldType
	NewType models.FieldType

	// Item carries the full row for item-added edits.
	Item *models.Item
}

// Key returns the conflict key the edit targets.
func (e Edit) Key() EditKey {
	switch e.Kind {
	case EditFieldAdded, EditFieldRemoved, EditFieldTypeChanged:
		return EditKey{Entity: EntityField, ID: e.FieldName}
	case EditValueChanged:
		return EditKey{Entity: EntityItem, ID: e.ItemID, Field: e.FieldName}
	default:
		return EditKey{Entity: EntityItem, ID: e.ItemID}
	}
}

// Describe renders the edit as one human-readable line.
func (e Edit) Describe() string {
	switch e.Kind {
	case EditFieldAdded:
		return fmt.Sprintf("field %q added (%s)", e.FieldName, describeField(e.Field))
	case EditFieldRemoved:
		return fmt.Sprintf("field %q removed", e.FieldName)
	case EditFieldTypeChanged:
		return fmt.Sprintf("field %q type changed %s -> %s", e.FieldName, e.OldType, e.NewType)
	case EditItemAdded:
		return fmt.Sprintf("item %s added", e.ItemID)
	case EditItemRemoved:
		return fmt.Sprintf("item %s removed", e.ItemID)
	case EditValueChanged:
		return fmt.Sprintf("item %s field %q: %s -> %s", e.ItemID, e.FieldName,
			describeValue(e.OldValue), describeValue(e.NewValue))
	default:
		return string(e.Kind)
	}
}

func describeField(f *models.Field) string {
	if f == nil {
		return "?"
	}
	if len(f.Options) > 0 {
		return fmt.Sprintf("%s [%s]", f.Type, strings.Join(f.Options, ", "))
	}
	return string(f.Type)
}

func describeValue(v string) string {
	if v == "" {
		return "(unset)"
	}
	return fmt.Sprintf("%q", v)
}

// ChangeSet is an ordered list of edits. Diff output is deterministic:
// field edits precede item edits, each group ascending by name/id, value
// edits additionally by field name.
type ChangeSet struct {
	Edits []Edit
}

// Empty reports whether the set holds no edits.
func (c ChangeSet) Empty() bool {
	return len(c.Edits) == 0
}

// Len returns the number of edits.
func (c ChangeSet) Len() int {
	return len(c.Edits)
}

// Describe renders the set one edit per line.
func (c ChangeSet) Describe() string {
	lines := make([]string, len(c.Edits))
	for i, e := range c.Edits {
		lines[i] = e.Describe()
	}
	return strings.Join(lines, "\n")
}

// Diff computes the structural difference from base to other. Fields are
// aligned by name and items by id, never by position.
func Diff(base, other *models.ProjectRecord) ChangeSet {
	var edits []Edit
	edits = append(edits, diffFields(base, other)...)
	edits = append(edits, diffItems(base, other)...)
	return ChangeSet{Edits: edits}
}

func diffFields(base, other *models.ProjectRecord) []Edit {
	baseFields := fieldMap(base)
	otherFields := fieldMap(other)

	var edits []Edit
	for _, name := range sortedUnion(keysOfFields(baseFields), keysOfFields(otherFields)) {
		b, inBase := baseFields[name]
		o, inOther := otherFields[name]
		switch {
		case inBase && !inOther:
			f := b
			edits = append(edits, Edit{Kind: EditFieldRemoved, FieldName: name, Field: &f})
		case !inBase && inOther:
			f := cloneField(o)
			edits = append(edits, Edit{Kind: EditFieldAdded, FieldName: name, Field: &f})
		case b.Type != o.Type:
			f := cloneField(o)
			edits = append(edits, Edit{
				Kind:      EditFieldTypeChanged,
				FieldName: name,
				Field:     &f,
				OldType:   b.Type,
				NewType:   o.Type,
			})
		}
	}
	return edits
}

func diffItems(base, other *models.ProjectRecord) []Edit {
	baseItems := itemMap(base)
	otherItems := itemMap(other)

	var edits []Edit
	for _, id := range sortedUnion(keysOfItems(baseItems), keysOfItems(otherItems)) {
		b, inBase := baseItems[id]
		o, inOther := otherItems[id]
		switch {
		case inBase && !inOther:
			edits = append(edits, Edit{Kind: EditItemRemoved, ItemID: id})
		case !inBase && inOther:
			item := o.Clone()
			edits = append(edits, Edit{Kind: EditItemAdded, ItemID: id, Item: &item})
		default:
			edits = append(edits, diffValues(id, b, o)...)
		}
	}
	return edits
}

func diffValues(id string, base, other models.Item) []Edit {
	names := sortedUnion(keysOfValues(base.Values), keysOfValues(other.Values))

	var edits []Edit
	for _, name := range names {
		bv := base.Values[name]
		ov := other.Values[name]
		if bv != ov {
			edits = append(edits, Edit{
				Kind:      EditValueChanged,
				ItemID:    id,
				FieldName: name,
				OldValue:  bv,
				NewValue:  ov,
			})
		}
	}
	return edits
}

func fieldMap(rec *models.ProjectRecord) map[string]models.Field {
	out := make(map[string]models.Field, len(rec.Fields))
	for _, f := range rec.Fields {
		out[f.Name] = f
	}
	return out
}

func itemMap(rec *models.ProjectRecord) map[string]models.Item {
	out := make(map[string]models.Item, len(rec.Items))
	for _, it := range rec.Items {
		out[it.ID] = it
	}
	return out
}

func cloneField(f models.Field) models.Field {
	out := f
	if f.Options != nil {
		out.Options = append([]string(nil), f.Options...)
	}
	return out
}

func keysOfFields(m map[string]models.Field) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfItems(m map[string]models.Item) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedUnion(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
