package engine

import (
	"sort"

	"github.com/danielolaszy/tether/pkg/models"
)

// planEdits turns the report's verdicts plus the supplied choices into two
// edit lists: apply is written into the local record, push is sent to the
// remote. Every manual entry must have exactly one choice; choices for
// non-manual keys are rejected.
func (r *ConflictReport) planEdits(resolutions map[EditKey]Choice) (apply, push []Edit, err error) {
	manual := make(map[EditKey]bool)
	for _, entry := range r.Entries {
		if entry.Verdict == VerdictManual {
			manual[entry.Key] = true
		}
	}

	var unresolved UnresolvedError
	for key := range resolutions {
		if !manual[key] {
			unresolved.Unknown = append(unresolved.Unknown, key)
		}
	}
	for _, entry := range r.Entries {
		if entry.Verdict == VerdictManual {
			if _, ok := resolutions[entry.Key]; !ok {
				unresolved.Missing = append(unresolved.Missing, entry.Key)
			}
		}
	}
	if len(unresolved.Missing) > 0 || len(unresolved.Unknown) > 0 {
		sortKeys(unresolved.Missing)
		sortKeys(unresolved.Unknown)
		return nil, nil, &unresolved
	}

	for _, entry := range r.Entries {
		switch entry.Verdict {
		case VerdictApplyLocal:
			push = append(push, entry.LocalEdits...)
		case VerdictApplyRemote:
			apply = append(apply, entry.RemoteEdits...)
		case VerdictManual:
			if resolutions[entry.Key] == ChooseRemote {
				apply = append(apply, entry.RemoteEdits...)
			} else {
				push = append(push, entry.LocalEdits...)
			}
		}
	}
	return orderEdits(apply), orderEdits(push), nil
}

// applyEdits returns a copy of rec with the edits applied, field edits
// first so that value edits land on existing definitions.
func applyEdits(rec *models.ProjectRecord, edits []Edit) *models.ProjectRecord {
	out := rec.Clone()
	for _, e := range orderEdits(edits) {
		applyEdit(out, e)
	}
	return out
}

func applyEdit(rec *models.ProjectRecord, e Edit) {
	switch e.Kind {
	case EditFieldAdded, EditFieldTypeChanged:
		upsertField(rec, *e.Field)
	case EditFieldRemoved:
		removeField(rec, e.FieldName)
	case EditItemAdded:
		upsertItem(rec, *e.Item)
	case EditItemRemoved:
		removeItem(rec, e.ItemID)
	case EditValueChanged:
		setValue(rec, e.ItemID, e.FieldName, e.NewValue)
	}
}

func upsertField(rec *models.ProjectRecord, field models.Field) {
	def := cloneField(field)
	for i := range rec.Fields {
		if rec.Fields[i].Name == def.Name {
			rec.Fields[i] = def
			return
		}
	}
	rec.Fields = append(rec.Fields, def)
}

func removeField(rec *models.ProjectRecord, name string) {
	fields := rec.Fields[:0]
	for _, f := range rec.Fields {
		if f.Name != name {
			fields = append(fields, f)
		}
	}
	rec.Fields = fields
	for i := range rec.Items {
		delete(rec.Items[i].Values, name)
	}
}

func upsertItem(rec *models.ProjectRecord, item models.Item) {
	row := item.Clone()
	for i := range rec.Items {
		if rec.Items[i].ID == row.ID {
			rec.Items[i] = row
			return
		}
	}
	rec.Items = append(rec.Items, row)
}

func removeItem(rec *models.ProjectRecord, id string) {
	items := rec.Items[:0]
	for _, it := range rec.Items {
		if it.ID != id {
			items = append(items, it)
		}
	}
	rec.Items = items
}

func setValue(rec *models.ProjectRecord, itemID, field, value string) {
	item := rec.ItemByID(itemID)
	if item == nil {
		return
	}
	if value == "" {
		delete(item.Values, field)
		return
	}
	if item.Values == nil {
		item.Values = make(map[string]string)
	}
	item.Values[field] = value
}

// orderEdits returns the edits in canonical ChangeSet order: field edits by
// name, then item edits by id with structural edits before value edits.
func orderEdits(edits []Edit) []Edit {
	out := append([]Edit(nil), edits...)
	sort.SliceStable(out, func(i, j int) bool {
		return editLess(out[i], out[j])
	})
	return out
}

func editLess(a, b Edit) bool {
	ga, gb := editGroup(a), editGroup(b)
	if ga != gb {
		return ga < gb
	}
	if ga == 0 {
		return a.FieldName < b.FieldName
	}
	if a.ItemID != b.ItemID {
		return a.ItemID < b.ItemID
	}
	sa, sb := a.Kind == EditValueChanged, b.Kind == EditValueChanged
	if sa != sb {
		return !sa
	}
	return a.FieldName < b.FieldName
}

func editGroup(e Edit) int {
	switch e.Kind {
	case EditFieldAdded, EditFieldRemoved, EditFieldTypeChanged:
		return 0
	default:
		return 1
	}
}

func sortKeys(keys []EditKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Field < b.Field
	})
}
