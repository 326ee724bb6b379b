package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielolaszy/tether/pkg/models"
)

// Verdict classifies one edit key after three-way comparison.
type Verdict string

const (
	// VerdictApplyLocal keeps the local change; it is pushed to the remote.
	VerdictApplyLocal Verdict = "apply-local"
	// VerdictApplyRemote takes the remote change; it is written locally.
	VerdictApplyRemote Verdict = "apply-remote"
	// VerdictManual needs an explicit choice between the two sides.
	VerdictManual Verdict = "manual"
)

// Choice is a resolution for one manual conflict.
type Choice string

const (
	// ChooseLocal resolves a conflict in favor of the local state.
	ChooseLocal Choice = "local"
	// ChooseRemote resolves a conflict in favor of the remote state.
	ChooseRemote Choice = "remote"
)

// ReportEntry is the verdict for one edit key. Manual entries carry the
// three candidate states; LocalEdits and RemoteEdits hold the concrete edits
// that realize each side, so a resolution picks exactly one list.
type ReportEntry struct {
	Key     EditKey
	Verdict Verdict

	// Base, Local and Remote render the three candidate states. Set for
	// manual entries.
	Base   string
	Local  string
	Remote string

	// SchemaChange marks field type conflicts, which rule-based
	// resolution must refuse.
	SchemaChange bool

	// LocalEdits realize the local side: applied to the remote on
	// apply-local or ChooseLocal.
	LocalEdits []Edit
	// RemoteEdits realize the remote side: applied locally on
	// apply-remote or ChooseRemote.
	RemoteEdits []Edit
}

// ConflictReport is the full three-way classification for one project.
// Entries are deterministically ordered: field keys before item keys, each
// ascending, value keys after their item's structural key.
type ConflictReport struct {
	ProjectID string
	Entries   []ReportEntry
}

// Manual returns the entries that still need a choice.
func (r *ConflictReport) Manual() []ReportEntry {
	var out []ReportEntry
	for _, e := range r.Entries {
		if e.Verdict == VerdictManual {
			out = append(out, e)
		}
	}
	return out
}

// NeedsResolution reports whether any manual verdicts remain.
func (r *ConflictReport) NeedsResolution() bool {
	for _, e := range r.Entries {
		if e.Verdict == VerdictManual {
			return true
		}
	}
	return false
}

// Empty reports whether the three-way comparison found no differences.
func (r *ConflictReport) Empty() bool {
	return len(r.Entries) == 0
}

// Resolve computes diff(base, local) and diff(base, remote) and classifies
// every touched edit key. Single-sided changes get their side's verdict;
// both-sided changes to the same result collapse to apply-local; divergent
// changes, add/remove races and all field type changes are manual.
func Resolve(base, local, remote *models.ProjectRecord) *ConflictReport {
	diffLocal := Diff(base, local)
	diffRemote := Diff(base, remote)

	li := indexEdits(diffLocal)
	ri := indexEdits(diffRemote)

	report := &ConflictReport{ProjectID: base.ID}
	resolveFields(report, base, local, remote, li, ri)
	resolveItems(report, base, local, remote, li, ri)
	return report
}

// editIndex groups one side's edits by entity.
type editIndex struct {
	fields      map[string]Edit            // field name -> structural field edit
	itemStruct  map[string]Edit            // item id -> add/remove edit
	itemValues  map[string]map[string]Edit // item id -> field name -> value edit
	fieldValues map[string][]Edit          // field name -> value edits touching it
	// folded marks (item id, field) value edits consumed by a field-level
	// entry so the item pass skips them.
	folded map[string]bool // field name
}

func indexEdits(cs ChangeSet) *editIndex {
	idx := &editIndex{
		fields:      make(map[string]Edit),
		itemStruct:  make(map[string]Edit),
		itemValues:  make(map[string]map[string]Edit),
		fieldValues: make(map[string][]Edit),
		folded:      make(map[string]bool),
	}
	for _, e := range cs.Edits {
		switch e.Kind {
		case EditFieldAdded, EditFieldRemoved, EditFieldTypeChanged:
			idx.fields[e.FieldName] = e
		case EditItemAdded, EditItemRemoved:
			idx.itemStruct[e.ItemID] = e
		case EditValueChanged:
			if idx.itemValues[e.ItemID] == nil {
				idx.itemValues[e.ItemID] = make(map[string]Edit)
			}
			idx.itemValues[e.ItemID][e.FieldName] = e
			idx.fieldValues[e.FieldName] = append(idx.fieldValues[e.FieldName], e)
		}
	}
	return idx
}

func resolveFields(report *ConflictReport, base, local, remote *models.ProjectRecord, li, ri *editIndex) {
	names := sortedUnion(mapKeys(li.fields), mapKeys(ri.fields))

	for _, name := range names {
		le, hasL := li.fields[name]
		re, hasR := ri.fields[name]

		entry := ReportEntry{Key: EditKey{Entity: EntityField, ID: name}}
		typeChanged := (hasL && le.Kind == EditFieldTypeChanged) || (hasR && re.Kind == EditFieldTypeChanged)

		switch {
		case typeChanged:
			// Field type changes are never auto-resolved, even when only
			// one side changed. Each side's list carries its value edits
			// under the field, so a choice takes that side wholesale.
			entry.Verdict = VerdictManual
			entry.SchemaChange = true
			entry.LocalEdits = sideEdits(le, hasL, consumeFieldValues(li, name))
			entry.RemoteEdits = sideEdits(re, hasR, consumeFieldValues(ri, name))

		case hasL && hasR:
			switch {
			case sameFieldOutcome(le, re) && le.Kind == EditFieldRemoved:
				// Both removed. The accompanying unset edits on both
				// sides are redundant with the removal.
				entry.Verdict = VerdictApplyLocal
				entry.LocalEdits = sideEdits(le, true, consumeFieldValues(li, name))
				consumeFieldValues(ri, name)
			case sameFieldOutcome(le, re):
				// Both added the same definition. Value edits under the
				// new field stay with the item pass so that each side's
				// independent rows survive.
				entry.Verdict = VerdictApplyLocal
				entry.LocalEdits = []Edit{le}
			default:
				entry.Verdict = VerdictManual
				entry.LocalEdits = sideEdits(le, true, consumeFieldValues(li, name))
				entry.RemoteEdits = sideEdits(re, true, consumeFieldValues(ri, name))
			}

		case hasL:
			if le.Kind == EditFieldRemoved && len(ri.fieldValues[name]) > 0 {
				// Local removed the field while the remote changed values
				// under it: a remove/modify race. Choosing remote
				// re-creates the definition before re-applying values.
				entry.Verdict = VerdictManual
				entry.LocalEdits = sideEdits(le, true, consumeFieldValues(li, name))
				entry.RemoteEdits = withFieldRestore(remote, name, consumeFieldValues(ri, name))
			} else if le.Kind == EditFieldRemoved {
				entry.Verdict = VerdictApplyLocal
				entry.LocalEdits = sideEdits(le, true, consumeFieldValues(li, name))
			} else {
				entry.Verdict = VerdictApplyLocal
				entry.LocalEdits = []Edit{le}
			}

		default:
			if re.Kind == EditFieldRemoved && len(li.fieldValues[name]) > 0 {
				entry.Verdict = VerdictManual
				entry.LocalEdits = withFieldRestore(local, name, consumeFieldValues(li, name))
				entry.RemoteEdits = sideEdits(re, true, consumeFieldValues(ri, name))
			} else if re.Kind == EditFieldRemoved {
				entry.Verdict = VerdictApplyRemote
				entry.RemoteEdits = sideEdits(re, true, consumeFieldValues(ri, name))
			} else {
				entry.Verdict = VerdictApplyRemote
				entry.RemoteEdits = []Edit{re}
			}
		}

		if entry.Verdict == VerdictManual {
			entry.Base = renderFieldState(base, name)
			entry.Local = renderFieldState(local, name)
			entry.Remote = renderFieldState(remote, name)
		}
		report.Entries = append(report.Entries, entry)
	}
}

// consumeFieldValues removes a field's value edits from the item pass and
// returns them ordered by item id.
func consumeFieldValues(idx *editIndex, name string) []Edit {
	idx.folded[name] = true
	values := append([]Edit(nil), idx.fieldValues[name]...)
	sort.Slice(values, func(i, j int) bool { return values[i].ItemID < values[j].ItemID })
	return values
}

func sideEdits(structural Edit, hasStructural bool, values []Edit) []Edit {
	var out []Edit
	if hasStructural {
		out = append(out, structural)
	}
	return append(out, values...)
}

// withFieldRestore prepends a field re-creation edit so that applying the
// side's value edits lands on an existing definition.
func withFieldRestore(rec *models.ProjectRecord, name string, values []Edit) []Edit {
	out := make([]Edit, 0, len(values)+1)
	if f := rec.FieldByName(name); f != nil {
		def := cloneField(*f)
		out = append(out, Edit{Kind: EditFieldAdded, FieldName: name, Field: &def})
	}
	return append(out, values...)
}

func resolveItems(report *ConflictReport, base, local, remote *models.ProjectRecord, li, ri *editIndex) {
	ids := sortedUnion(
		sortedUnion(mapKeys(li.itemStruct), mapKeys(ri.itemStruct)),
		sortedUnion(mapKeysOfValues(li.itemValues), mapKeysOfValues(ri.itemValues)),
	)

	for _, id := range ids {
		ls, hasLS := li.itemStruct[id]
		rs, hasRS := ri.itemStruct[id]
		lv := unfoldedValues(li, id)
		rv := unfoldedValues(ri, id)

		switch {
		case hasLS && hasRS:
			report.Entries = append(report.Entries, resolveStructPair(base, local, remote, id, ls, rs))

		case hasLS && ls.Kind == EditItemRemoved && len(rv) > 0:
			// Local removed the item, remote modified it.
			entry := ReportEntry{
				Key:        EditKey{Entity: EntityItem, ID: id},
				Verdict:    VerdictManual,
				Base:       renderItemState(base, id),
				Local:      renderItemState(local, id),
				Remote:     renderItemState(remote, id),
				LocalEdits: []Edit{ls},
			}
			if item := remote.ItemByID(id); item != nil {
				row := item.Clone()
				entry.RemoteEdits = []Edit{{Kind: EditItemAdded, ItemID: id, Item: &row}}
			}
			report.Entries = append(report.Entries, entry)

		case hasRS && rs.Kind == EditItemRemoved && len(lv) > 0:
			// Remote removed the item, local modified it. Choosing local
			// re-creates the item on the remote.
			entry := ReportEntry{
				Key:         EditKey{Entity: EntityItem, ID: id},
				Verdict:     VerdictManual,
				Base:        renderItemState(base, id),
				Local:       renderItemState(local, id),
				Remote:      renderItemState(remote, id),
				RemoteEdits: []Edit{rs},
			}
			if item := local.ItemByID(id); item != nil {
				row := item.Clone()
				entry.LocalEdits = []Edit{{Kind: EditItemAdded, ItemID: id, Item: &row}}
			}
			report.Entries = append(report.Entries, entry)

		case hasLS:
			report.Entries = append(report.Entries, ReportEntry{
				Key:        EditKey{Entity: EntityItem, ID: id},
				Verdict:    VerdictApplyLocal,
				LocalEdits: []Edit{ls},
			})

		case hasRS:
			report.Entries = append(report.Entries, ReportEntry{
				Key:         EditKey{Entity: EntityItem, ID: id},
				Verdict:     VerdictApplyRemote,
				RemoteEdits: []Edit{rs},
			})

		default:
			report.Entries = append(report.Entries, resolveValues(id, lv, rv)...)
		}
	}
}

func resolveStructPair(base, local, remote *models.ProjectRecord, id string, ls, rs Edit) ReportEntry {
	entry := ReportEntry{Key: EditKey{Entity: EntityItem, ID: id}}

	switch {
	case ls.Kind == EditItemRemoved && rs.Kind == EditItemRemoved:
		entry.Verdict = VerdictApplyLocal
		entry.LocalEdits = []Edit{ls}

	case ls.Kind == EditItemAdded && rs.Kind == EditItemAdded && sameItem(ls.Item, rs.Item):
		entry.Verdict = VerdictApplyLocal
		entry.LocalEdits = []Edit{ls}

	default:
		// Divergent additions, or an add/remove race.
		entry.Verdict = VerdictManual
		entry.Base = renderItemState(base, id)
		entry.Local = renderItemState(local, id)
		entry.Remote = renderItemState(remote, id)
		entry.LocalEdits = []Edit{ls}
		entry.RemoteEdits = []Edit{rs}
	}
	return entry
}

func resolveValues(id string, lv, rv map[string]Edit) []ReportEntry {
	var entries []ReportEntry
	for _, field := range sortedUnion(mapKeys(lv), mapKeys(rv)) {
		le, hasL := lv[field]
		re, hasR := rv[field]

		entry := ReportEntry{Key: EditKey{Entity: EntityItem, ID: id, Field: field}}
		switch {
		case hasL && hasR && le.NewValue == re.NewValue:
			entry.Verdict = VerdictApplyLocal
			entry.LocalEdits = []Edit{le}
		case hasL && hasR:
			entry.Verdict = VerdictManual
			entry.Base = describeValue(le.OldValue)
			entry.Local = describeValue(le.NewValue)
			entry.Remote = describeValue(re.NewValue)
			entry.LocalEdits = []Edit{le}
			entry.RemoteEdits = []Edit{re}
		case hasL:
			entry.Verdict = VerdictApplyLocal
			entry.LocalEdits = []Edit{le}
		default:
			entry.Verdict = VerdictApplyRemote
			entry.RemoteEdits = []Edit{re}
		}
		entries = append(entries, entry)
	}
	return entries
}

func unfoldedValues(idx *editIndex, id string) map[string]Edit {
	values := idx.itemValues[id]
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]Edit, len(values))
	for field, e := range values {
		if !idx.folded[field] {
			out[field] = e
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sameFieldOutcome(a, b Edit) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == EditFieldRemoved {
		return true
	}
	return sameFieldDef(a.Field, b.Field)
}

func sameFieldDef(a, b *models.Field) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || len(a.Options) != len(b.Options) {
		return false
	}
	for i := range a.Options {
		if a.Options[i] != b.Options[i] {
			return false
		}
	}
	return true
}

func sameItem(a, b *models.Item) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for k, v := range a.Values {
		if b.Values[k] != v {
			return false
		}
	}
	return true
}

func renderFieldState(rec *models.ProjectRecord, name string) string {
	f := rec.FieldByName(name)
	if f == nil {
		return "(absent)"
	}
	return describeField(f)
}

func renderItemState(rec *models.ProjectRecord, id string) string {
	item := rec.ItemByID(id)
	if item == nil {
		return "(absent)"
	}
	if len(item.Values) == 0 {
		return "present"
	}
	names := make([]string, 0, len(item.Values))
	for name := range item.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s=%s", name, item.Values[name]))
	}
	return "present: " + strings.Join(pairs, ", ")
}

func mapKeys(m map[string]Edit) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func mapKeysOfValues(m map[string]map[string]Edit) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
