// Package diff compares two compiled schemas structurally and reports
// the ordered set of changes between them, including inferred field
// renames and the breaking-change classification.
package diff

import (
	"encoding/json"
	"fmt"

	"github.com/icetype/icetype/schema"
	"github.com/icetype/icetype/schema/field"
)

// Change is one structural difference between two schemas. The
// concrete types form a closed set; the migration framework matches
// exhaustively over them so every kind has a forward and a reverse
// handler.
type Change interface {
	// String renders the change for diagnostics and warnings.
	String() string

	isChange()
}

// AddField reports a field present only in the new schema.
type AddField struct {
	Field string
	Def   *field.Definition
}

// RemoveField reports a field present only in the old schema. Def is
// the removed field's old definition, kept so that irreversible-drop
// reports can suggest a corrective statement.
type RemoveField struct {
	Field string
	Def   *field.Definition
}

// RenameField reports a field that changed name but kept its exact
// type and array-ness.
type RenameField struct {
	From string
	To   string
}

// ChangeType reports a field whose storage type changed: base type,
// array-ness, or a length/precision/scale parameter.
type ChangeType struct {
	Field string
	From  *field.Definition
	To    *field.Definition
}

// ChangeModifier reports a field whose required/optional or unique
// state changed.
type ChangeModifier struct {
	Field string
	From  *field.Definition
	To    *field.Definition
}

// ChangeDirective reports a directive whose serialized value differs
// between the schemas. From or To is nil when the directive exists on
// one side only.
type ChangeDirective struct {
	Directive string
	From      any
	To        any
}

func (AddField) isChange()        {}
func (RemoveField) isChange()     {}
func (RenameField) isChange()     {}
func (ChangeType) isChange()      {}
func (ChangeModifier) isChange()  {}
func (ChangeDirective) isChange() {}

// String returns "add field x (type)".
func (c AddField) String() string {
	return fmt.Sprintf("add field %s (%s)", c.Field, c.Def)
}

// String returns "remove field x (type)".
func (c RemoveField) String() string {
	return fmt.Sprintf("remove field %s (%s)", c.Field, c.Def)
}

// String returns "rename field x to y".
func (c RenameField) String() string {
	return fmt.Sprintf("rename field %s to %s", c.From, c.To)
}

// String returns "change type of x from a to b".
func (c ChangeType) String() string {
	return fmt.Sprintf("change type of %s from %s to %s", c.Field, c.From, c.To)
}

// String returns "change modifier of x from a to b".
func (c ChangeModifier) String() string {
	return fmt.Sprintf("change modifier of %s from %q to %q", c.Field, c.From, c.To)
}

// String returns "change directive $x".
func (c ChangeDirective) String() string {
	return fmt.Sprintf("change directive %s from %s to %s", c.Directive, serialize(c.From), serialize(c.To))
}

// SchemaDiff is the ordered result of comparing two schemas. It is
// created fresh per comparison and never mutated afterwards; the same
// diff may be handed to several migration generators concurrently.
type SchemaDiff struct {
	// SchemaName is the entity name of the new schema.
	SchemaName string
	// Changes is the ordered change sequence. A field name appears in
	// at most one change of each kind; renames subsume what would
	// otherwise be an add/remove pair.
	Changes []Change
	// IsBreaking is true iff a field was removed or a field became
	// required.
	IsBreaking bool
	// FromVersion and ToVersion carry the schemas' declared versions.
	FromVersion schema.Version
	ToVersion   schema.Version
	// Diagnostics holds non-fatal findings, e.g. a name disagreement
	// between the compared schemas.
	Diagnostics []string

	oldSchema *schema.Schema
	newSchema *schema.Schema
}

// Empty reports whether the schemas were structurally identical.
func (d *SchemaDiff) Empty() bool {
	return len(d.Changes) == 0
}

// Old returns the old schema the diff was computed from, read-only.
func (d *SchemaDiff) Old() *schema.Schema { return d.oldSchema }

// New returns the new schema the diff was computed from, read-only.
func (d *SchemaDiff) New() *schema.Schema { return d.newSchema }

// Schemas compares old and new field-by-field and directive-by-
// directive. It is pure and deterministic: changes appear in the order
// fields are declared in the new schema, with removals appended last.
//
// Rename inference pairs an old-only field with a new-only field of
// the exact same type and array-ness, in declaration order. A field
// that changed both name and type is deliberately reported as a
// remove/add pair instead of a rename.
//
// Comparing schemas whose names disagree is recorded as a diagnostic;
// the diff still proceeds.
func Schemas(old, new *schema.Schema) *SchemaDiff {
	d := &SchemaDiff{
		SchemaName:  new.Name,
		FromVersion: old.Version,
		ToVersion:   new.Version,
		oldSchema:   old,
		newSchema:   new,
	}
	if old.Name != new.Name {
		d.Diagnostics = append(d.Diagnostics,
			fmt.Sprintf("schema names disagree: diffing %q against %q", old.Name, new.Name))
	}

	oldNames, newNames := old.FieldNames(), new.FieldNames()
	common := make(map[string]bool)
	var onlyOld, onlyNew []string
	for _, name := range oldNames {
		if _, ok := new.Field(name); ok {
			common[name] = true
		} else {
			onlyOld = append(onlyOld, name)
		}
	}
	for _, name := range newNames {
		if !common[name] {
			onlyNew = append(onlyNew, name)
		}
	}

	// Rename inference runs before add/remove: pair each vanished old
	// field with the first unused appeared field of identical shape.
	renamed := make(map[string]string, len(onlyOld)) // old name -> new name
	used := make(map[string]bool, len(onlyNew))
	for _, oldName := range onlyOld {
		oldDef, _ := old.Field(oldName)
		for _, newName := range onlyNew {
			if used[newName] {
				continue
			}
			newDef, _ := new.Field(newName)
			if oldDef.SameShape(newDef) {
				renamed[oldName] = newName
				used[newName] = true
				break
			}
		}
	}
	renameTarget := make(map[string]string, len(renamed)) // new name -> old name
	for o, n := range renamed {
		renameTarget[n] = o
	}

	// Walk the new schema in declaration order.
	for _, name := range newNames {
		newDef, _ := new.Field(name)
		switch {
		case common[name]:
			oldDef, _ := old.Field(name)
			if typeChanged(oldDef, newDef) {
				d.Changes = append(d.Changes, ChangeType{Field: name, From: oldDef, To: newDef})
			}
			if modifierChanged(oldDef, newDef) {
				d.Changes = append(d.Changes, ChangeModifier{Field: name, From: oldDef, To: newDef})
			}
		case renameTarget[name] != "":
			d.Changes = append(d.Changes, RenameField{From: renameTarget[name], To: name})
		default:
			d.Changes = append(d.Changes, AddField{Field: name, Def: newDef})
		}
	}

	// Removals go last, in old declaration order.
	for _, name := range onlyOld {
		if renamed[name] != "" {
			continue
		}
		def, _ := old.Field(name)
		d.Changes = append(d.Changes, RemoveField{Field: name, Def: def})
	}

	// Directives: new-schema order first, then directives that only
	// the old schema had.
	seen := make(map[string]bool)
	for _, name := range new.DirectiveNames() {
		seen[name] = true
		newVal, _ := new.Directive(name)
		oldVal, ok := old.Directive(name)
		if !ok {
			d.Changes = append(d.Changes, ChangeDirective{Directive: name, To: newVal})
			continue
		}
		if serialize(oldVal) != serialize(newVal) {
			d.Changes = append(d.Changes, ChangeDirective{Directive: name, From: oldVal, To: newVal})
		}
	}
	for _, name := range old.DirectiveNames() {
		if seen[name] {
			continue
		}
		oldVal, _ := old.Directive(name)
		d.Changes = append(d.Changes, ChangeDirective{Directive: name, From: oldVal})
	}

	d.IsBreaking = breaking(d.Changes)
	return d
}

// typeChanged reports a storage-type difference: base type, array-ness
// or a size parameter.
func typeChanged(old, new *field.Definition) bool {
	return old.Type != new.Type ||
		old.IsArray != new.IsArray ||
		old.Precision != new.Precision ||
		old.Scale != new.Scale ||
		old.Length != new.Length
}

// modifierChanged reports a required/optional or unique difference.
func modifierChanged(old, new *field.Definition) bool {
	oldOpt, oldUniq := old.ModifierState()
	newOpt, newUniq := new.ModifierState()
	return oldOpt != newOpt || oldUniq != newUniq
}

// breaking implements the classification invariant: a diff is breaking
// iff it removes a field or moves a field to required.
func breaking(changes []Change) bool {
	for _, c := range changes {
		switch c := c.(type) {
		case RemoveField:
			return true
		case ChangeModifier:
			if c.From.IsOptional && !c.To.IsOptional {
				return true
			}
		}
	}
	return false
}

// serialize renders a directive value in a canonical textual form for
// comparison. JSON is used because it orders map keys.
func serialize(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
