package field

import (
	"fmt"
	"strings"
)

// Modifier is the nullability/uniqueness marker attached to a field.
// Exactly one of Required/Optional is semantically active for every
// field; a field with no written modifier defaults to Required.
type Modifier uint8

// Modifier values, in the order they appear in definitions.
const (
	ModifierNone Modifier = iota
	ModifierRequired
	ModifierOptional
	ModifierUnique
)

// String returns the definition-language spelling of the modifier.
func (m Modifier) String() string {
	switch m {
	case ModifierRequired:
		return "!"
	case ModifierOptional:
		return "?"
	case ModifierUnique:
		return "#"
	default:
		return ""
	}
}

// RelationKind describes how a relation field points at its target.
type RelationKind uint8

// Relation kinds.
const (
	// RelationToOne is a forward relation to a single target entity ("-> Entity").
	RelationToOne RelationKind = iota
	// RelationToMany is a forward relation to many target entities ("-> Entity[]").
	RelationToMany
	// RelationInverse is the back-reference side of a relation ("<- Entity.field").
	RelationInverse
)

// String returns a human-readable name for the relation kind.
func (k RelationKind) String() string {
	switch k {
	case RelationToOne:
		return "to-one"
	case RelationToMany:
		return "to-many"
	case RelationInverse:
		return "inverse"
	default:
		return fmt.Sprintf("RelationKind(%d)", k)
	}
}

// Relation describes the target of a relation field.
type Relation struct {
	// Kind is the relation cardinality/direction.
	Kind RelationKind
	// Target is the name of the related entity.
	Target string
	// ThroughField names the field on the target entity that an inverse
	// relation refers back to. Empty for forward relations.
	ThroughField string
}

// Definition is the compiled form of one field-type expression.
// A Definition is created once by the parser and never mutated
// afterwards; schema evolution replaces the schema, not its fields.
type Definition struct {
	// Type is the canonical base type name (e.g. "uuid", "string",
	// "decimal"). For relation fields it is the target entity name.
	Type string
	// IsArray reports a trailing "[]" on the base type.
	IsArray bool
	// IsOptional reports the "?" modifier. A field is either optional
	// or required; required is the default.
	IsOptional bool
	// IsUnique reports the "#" modifier.
	IsUnique bool
	// IsIndexed is true for unique fields and for fields indexed by a
	// directive. IsUnique implies IsIndexed.
	IsIndexed bool
	// Modifier is the written modifier mark, or ModifierNone when the
	// definition had none (in which case the field is still required).
	Modifier Modifier
	// Precision and Scale hold the "(n,m)" parameters of decimal-like
	// types. Scale is zero when only "(n)" was written.
	Precision int
	Scale     int
	// Length holds the "(n)" parameter of length-bearing types such as
	// varchar.
	Length int
	// Default is the verbatim text of the "= expr" clause. It is
	// opaque: call-like expressions ("now()", "uuid()") are stored
	// as-is and never evaluated.
	Default string
	// Relation is non-nil for relation fields ("-> Entity", "<- Entity.field").
	Relation *Relation
}

// Required reports whether the field must be present. It is the
// complement of IsOptional, including the unwritten default.
func (d *Definition) Required() bool {
	return !d.IsOptional
}

// HasDefault reports whether the definition carries a default expression.
func (d *Definition) HasDefault() bool {
	return d.Default != ""
}

// IsRelation reports whether the field is a relation to another entity.
func (d *Definition) IsRelation() bool {
	return d.Relation != nil
}

// SameShape reports whether two definitions share the exact base type
// and array-ness. Rename inference pairs fields only on shape equality.
func (d *Definition) SameShape(other *Definition) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Type == other.Type && d.IsArray == other.IsArray
}

// ModifierState is the (required/optional, unique) pair a diff compares.
// Two definitions with equal states need no modifier migration.
func (d *Definition) ModifierState() (optional, unique bool) {
	return d.IsOptional, d.IsUnique
}

// String renders the definition back in the definition language. The
// output parses to an equivalent Definition, although insignificant
// spacing may differ from the source text.
func (d *Definition) String() string {
	var sb strings.Builder
	if r := d.Relation; r != nil {
		if r.Kind == RelationInverse {
			sb.WriteString("<- ")
			sb.WriteString(r.Target)
			if r.ThroughField != "" {
				sb.WriteString(".")
				sb.WriteString(r.ThroughField)
			}
		} else {
			sb.WriteString("-> ")
			sb.WriteString(r.Target)
		}
		if d.IsArray {
			sb.WriteString("[]")
		}
		if d.IsOptional {
			sb.WriteString("?")
		}
		return sb.String()
	}
	sb.WriteString(d.Type)
	if d.IsArray {
		sb.WriteString("[]")
	}
	if d.Modifier != ModifierNone {
		sb.WriteString(d.Modifier.String())
	}
	if d.IsUnique && d.Modifier != ModifierUnique {
		sb.WriteString(ModifierUnique.String())
	}
	switch {
	case d.Length > 0:
		fmt.Fprintf(&sb, "(%d)", d.Length)
	case d.Precision > 0 && d.Scale > 0:
		fmt.Fprintf(&sb, "(%d,%d)", d.Precision, d.Scale)
	case d.Precision > 0:
		fmt.Fprintf(&sb, "(%d)", d.Precision)
	}
	if d.Default != "" {
		sb.WriteString(" = ")
		sb.WriteString(d.Default)
	}
	return sb.String()
}

// Clone returns a deep copy of the definition. Consumers that must
// derive a variant of a parsed field copy it first; the parsed value
// itself stays immutable.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	nd := *d
	if d.Relation != nil {
		r := *d.Relation
		nd.Relation = &r
	}
	return &nd
}
