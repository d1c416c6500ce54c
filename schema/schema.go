// Package schema holds the canonical typed model produced by the
// IceType compiler: an entity schema with its ordered fields, its
// directives and its version.
package schema

import (
	"fmt"
	"time"

	"github.com/go-openapi/inflect"

	"github.com/icetype/icetype/schema/field"
)

// Schema is the compiled form of one entity definition. Field order is
// declaration order and field names are unique. A Schema handed to the
// diff engine or a migration generator is read-only; evolution replaces
// the schema rather than mutating it.
type Schema struct {
	// Name is the entity name, taken from the "$type" key.
	Name string
	// Version is the declared schema version.
	Version Version
	// CreatedAt and UpdatedAt are informational timestamps carried
	// through from the definition's metadata, when present.
	CreatedAt time.Time
	UpdatedAt time.Time

	names      []string
	fields     map[string]*field.Definition
	directives map[string]any
	dirOrder   []string
}

// New returns an empty schema with the given entity name.
func New(name string) *Schema {
	return &Schema{
		Name:       name,
		fields:     make(map[string]*field.Definition),
		directives: make(map[string]any),
	}
}

// AddField appends a field in declaration order. It fails if the name
// is already taken.
func (s *Schema) AddField(name string, def *field.Definition) error {
	if _, ok := s.fields[name]; ok {
		return fmt.Errorf("icetype/schema: duplicate field %q in schema %q", name, s.Name)
	}
	s.names = append(s.names, name)
	s.fields[name] = def
	return nil
}

// SetDirective records a "$"-prefixed directive with its raw value.
// Directive values are opaque to the compiler; their semantics belong
// to downstream consumers.
func (s *Schema) SetDirective(name string, value any) {
	if _, ok := s.directives[name]; !ok {
		s.dirOrder = append(s.dirOrder, name)
	}
	s.directives[name] = value
}

// Field returns the definition of the named field.
func (s *Schema) Field(name string) (*field.Definition, bool) {
	def, ok := s.fields[name]
	return def, ok
}

// FieldNames returns the field names in declaration order. The
// returned slice is a copy.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// NumFields returns the number of fields.
func (s *Schema) NumFields() int {
	return len(s.names)
}

// Directive returns the raw value of the named directive.
func (s *Schema) Directive(name string) (any, bool) {
	v, ok := s.directives[name]
	return v, ok
}

// DirectiveNames returns the directive names in declaration order.
func (s *Schema) DirectiveNames() []string {
	names := make([]string, len(s.dirOrder))
	copy(names, s.dirOrder)
	return names
}

// Table derives the storage table name for the entity: pluralized
// snake_case, following common ORM conventions ("UserProfile" becomes
// "user_profiles").
func (s *Schema) Table() string {
	return inflect.Tableize(s.Name)
}

// Version is a plain semantic version triple. Versions are compared
// lexicographically by (major, minor, patch).
type Version struct {
	Major int
	Minor int
	Patch int
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 if v is less than, equal to or greater
// than other.
func (v Version) Compare(other Version) int {
	for _, d := range [...]int{v.Major - other.Major, v.Minor - other.Minor, v.Patch - other.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	return 0
}

// IsZero reports whether the version was never set.
func (v Version) IsZero() bool {
	return v == Version{}
}

// ParseVersion parses a "major.minor.patch" string. Missing minor or
// patch components default to zero.
func ParseVersion(s string) (Version, error) {
	var v Version
	parts := [...]*int{&v.Major, &v.Minor, &v.Patch}
	i, start := 0, 0
	for pos := 0; pos <= len(s); pos++ {
		if pos < len(s) && s[pos] != '.' {
			if s[pos] < '0' || s[pos] > '9' {
				return Version{}, fmt.Errorf("icetype/schema: invalid version %q", s)
			}
			continue
		}
		if pos == start || i >= len(parts) {
			return Version{}, fmt.Errorf("icetype/schema: invalid version %q", s)
		}
		n := 0
		for _, c := range s[start:pos] {
			n = n*10 + int(c-'0')
		}
		*parts[i] = n
		i++
		start = pos + 1
	}
	if i == 0 {
		return Version{}, fmt.Errorf("icetype/schema: invalid version %q", s)
	}
	return v, nil
}
