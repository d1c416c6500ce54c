package schema

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/icetype/icetype/schema/field"
)

// snapshot is the wire form of a compiled schema. Field order is
// preserved by encoding fields as an ordered list instead of a map.
type snapshot struct {
	Name       string              `msgpack:"name"`
	Version    string              `msgpack:"version,omitempty"`
	CreatedAt  time.Time           `msgpack:"created_at,omitempty"`
	UpdatedAt  time.Time           `msgpack:"updated_at,omitempty"`
	Fields     []snapshotField     `msgpack:"fields"`
	Directives []snapshotDirective `msgpack:"directives,omitempty"`
}

type snapshotField struct {
	Name       string `msgpack:"name"`
	Definition string `msgpack:"def"`
	Indexed    bool   `msgpack:"indexed,omitempty"`
}

type snapshotDirective struct {
	Name  string `msgpack:"name"`
	Value any    `msgpack:"value"`
}

// MarshalSnapshot encodes the schema in a compact binary form so tools
// can persist the compiled model between runs and diff against it
// later without re-reading the source definition.
func MarshalSnapshot(s *Schema) ([]byte, error) {
	snap := snapshot{
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if !s.Version.IsZero() {
		snap.Version = s.Version.String()
	}
	for _, name := range s.names {
		def := s.fields[name]
		snap.Fields = append(snap.Fields, snapshotField{
			Name:       name,
			Definition: def.String(),
			Indexed:    def.IsIndexed && !def.IsUnique,
		})
	}
	for _, name := range s.dirOrder {
		snap.Directives = append(snap.Directives, snapshotDirective{Name: name, Value: s.directives[name]})
	}
	return msgpack.Marshal(&snap)
}

// UnmarshalSnapshot decodes a schema previously written by
// MarshalSnapshot. The parse function converts each stored field
// expression back into a definition; callers pass the compiler's
// ParseField to avoid an import cycle between the model and the
// compiler.
func UnmarshalSnapshot(data []byte, parse func(string) (*field.Definition, error)) (*Schema, error) {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("icetype/schema: decode snapshot: %w", err)
	}
	s := New(snap.Name)
	s.CreatedAt = snap.CreatedAt
	s.UpdatedAt = snap.UpdatedAt
	if snap.Version != "" {
		v, err := ParseVersion(snap.Version)
		if err != nil {
			return nil, err
		}
		s.Version = v
	}
	for _, f := range snap.Fields {
		def, err := parse(f.Definition)
		if err != nil {
			return nil, fmt.Errorf("icetype/schema: snapshot field %q: %w", f.Name, err)
		}
		if f.Indexed {
			def = def.Clone()
			def.IsIndexed = true
		}
		if err := s.AddField(f.Name, def); err != nil {
			return nil, err
		}
	}
	for _, d := range snap.Directives {
		s.SetDirective(d.Name, d.Value)
	}
	return s, nil
}
