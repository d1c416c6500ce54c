// Package parser compiles IceType definitions into the typed schema
// model: single field-type expressions via ParseField and whole entity
// definitions via ParseSchema.
package parser

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/icetype/icetype/compiler/lexer"
	"github.com/icetype/icetype/schema"
	"github.com/icetype/icetype/schema/field"
)

// Reserved definition keys consumed by the parser itself. Every other
// "$"-prefixed key is recorded as an opaque directive.
const (
	// KeyType supplies the entity name and is mandatory.
	KeyType = "$type"
	// KeyVersion holds the schema version as "major.minor.patch".
	KeyVersion = "$version"
	// KeyCreatedAt and KeyUpdatedAt hold RFC 3339 timestamps.
	KeyCreatedAt = "$createdAt"
	KeyUpdatedAt = "$updatedAt"
)

// ParseError reports malformed field-type text. It carries the byte
// offset of the failure so callers can point at file:line:column.
type ParseError struct {
	// Input is the text being parsed.
	Input string
	// Pos is the byte offset at which parsing failed.
	Pos int
	// Expected describes what the parser was looking for.
	Expected string
}

// Error returns the error string.
func (e *ParseError) Error() string {
	return fmt.Sprintf("icetype: parse %q: expected %s at offset %d", e.Input, e.Expected, e.Pos)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// ParseField compiles one field-type expression into a definition.
//
//	ParseField("uuid!# = uuid()")
//	ParseField("decimal(10,2)")
//	ParseField("-> User?")
//	ParseField("<- Post.author[]")
//
// The returned definition is immutable; see the field package for the
// grammar.
func ParseField(text string) (*field.Definition, error) {
	p := &fieldParser{input: text, tokens: lexer.Tokenize(text)}
	return p.parse()
}

// lengthTypes are base types whose single "(n)" parameter is a length
// rather than a precision.
var lengthTypes = map[string]bool{
	"varchar": true,
	"char":    true,
}

type fieldParser struct {
	input  string
	tokens []lexer.Token
	pos    int
}

func (p *fieldParser) next() (lexer.Token, bool) {
	if p.pos >= len(p.tokens) {
		return lexer.Token{}, false
	}
	t := p.tokens[p.pos]
	p.pos++
	return t, true
}

func (p *fieldParser) peek() (lexer.Token, bool) {
	if p.pos >= len(p.tokens) {
		return lexer.Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *fieldParser) errorf(pos int, format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: pos, Expected: fmt.Sprintf(format, args...)}
}

func (p *fieldParser) parse() (*field.Definition, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.errorf(0, "field type")
	}
	switch tok.Kind {
	case lexer.ArrowTo, lexer.ArrowFrom:
		return p.parseRelation(tok)
	case lexer.Ident:
		return p.parseBase(tok)
	default:
		return nil, p.errorf(tok.Pos, "type name or relation arrow, got %s", tok.Kind)
	}
}

// parseBase parses "BaseType Array? Modifiers? Params? Default?".
// Modifiers and parameters are accepted in either order, matching the
// looseness of hand-written definitions; each may appear once.
func (p *fieldParser) parseBase(base lexer.Token) (*field.Definition, error) {
	def := &field.Definition{Type: base.Text}
	var sawParams bool
	for {
		tok, ok := p.next()
		if !ok {
			return def, nil
		}
		switch tok.Kind {
		case lexer.LBracket:
			if def.IsArray {
				return nil, p.errorf(tok.Pos, "single array marker, got a second '['")
			}
			closing, ok := p.next()
			if !ok || closing.Kind != lexer.RBracket {
				return nil, p.errorf(tok.Pos, "']' to close array marker")
			}
			def.IsArray = true
		case lexer.Modifier:
			if err := p.applyModifier(def, tok); err != nil {
				return nil, err
			}
		case lexer.LParen:
			if sawParams {
				return nil, p.errorf(tok.Pos, "single parameter list, got a second '('")
			}
			if err := p.parseParams(def, tok); err != nil {
				return nil, err
			}
			sawParams = true
		case lexer.Equals:
			expr, ok := p.next()
			if !ok || expr.Kind != lexer.Expr {
				return nil, p.errorf(tok.Pos+1, "default expression after '='")
			}
			def.Default = expr.Text
			return def, nil
		default:
			return nil, p.errorf(tok.Pos, "modifier, array marker, parameters or default, got %s", tok.Kind)
		}
	}
}

// applyModifier folds one "!", "?" or "#" mark into the definition.
func (p *fieldParser) applyModifier(def *field.Definition, tok lexer.Token) error {
	switch tok.Text {
	case "!":
		if def.Modifier == field.ModifierRequired {
			return p.errorf(tok.Pos, "each modifier at most once, got '!' twice")
		}
		if def.IsOptional {
			return p.errorf(tok.Pos, "either '!' or '?', not both")
		}
		def.Modifier = field.ModifierRequired
	case "?":
		if def.IsOptional {
			return p.errorf(tok.Pos, "each modifier at most once, got '?' twice")
		}
		if def.Modifier == field.ModifierRequired {
			return p.errorf(tok.Pos, "either '!' or '?', not both")
		}
		def.IsOptional = true
		if def.Modifier == field.ModifierNone {
			def.Modifier = field.ModifierOptional
		}
	case "#":
		if def.IsUnique {
			return p.errorf(tok.Pos, "each modifier at most once, got '#' twice")
		}
		def.IsUnique = true
		def.IsIndexed = true
		if def.Modifier == field.ModifierNone {
			def.Modifier = field.ModifierUnique
		}
	}
	return nil
}

// parseParams parses "(n)" or "(n,m)" after the opening paren. A
// single parameter is a length for length-bearing types and a
// precision otherwise; a pair is always precision/scale.
func (p *fieldParser) parseParams(def *field.Definition, open lexer.Token) error {
	first, err := p.parseInt(open.Pos)
	if err != nil {
		return err
	}
	tok, ok := p.next()
	if !ok {
		return p.errorf(open.Pos, "')' to close parameter list")
	}
	switch tok.Kind {
	case lexer.RParen:
		if lengthTypes[strings.ToLower(def.Type)] {
			def.Length = first
		} else {
			def.Precision = first
		}
		return nil
	case lexer.Comma:
		second, err := p.parseInt(tok.Pos)
		if err != nil {
			return err
		}
		closing, ok := p.next()
		if !ok || closing.Kind != lexer.RParen {
			return p.errorf(open.Pos, "')' to close parameter list")
		}
		def.Precision, def.Scale = first, second
		return nil
	default:
		return p.errorf(tok.Pos, "',' or ')' in parameter list, got %s", tok.Kind)
	}
}

// parseInt consumes one non-negative integer parameter.
func (p *fieldParser) parseInt(after int) (int, error) {
	tok, ok := p.next()
	if !ok {
		return 0, p.errorf(after, "non-negative integer parameter")
	}
	n, err := strconv.Atoi(tok.Text)
	if tok.Kind != lexer.Ident || err != nil || n < 0 {
		return 0, p.errorf(tok.Pos, "non-negative integer parameter, got %q", tok.Text)
	}
	return n, nil
}

// parseRelation parses "-> Target" and "<- Target.field" forms,
// followed by an optional array marker and modifiers.
func (p *fieldParser) parseRelation(arrow lexer.Token) (*field.Definition, error) {
	target, ok := p.next()
	if !ok || target.Kind != lexer.Ident {
		return nil, p.errorf(arrow.Pos+len(arrow.Text), "relation target after %s", arrow.Kind)
	}
	rel := &field.Relation{Target: target.Text}
	if arrow.Kind == lexer.ArrowFrom {
		rel.Kind = field.RelationInverse
		if name, through, ok := strings.Cut(target.Text, "."); ok {
			if name == "" || through == "" || strings.Contains(through, ".") {
				return nil, p.errorf(target.Pos, "relation target of the form Entity.field")
			}
			rel.Target, rel.ThroughField = name, through
		}
	}
	def := &field.Definition{Type: rel.Target, Relation: rel}
	for {
		tok, ok := p.next()
		if !ok {
			break
		}
		switch tok.Kind {
		case lexer.LBracket:
			if def.IsArray {
				return nil, p.errorf(tok.Pos, "single array marker, got a second '['")
			}
			closing, ok := p.next()
			if !ok || closing.Kind != lexer.RBracket {
				return nil, p.errorf(tok.Pos, "']' to close array marker")
			}
			def.IsArray = true
		case lexer.Modifier:
			if tok.Text == "#" {
				return nil, p.errorf(tok.Pos, "'!' or '?' on a relation, got '#'")
			}
			if err := p.applyModifier(def, tok); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(tok.Pos, "array marker or modifier after relation target, got %s", tok.Kind)
		}
	}
	if arrow.Kind == lexer.ArrowTo {
		if def.IsArray {
			rel.Kind = field.RelationToMany
		} else {
			rel.Kind = field.RelationToOne
		}
	}
	return def, nil
}

// Document is an ordered schema definition: a sequence of key/value
// pairs where insertion order is declaration order. YAML and JSON
// loaders build one while reading to keep field order stable.
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument returns an empty definition document.
func NewDocument() *Document {
	return &Document{values: make(map[string]any)}
}

// Set appends a key/value pair, replacing the value (but keeping the
// position) of an existing key.
func (d *Document) Set(key string, value any) *Document {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return d
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// ParseSchema compiles a whole definition document. Keys that do not
// start with "$" are fields and must hold a field-type string; the
// mandatory "$type" key names the entity; the remaining "$"-prefixed
// keys are directives stored with their raw value. Directive semantics
// are not validated here, only recorded.
func ParseSchema(doc *Document) (*schema.Schema, error) {
	name, ok := doc.Get(KeyType)
	if !ok {
		return nil, fmt.Errorf("icetype: definition is missing the %q key", KeyType)
	}
	typeName, ok := name.(string)
	if !ok || typeName == "" {
		return nil, fmt.Errorf("icetype: %q must be a non-empty string, got %v", KeyType, name)
	}
	s := schema.New(typeName)
	for _, key := range doc.keys {
		value, _ := doc.Get(key)
		if !strings.HasPrefix(key, "$") {
			text, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("icetype: field %q in schema %q must be a type string, got %T", key, typeName, value)
			}
			def, err := ParseField(text)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			if err := s.AddField(key, def); err != nil {
				return nil, err
			}
			continue
		}
		switch key {
		case KeyType:
		case KeyVersion:
			text, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("icetype: %q in schema %q must be a string, got %T", key, typeName, value)
			}
			v, err := schema.ParseVersion(text)
			if err != nil {
				return nil, err
			}
			s.Version = v
		case KeyCreatedAt, KeyUpdatedAt:
			ts, err := parseTime(value)
			if err != nil {
				return nil, fmt.Errorf("icetype: %q in schema %q: %w", key, typeName, err)
			}
			if key == KeyCreatedAt {
				s.CreatedAt = ts
			} else {
				s.UpdatedAt = ts
			}
		default:
			s.SetDirective(key, value)
		}
	}
	return s, nil
}

// ParseSchemaMap is a convenience for programmatic callers holding a
// plain map. Field declaration order is not recoverable from a Go map,
// so keys are ordered lexicographically: deterministic, if not the
// author's order. Prefer ParseSchema with a Document when order
// matters.
func ParseSchemaMap(def map[string]any) (*schema.Schema, error) {
	doc := NewDocument()
	keys := make([]string, 0, len(def))
	for k := range def {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		doc.Set(k, def[k])
	}
	return ParseSchema(doc)
}

func parseTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp must be RFC 3339: %w", err)
		}
		return ts, nil
	default:
		return time.Time{}, fmt.Errorf("timestamp must be a string, got %T", value)
	}
}
