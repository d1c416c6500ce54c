package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/icetype/icetype/compiler/parser"
	"github.com/icetype/icetype/schema"
)

// LoadFile parses every YAML document in one schema file. Mapping
// order is read off the YAML node tree directly, so fields keep their
// declaration order.
func LoadFile(path string) ([]*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("icetype/load: read schema: %w", err)
	}
	schemas, err := parseDocuments(data)
	if err != nil {
		return nil, fmt.Errorf("icetype/load: %s: %w", path, err)
	}
	return schemas, nil
}

// Load resolves the configured schema paths: files load directly,
// directories load every .yaml/.yml file inside in name order.
// Duplicate schema names across files are an error.
func Load(paths []string) ([]*schema.Schema, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("icetype/load: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isSchemaFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("icetype/load: walk %s: %w", p, err)
		}
	}
	slices.Sort(files)

	var schemas []*schema.Schema
	seen := make(map[string]string)
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		for _, s := range loaded {
			if prev, ok := seen[s.Name]; ok {
				return nil, fmt.Errorf("icetype/load: schema %q defined in both %s and %s", s.Name, prev, f)
			}
			seen[s.Name] = f
			schemas = append(schemas, s)
		}
	}
	return schemas, nil
}

func isSchemaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// parseDocuments decodes each YAML document into an ordered parser
// document and compiles it.
func parseDocuments(data []byte) ([]*schema.Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var schemas []*schema.Schema
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return schemas, nil
		}
		if err != nil {
			return nil, err
		}
		doc, err := documentOf(&node)
		if err != nil {
			return nil, err
		}
		s, err := parser.ParseSchema(doc)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
}

// documentOf converts a YAML mapping node to an ordered document.
// Field values stay strings; directive values decode to plain Go
// values.
func documentOf(node *yaml.Node) (*parser.Document, error) {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema document must be a mapping, got yaml kind %d", node.Kind)
	}
	doc := parser.NewDocument()
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		doc.Set(key, value)
	}
	return doc, nil
}
