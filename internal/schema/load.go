package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when the schema file does not exist.
	ErrNotFound = errors.New("schema not found")

	// ErrMalformed is returned when the schema file cannot be parsed.
	ErrMalformed = errors.New("schema malformed")
)

// document mirrors the on-disk layout:
//
//	columns: [ <name> | {name: <name>, type: <tag>}, ... ]
//	required: [ <name>, ... ]
//	unique_keys: [ <name>, ... ]
//	validations: { Email: <regex|email>, Date: <pattern>, Time: <pattern> }
type document struct {
	Columns     []columnDecl      `yaml:"columns"`
	Required    []string          `yaml:"required"`
	UniqueKeys  []string          `yaml:"unique_keys"`
	Validations map[string]string `yaml:"validations"`
}

// columnDecl accepts both column shorthands. Entries that name no column
// (null scalars, mappings without name) are dropped.
type columnDecl struct {
	name  string
	tag   string
	valid bool
}

func (c *columnDecl) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			return nil
		}
		c.name, c.tag, c.valid = value.Value, "string", true
		return nil

	case yaml.MappingNode:
		var entry struct {
			Name *string `yaml:"name"`
			Type *string `yaml:"type"`
		}
		if err := value.Decode(&entry); err != nil {
			return err
		}
		if entry.Name == nil {
			return nil
		}
		c.name, c.tag, c.valid = *entry.Name, "string", true
		if entry.Type != nil {
			c.tag = strings.ToLower(*entry.Type)
		}
		return nil
	}
	return fmt.Errorf("line %d: column entry must be a name or a {name, type} mapping", value.Line)
}

// Parse decodes a schema definition. An empty document is a valid schema with
// no rules.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	s := &Schema{
		Required:   nonNil(doc.Required),
		UniqueKeys: nonNil(doc.UniqueKeys),
		Formats: StrictFormats{
			Email: doc.Validations[EmailColumn],
			Date:  doc.Validations[DateColumn],
			Time:  doc.Validations[TimeColumn],
		},
	}

	// Redeclaring a name keeps its first position and takes the later type.
	pos := make(map[string]int, len(doc.Columns))
	for _, decl := range doc.Columns {
		if !decl.valid {
			continue
		}
		col := Column{Name: decl.name, Tag: decl.tag, Type: ParseType(decl.tag)}
		if i, ok := pos[col.Name]; ok {
			s.Columns[i] = col
			continue
		}
		pos[col.Name] = len(s.Columns)
		s.Columns = append(s.Columns, col)
	}

	return s, nil
}

// Load reads and parses the schema file at path.
func Load(path string) (*Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("schema: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMalformed, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = filepath.Clean(path)
	return s, nil
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
