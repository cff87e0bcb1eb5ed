// Package schema turns raw sales-export tables into normalized records. The
// whole engine is driven by the declarative mapping table in mappings.yaml:
// header recognition, type coercion, per-format required fields and the two
// synthesis fallbacks all key off it.
package schema

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"sales-insights-go/internal/types"
)

//go:embed mappings.yaml
var defaultMappings []byte

type DataType string

const (
	TypeString   DataType = "string"
	TypeFloat    DataType = "float"
	TypeInt      DataType = "int"
	TypeDatetime DataType = "datetime"
)

type Scope string

const (
	ScopeUniversal  Scope = "universal"
	ScopeStorefront Scope = "storefront"
	ScopeProcessor  Scope = "processor"
)

// FieldMapping is one row of the mapping table.
type FieldMapping struct {
	Canonical string   `yaml:"canonical" validate:"required"`
	Variants  []string `yaml:"variants" validate:"min=1,dive,required"`
	Required  bool     `yaml:"required"`
	Type      DataType `yaml:"type" validate:"oneof=string float int datetime"`
	Scope     Scope    `yaml:"scope" validate:"oneof=universal storefront processor"`
}

// coveredBy reports whether this field's scope applies to the given format.
func (f FieldMapping) coveredBy(format types.SourceFormat) bool {
	switch f.Scope {
	case ScopeStorefront:
		return format == types.FormatStorefront
	case ScopeProcessor:
		return format == types.FormatProcessor
	default:
		return true
	}
}

// ConfigError is fatal: the mapping table itself is broken and the process
// must not start with it.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "schema config: " + e.Reason
}

// Table is the loaded, indexed mapping table. Built once at startup,
// read-only afterwards.
type Table struct {
	version   int
	fields    []FieldMapping
	byName    map[string]FieldMapping
	variantIx map[string]string // normalized variant -> canonical
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader lower-cases a header and strips every non-alphanumeric
// separator, so variants differing only in case, spacing or punctuation
// collapse to the same key.
func NormalizeHeader(h string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(h), "")
}

// Load parses and indexes the embedded mapping table.
func Load() (*Table, error) {
	return Parse(defaultMappings)
}

// Parse builds a Table from raw YAML. Ambiguous variants (one normalized
// header claimed by two canonical fields) and duplicate canonical names are
// configuration errors, rejected here rather than surfacing at runtime.
func Parse(raw []byte) (*Table, error) {
	var doc struct {
		Version int            `yaml:"version"`
		Fields  []FieldMapping `yaml:"fields"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parse yaml: %v", err)}
	}
	if len(doc.Fields) == 0 {
		return nil, &ConfigError{Reason: "mapping table has no fields"}
	}

	validate := validator.New()
	t := &Table{
		version:   doc.Version,
		byName:    make(map[string]FieldMapping),
		variantIx: make(map[string]string),
	}

	for i := range doc.Fields {
		f := doc.Fields[i]
		if f.Type == "" {
			f.Type = TypeString
		}
		if f.Scope == "" {
			f.Scope = ScopeUniversal
		}
		if err := validate.Struct(f); err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("field %q: %v", f.Canonical, err)}
		}
		if _, dup := t.byName[f.Canonical]; dup {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate canonical field %q", f.Canonical)}
		}
		for _, v := range f.Variants {
			key := NormalizeHeader(v)
			if key == "" {
				return nil, &ConfigError{Reason: fmt.Sprintf("field %q: variant %q normalizes to nothing", f.Canonical, v)}
			}
			if owner, taken := t.variantIx[key]; taken && owner != f.Canonical {
				return nil, &ConfigError{Reason: fmt.Sprintf(
					"variant %q is ambiguous between %q and %q", v, owner, f.Canonical)}
			}
			t.variantIx[key] = f.Canonical
		}
		t.byName[f.Canonical] = f
		t.fields = append(t.fields, f)
	}

	return t, nil
}

// Version is folded into dataset fingerprints so cache entries die with the
// mapping table that produced them.
func (t *Table) Version() int { return t.version }

// Canonical resolves a raw header to its canonical field name.
func (t *Table) Canonical(header string) (string, bool) {
	c, ok := t.variantIx[NormalizeHeader(header)]
	return c, ok
}

// Field looks up a mapping table row by canonical name.
func (t *Table) Field(canonical string) (FieldMapping, bool) {
	f, ok := t.byName[canonical]
	return f, ok
}

// MapHeaders resolves every raw header. Unknown headers are returned, never
// dropped silently.
func (t *Table) MapHeaders(headers []string) (mapped map[string]string, unmapped []string) {
	mapped = make(map[string]string)
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if c, ok := t.Canonical(h); ok {
			mapped[h] = c
		} else {
			unmapped = append(unmapped, h)
		}
	}
	sort.Strings(unmapped)
	return mapped, unmapped
}

// RequiredFields returns the canonical fields required for the given format,
// sorted for stable output.
func (t *Table) RequiredFields(format types.SourceFormat) []string {
	var out []string
	for _, f := range t.fields {
		if f.Required && f.coveredBy(format) {
			out = append(out, f.Canonical)
		}
	}
	sort.Strings(out)
	return out
}
