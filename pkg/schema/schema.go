// Package schema compiles declarative field lists into struct builders.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/structenc/pkg/columnar"
	"github.com/ajitpratap0/structenc/pkg/encerrors"
	"github.com/ajitpratap0/structenc/pkg/record"
)

// ErrInvalidSchema is wrapped by every validation failure returned by Compile.
var ErrInvalidSchema = errors.New("invalid schema")

// DictionarySpec enables adaptive dictionary encoding for a field.
type DictionarySpec struct {
	MinCardinality uint16 `mapstructure:"min_cardinality" yaml:"min_cardinality,omitempty"`
	MaxCardinality uint16 `mapstructure:"max_cardinality" yaml:"max_cardinality,omitempty"`
}

// FieldSpec declares one struct field.
type FieldSpec struct {
	Name                  string          `mapstructure:"name" yaml:"name"`
	Type                  string          `mapstructure:"type" yaml:"type"`
	Nullable              bool            `mapstructure:"nullable" yaml:"nullable"`
	ByteWidth             int             `mapstructure:"byte_width" yaml:"byte_width,omitempty"`
	Dictionary            *DictionarySpec `mapstructure:"dictionary" yaml:"dictionary,omitempty"`
	AlwaysMaterialize     bool            `mapstructure:"always_materialize" yaml:"always_materialize,omitempty"`
	DefaultValuesOptional bool            `mapstructure:"default_values_optional" yaml:"default_values_optional,omitempty"`
}

// Spec is an ordered list of field declarations.
type Spec struct {
	Fields []FieldSpec `mapstructure:"fields" yaml:"fields"`
}

// Field is a validated field declaration.
type Field struct {
	FieldSpec
	Kind columnar.Kind
}

func (f Field) options() columnar.Options {
	opts := columnar.Options{
		AlwaysMaterialize:     f.AlwaysMaterialize,
		DefaultValuesOptional: f.DefaultValuesOptional,
	}
	if f.Dictionary != nil {
		opts.Dictionary = &columnar.DictionaryOptions{
			MinCardinality: f.Dictionary.MinCardinality,
			MaxCardinality: f.Dictionary.MaxCardinality,
		}
	}
	return opts
}

// Schema is a compiled, immutable Spec. It is safe for concurrent use.
type Schema struct {
	fields      []Field
	index       map[string]int
	fingerprint string
}

// Compile validates spec and resolves its kinds. All problems are reported
// together.
func Compile(spec Spec) (*Schema, error) {
	var errs []error
	if len(spec.Fields) == 0 {
		errs = append(errs, errors.New("no fields declared"))
	}

	s := &Schema{
		fields: make([]Field, 0, len(spec.Fields)),
		index:  make(map[string]int, len(spec.Fields)),
	}
	for i, fs := range spec.Fields {
		f, err := compileField(fs)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %d (%q): %w", i, fs.Name, err))
			continue
		}
		if _, dup := s.index[f.Name]; dup {
			errs = append(errs, fmt.Errorf("field %d: duplicate name %q", i, f.Name))
			continue
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	if len(errs) > 0 {
		return nil, encerrors.Wrap(fmt.Errorf("%w: %w", ErrInvalidSchema, errors.Join(errs...)),
			encerrors.ErrorTypeConfig, "schema compilation failed").
			WithDetail("problems", len(errs))
	}

	s.fingerprint = fingerprint(s.fields)
	return s, nil
}

func compileField(fs FieldSpec) (Field, error) {
	if strings.TrimSpace(fs.Name) == "" {
		return Field{}, errors.New("name is required")
	}
	kind, err := columnar.ParseKind(fs.Type)
	if err != nil {
		return Field{}, err
	}

	switch {
	case kind == columnar.KindFixedSizeBinary && fs.ByteWidth <= 0:
		return Field{}, fmt.Errorf("byte_width must be positive for %s, got %d", kind, fs.ByteWidth)
	case kind != columnar.KindFixedSizeBinary && fs.ByteWidth != 0:
		return Field{}, fmt.Errorf("byte_width is only valid for %s", columnar.KindFixedSizeBinary)
	}

	if d := fs.Dictionary; d != nil {
		if !kind.SupportsDictionary() {
			return Field{}, fmt.Errorf("%w: %s", columnar.ErrDictionaryUnsupported, kind)
		}
		if d.MaxCardinality != 0 && d.MinCardinality > d.MaxCardinality {
			return Field{}, fmt.Errorf("dictionary min_cardinality %d exceeds max_cardinality %d",
				d.MinCardinality, d.MaxCardinality)
		}
	}

	return Field{FieldSpec: fs, Kind: kind}, nil
}

// NumFields returns the number of declared fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// Field returns field i. It panics if i is out of range.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the declared fields in order.
func (s *Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

// Index returns the position of the field called name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Fingerprint identifies the declared layout. Two schemas with the same
// fields, in the same order and with the same options, share a fingerprint.
func (s *Schema) Fingerprint() string { return s.fingerprint }

// NewStructBuilder returns a fresh builder with one slot per field, in
// declaration order.
func (s *Schema) NewStructBuilder(mem memory.Allocator, opts ...record.Option) (*record.StructBuilder, error) {
	slots := make([]record.Slot, 0, len(s.fields))
	for _, f := range s.fields {
		b, err := columnar.New(mem, f.Kind, f.ByteWidth, f.options())
		if err != nil {
			for _, sl := range slots {
				sl.Builder.Release()
			}
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeConfig, "cannot create field builder").
				WithDetail("field", f.Name)
		}
		slots = append(slots, record.Slot{
			Descriptor: record.Descriptor{Name: f.Name, Nullable: f.Nullable},
			Builder:    b,
		})
	}
	return record.New(slots, opts...), nil
}

func fingerprint(fields []Field) string {
	h := sha256.New()
	for _, f := range fields {
		fmt.Fprintf(h, "%s|%s|%t|%d|%t|%t", f.Name, f.Kind, f.Nullable, f.ByteWidth,
			f.AlwaysMaterialize, f.DefaultValuesOptional)
		if d := f.Dictionary; d != nil {
			fmt.Fprintf(h, "|dict:%d:%d", d.MinCardinality, d.MaxCardinality)
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
