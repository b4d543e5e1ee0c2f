// Package record assembles struct-typed columns out of independently encoded
// fields.
//
// A StructBuilder holds an ordered, fixed list of slots. Each slot pairs a
// field descriptor with a column builder from package columnar. Callers look
// builders up by position with FieldBuilder or CheckedFieldBuilder, naming
// the builder type they expect, append values, and call Finish once to get
// the immutable struct array. Fields whose builder produced no data are
// left out of the result.
//
//	sb := record.New([]record.Slot{
//	    {Descriptor: record.Descriptor{Name: "method", Nullable: true},
//	        Builder: columnar.NewStringBuilder(mem, columnar.Options{})},
//	    {Descriptor: record.Descriptor{Name: "trace_id", Nullable: true},
//	        Builder: columnar.NewFixedSizeBinaryBuilder(mem, 16, columnar.Options{})},
//	})
//	if b, ok := record.FieldBuilder[*columnar.StringBuilder](sb, 0); ok {
//	    b.Append("GET")
//	}
//	if b, ok := record.CheckedFieldBuilder[*columnar.FixedSizeBinaryBuilder](sb, 1); ok {
//	    if err := b.Append(traceID); err != nil {
//	        // skip, null out or abort the batch
//	    }
//	}
//	arr, err := sb.Finish()
package record

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/structenc/pkg/columnar"
	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

// ErrNullInNonNullable is wrapped by the error Finish returns when a field
// whose descriptor is not nullable holds a null.
var ErrNullInNonNullable = errors.New("null in non-nullable field")

// Descriptor is the schema metadata of one struct field.
type Descriptor struct {
	Name     string
	Nullable bool
}

// Slot pairs a descriptor with the builder that accumulates its values.
type Slot struct {
	Descriptor
	Builder columnar.Builder
}

// StructBuilder builds one struct array. It owns the builders of its slots.
// It is not safe for concurrent use, and at most one caller should append
// to a given field at a time.
type StructBuilder struct {
	slots    []Slot
	logger   *zap.Logger
	consumed bool
}

// Option configures a StructBuilder.
type Option func(*StructBuilder)

// WithLogger sets the logger used to report elided fields at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(sb *StructBuilder) {
		sb.logger = logger
	}
}

// New creates a StructBuilder over slots, in order. The slice is copied; the
// builders are not. It panics if a slot has no builder.
func New(slots []Slot, opts ...Option) *StructBuilder {
	for i, s := range slots {
		if s.Builder == nil {
			panic(encerrors.Newf(encerrors.ErrorTypeInternal, "record: slot %d (%q) has no builder", i, s.Name))
		}
	}

	sb := &StructBuilder{
		slots:  append([]Slot(nil), slots...),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(sb)
	}
	return sb
}

// NumFields returns the number of slots, elided or not.
func (sb *StructBuilder) NumFields() int {
	sb.checkLive()
	return len(sb.slots)
}

// Descriptor returns the descriptor of field i and whether i is in range.
func (sb *StructBuilder) Descriptor(i int) (Descriptor, bool) {
	sb.checkLive()
	if i < 0 || i >= len(sb.slots) {
		return Descriptor{}, false
	}
	return sb.slots[i].Descriptor, true
}

// Kind returns the column kind of field i and whether i is in range.
func (sb *StructBuilder) Kind(i int) (columnar.Kind, bool) {
	sb.checkLive()
	if i < 0 || i >= len(sb.slots) {
		return 0, false
	}
	return sb.slots[i].Builder.Kind(), true
}

// FieldBuilder returns the builder of field i as T when the field's kind has
// the direct append capability and its builder is a T. Out of range indices,
// kind mismatches and checked kinds all yield false.
func FieldBuilder[T columnar.Appender](sb *StructBuilder, i int) (T, bool) {
	var zero T
	b, ok := sb.lookup(i, columnar.DirectAppend)
	if !ok {
		return zero, false
	}
	t, ok := b.(T)
	return t, ok
}

// CheckedFieldBuilder is FieldBuilder for kinds with the checked append
// capability.
func CheckedFieldBuilder[T columnar.CheckedAppender](sb *StructBuilder, i int) (T, bool) {
	var zero T
	b, ok := sb.lookup(i, columnar.CheckedAppend)
	if !ok {
		return zero, false
	}
	t, ok := b.(T)
	return t, ok
}

func (sb *StructBuilder) lookup(i int, capability columnar.Capability) (columnar.Builder, bool) {
	sb.checkLive()
	if i < 0 || i >= len(sb.slots) {
		return nil, false
	}
	b := sb.slots[i].Builder
	if b.Kind().Capability() != capability {
		return nil, false
	}
	return b, true
}

// Finish consumes the builder and returns the struct array. Fields are
// emitted in slot order; a field whose builder has no data is omitted from
// both the struct type and its children, whatever its nullability. If every
// field is omitted the result has no fields and length zero. A field that is
// not nullable but holds a null fails with ErrNullInNonNullable.
//
// The caller owns the returned array. All slot builders are released, also
// on error.
func (sb *StructBuilder) Finish() (*array.Struct, error) {
	sb.checkLive()
	sb.consumed = true

	fields := make([]arrow.Field, 0, len(sb.slots))
	cols := make([]arrow.Array, 0, len(sb.slots))
	defer func() {
		for _, col := range cols {
			col.Release()
		}
	}()

	var nullErr error
	for _, s := range sb.slots {
		arr, ok := s.Builder.Finish()
		if !ok {
			sb.logger.Debug("eliding empty struct field", zap.String("field", s.Name),
				zap.Stringer("kind", s.Builder.Kind()))
			continue
		}
		if !s.Nullable && arr.NullN() > 0 && nullErr == nil {
			nullErr = encerrors.Wrap(ErrNullInNonNullable, encerrors.ErrorTypeValidation,
				"cannot assemble struct array").
				WithDetail("field", s.Name).
				WithDetail("nulls", arr.NullN())
		}
		fields = append(fields, arrow.Field{
			Name:     s.Name,
			Type:     arr.DataType(),
			Nullable: s.Nullable,
		})
		cols = append(cols, arr)
	}
	sb.slots = nil
	if nullErr != nil {
		return nil, nullErr
	}

	if len(cols) == 0 {
		data := array.NewData(arrow.StructOf(), 0, []*memory.Buffer{nil}, nil, 0, 0)
		defer data.Release()
		return array.NewStructData(data), nil
	}

	out, err := array.NewStructArrayWithFields(cols, fields)
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeEncoding, "cannot assemble struct array").
			WithDetail("fields", len(fields))
	}
	return out, nil
}

// Release discards an unfinished builder and frees every slot builder.
func (sb *StructBuilder) Release() {
	sb.checkLive()
	sb.consumed = true
	for _, s := range sb.slots {
		s.Builder.Release()
	}
	sb.slots = nil
}

func (sb *StructBuilder) checkLive() {
	if sb.consumed {
		panic("record: StructBuilder used after Finish or Release")
	}
}
