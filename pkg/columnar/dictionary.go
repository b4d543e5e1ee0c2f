package columnar

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// cardinality counts distinct values while a dictionary-capable column is
// being built. Tracking stops once MaxCardinality is exceeded; the column is
// then emitted natively. A nil *cardinality means dictionary encoding is off.
type cardinality struct {
	opts     DictionaryOptions
	seen     map[string]struct{}
	overflow bool
}

func newCardinality(opts *DictionaryOptions) *cardinality {
	if opts == nil {
		return nil
	}
	return &cardinality{
		opts: *opts,
		seen: make(map[string]struct{}),
	}
}

func (c *cardinality) observe(v string) {
	if c == nil || c.overflow {
		return
	}
	if _, ok := c.seen[v]; ok {
		return
	}
	c.seen[v] = struct{}{}
	if len(c.seen) > c.opts.maxCardinality() {
		c.overflow = true
		c.seen = nil
	}
}

// uint8Values is the number of dictionary entries uint8 indices can address.
const uint8Values = math.MaxUint8 + 1

func (c *cardinality) indexType() arrow.DataType {
	if len(c.seen) > uint8Values || int(c.opts.MinCardinality) > uint8Values {
		return arrow.PrimitiveTypes.Uint16
	}
	return arrow.PrimitiveTypes.Uint8
}

// encode turns the native array arr into a dictionary array when the
// observed cardinality allows it. It takes ownership of arr: either arr is
// returned as is, or it is released and the dictionary array returned.
func (c *cardinality) encode(mem memory.Allocator, arr arrow.Array) arrow.Array {
	if c == nil || c.overflow {
		return arr
	}

	bldr := array.NewDictionaryBuilder(mem, &arrow.DictionaryType{
		IndexType: c.indexType(),
		ValueType: arr.DataType(),
	})
	defer bldr.Release()

	if err := appendDictionary(bldr, arr); err != nil {
		// the memo table refused a value; the native array is still valid
		return arr
	}

	out := bldr.NewArray()
	arr.Release()
	return out
}

func appendDictionary(bldr array.DictionaryBuilder, arr arrow.Array) error {
	switch src := arr.(type) {
	case *array.String:
		db := bldr.(*array.BinaryDictionaryBuilder)
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				db.AppendNull()
				continue
			}
			if err := db.AppendString(src.Value(i)); err != nil {
				return err
			}
		}
	case *array.Binary:
		db := bldr.(*array.BinaryDictionaryBuilder)
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				db.AppendNull()
				continue
			}
			if err := db.Append(src.Value(i)); err != nil {
				return err
			}
		}
	case *array.FixedSizeBinary:
		db := bldr.(*array.FixedSizeBinaryDictionaryBuilder)
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				db.AppendNull()
				continue
			}
			if err := db.Append(src.Value(i)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("columnar: cannot dictionary encode %s", arr.DataType())
	}
	return nil
}
