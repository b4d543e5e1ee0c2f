// Package columnar implements the adaptive column builders that back each
// field of a struct batch.
//
// # Overview
//
// Every builder accumulates the values of one column and turns them into an
// immutable Arrow array on Finish. Builders are adaptive:
//   - No Arrow memory is allocated until the first value arrives; leading
//     nulls are counted and back-filled.
//   - A builder that received no values reports "no data" from Finish, so
//     the enclosing struct can omit the column entirely.
//   - String, binary and fixed size binary builders can dictionary encode
//     with uint8 or uint16 indices, chosen from the observed cardinality,
//     and fall back to their native encoding above a configured limit.
//
// # Kinds and capabilities
//
// The set of kinds is closed (see Kind). Each kind has exactly one append
// capability:
//
//   - DirectAppend (Appender): Append(v) always succeeds. Every kind except
//     fixed size binary.
//   - CheckedAppend (CheckedAppender): Append(v) error validates the value.
//     Fixed size binary rejects values of the wrong width.
//
// # Usage Example
//
//	mem := memory.NewGoAllocator()
//	names := columnar.NewStringBuilder(mem, columnar.Options{
//	    Dictionary: &columnar.DictionaryOptions{MaxCardinality: 1000},
//	})
//	names.Append("GET")
//	names.AppendNull()
//	names.Append("POST")
//
//	arr, ok := names.Finish()
//	if ok {
//	    defer arr.Release()
//	}
//
// # Thread Safety
//
// Builders are not safe for concurrent use. A builder must not be used after
// Finish or Release; doing so panics.
package columnar
