package columnar

import "math"

// Options tune how a builder decides what, if anything, it emits on Finish.
// The zero value is the adaptive default: no dictionary, and the column is
// omitted when no value was appended.
type Options struct {
	// Dictionary enables adaptive dictionary encoding. Only binary, fixed
	// size binary and string builders accept it.
	Dictionary *DictionaryOptions
	// AlwaysMaterialize makes Finish return an array even when nothing or
	// only nulls were appended.
	AlwaysMaterialize bool
	// DefaultValuesOptional makes Finish report no data when every appended
	// value is the kind's default ("", empty or all-zero bytes, 0, false).
	// It takes precedence over AlwaysMaterialize.
	DefaultValuesOptional bool
}

// DictionaryOptions bound the cardinality a dictionary-encoded column may
// reach before it falls back to its native encoding.
type DictionaryOptions struct {
	// MinCardinality forces uint16 indices when it is above what uint8
	// indices can address.
	MinCardinality uint16
	// MaxCardinality is the largest number of distinct values that is still
	// dictionary encoded. Zero means math.MaxUint16.
	MaxCardinality uint16
}

func (o *DictionaryOptions) maxCardinality() int {
	if o.MaxCardinality == 0 {
		return math.MaxUint16
	}
	return int(o.MaxCardinality)
}
