package columnar

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

// Kind identifies a column encoding. The set is closed: adding a kind means
// extending this enum, Capability, ParseKind, New and the concrete builder
// type together.
type Kind int

const (
	KindBinary Kind = iota
	KindFixedSizeBinary
	KindString
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindInt32
	KindInt64
	KindFloat64
	KindBoolean
)

var kindNames = [...]string{
	KindBinary:          "binary",
	KindFixedSizeBinary: "fixed_size_binary",
	KindString:          "string",
	KindUInt8:           "uint8",
	KindUInt16:          "uint16",
	KindUInt32:          "uint32",
	KindUInt64:          "uint64",
	KindInt32:           "int32",
	KindInt64:           "int64",
	KindFloat64:         "float64",
	KindBoolean:         "boolean",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Capability is the append interface a kind exposes.
type Capability int

const (
	// DirectAppend builders accept every value of their Go type.
	DirectAppend Capability = iota
	// CheckedAppend builders validate each value and may reject it.
	CheckedAppend
)

func (c Capability) String() string {
	switch c {
	case DirectAppend:
		return "direct"
	case CheckedAppend:
		return "checked"
	default:
		return fmt.Sprintf("Capability(%d)", int(c))
	}
}

// Capability returns the single capability k supports.
func (k Kind) Capability() Capability {
	switch k {
	case KindFixedSizeBinary:
		return CheckedAppend
	default:
		return DirectAppend
	}
}

// SupportsDictionary reports whether builders of kind k accept
// Options.Dictionary.
func (k Kind) SupportsDictionary() bool {
	switch k {
	case KindBinary, KindFixedSizeBinary, KindString:
		return true
	default:
		return false
	}
}

// ParseKind resolves a kind name as written in schema configuration.
// Matching is case-insensitive; "utf8" and "bool" are accepted aliases.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "utf8":
		return KindString, nil
	case "bool":
		return KindBoolean, nil
	}
	for k, kn := range kindNames {
		if kn == n {
			return Kind(k), nil
		}
	}
	return 0, encerrors.Wrap(ErrUnknownKind, encerrors.ErrorTypeConfig, "cannot resolve column kind").
		WithDetail("kind", name)
}
