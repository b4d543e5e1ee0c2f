package pipeline

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/structenc/pkg/columnar"
	"github.com/ajitpratap0/structenc/pkg/encerrors"
	"github.com/ajitpratap0/structenc/pkg/record"
	"github.com/ajitpratap0/structenc/pkg/schema"
)

// appendValue appends v to field i of sb. A nil v appends a null. When v
// cannot be converted, or the builder rejects it, the returned error
// describes the rejection and, if nullOnReject is set, a null has been
// appended in its place. A field that is not nullable never receives a null:
// a nil v is itself a rejection and nothing is appended.
func appendValue(sb *record.StructBuilder, i int, f schema.Field, v interface{}, nullOnReject bool) error {
	if !f.Nullable {
		if v == nil {
			return encerrors.Wrap(ErrNullNotAllowed, encerrors.ErrorTypeValidation, "missing value")
		}
		nullOnReject = false
	}
	switch f.Kind {
	case columnar.KindString:
		return appendDirect[string, *columnar.StringBuilder](sb, i, v, nullOnReject, toString)
	case columnar.KindBinary:
		return appendDirect[[]byte, *columnar.BinaryBuilder](sb, i, v, nullOnReject, toBytes)
	case columnar.KindUInt8:
		return appendDirect[uint8, *columnar.UInt8Builder](sb, i, v, nullOnReject, toUnsigned[uint8](8))
	case columnar.KindUInt16:
		return appendDirect[uint16, *columnar.UInt16Builder](sb, i, v, nullOnReject, toUnsigned[uint16](16))
	case columnar.KindUInt32:
		return appendDirect[uint32, *columnar.UInt32Builder](sb, i, v, nullOnReject, toUnsigned[uint32](32))
	case columnar.KindUInt64:
		return appendDirect[uint64, *columnar.UInt64Builder](sb, i, v, nullOnReject, toUnsigned[uint64](64))
	case columnar.KindInt32:
		return appendDirect[int32, *columnar.Int32Builder](sb, i, v, nullOnReject, toSigned[int32](32))
	case columnar.KindInt64:
		return appendDirect[int64, *columnar.Int64Builder](sb, i, v, nullOnReject, toSigned[int64](64))
	case columnar.KindFloat64:
		return appendDirect[float64, *columnar.Float64Builder](sb, i, v, nullOnReject, toFloat)
	case columnar.KindBoolean:
		return appendDirect[bool, *columnar.BooleanBuilder](sb, i, v, nullOnReject, toBool)
	case columnar.KindFixedSizeBinary:
		return appendFixed(sb, i, f.ByteWidth, v, nullOnReject)
	default:
		return encerrors.Newf(encerrors.ErrorTypeInternal, "no conversion for kind %s", f.Kind)
	}
}

type directBuilder[T any] interface {
	columnar.Appender
	Append(T)
}

func appendDirect[T any, B directBuilder[T]](sb *record.StructBuilder, i int, v interface{}, nullOnReject bool, conv func(interface{}) (T, error)) error {
	b, ok := record.FieldBuilder[B](sb, i)
	if !ok {
		return encerrors.Newf(encerrors.ErrorTypeInternal, "field %d has no %T builder", i, b)
	}
	if v == nil {
		b.AppendNull()
		return nil
	}
	x, err := conv(v)
	if err != nil {
		if nullOnReject {
			b.AppendNull()
		}
		return err
	}
	b.Append(x)
	return nil
}

func appendFixed(sb *record.StructBuilder, i, width int, v interface{}, nullOnReject bool) error {
	b, ok := record.CheckedFieldBuilder[*columnar.FixedSizeBinaryBuilder](sb, i)
	if !ok {
		return encerrors.Newf(encerrors.ErrorTypeInternal, "field %d has no fixed size binary builder", i)
	}
	if v == nil {
		b.AppendNull()
		return nil
	}
	raw, err := toFixed(v, width)
	if err == nil {
		err = b.Append(raw)
	}
	if err != nil {
		if nullOnReject {
			b.AppendNull()
		}
		return err
	}
	return nil
}

func typeError(want string, v interface{}) error {
	return encerrors.Newf(encerrors.ErrorTypeValidation, "expected %s, got %T", want, v)
}

func toString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError("string", v)
	}
	return s, nil
}

func toBytes(v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeError("base64 string", v)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeValidation, "invalid base64")
	}
	return b, nil
}

// toFixed accepts hex when the string has exactly twice width characters,
// and standard base64 otherwise.
func toFixed(v interface{}, width int) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeError("hex or base64 string", v)
	}
	if len(s) == 2*width {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, encerrors.Newf(encerrors.ErrorTypeValidation, "value is neither %d byte hex nor base64", width)
	}
	return b, nil
}

func toNumber(v interface{}) (json.Number, error) {
	n, ok := v.(json.Number)
	if !ok {
		return "", typeError("number", v)
	}
	return n, nil
}

func toUnsigned[T uint8 | uint16 | uint32 | uint64](bits int) func(interface{}) (T, error) {
	return func(v interface{}) (T, error) {
		n, err := toNumber(v)
		if err != nil {
			return 0, err
		}
		u, err := strconv.ParseUint(n.String(), 10, bits)
		if err != nil {
			return 0, encerrors.Wrap(err, encerrors.ErrorTypeValidation, fmt.Sprintf("not a uint%d", bits))
		}
		return T(u), nil
	}
}

func toSigned[T int32 | int64](bits int) func(interface{}) (T, error) {
	return func(v interface{}) (T, error) {
		n, err := toNumber(v)
		if err != nil {
			return 0, err
		}
		i, err := strconv.ParseInt(n.String(), 10, bits)
		if err != nil {
			return 0, encerrors.Wrap(err, encerrors.ErrorTypeValidation, fmt.Sprintf("not an int%d", bits))
		}
		return T(i), nil
	}
}

func toFloat(v interface{}) (float64, error) {
	n, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	f, err := n.Float64()
	if err != nil {
		return 0, encerrors.Wrap(err, encerrors.ErrorTypeValidation, "not a float64")
	}
	return f, nil
}

func toBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, typeError("boolean", v)
	}
	return b, nil
}
