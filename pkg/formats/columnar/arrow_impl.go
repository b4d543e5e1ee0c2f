package columnar

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

// ErrEmptyStruct is returned when encoding a struct with no fields.
var ErrEmptyStruct = errors.New("struct array has no fields")

// Encode serializes arr as a single record batch. arr is not released.
func Encode(arr *array.Struct, config *WriterConfig) ([]byte, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	st := arr.DataType().(*arrow.StructType)
	if st.NumFields() == 0 {
		return nil, encerrors.Wrap(ErrEmptyStruct, encerrors.ErrorTypeEncoding, "cannot encode payload")
	}

	var md *arrow.Metadata
	if len(config.Metadata) > 0 {
		m := arrow.MetadataFrom(config.Metadata)
		md = &m
	}
	schema := arrow.NewSchema(st.Fields(), md)

	rec := array.RecordFromStructArray(arr, schema)
	defer rec.Release()

	var buf bytes.Buffer
	opts := append(config.ipcOptions(), ipc.WithSchema(schema))
	switch config.Format {
	case ArrowStream, "":
		w := ipc.NewWriter(&buf, opts...)
		if err := w.Write(rec); err != nil {
			_ = w.Close()
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeEncoding, "failed to write record batch")
		}
		if err := w.Close(); err != nil {
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeEncoding, "failed to close IPC stream")
		}
	case ArrowFile:
		w, err := ipc.NewFileWriter(&buf, opts...)
		if err != nil {
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeEncoding, "failed to create Arrow writer")
		}
		if err := w.Write(rec); err != nil {
			_ = w.Close()
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeEncoding, "failed to write record batch")
		}
		if err := w.Close(); err != nil {
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeEncoding, "failed to close Arrow file")
		}
	default:
		return nil, encerrors.Newf(encerrors.ErrorTypeConfig, "unsupported columnar format: %s", config.Format)
	}
	return buf.Bytes(), nil
}

// Payload is a decoded payload. The caller must Release it.
type Payload struct {
	Schema  *arrow.Schema
	Struct  *array.Struct
	Batches int
}

// Rows returns the number of rows across all batches.
func (p *Payload) Rows() int { return p.Struct.Len() }

// Metadata returns the schema metadata value stored under key.
func (p *Payload) Metadata(key string) (string, bool) {
	md := p.Schema.Metadata()
	i := md.FindKey(key)
	if i < 0 {
		return "", false
	}
	return md.Values()[i], true
}

// Release frees the decoded arrays.
func (p *Payload) Release() {
	if p.Struct != nil {
		p.Struct.Release()
		p.Struct = nil
	}
}

// fileHeaderLen is the length of the Arrow file magic padded to 8 bytes.
const fileHeaderLen = 8

// Decode reads every record batch in data and returns them as one struct
// array.
func Decode(data []byte, config *ReaderConfig) (*Payload, error) {
	if config == nil {
		config = DefaultReaderConfig()
	}
	mem := config.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	var (
		schema *arrow.Schema
		parts  []arrow.Array
	)
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	var body []byte
	switch config.Format {
	case ArrowStream, "":
		body = data
	case ArrowFile:
		// Between the padded leading magic and the footer a file holds a
		// plain IPC stream. Reading it with ipc.FileReader would leak the
		// dictionaries that reader loads.
		if len(data) < fileHeaderLen+len(ipc.Magic) ||
			!bytes.HasPrefix(data, ipc.Magic) || !bytes.HasSuffix(data, ipc.Magic) {
			return nil, encerrors.New(encerrors.ErrorTypeData, "failed to open Arrow file: missing magic bytes")
		}
		body = data[fileHeaderLen:]
	default:
		return nil, encerrors.Newf(encerrors.ErrorTypeConfig, "unsupported columnar format: %s", config.Format)
	}

	r, err := ipc.NewReader(bytes.NewReader(body), ipc.WithAllocator(mem))
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeData, "failed to open IPC stream").
			WithDetail("format", string(config.Format))
	}
	defer r.Release()
	schema = r.Schema()
	for r.Next() {
		parts = append(parts, array.RecordToStructArray(r.Record()))
	}
	if err := r.Err(); err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeData, "failed to read record batch").
			WithDetail("batch", len(parts))
	}

	p := &Payload{Schema: schema, Batches: len(parts)}
	switch len(parts) {
	case 0:
		b := array.NewStructBuilder(mem, arrow.StructOf(schema.Fields()...))
		defer b.Release()
		p.Struct = b.NewStructArray()
	case 1:
		parts[0].Retain()
		p.Struct = parts[0].(*array.Struct)
	default:
		joined, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeData, "failed to concatenate record batches")
		}
		p.Struct = joined.(*array.Struct)
	}
	return p, nil
}

// Describe renders the schema of p as one line per field.
func (p *Payload) Describe() []string {
	lines := make([]string, 0, p.Struct.NumField())
	for i, f := range p.Schema.Fields() {
		col := p.Struct.Field(i)
		lines = append(lines, fmt.Sprintf("%s: %s nullable=%t nulls=%d", f.Name, f.Type, f.Nullable, col.NullN()))
	}
	return lines
}
