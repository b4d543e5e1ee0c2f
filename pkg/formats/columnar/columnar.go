// Package columnar serializes struct arrays into self-describing Arrow IPC
// payloads and reads them back.
//
// A payload holds one record batch whose columns are the children of the
// struct array. Dictionary encoded children travel with their dictionaries.
package columnar

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Format represents an Arrow IPC framing.
type Format string

const (
	// ArrowStream is the Arrow IPC streaming format
	ArrowStream Format = "arrow_stream"
	// ArrowFile is the Arrow IPC file format, with footer
	ArrowFile Format = "arrow_file"
)

// BodyCompression compresses record batch buffers inside the IPC payload.
type BodyCompression string

const (
	BodyNone BodyCompression = "none"
	BodyZstd BodyCompression = "zstd"
	BodyLZ4  BodyCompression = "lz4"
)

// Metadata keys stamped on every payload schema.
const (
	MetaPipeline    = "structenc.pipeline"
	MetaFingerprint = "structenc.schema_fingerprint"
	MetaBatch       = "structenc.batch"
)

// ParseBodyCompression resolves a configured IPC body codec name.
func ParseBodyCompression(name string) (BodyCompression, error) {
	switch c := BodyCompression(strings.ToLower(strings.TrimSpace(name))); c {
	case "", BodyNone:
		return BodyNone, nil
	case BodyZstd, BodyLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported ipc compression: %s", name)
	}
}

// WriterConfig configures payload encoding
type WriterConfig struct {
	Format      Format
	Compression BodyCompression
	// Metadata is attached to the payload schema
	Metadata  map[string]string
	Allocator memory.Allocator
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:      ArrowStream,
		Compression: BodyNone,
		Allocator:   memory.DefaultAllocator,
	}
}

func (c *WriterConfig) ipcOptions() []ipc.Option {
	mem := c.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	opts := []ipc.Option{ipc.WithAllocator(mem)}
	switch c.Compression {
	case BodyZstd:
		opts = append(opts, ipc.WithZstd())
	case BodyLZ4:
		opts = append(opts, ipc.WithLZ4())
	}
	return opts
}

// ReaderConfig configures payload decoding
type ReaderConfig struct {
	Format    Format
	Allocator memory.Allocator
}

// DefaultReaderConfig returns default reader configuration
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		Format:    ArrowStream,
		Allocator: memory.DefaultAllocator,
	}
}

// FormatInfo provides information about a payload format
type FormatInfo struct {
	Format        Format
	Name          string
	FileExtension string
	MIMEType      string
}

// GetFormatInfo returns information about format, or nil if unknown.
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case ArrowStream:
		return &FormatInfo{
			Format:        ArrowStream,
			Name:          "Apache Arrow IPC stream",
			FileExtension: ".arrows",
			MIMEType:      "application/vnd.apache.arrow.stream",
		}
	case ArrowFile:
		return &FormatInfo{
			Format:        ArrowFile,
			Name:          "Apache Arrow IPC file",
			FileExtension: ".arrow",
			MIMEType:      "application/vnd.apache.arrow.file",
		}
	default:
		return nil
	}
}

// FormatFromPath guesses the format from an object key, ignoring any
// compression extension after the format extension.
func FormatFromPath(path string) Format {
	if strings.Contains(path, GetFormatInfo(ArrowStream).FileExtension) {
		return ArrowStream
	}
	return ArrowFile
}
