// Package config provides the configuration of a structenc encoder.
//
// A Config is loaded from a YAML file, overridden by STRUCTENC_ prefixed
// environment variables and completed with defaults:
//
//	cfg, err := config.NewLoader().Load("structenc.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment keys replace dots with underscores, so output.s3.bucket is
// read from STRUCTENC_OUTPUT_S3_BUCKET.
package config

import (
	"errors"
	"fmt"
	"net"
	"runtime"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
	"github.com/ajitpratap0/structenc/pkg/schema"
)

// Reject policies.
const (
	OnRejectNull  = "null"
	OnRejectAbort = "abort"
)

// Sink names.
const (
	SinkFile  = "file"
	SinkS3    = "s3"
	SinkGCS   = "gcs"
	SinkKafka = "kafka"
)

// Config is the complete encoder configuration.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Schema   schema.Spec    `mapstructure:"schema" yaml:"schema"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// PipelineConfig controls batching and parallelism.
type PipelineConfig struct {
	// Name prefixes every object key written to the sink
	Name string `mapstructure:"name" yaml:"name"`
	// BatchSize is the number of rows per struct array
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// Workers is the number of batches encoded concurrently
	Workers int `mapstructure:"workers" yaml:"workers"`
	// OnReject is either "null" or "abort"
	OnReject string `mapstructure:"on_reject" yaml:"on_reject"`
}

// OutputConfig selects where encoded batches go and how they are compressed.
type OutputConfig struct {
	Sink           string      `mapstructure:"sink" yaml:"sink"`
	Compression    string      `mapstructure:"compression" yaml:"compression"`
	IPCCompression string      `mapstructure:"ipc_compression" yaml:"ipc_compression"`
	File           FileConfig  `mapstructure:"file" yaml:"file"`
	S3             S3Config    `mapstructure:"s3" yaml:"s3"`
	GCS            GCSConfig   `mapstructure:"gcs" yaml:"gcs"`
	Kafka          KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

// FileConfig configures the local directory sink.
type FileConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// S3Config configures the S3 sink. Credentials come from the default AWS
// provider chain.
type S3Config struct {
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Region       string `mapstructure:"region" yaml:"region"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// GCSConfig configures the Cloud Storage sink.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	// Endpoint overrides the API endpoint, for emulators
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// CredentialsFile is a service account key; default credentials otherwise
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers" yaml:"brokers"`
	Topic    string   `mapstructure:"topic" yaml:"topic"`
	ClientID string   `mapstructure:"client_id" yaml:"client_id"`
	// RequiredAcks is -1 (all), 0 (none) or 1 (leader)
	RequiredAcks int `mapstructure:"required_acks" yaml:"required_acks"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// Default returns a configuration with every default applied and no schema.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Name:      "structenc",
			BatchSize: 1024,
			Workers:   runtime.NumCPU(),
			OnReject:  OnRejectNull,
		},
		Output: OutputConfig{
			Sink:           SinkFile,
			Compression:    "none",
			IPCCompression: "none",
			File:           FileConfig{Dir: "."},
			Kafka:          KafkaConfig{ClientID: "structenc", RequiredAcks: -1},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{ServiceName: "structenc", SamplingRate: 1.0},
		Metrics: MetricsConfig{Listen: ":9090"},
	}
}

var (
	envelopeCodecs = map[string]bool{"none": true, "gzip": true, "zstd": true, "lz4": true, "snappy": true, "s2": true}
	ipcCodecs      = map[string]bool{"none": true, "zstd": true, "lz4": true}
	logLevels      = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats     = map[string]bool{"json": true, "console": true}
)

// Validate checks the configuration and reports every problem found. The
// schema is validated by compiling it.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Pipeline.Name == "" {
		add("pipeline.name is required")
	}
	if c.Pipeline.BatchSize <= 0 {
		add("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.Workers <= 0 {
		add("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.OnReject != OnRejectNull && c.Pipeline.OnReject != OnRejectAbort {
		add("pipeline.on_reject must be %q or %q, got %q", OnRejectNull, OnRejectAbort, c.Pipeline.OnReject)
	}

	if _, err := schema.Compile(c.Schema); err != nil {
		errs = append(errs, err)
	}

	out := c.Output
	switch out.Sink {
	case SinkFile:
		if out.File.Dir == "" {
			add("output.file.dir is required for the file sink")
		}
	case SinkS3:
		if out.S3.Bucket == "" {
			add("output.s3.bucket is required for the s3 sink")
		}
		if out.S3.Region == "" {
			add("output.s3.region is required for the s3 sink")
		}
	case SinkGCS:
		if out.GCS.Bucket == "" {
			add("output.gcs.bucket is required for the gcs sink")
		}
	case SinkKafka:
		if len(out.Kafka.Brokers) == 0 {
			add("output.kafka.brokers is required for the kafka sink")
		}
		if out.Kafka.Topic == "" {
			add("output.kafka.topic is required for the kafka sink")
		}
		if out.Kafka.RequiredAcks < -1 || out.Kafka.RequiredAcks > 1 {
			add("output.kafka.required_acks must be -1, 0 or 1, got %d", out.Kafka.RequiredAcks)
		}
	default:
		add("unsupported output.sink %q", out.Sink)
	}
	if !envelopeCodecs[out.Compression] {
		add("unsupported output.compression %q", out.Compression)
	}
	if !ipcCodecs[out.IPCCompression] {
		add("unsupported output.ipc_compression %q", out.IPCCompression)
	}

	if !logLevels[c.Logging.Level] {
		add("unsupported logging.level %q", c.Logging.Level)
	}
	if !logFormats[c.Logging.Format] {
		add("unsupported logging.format %q", c.Logging.Format)
	}
	if c.Tracing.Enabled && (c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1) {
		add("tracing.sampling_rate must be within [0, 1], got %g", c.Tracing.SamplingRate)
	}
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			add("invalid metrics.listen %q: %v", c.Metrics.Listen, err)
		}
	}

	if len(errs) > 0 {
		return encerrors.Wrap(errors.Join(errs...), encerrors.ErrorTypeConfig, "invalid configuration").
			WithDetail("problems", len(errs))
	}
	return nil
}
