package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STRUCTENC"

// Loader reads a Config from YAML and the environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader{v: v}
	l.setDefaults()
	return l
}

// Set overrides key after loading, as command line flags do.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// Load reads path, when given, applies environment overrides and defaults,
// and validates the result. A missing file is not an error.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, encerrors.Wrap(err, encerrors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
	}

	for _, key := range l.v.AllKeys() {
		if value, ok := l.v.Get(key).(string); ok && strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeConfig, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	d := Default()

	l.v.SetDefault("pipeline.name", d.Pipeline.Name)
	l.v.SetDefault("pipeline.batch_size", d.Pipeline.BatchSize)
	l.v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	l.v.SetDefault("pipeline.on_reject", d.Pipeline.OnReject)

	l.v.SetDefault("output.sink", d.Output.Sink)
	l.v.SetDefault("output.compression", d.Output.Compression)
	l.v.SetDefault("output.ipc_compression", d.Output.IPCCompression)
	l.v.SetDefault("output.file.dir", d.Output.File.Dir)
	l.v.SetDefault("output.file.prefix", "")
	l.v.SetDefault("output.s3.bucket", "")
	l.v.SetDefault("output.s3.region", "")
	l.v.SetDefault("output.s3.prefix", "")
	l.v.SetDefault("output.s3.endpoint", "")
	l.v.SetDefault("output.s3.use_path_style", false)
	l.v.SetDefault("output.gcs.bucket", "")
	l.v.SetDefault("output.gcs.prefix", "")
	l.v.SetDefault("output.gcs.endpoint", "")
	l.v.SetDefault("output.gcs.credentials_file", "")
	l.v.SetDefault("output.kafka.brokers", []string{})
	l.v.SetDefault("output.kafka.topic", "")
	l.v.SetDefault("output.kafka.client_id", d.Output.Kafka.ClientID)
	l.v.SetDefault("output.kafka.required_acks", d.Output.Kafka.RequiredAcks)

	l.v.SetDefault("logging.level", d.Logging.Level)
	l.v.SetDefault("logging.format", d.Logging.Format)
	l.v.SetDefault("logging.development", false)

	l.v.SetDefault("tracing.enabled", false)
	l.v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	l.v.SetDefault("tracing.sampling_rate", d.Tracing.SamplingRate)

	l.v.SetDefault("metrics.enabled", false)
	l.v.SetDefault("metrics.listen", d.Metrics.Listen)
}
