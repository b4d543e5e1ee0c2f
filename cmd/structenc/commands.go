package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/structenc/internal/pipeline"
	"github.com/ajitpratap0/structenc/pkg/compression"
	"github.com/ajitpratap0/structenc/pkg/config"
	formats "github.com/ajitpratap0/structenc/pkg/formats/columnar"
	"github.com/ajitpratap0/structenc/pkg/logger"
	"github.com/ajitpratap0/structenc/pkg/metrics"
	"github.com/ajitpratap0/structenc/pkg/observability"
	"github.com/ajitpratap0/structenc/pkg/performance"
	"github.com/ajitpratap0/structenc/pkg/sink"
)

var version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "structenc",
		Short: "Encode JSON rows into adaptive Arrow struct batches",
		Long: `structenc reads newline delimited JSON objects, groups them into batches and
encodes every batch as one Arrow struct array. Fields that carry no data in a
batch are left out of it. Batches are written as Arrow IPC streams to a file
directory, S3, GCS or Kafka.`,
		SilenceUsage: true,
	}

	root.AddCommand(newVersionCmd(), newEncodeCmd(), newInspectCmd(), newConfigCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "structenc v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

type encodeFlags struct {
	configFile string
	input      string
	batchSize  int
	workers    int
	logLevel   string
	outputDir  string
}

func newEncodeCmd() *cobra.Command {
	var f encodeFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode JSON rows read from a file or stdin",
		Long: `Encode JSON rows read from a file or stdin.

Input files ending in a compression extension (.gz, .zst, .lz4, .snappy, .s2)
are decompressed first.

Example:
  structenc encode --config spans.yaml --input spans.jsonl.zst`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			if cmd.Flags().Changed("batch-size") {
				loader.Set("pipeline.batch_size", f.batchSize)
			}
			if cmd.Flags().Changed("workers") {
				loader.Set("pipeline.workers", f.workers)
			}
			if cmd.Flags().Changed("log-level") {
				loader.Set("logging.level", f.logLevel)
			}
			if cmd.Flags().Changed("output-dir") {
				loader.Set("output.sink", config.SinkFile)
				loader.Set("output.file.dir", f.outputDir)
			}
			cfg, err := loader.Load(f.configFile)
			if err != nil {
				return err
			}
			return runEncode(cmd, cfg, f.input)
		},
	}

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "structenc.yaml", "Path to the YAML configuration")
	cmd.Flags().StringVarP(&f.input, "input", "i", "-", "Input file, - for stdin")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 1024, "Rows per batch")
	cmd.Flags().IntVar(&f.workers, "workers", runtime.NumCPU(), "Number of encoding workers")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Write batches to this directory, overriding the configured sink")
	return cmd
}

func runEncode(cmd *cobra.Command, cfg *config.Config, input string) error {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	logger.SetGlobal(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	if cfg.Metrics.Enabled {
		stopMetrics := serveMetrics(cfg.Metrics.Listen, log)
		defer stopMetrics()

		monitor, err := performance.NewResourceMonitor()
		if err != nil {
			return err
		}
		monitorCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go monitor.Run(monitorCtx, 5*time.Second, log)
	}

	r, closeInput, err := openInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}
	defer closeInput()

	snk, err := sink.New(ctx, cfg.Output, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := snk.Close(); err != nil {
			log.Warn("sink close failed", zap.Error(err))
		}
	}()

	enc, err := pipeline.NewEncoder(cfg, snk, pipeline.WithLogger(log))
	if err != nil {
		return err
	}
	stats, err := enc.Run(ctx, r)
	if err != nil {
		return err
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")
	return out.Encode(stats)
}

func serveMetrics(addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// openInput opens path, or returns stdin for "-". Compressed files are
// decompressed in memory.
func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return stdin, func() {}, nil
	}

	algo := compression.FromExtension(path)
	if algo == compression.None {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	c, err := compression.NewCompressor(algo, compression.Default)
	if err != nil {
		return nil, nil, err
	}
	raw, err := c.Decompress(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	return bytes.NewReader(raw), func() {}, nil
}

func newInspectCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the struct type and leading rows of an encoded batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), args[0], rows)
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 5, "Number of rows to print")
	return cmd
}

func inspect(w io.Writer, path string, rows int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if algo := compression.FromExtension(path); algo != compression.None {
		c, err := compression.NewCompressor(algo, compression.Default)
		if err != nil {
			return err
		}
		if data, err = c.Decompress(data); err != nil {
			return fmt.Errorf("failed to decompress %s: %w", path, err)
		}
	}

	p, err := formats.Decode(data, &formats.ReaderConfig{Format: formats.FormatFromPath(path)})
	if err != nil {
		return err
	}
	defer p.Release()

	fmt.Fprintf(w, "%s: %d rows, %d batches\n", filepath.Base(path), p.Rows(), p.Batches)
	for _, key := range []string{formats.MetaPipeline, formats.MetaFingerprint, formats.MetaBatch} {
		if v, ok := p.Metadata(key); ok {
			fmt.Fprintf(w, "  %s = %s\n", key, v)
		}
	}
	fmt.Fprintln(w, "fields:")
	for _, line := range p.Describe() {
		fmt.Fprintf(w, "  %s\n", line)
	}

	n := rows
	if n > p.Rows() {
		n = p.Rows()
	}
	if n > 0 {
		fmt.Fprintln(w, "rows:")
	}
	for i := 0; i < n; i++ {
		vals := make([]string, p.Struct.NumField())
		for j := range vals {
			vals[j] = p.Struct.Field(j).ValueStr(i)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(vals, " | "))
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	var configFile string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults and environment overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().Load(configFile)
			if err != nil {
				return err
			}
			return config.Write(cmd.OutOrStdout(), cfg)
		},
	}
	show.Flags().StringVarP(&configFile, "config", "c", "structenc.yaml", "Path to the YAML configuration")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration and report every problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().Load(configFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: pipeline %q, %d fields\n", cfg.Pipeline.Name, len(cfg.Schema.Fields))
			return nil
		},
	}
	validate.Flags().StringVarP(&configFile, "config", "c", "structenc.yaml", "Path to the YAML configuration")

	cmd.AddCommand(show, validate)
	return cmd
}
