// Package observability configures the process-wide slog logger and the
// optional OpenTelemetry log export behind it.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies this process in exported telemetry.
const ServiceName = "photofeed"

// Exporter selects where log records are exported in addition to stderr.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPHTTP Exporter = "otlp-http"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
)

// Options configures Instrument.
type Options struct {
	Level  slog.Level
	Format string // text or json
	// Exporter defaults to ExporterNone.
	Exporter Exporter
	// Endpoint overrides the OTLP endpoint URL; empty uses the OTEL_EXPORTER_OTLP_* environment.
	Endpoint string
	// Writer receives the local log output; defaults to os.Stderr.
	Writer io.Writer
}

// ShutdownFunc flushes and stops exporters.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger. The returned ShutdownFunc must
// be called before exit to flush exported records.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: redactSecrets}
	var local slog.Handler
	switch opts.Format {
	case "", "text":
		local = slog.NewTextHandler(w, handlerOpts)
	case "json":
		local = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}
	local = &traceContextHandler{Handler: local}

	noop := func(context.Context) error { return nil }

	if opts.Exporter == "" || opts.Exporter == ExporterNone {
		slog.SetDefault(slog.New(local))
		return noop, nil
	}

	provider, err := newLoggerProvider(ctx, opts, w)
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}
	global.SetLoggerProvider(provider)

	localLogger := slog.New(local)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		localLogger.Error("telemetry export failed", "error", err)
	}))

	exported := otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(&fanoutHandler{handlers: []slog.Handler{local, exported}}))

	return provider.Shutdown, nil
}

func newLoggerProvider(ctx context.Context, opts Options, w io.Writer) (*sdklog.LoggerProvider, error) {
	var processor sdklog.Processor

	switch opts.Exporter {
	case ExporterStdout:
		exporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return nil, err
		}
		// CLI runs are short; export synchronously
		processor = sdklog.NewSimpleProcessor(exporter)
	case ExporterOTLPHTTP:
		var httpOpts []otlploghttp.Option
		if opts.Endpoint != "" {
			httpOpts = append(httpOpts, otlploghttp.WithEndpointURL(opts.Endpoint))
		}
		exporter, err := otlploghttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, err
		}
		processor = sdklog.NewBatchProcessor(exporter)
	case ExporterOTLPGRPC:
		var grpcOpts []otlploggrpc.Option
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlploggrpc.WithEndpointURL(opts.Endpoint))
		}
		exporter, err := otlploggrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, err
		}
		processor = sdklog.NewBatchProcessor(exporter)
	default:
		return nil, fmt.Errorf("unsupported exporter %q", opts.Exporter)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(opts.Level))),
	), nil
}

// severity maps a slog level onto the minimum exported OTel severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
