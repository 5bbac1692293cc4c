package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/trace"
)

func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInstrumentJSONFormatAndLevel(t *testing.T) {
	restoreDefaultLogger(t)
	var buf bytes.Buffer

	shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelWarn, Format: "json", Writer: &buf})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	slog.Info("hidden")
	slog.Warn("shown", "page", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.EqualValues(t, 2, rec["page"])
}

func TestInstrumentRedactsSecrets(t *testing.T) {
	restoreDefaultLogger(t)
	var buf bytes.Buffer

	_, err := Instrument(context.Background(), Options{Level: slog.LevelInfo, Format: "text", Writer: &buf})
	require.NoError(t, err)

	slog.Info("exchanging", "code", "abc123", "token", "very-secret")
	assert.NotContains(t, buf.String(), "abc123")
	assert.NotContains(t, buf.String(), "very-secret")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestInstrumentRejectsUnknownFormat(t *testing.T) {
	restoreDefaultLogger(t)
	_, err := Instrument(context.Background(), Options{Format: "xml"})
	assert.Error(t, err)
}

func TestInstrumentStdoutExporter(t *testing.T) {
	restoreDefaultLogger(t)
	var buf bytes.Buffer

	shutdown, err := Instrument(context.Background(), Options{
		Level:    slog.LevelInfo,
		Format:   "text",
		Exporter: ExporterStdout,
		Writer:   &buf,
	})
	require.NoError(t, err)

	slog.Info("exported record")
	require.NoError(t, shutdown(context.Background()))

	// once from the text handler, once from the OTel stdout exporter
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("exported record")))
}

func TestTraceContextHandlerAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&traceContextHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "with span")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
}

func TestSeverityMapping(t *testing.T) {
	assert.Equal(t, minsev.SeverityDebug, severity(slog.LevelDebug-4))
	assert.Equal(t, minsev.SeverityDebug, severity(slog.LevelDebug))
	assert.Equal(t, minsev.SeverityInfo, severity(slog.LevelInfo))
	assert.Equal(t, minsev.SeverityWarn, severity(slog.LevelWarn))
	assert.Equal(t, minsev.SeverityError, severity(slog.LevelError))
}
