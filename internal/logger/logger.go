// Package logger configures the process-wide slog logger and optional
// OpenTelemetry tracing.
//
// Until InitWithConfig runs, every helper logs through
// slog.Default and spans are no-ops.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "journal-engine"

var (
	globalLogger   *slog.Logger
	tracingEnabled bool
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level          string    // DEBUG, INFO, WARN, ERROR
	Format         string    // json or text
	TracingEnabled bool      // export spans to TraceOutput
	Output         io.Writer // log destination, default os.Stdout
	TraceOutput    io.Writer // span destination, default os.Stderr
}

// InitWithConfig installs the logger as slog's default and starts the
// tracer when enabled. A tracer that fails to start is logged and disabled.
func InitWithConfig(config LogConfig) error {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(config.Level)}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	tracingEnabled = config.TracingEnabled
	if tracingEnabled {
		traceOut := config.TraceOutput
		if traceOut == nil {
			traceOut = os.Stderr
		}
		if err := initTracer(traceOut); err != nil {
			globalLogger.Warn("tracer init failed, tracing disabled", "error", err)
			tracingEnabled = false
		}
	}
	return nil
}

func initTracer(w io.Writer) error {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)
	return nil
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

// ParseLevel converts a level name to slog.Level, defaulting to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StartSpan starts a span, or returns the context's current span when
// tracing is off.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !tracingEnabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

func traceAttrs(ctx context.Context) []any {
	if !tracingEnabled {
		return nil
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []any{"trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String()}
}

func get() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

func Debug(ctx context.Context, msg string, args ...any) { logWithTrace(ctx, slog.LevelDebug, msg, args...) }
func Info(ctx context.Context, msg string, args ...any)  { logWithTrace(ctx, slog.LevelInfo, msg, args...) }
func Warn(ctx context.Context, msg string, args ...any)  { logWithTrace(ctx, slog.LevelWarn, msg, args...) }

// ErrorWithErr logs err and records it on the current span.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	logWithTrace(ctx, slog.LevelError, msg, append([]any{"error", err}, args...)...)
}

func logWithTrace(ctx context.Context, level slog.Level, msg string, args ...any) {
	if attrs := traceAttrs(ctx); attrs != nil {
		args = append(attrs, args...)
	}
	get().Log(ctx, level, msg, args...)
}

// Risk logs a limit breach as a warning and adds it to the current span.
func Risk(ctx context.Context, ticker, eventType string, args ...any) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("risk_event", trace.WithAttributes(
				attribute.String("ticker", ticker),
				attribute.String("event_type", eventType),
			))
		}
	}
	all := append([]any{"type", "RISK", "ticker", ticker, "event_type", eventType}, args...)
	logWithTrace(ctx, slog.LevelWarn, "risk limit breached", all...)
}

// OperationTimer measures one operation inside its own span.
type OperationTimer struct {
	ctx    context.Context
	span   trace.Span
	name   string
	start  time.Time
	fields []any
}

// StartOperation opens a span named operation. String, int and bool fields
// become span attributes.
func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := StartSpan(ctx, operation)
	if tracingEnabled {
		span.SetAttributes(toAttributes(fields)...)
	}
	return &OperationTimer{ctx: ctx, span: span, name: operation, start: time.Now(), fields: fields}
}

// Context returns the context carrying the operation's span.
func (ot *OperationTimer) Context() context.Context {
	return ot.ctx
}

// End closes the span and logs the duration at debug level.
func (ot *OperationTimer) End(fields ...any) {
	duration := time.Since(ot.start)
	if tracingEnabled {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.SetAttributes(toAttributes(fields)...)
		ot.span.SetStatus(codes.Ok, "completed")
		ot.span.End()
	}
	all := append([]any{"operation", ot.name, "duration_ms", duration.Milliseconds()}, ot.fields...)
	Debug(ot.ctx, "operation completed", append(all, fields...)...)
}

// EndWithError closes the span as failed and logs err.
func (ot *OperationTimer) EndWithError(err error, fields ...any) {
	duration := time.Since(ot.start)
	if tracingEnabled {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.RecordError(err)
		ot.span.SetStatus(codes.Error, err.Error())
		ot.span.End()
	}
	all := append([]any{"operation", ot.name, "duration_ms", duration.Milliseconds(), "error", err}, ot.fields...)
	logWithTrace(ot.ctx, slog.LevelError, "operation failed", append(all, fields...)...)
}

func toAttributes(fields []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}
