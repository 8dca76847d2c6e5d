// Package observability provides production-grade observability features
// for sidekick sessions: structured logging, metrics, and distributed
// tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds a slog.Logger from level and format strings as they
// appear in configuration. Unknown values fall back to info/text.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EnrichLogger adds session context to a logger.
// Returns a new logger with session_id, node_id, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "session-123", "worker", 1)
//	enriched.Info("doing work") // includes session_id, node_id, attempt
func EnrichLogger(logger *slog.Logger, sessionID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogSuperstepStart logs the start of a superstep.
func LogSuperstepStart(logger *slog.Logger, sessionID string) {
	if logger == nil {
		return
	}
	logger.Info("superstep starting",
		slog.String("session_id", sessionID),
	)
}

// LogSuperstepComplete logs successful superstep completion.
func LogSuperstepComplete(logger *slog.Logger, sessionID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("superstep completed",
		slog.String("session_id", sessionID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogSuperstepError logs superstep failure.
func LogSuperstepError(logger *slog.Logger, sessionID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("superstep failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogToolCall logs a completed tool invocation.
func LogToolCall(logger *slog.Logger, tool, callID string, durationMs float64, failed bool) {
	if logger == nil {
		return
	}
	logger.Debug("tool call finished",
		slog.String("tool", tool),
		slog.String("call_id", callID),
		slog.Float64("duration_ms", durationMs),
		slog.Bool("failed", failed),
	)
}

// LogEvaluation logs an evaluator verdict.
func LogEvaluation(logger *slog.Logger, sessionID string, met, userInput bool) {
	if logger == nil {
		return
	}
	logger.Info("evaluation recorded",
		slog.String("session_id", sessionID),
		slog.Bool("criteria_met", met),
		slog.Bool("user_input_needed", userInput),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, nodeID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node_id", nodeID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, nodeID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogTeardownError logs a resource release failure. Teardown errors are
// surfaced here and nowhere else; they never replace a session result.
func LogTeardownError(logger *slog.Logger, sessionID, resource string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("resource teardown failed",
		slog.String("session_id", sessionID),
		slog.String("resource", resource),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
