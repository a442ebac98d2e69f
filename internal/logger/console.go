// Package logger provides console logging for coordination runs.
//
// ConsoleLogger writes leveled diagnostics and renders the coordination event
// stream and the final summary. It is thread-safe and doubles as an
// events.Subscriber.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs coordination progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// Color output is automatically enabled for terminal output.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should receive colors.
// NO_COLOR (via color.NoColor) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, levelColor(level).Sprint(level), message)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// HandleEvent renders a coordination lifecycle event. It implements
// events.Subscriber so the logger can be attached to a Bus.
func (cl *ConsoleLogger) HandleEvent(ev events.Event) {
	switch p := ev.Payload.(type) {
	case events.CoordinationStartedPayload:
		cl.line("info", fmt.Sprintf("Coordination %s started: %s, %d agents",
			shortID(ev.ExecutionID), cl.bold(string(p.CoordinationType)), p.AgentCount))
	case events.AgentStartedPayload:
		msg := fmt.Sprintf("Agent %s started (%s)", ev.AgentType, p.TaskType)
		if p.Iteration > 0 {
			msg += fmt.Sprintf(" [iteration %d]", p.Iteration)
		}
		cl.line("debug", msg)
	case events.AgentCompletedPayload:
		cl.line("info", fmt.Sprintf("Agent %s: %s (confidence %.2f, cost %.2f, %s)",
			ev.AgentType, cl.paint(color.FgGreen, "COMPLETED"), p.ConfidenceScore, p.CostUnits, formatDuration(p.Duration)))
	case events.AgentFailedPayload:
		cl.line("warn", fmt.Sprintf("Agent %s: %s: %s", ev.AgentType, cl.paint(color.FgRed, "FAILED"), p.Error))
	case events.HandoffInitiatedPayload:
		cl.line("info", fmt.Sprintf("Handoff %s -> %s (%s)", p.FromAgent, p.ToAgent, p.Reason))
	case events.QualityGateFailedPayload:
		kind := "advisory"
		if p.Blocking {
			kind = "blocking"
		}
		cl.line("warn", fmt.Sprintf("Quality gate %q %s for %s (%s, %s)",
			p.Gate, cl.paint(color.FgYellow, "failed"), ev.AgentType, p.Rule, kind))
	case events.CoordinationFinishedPayload:
		if p.Error != "" {
			cl.line("error", fmt.Sprintf("Coordination %s %s: %s", shortID(ev.ExecutionID), cl.paint(color.FgRed, "failed"), p.Error))
			return
		}
		cl.line("info", fmt.Sprintf("Coordination %s %s", shortID(ev.ExecutionID), cl.paint(color.FgGreen, "completed")))
	}
}

// line writes an untagged "[HH:MM:SS] msg" line when level passes the filter.
func (cl *ConsoleLogger) line(level, message string) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] %s\n", timestamp(), message)
}

func (cl *ConsoleLogger) paint(attr color.Attribute, s string) string {
	if !cl.colorOutput {
		return s
	}
	return color.New(attr).Sprint(s)
}

func (cl *ConsoleLogger) bold(s string) string {
	return cl.paint(color.Bold, s)
}

// LogSummary logs the coordination summary at INFO level.
func (cl *ConsoleLogger) LogSummary(result *models.CoordinationResult) {
	if cl.writer == nil || result == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	failed := len(result.Errors)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", ts, cl.bold("=== Coordination Summary ==="))
	fmt.Fprintf(&b, "[%s] Pattern: %s\n", ts, result.CoordinationType)
	fmt.Fprintf(&b, "[%s] Status: %s\n", ts, cl.statusText(result.Status))
	fmt.Fprintf(&b, "[%s] Agents: %d\n", ts, len(result.AgentResults))
	fmt.Fprintf(&b, "[%s] %s\n", ts, cl.paint(color.FgGreen, fmt.Sprintf("Completed: %d", len(result.CompletedAgents))))
	if failed > 0 {
		fmt.Fprintf(&b, "[%s] %s\n", ts, cl.paint(color.FgRed, fmt.Sprintf("Failed: %d", failed)))
	} else {
		fmt.Fprintf(&b, "[%s] Failed: 0\n", ts)
	}
	if result.CoordinationType == string(models.CoordinationFeedbackLoop) {
		fmt.Fprintf(&b, "[%s] Iterations: %d (converged: %t)\n", ts, result.Iterations, result.Converged)
	}
	fmt.Fprintf(&b, "[%s] Average confidence: %.2f\n", ts, result.AverageConfidence)
	fmt.Fprintf(&b, "[%s] Total cost: %.2f\n", ts, result.TotalCost)
	fmt.Fprintf(&b, "[%s] Duration: %s\n", ts, formatDuration(result.Elapsed))

	if len(result.Errors) > 0 {
		fmt.Fprintf(&b, "[%s] %s\n", ts, cl.paint(color.FgRed, "Errors:"))
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "[%s]   - %s\n", ts, e)
		}
	}

	cl.writer.Write([]byte(b.String()))
}

func (cl *ConsoleLogger) statusText(status models.ExecutionStatus) string {
	switch status {
	case models.StatusCompleted:
		return cl.paint(color.FgGreen, string(status))
	case models.StatusFailed:
		return cl.paint(color.FgRed, string(status))
	default:
		return cl.paint(color.FgYellow, string(status))
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "850ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string)                     {}
func (n *NoOpLogger) LogDebug(message string)                     {}
func (n *NoOpLogger) LogInfo(message string)                      {}
func (n *NoOpLogger) LogWarn(message string)                      {}
func (n *NoOpLogger) LogError(message string)                     {}
func (n *NoOpLogger) HandleEvent(ev events.Event)                 {}
func (n *NoOpLogger) LogSummary(result *models.CoordinationResult) {}
