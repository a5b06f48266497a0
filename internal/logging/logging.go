// Package logging provides structured, standards-compliant logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger provides structured logging to stderr.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	sessionID string
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		sessionID: l.sessionID,
	}
}

// WithSession returns a new logger tagged with a session ID.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		sessionID: sessionID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs in stable order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		if l.sessionID != "" {
			fields[0]["session"] = l.sessionID
		}
		fieldStr = formatFields(fields[0])
	} else if l.sessionID != "" {
		fieldStr = " session=" + l.sessionID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// TurnStart logs the start of a turn.
func (l *Logger) TurnStart(turnID string, textLen int) {
	l.Info("turn_start", map[string]interface{}{
		"turn":     turnID,
		"text_len": textLen,
	})
}

// TurnComplete logs the completion of a turn.
func (l *Logger) TurnComplete(turnID string, duration time.Duration, errors int) {
	l.Info("turn_complete", map[string]interface{}{
		"turn":     turnID,
		"duration": duration.String(),
		"errors":   errors,
	})
}

// OpResult logs the outcome of a single entity operation.
func (l *Logger) OpResult(entity, action, id, status string) {
	fields := map[string]interface{}{
		"entity": entity,
		"action": action,
		"id":     id,
		"status": status,
	}
	if status == "error" {
		l.Warn("op_result", fields)
	} else {
		l.Debug("op_result", fields)
	}
}

// VaultStored logs a value stored into the vault.
func (l *Logger) VaultStored(id, kind string, size int, truncated bool) {
	l.Debug("vault_stored", map[string]interface{}{
		"id":        id,
		"kind":      kind,
		"size":      size,
		"truncated": truncated,
	})
}

// ExecutionOutcome logs a sandboxed code execution result.
func (l *Logger) ExecutionOutcome(status string, duration time.Duration, errClass string) {
	fields := map[string]interface{}{
		"status":   status,
		"duration": duration.String(),
	}
	if errClass != "" {
		fields["class"] = errClass
	}
	if status == "error" {
		l.Warn("execution_outcome", fields)
	} else {
		l.Info("execution_outcome", fields)
	}
}

// RecoveryAttempt logs a silent recovery attempt. Recovery is never surfaced
// to the end user, so this stays at debug level.
func (l *Logger) RecoveryAttempt(class string, accepted bool, responseLen int) {
	l.Debug("recovery_attempt", map[string]interface{}{
		"class":        class,
		"accepted":     accepted,
		"response_len": responseLen,
	})
}

// VerificationVerdict logs the verification service verdict on a final output.
func (l *Logger) VerificationVerdict(verified bool, confidence int, discrepancies int) {
	l.Info("verification_verdict", map[string]interface{}{
		"verified":      verified,
		"confidence":    confidence,
		"discrepancies": discrepancies,
	})
}

// CommitPhase logs the end-of-turn commit of dirty entity stores.
func (l *Logger) CommitPhase(turnID string, saved []string) {
	l.Info("commit_phase", map[string]interface{}{
		"turn":  turnID,
		"saved": strings.Join(saved, ","),
	})
}
