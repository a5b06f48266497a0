// Package sandbox runs model-authored Starlark snippets against the vault.
// Execution failures never propagate as Go errors; every run produces a
// Result the caller folds into the turn summary.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/vault"
)

// Error classes carried on a failed Result.
const (
	ClassSyntax  = "syntax"
	ClassRuntime = "runtime"
	ClassType    = "type"
	ClassTimeout = "timeout"
)

// Config bounds one execution.
type Config struct {
	// Timeout cancels the interpreter thread when exceeded.
	Timeout time.Duration
	// MaxSteps caps interpreter steps; zero means unlimited.
	MaxSteps uint64
}

// DefaultConfig returns the stock execution bounds.
func DefaultConfig() Config {
	return Config{
		Timeout:  10 * time.Second,
		MaxSteps: 500_000,
	}
}

// Result is the complete outcome of one execution.
type Result struct {
	// Output is everything the code printed, long lines replaced by
	// reference tokens.
	Output string
	// OK is false when execution failed.
	OK bool
	// Err is the failure message, with a remediation hint appended when one
	// of the known failure shapes matches.
	Err string
	// ErrClass is one of the Class constants, empty on success.
	ErrClass string
	// Warnings are pre-execution misuse findings; they never block the run.
	Warnings []string
	// VaultIDs are entries the code created via lab.store.
	VaultIDs []string
	// MissingIDs are identifiers the code referenced with no live entry.
	MissingIDs []string
}

// Executor runs snippets. Safe to reuse across turns; each Run gets a fresh
// thread and lab binding.
type Executor struct {
	cfg    Config
	logger *logging.Logger
}

// NewExecutor creates an executor with the given bounds.
func NewExecutor(cfg Config, logger *logging.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = logging.New().WithComponent("sandbox")
	}
	return &Executor{cfg: cfg, logger: logger}
}

var fileOpts = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Run executes code against v. The returned Result is never nil.
func (e *Executor) Run(ctx context.Context, code string, v *vault.Vault) *Result {
	started := time.Now()
	res := &Result{Warnings: misuseScan(code)}
	state := &labState{vault: v}

	var out strings.Builder
	thread := &starlark.Thread{
		Name: "sandbox",
		Print: func(_ *starlark.Thread, msg string) {
			if len(msg) > v.InlineLimit() {
				entry := v.Store(msg, vault.Options{Force: true, Source: "sandbox print"})
				state.vaultIDs = append(state.vaultIDs, entry.ID)
				msg = vault.Token(entry.ID)
			}
			out.WriteString(msg)
			out.WriteByte('\n')
		},
	}
	if e.cfg.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(e.cfg.MaxSteps)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()

	predeclared := starlark.StringDict{"lab": labModule(state)}
	err := execGuarded(thread, code, predeclared)
	close(done)

	res.Output = out.String()
	res.VaultIDs = state.vaultIDs
	res.MissingIDs = state.missingIDs
	if err == nil {
		res.OK = true
		e.logger.ExecutionOutcome("ok", time.Since(started), "")
		return res
	}

	res.ErrClass = classify(err, runCtx)
	res.Err = renderError(err)
	e.logger.ExecutionOutcome("error", time.Since(started), res.ErrClass)
	return res
}

// execGuarded runs the interpreter and converts any panic into an ordinary
// error, so no failure escapes the Result boundary.
func execGuarded(thread *starlark.Thread, code string, predeclared starlark.StringDict) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal execution failure: %v", r)
		}
	}()
	_, err = starlark.ExecFileOptions(fileOpts, thread, "snippet.star", code, predeclared)
	return err
}

// classify maps an interpreter failure to an error class.
func classify(err error, runCtx context.Context) string {
	if runCtx.Err() != nil || strings.Contains(err.Error(), "execution timeout") {
		return ClassTimeout
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		if typePattern.MatchString(evalErr.Msg) {
			return ClassType
		}
		return ClassRuntime
	}
	var synErr syntax.Error
	if errors.As(err, &synErr) {
		return ClassSyntax
	}
	var synPtr *syntax.Error
	if errors.As(err, &synPtr) {
		return ClassSyntax
	}
	var resList resolve.ErrorList
	if errors.As(err, &resList) {
		return ClassSyntax
	}
	var resErr resolve.Error
	if errors.As(err, &resErr) {
		return ClassSyntax
	}
	return ClassRuntime
}

// renderError flattens err to a single message and appends a remediation
// hint when a known failure shape matches.
func renderError(err error) string {
	msg := err.Error()
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Msg
	}
	if hint := hintFor(msg); hint != "" {
		return fmt.Sprintf("%s (hint: %s)", msg, hint)
	}
	return msg
}
