// Package subagent dispatches spawn-agent requests to named helper agents.
// Calls are bounded by a per-request timeout and results are cached for the
// TTL the request asked for.
package subagent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/statecraft/internal/llm"
	"github.com/openclaw/statecraft/internal/logging"
)

// Caller executes one named sub-agent invocation.
type Caller interface {
	Call(ctx context.Context, name, input string) (string, error)
}

// Request is one spawn-agent invocation.
type Request struct {
	Name  string
	Input string
	// Timeout bounds this call; zero uses the runner default.
	Timeout time.Duration
	// CacheTTL keeps the result reusable for identical requests; zero
	// disables caching for this call.
	CacheTTL time.Duration
}

// Result carries the reply and whether it was served from cache.
type Result struct {
	Output string
	Cached bool
}

type cacheEntry struct {
	output  string
	expires time.Time
}

// Runner fans requests out to a Caller with timeout and caching applied.
type Runner struct {
	caller         Caller
	defaultTimeout time.Duration
	logger         *logging.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewRunner wraps caller. defaultTimeout bounds calls whose request carries
// none; zero means 60 seconds.
func NewRunner(caller Caller, defaultTimeout time.Duration, logger *logging.Logger) *Runner {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.New().WithComponent("subagent")
	}
	return &Runner{
		caller:         caller,
		defaultTimeout: defaultTimeout,
		logger:         logger,
		cache:          make(map[string]cacheEntry),
	}
}

// Run executes req, serving from cache when a live entry matches.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("spawn-agent requires a name")
	}

	key := req.Name + "\x00" + req.Input
	if req.CacheTTL > 0 {
		r.mu.Lock()
		entry, ok := r.cache[key]
		r.mu.Unlock()
		if ok && time.Now().Before(entry.expires) {
			r.logger.Debug("subagent_cache_hit", map[string]interface{}{"agent": req.Name})
			return &Result{Output: entry.output, Cached: true}, nil
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := r.caller.Call(callCtx, req.Name, req.Input)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", req.Name, err)
	}

	if req.CacheTTL > 0 {
		r.mu.Lock()
		r.cache[key] = cacheEntry{output: output, expires: time.Now().Add(req.CacheTTL)}
		r.mu.Unlock()
	}
	return &Result{Output: output}, nil
}

// LLMCaller runs sub-agents as single model calls, each with its own system
// preamble.
type LLMCaller struct {
	client  llm.Client
	modelID string
	// Preambles maps agent name to its system preamble. Unknown names fail.
	Preambles map[string]string
}

// NewLLMCaller creates a model-backed caller.
func NewLLMCaller(client llm.Client, modelID string, preambles map[string]string) *LLMCaller {
	return &LLMCaller{client: client, modelID: modelID, Preambles: preambles}
}

// Call issues one generation for the named agent.
func (c *LLMCaller) Call(ctx context.Context, name, input string) (string, error) {
	preamble, ok := c.Preambles[name]
	if !ok {
		known := make([]string, 0, len(c.Preambles))
		for k := range c.Preambles {
			known = append(known, k)
		}
		sort.Strings(known)
		return "", fmt.Errorf("agent %q does not exist, valid identifiers: %s", name, strings.Join(known, ", "))
	}
	prompt := preamble + "\n\n" + input
	resp, err := c.client.GenerateContent(ctx, c.modelID, prompt)
	if err != nil {
		return "", err
	}
	return llm.ExtractText(resp), nil
}
