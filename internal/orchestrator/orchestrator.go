// Package orchestrator drives the turn loop: ask the model, parse its
// operations, mutate the turn context, recover silently when the response
// could not be applied, commit, and push any canvas output through the
// final-output pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openclaw/statecraft/internal/config"
	"github.com/openclaw/statecraft/internal/finalout"
	"github.com/openclaw/statecraft/internal/llm"
	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/recovery"
	"github.com/openclaw/statecraft/internal/sandbox"
	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/subagent"
	"github.com/openclaw/statecraft/internal/tags"
	"github.com/openclaw/statecraft/internal/turn"
	"github.com/openclaw/statecraft/internal/vault"
)

// TurnResult is everything one processed turn produced.
type TurnResult struct {
	TurnID  string
	Summary *turn.Summary
	Outputs []*store.FinalOutput
	// Retried is true when the applied result came from a silent retry.
	Retried bool
}

// Orchestrator owns the collaborators of the turn loop. Turns run one at a
// time; the orchestrator is not safe for concurrent ProcessTurn calls.
type Orchestrator struct {
	cfg       *config.Config
	store     store.Store
	client    llm.Client
	executor  *sandbox.Executor
	runner    *subagent.Runner
	pipeline  *finalout.Pipeline
	recoverer *recovery.Recoverer
	logger    *logging.Logger
	tracer    trace.Tracer
	vaultCfg  vault.Config
}

// Deps bundles the orchestrator's collaborators. Recoverer and Pipeline may
// be nil to disable recovery and canvas handling respectively.
type Deps struct {
	Store     store.Store
	Client    llm.Client
	Executor  *sandbox.Executor
	Runner    *subagent.Runner
	Pipeline  *finalout.Pipeline
	Recoverer *recovery.Recoverer
	Logger    *logging.Logger
}

// New creates an orchestrator.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.New().WithComponent("orchestrator")
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		client:    deps.Client,
		executor:  deps.Executor,
		runner:    deps.Runner,
		pipeline:  deps.Pipeline,
		recoverer: deps.Recoverer,
		logger:    logger,
		tracer:    otel.Tracer("statecraft/orchestrator"),
		vaultCfg: vault.Config{
			PreviewChars: cfg.Vault.PreviewChars,
			PreviewItems: cfg.Vault.PreviewItems,
			StringLimit:  cfg.Vault.StringLimit,
			InlineLimit:  cfg.Vault.InlineLimit,
		},
	}
}

// RunQuery records the query, asks the model, and processes the reply as one
// turn.
func (o *Orchestrator) RunQuery(ctx context.Context, query string) (*TurnResult, error) {
	ctx, span := o.tracer.Start(ctx, "run_query")
	defer span.End()

	if err := o.store.SetCurrentQuery(ctx, query); err != nil {
		return nil, fmt.Errorf("record query: %w", err)
	}

	snap, err := o.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	prompt := o.buildPrompt(snap, query)

	resp, err := o.client.GenerateContent(ctx, o.cfg.LLM.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	return o.ProcessTurn(ctx, llm.ExtractText(resp), prompt, query)
}

// ProcessTurn applies one model response. prompt is the exact prompt that
// produced modelText; recovery rebuilds it for the retry. A turn whose first
// attempt trips a recoverable trigger is re-run once from the same snapshot,
// so an aborted attempt leaves no trace in persisted state.
func (o *Orchestrator) ProcessTurn(ctx context.Context, modelText, prompt, query string) (*TurnResult, error) {
	started := time.Now()
	turnID := "turn-" + uuid.NewString()[:8]
	ctx, span := o.tracer.Start(ctx, "process_turn",
		trace.WithAttributes(attribute.String("turn.id", turnID)))
	defer span.End()

	o.logger.TurnStart(turnID, len(modelText))

	snap, err := o.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	tc, parsed := o.applyText(ctx, snap, modelText)
	result := &TurnResult{TurnID: turnID, Summary: tc.Summary()}

	if o.recoverer != nil {
		if triggers := recovery.Detect(tc.Summary()); len(triggers) > 0 {
			retryCtx, retrySpan := o.tracer.Start(ctx, "silent_recovery")
			retryText, rerr := o.recoverer.Retry(retryCtx, prompt, triggers, tc.EntityIndex())
			retrySpan.End()
			if rerr != nil || retryText == "" {
				o.recoverer.Record(triggers, false, 0)
			} else {
				retryTC, retryParsed := o.applyText(ctx, snap, retryText)
				accepted := len(recovery.Detect(retryTC.Summary())) == 0
				o.recoverer.Record(triggers, accepted, len(retryText))
				if accepted {
					tc, parsed = retryTC, retryParsed
					result.Summary = tc.Summary()
					result.Retried = true
				}
			}
		}
	}

	_, commitSpan := o.tracer.Start(ctx, "commit")
	err = tc.CommitDirtyEntities(ctx, turnID)
	commitSpan.End()
	if err != nil {
		return nil, err
	}

	if o.pipeline != nil && len(parsed.Canvas) > 0 {
		finCtx, finSpan := o.tracer.Start(ctx, "final_output")
		for _, canvas := range parsed.Canvas {
			out, perr := o.pipeline.Run(finCtx, finalout.Candidate{
				Title:   canvas.Title,
				Content: canvas.Content,
				Query:   query,
				Vault:   tc.Vault(),
				Memory:  tc.MemoryEntries(),
				Tasks:   tc.TaskEntries(),
				Goals:   tc.GoalEntries(),
			})
			if perr != nil {
				finSpan.End()
				return nil, perr
			}
			result.Outputs = append(result.Outputs, out)
		}
		finSpan.End()
	}

	o.logger.TurnComplete(turnID, time.Since(started), len(result.Summary.FailedOps()))
	return result, nil
}

// applyText builds a fresh context over snap and runs every parsed operation
// group in the fixed order: memory, tasks, goals, vault, code, agents.
func (o *Orchestrator) applyText(ctx context.Context, snap *store.Snapshot, text string) (*turn.Context, *tags.OperationSet) {
	v := vault.New(o.vaultCfg, o.logger.WithComponent("vault"))
	if snap != nil {
		v.LoadEntries(snap.Vault)
	}
	tc := turn.NewContext(snap, v, o.store, o.logger.WithComponent("turn"))

	parsed := tags.Parse(text)
	tc.ProcessMemory(ctx, parsed.Memory)
	tc.ProcessTasks(ctx, parsed.Tasks)
	tc.ProcessGoals(ctx, parsed.Goals)
	tc.ProcessVault(ctx, parsed.Vault)
	if o.executor != nil {
		tc.ProcessCode(ctx, parsed.Code, o.executor)
	}
	if o.runner != nil {
		tc.ProcessAgents(ctx, parsed.Agents, o.runner)
	}
	return tc, parsed
}

// buildPrompt renders the system preamble, the current state inventory and
// the user query into one prompt.
func (o *Orchestrator) buildPrompt(snap *store.Snapshot, query string) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	b.WriteString("\n# Current state\n\n")
	if len(snap.Memory) > 0 {
		b.WriteString("## Memory\n")
		for _, m := range snap.Memory {
			fmt.Fprintf(&b, "- [%s] %s\n", m.ID, m.Heading)
		}
	}
	if len(snap.Tasks) > 0 {
		b.WriteString("## Tasks\n")
		for _, t := range snap.Tasks {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", t.ID, t.Heading, t.Status)
		}
	}
	if len(snap.Goals) > 0 {
		b.WriteString("## Goals\n")
		for _, g := range snap.Goals {
			fmt.Fprintf(&b, "- [%s] %s\n", g.ID, g.Heading)
		}
	}
	if len(snap.Vault) > 0 {
		b.WriteString("## Stored values\n")
		for _, e := range snap.Vault {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", e.ID, e.Kind, e.Label)
		}
	}

	b.WriteString("\n# Query\n\n")
	b.WriteString(query)
	b.WriteString("\n")
	return b.String()
}

const systemPreamble = `You manage durable state through inline operation tags.

Available tags:
- <create-memory heading="...">content</create-memory>
- <fetch-memory id="..."/>, <update-memory id="...">content</update-memory>, <delete-memory id="..."/>
- <create-task heading="..." status="pending|ongoing|complete">content</create-task>, <update-task id="..."/>
- <create-goal heading="...">content</create-goal>
- <vault-read ref="[[vault:id]]"/>, <vault-delete ref="[[vault:id]]"/>
- <execute-code>starlark using the lab object</execute-code>
- <spawn-agent name="...">input</spawn-agent>
- <canvas-output title="...">final deliverable</canvas-output>

Reference stored values with [[vault:id]] tokens. Only use identifiers that
appear in the current state.
`
