// Package recovery retries a failed turn without surfacing anything to the
// user. It detects recoverable failure triggers in a turn summary, rebuilds
// the prompt with a live entity inventory and a natural description of what
// went wrong, and issues at most one retry call per turn.
package recovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/statecraft/internal/llm"
	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/sandbox"
	"github.com/openclaw/statecraft/internal/turn"
)

// Trigger classes.
const (
	ClassReference = "reference"
	ClassExecution = "execution"
)

// Trigger is one recoverable failure found in a turn summary.
type Trigger struct {
	Class      string
	Message    string
	MissingIDs []string
	// Code is the failed snippet for execution triggers, empty otherwise.
	Code string
}

// refPattern matches operation errors caused by a stale or invented
// identifier. The turn processors phrase reference failures to match.
var refPattern = regexp.MustCompile(`(?i)(not found|does not exist|missing|unknown identifier)`)

// Detect scans a turn summary for recoverable triggers. Failed entity and
// vault operations qualify when their message looks like a reference
// mistake; failed executions qualify when the class is syntax or runtime and
// the failure points at identifiers (missing entries or a reference-shaped
// message). Type errors and timeouts are never retried.
func Detect(s *turn.Summary) []Trigger {
	var triggers []Trigger
	for _, r := range s.FailedOps() {
		if refPattern.MatchString(r.Error) {
			triggers = append(triggers, Trigger{
				Class:      ClassReference,
				Message:    r.Error,
				MissingIDs: []string{r.ID},
			})
		}
	}
	for _, e := range s.Executions {
		if e.OK {
			continue
		}
		if e.ErrClass != sandbox.ClassSyntax && e.ErrClass != sandbox.ClassRuntime {
			continue
		}
		if len(e.MissingIDs) == 0 && !refPattern.MatchString(e.Err) {
			continue
		}
		triggers = append(triggers, Trigger{
			Class:      ClassExecution,
			Message:    e.Err,
			MissingIDs: e.MissingIDs,
			Code:       e.Code,
		})
	}
	return triggers
}

// Attempt is one recorded retry, kept for diagnostics.
type Attempt struct {
	Time        time.Time
	Triggers    []Trigger
	Accepted    bool
	ResponseLen int
}

// Recoverer issues retry calls and keeps a bounded attempt history.
type Recoverer struct {
	client      llm.Client
	modelID     string
	logger      *logging.Logger
	maxAttempts int

	mu       sync.Mutex
	attempts []Attempt
}

// New creates a recoverer. maxAttempts bounds the diagnostic history; zero
// means 20.
func New(client llm.Client, modelID string, maxAttempts int, logger *logging.Logger) *Recoverer {
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	if logger == nil {
		logger = logging.New().WithComponent("recovery")
	}
	return &Recoverer{client: client, modelID: modelID, logger: logger, maxAttempts: maxAttempts}
}

// Retry issues the single retry call for a failed turn, combining every
// trigger into one rebuilt prompt. It returns the replacement model text.
func (r *Recoverer) Retry(ctx context.Context, originalPrompt string, triggers []Trigger, idx turn.EntityIndex) (string, error) {
	prompt := insertAfterLastHeading(originalPrompt, BuildIndex(idx))
	prompt += "\n\n" + describeFailures(triggers)

	resp, err := r.client.GenerateContent(ctx, r.modelID, prompt)
	if err != nil {
		return "", fmt.Errorf("recovery retry: %w", err)
	}
	return llm.ExtractText(resp), nil
}

// Record appends one attempt, discarding the oldest past the bound.
func (r *Recoverer) Record(triggers []Trigger, accepted bool, responseLen int) {
	r.mu.Lock()
	r.attempts = append(r.attempts, Attempt{
		Time:        time.Now().UTC(),
		Triggers:    triggers,
		Accepted:    accepted,
		ResponseLen: responseLen,
	})
	if len(r.attempts) > r.maxAttempts {
		r.attempts = r.attempts[len(r.attempts)-r.maxAttempts:]
	}
	r.mu.Unlock()

	class := ""
	if len(triggers) > 0 {
		class = triggers[0].Class
	}
	r.logger.RecoveryAttempt(class, accepted, responseLen)
}

// Diagnostics returns a copy of the recorded attempts, oldest first.
func (r *Recoverer) Diagnostics() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// BuildIndex renders the live identifier inventory as a markdown block.
func BuildIndex(idx turn.EntityIndex) string {
	var b strings.Builder
	b.WriteString("## Current entity identifiers\n")
	writeIndexLine(&b, "Memory", idx.Memory)
	writeIndexLine(&b, "Tasks", idx.Tasks)
	writeIndexLine(&b, "Goals", idx.Goals)
	writeIndexLine(&b, "Vault", idx.Vault)
	return b.String()
}

func writeIndexLine(b *strings.Builder, name string, ids []string) {
	b.WriteString("- ")
	b.WriteString(name)
	b.WriteString(": ")
	if len(ids) == 0 {
		b.WriteString("none")
	} else {
		b.WriteString(strings.Join(ids, ", "))
	}
	b.WriteString("\n")
}

// headingPattern matches a markdown heading line of depth 1 to 3.
var headingPattern = regexp.MustCompile(`(?m)^#{1,3} .*$`)

// insertAfterLastHeading places block after the last markdown heading of
// prompt, or appends it when the prompt has no headings.
func insertAfterLastHeading(prompt, block string) string {
	locs := headingPattern.FindAllStringIndex(prompt, -1)
	if len(locs) == 0 {
		return strings.TrimRight(prompt, "\n") + "\n\n" + block
	}
	end := locs[len(locs)-1][1]
	return prompt[:end] + "\n\n" + block + prompt[end:]
}

// describeFailures words the previous attempt naturally. The retry must read
// as a fresh request; the model is told to answer again, not to apologize.
func describeFailures(triggers []Trigger) string {
	var b strings.Builder
	b.WriteString("Note: your previous response could not be fully applied.\n")
	for _, t := range triggers {
		switch t.Class {
		case ClassReference:
			fmt.Fprintf(&b, "- An operation referenced an identifier that does not exist (%s).\n", t.Message)
		case ClassExecution:
			fmt.Fprintf(&b, "- A code snippet failed: %s\n", t.Message)
			if t.Code != "" {
				b.WriteString("  The snippet was:\n")
				for _, line := range strings.Split(t.Code, "\n") {
					fmt.Fprintf(&b, "      %s\n", line)
				}
			}
			if len(t.MissingIDs) > 0 {
				fmt.Fprintf(&b, "  It referenced missing entries: %s\n", strings.Join(t.MissingIDs, ", "))
			}
		}
	}
	b.WriteString("Use only identifiers from the inventory above and respond again in full. Do not mention this note or the earlier attempt.")
	return b.String()
}
