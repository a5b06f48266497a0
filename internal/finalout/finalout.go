// Package finalout runs a candidate deliverable through the final-output
// state machine: resolve vault references, validate the content, pass the
// verification gate, persist. Candidates that fail a stage are persisted too,
// explicitly marked unverified, with the failure state and reason recorded.
package finalout

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/vault"
	"github.com/openclaw/statecraft/internal/verify"
)

// Pipeline states, recorded on the persisted output.
const (
	StatePending          = "PENDING"
	StateVaultResolved    = "VAULT_RESOLVED"
	StateContentValidated = "CONTENT_VALIDATED"
	StateLLMVerified      = "LLM_VERIFIED"
	StateSaved            = "SAVED"

	StateVaultResolutionFailed = "VAULT_RESOLUTION_FAILED"
	StateValidationFailed      = "VALIDATION_FAILED"
	StateVerificationFailed    = "VERIFICATION_FAILED"
)

// Config bounds content validation.
type Config struct {
	// MaxBytes caps resolved content length; zero means 1 MiB.
	MaxBytes int
	// Disallowed substrings fail validation when present in the resolved
	// content. Leftover operation markup is always disallowed.
	Disallowed []string
}

// DefaultConfig returns the stock validation bounds.
func DefaultConfig() Config {
	return Config{MaxBytes: 1 << 20}
}

// Candidate is one canvas-output submission plus the state to verify against.
type Candidate struct {
	Title   string
	Content string
	Query   string

	Vault  *vault.Vault
	Memory []store.MemoryEntry
	Tasks  []store.TaskEntry
	Goals  []store.GoalEntry
}

// Pipeline drives candidates through the state machine.
type Pipeline struct {
	verifier *verify.Service
	store    store.Store
	logger   *logging.Logger
	cfg      Config
}

// New creates a pipeline. verifier may be nil, in which case the verification
// stage passes trivially with zero confidence.
func New(verifier *verify.Service, st store.Store, cfg Config, logger *logging.Logger) *Pipeline {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	if logger == nil {
		logger = logging.New().WithComponent("finalout")
	}
	return &Pipeline{verifier: verifier, store: st, logger: logger, cfg: cfg}
}

// Run takes cand through every stage and persists the outcome. The returned
// error covers persistence only; a candidate failing a stage is a normal,
// persisted, unverified result.
func (p *Pipeline) Run(ctx context.Context, cand Candidate) (*store.FinalOutput, error) {
	out := &store.FinalOutput{
		ID:        "out-" + uuid.NewString()[:8],
		Title:     cand.Title,
		Content:   cand.Content,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}

	resolved, resolvedIDs, missing := cand.Vault.ResolveText(cand.Content)
	if len(missing) > 0 {
		out.State = StateVaultResolutionFailed
		out.FailureReason = fmt.Sprintf("unresolved vault references: %s", strings.Join(missing, ", "))
		return out, p.persist(ctx, out)
	}
	out.State = StateVaultResolved
	out.Content = resolved
	out.ResolvedRefs = len(resolvedIDs)

	if err := p.validate(resolved); err != nil {
		out.State = StateValidationFailed
		out.FailureReason = err.Error()
		return out, p.persist(ctx, out)
	}
	out.State = StateContentValidated

	verdict, err := p.runVerification(ctx, cand, resolved, resolvedIDs)
	if err != nil {
		out.State = StateVerificationFailed
		out.FailureReason = err.Error()
		return out, p.persist(ctx, out)
	}
	out.Confidence = verdict.Confidence
	if !verdict.Verified {
		out.State = StateVerificationFailed
		out.FailureReason = verificationReason(verdict)
		return out, p.persist(ctx, out)
	}

	out.State = StateLLMVerified
	out.Verified = true
	if err := p.persist(ctx, out); err != nil {
		return out, err
	}
	out.State = StateSaved
	return out, nil
}

// validate applies the content rules to the resolved text.
func (p *Pipeline) validate(content string) error {
	rules := []validation.Rule{
		validation.Required.Error("content is empty"),
		validation.Length(1, p.cfg.MaxBytes).Error(fmt.Sprintf("content exceeds %d bytes", p.cfg.MaxBytes)),
		validation.By(noLeftoverTokens),
		validation.By(p.noDisallowed),
	}
	if err := validation.Validate(content, rules...); err != nil {
		return fmt.Errorf("content validation: %w", err)
	}
	return nil
}

func noLeftoverTokens(value interface{}) error {
	s, _ := value.(string)
	if ids := vault.FindTokenIDs(s); len(ids) > 0 {
		return fmt.Errorf("unresolved vault token %s remains in content", vault.Token(ids[0]))
	}
	return nil
}

func (p *Pipeline) noDisallowed(value interface{}) error {
	s, _ := value.(string)
	for _, bad := range append([]string{"<execute-code", "<canvas-output"}, p.cfg.Disallowed...) {
		if strings.Contains(s, bad) {
			return fmt.Errorf("content contains disallowed fragment %q", bad)
		}
	}
	return nil
}

func (p *Pipeline) runVerification(ctx context.Context, cand Candidate, resolved string, resolvedIDs []string) (*verify.Result, error) {
	if p.verifier == nil {
		return &verify.Result{Verified: true}, nil
	}
	var previews []string
	for _, id := range resolvedIDs {
		if preview, err := cand.Vault.Preview(id, 0); err == nil {
			previews = append(previews, fmt.Sprintf("%s: %s", id, preview))
		}
	}
	return p.verifier.Verify(ctx, verify.Request{
		Query:        cand.Query,
		Candidate:    resolved,
		VaultContext: previews,
		Memory:       cand.Memory,
		Tasks:        cand.Tasks,
		Goals:        cand.Goals,
	})
}

func verificationReason(v *verify.Result) string {
	if len(v.Discrepancies) > 0 {
		return "discrepancies: " + strings.Join(v.Discrepancies, "; ")
	}
	if v.Summary != "" {
		return v.Summary
	}
	return "verification verdict was FAIL"
}

func (p *Pipeline) persist(ctx context.Context, out *store.FinalOutput) error {
	if err := p.store.SaveFinalOutput(ctx, *out); err != nil {
		return fmt.Errorf("persist final output: %w", err)
	}
	p.logger.Info("final_output_persisted", map[string]interface{}{
		"id":       out.ID,
		"state":    out.State,
		"verified": out.Verified,
	})
	return nil
}
