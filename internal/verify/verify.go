// Package verify gates candidate final outputs through a second model call.
// The verifier replies in a fixed line protocol; parsing is defensive, and
// every ambiguity resolves toward rejection.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/statecraft/internal/llm"
	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/store"
)

// Request carries the candidate and the state it must be checked against.
type Request struct {
	Query     string
	Candidate string
	// VaultContext lists previews of the entries the candidate resolved.
	VaultContext []string
	Memory       []store.MemoryEntry
	Tasks        []store.TaskEntry
	Goals        []store.GoalEntry
}

// Result is the parsed verdict.
type Result struct {
	Verified      bool
	Confidence    int
	Discrepancies []string
	Warnings      []string
	Summary       string
	ModelID       string
	Duration      time.Duration
}

// Service issues verification calls.
type Service struct {
	client  llm.Client
	modelID string
	logger  *logging.Logger
}

// New creates a verification service on client.
func New(client llm.Client, modelID string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.New().WithComponent("verify")
	}
	return &Service{client: client, modelID: modelID, logger: logger}
}

// Verify checks the candidate against the request state. A transport failure
// is the only error; a negative verdict is a normal Result.
func (s *Service) Verify(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	resp, err := s.client.GenerateContent(ctx, s.modelID, buildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("verification call: %w", err)
	}

	res := parseReply(llm.ExtractText(resp))
	res.ModelID = s.modelID
	res.Duration = time.Since(started)
	s.logger.VerificationVerdict(res.Verified, res.Confidence, len(res.Discrepancies))
	return res, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a verification reviewer. Check the candidate answer below against the recorded state and the user's query.\n\n")

	b.WriteString("## User query\n")
	b.WriteString(req.Query)
	b.WriteString("\n\n## Candidate answer\n")
	b.WriteString(req.Candidate)
	b.WriteString("\n")

	if len(req.VaultContext) > 0 {
		b.WriteString("\n## Referenced stored values\n")
		for _, p := range req.VaultContext {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	if len(req.Memory) > 0 {
		b.WriteString("\n## Memory\n")
		for _, m := range req.Memory {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", m.ID, m.Heading, m.Content)
		}
	}
	if len(req.Tasks) > 0 {
		b.WriteString("\n## Tasks\n")
		for _, t := range req.Tasks {
			fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", t.ID, t.Heading, t.Status, t.Content)
		}
	}
	if len(req.Goals) > 0 {
		b.WriteString("\n## Goals\n")
		for _, g := range req.Goals {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", g.ID, g.Heading, g.Content)
		}
	}

	b.WriteString(`
Reply using exactly this line protocol, nothing else:

VERIFICATION: PASS or FAIL
CONFIDENCE: an integer from 0 to 100
DISCREPANCIES: a semicolon-separated list of factual conflicts, or None
WARNINGS: a semicolon-separated list of soft concerns, or None
SUMMARY: one sentence justifying the verdict
`)
	return b.String()
}

// parseReply extracts the verdict defensively. A missing VERIFICATION line
// fails, a missing CONFIDENCE line scores zero, and any listed discrepancy
// forces a FAIL regardless of the stated verdict.
func parseReply(text string) *Result {
	res := &Result{}
	sawVerdict := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasField(line, "VERIFICATION"):
			sawVerdict = true
			v := strings.ToUpper(fieldValue(line))
			res.Verified = strings.Contains(v, "PASS") && !strings.Contains(v, "FAIL")
		case hasField(line, "CONFIDENCE"):
			res.Confidence = parseConfidence(fieldValue(line))
		case hasField(line, "DISCREPANCIES"):
			res.Discrepancies = parseItems(fieldValue(line))
		case hasField(line, "WARNINGS"):
			res.Warnings = parseItems(fieldValue(line))
		case hasField(line, "SUMMARY"):
			res.Summary = fieldValue(line)
		}
	}

	if !sawVerdict {
		res.Verified = false
	}
	if len(res.Discrepancies) > 0 {
		res.Verified = false
	}
	return res
}

func hasField(line, name string) bool {
	return strings.HasPrefix(strings.ToUpper(line), name+":")
}

func fieldValue(line string) string {
	_, after, _ := strings.Cut(line, ":")
	return strings.TrimSpace(after)
}

// parseConfidence takes the first integer found, clamped to [0, 100]. Any
// garbage scores zero.
func parseConfidence(s string) int {
	n, inNumber := 0, false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			inNumber = true
			n = n*10 + int(r-'0')
			if n > 100 {
				return 100
			}
			continue
		}
		if inNumber {
			break
		}
	}
	if !inNumber {
		return 0
	}
	return n
}

// parseItems splits a semicolon list, discarding blanks and "None".
func parseItems(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "none") {
			continue
		}
		items = append(items, part)
	}
	return items
}
