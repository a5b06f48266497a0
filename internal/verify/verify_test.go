package verify

import (
	"context"
	"strings"
	"testing"

	"github.com/openclaw/statecraft/internal/llm"
	"github.com/openclaw/statecraft/internal/store"
)

// scriptedClient returns a fixed reply and records the prompt it saw.
type scriptedClient struct {
	reply  string
	prompt string
}

func (c *scriptedClient) GenerateContent(ctx context.Context, modelID, prompt string) (*llm.Response, error) {
	c.prompt = prompt
	return &llm.Response{Text: c.reply, ModelID: modelID}, nil
}

func TestParsePassVerdict(t *testing.T) {
	res := parseReply(`VERIFICATION: PASS
CONFIDENCE: 87
DISCREPANCIES: None
WARNINGS: None
SUMMARY: The answer matches the recorded state.`)

	if !res.Verified {
		t.Error("expected a pass")
	}
	if res.Confidence != 87 {
		t.Errorf("confidence = %d", res.Confidence)
	}
	if len(res.Discrepancies) != 0 || len(res.Warnings) != 0 {
		t.Errorf("None items must be dropped: %+v", res)
	}
	if res.Summary == "" {
		t.Error("summary missing")
	}
}

func TestParseFailVerdict(t *testing.T) {
	res := parseReply(`VERIFICATION: FAIL
CONFIDENCE: 40
DISCREPANCIES: totals differ; date is wrong
WARNINGS: tone is informal
SUMMARY: Conflicts with stored values.`)

	if res.Verified {
		t.Error("expected a fail")
	}
	if len(res.Discrepancies) != 2 {
		t.Errorf("discrepancies = %v", res.Discrepancies)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestParseMissingVerdictFails(t *testing.T) {
	res := parseReply("I think this looks fine overall.")
	if res.Verified {
		t.Error("a reply with no VERIFICATION line must fail")
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %d, want 0", res.Confidence)
	}
}

func TestParseDiscrepanciesForceFail(t *testing.T) {
	res := parseReply(`VERIFICATION: PASS
CONFIDENCE: 95
DISCREPANCIES: the count is off by one
SUMMARY: mostly fine`)

	if res.Verified {
		t.Error("a non-empty discrepancy list must force FAIL")
	}
}

func TestParseConfidenceGarbage(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"CONFIDENCE: 85", 85},
		{"CONFIDENCE: about 70 percent", 70},
		{"CONFIDENCE: high", 0},
		{"CONFIDENCE: 250", 100},
		{"CONFIDENCE: -5", 5},
	}
	for _, tc := range cases {
		res := parseReply("VERIFICATION: PASS\n" + tc.in)
		if res.Confidence != tc.want {
			t.Errorf("%q: confidence = %d, want %d", tc.in, res.Confidence, tc.want)
		}
	}
}

func TestParseCaseAndSpacingTolerant(t *testing.T) {
	res := parseReply(`verification:   pass
confidence:90`)
	if !res.Verified || res.Confidence != 90 {
		t.Errorf("parse should tolerate case and spacing: %+v", res)
	}
}

func TestVerifyBuildsPromptWithState(t *testing.T) {
	client := &scriptedClient{reply: "VERIFICATION: PASS\nCONFIDENCE: 80"}
	svc := New(client, "check-model", nil)

	res, err := svc.Verify(context.Background(), Request{
		Query:        "how many tasks are open?",
		Candidate:    "Two tasks are open.",
		VaultContext: []string{"v-1a2b3c4d: { a: 1 }"},
		Memory:       []store.MemoryEntry{{ID: "mem-aaaa1111", Heading: "note", Content: "x"}},
		Tasks:        []store.TaskEntry{{ID: "task-aaaa1111", Heading: "t", Status: store.TaskPending, Content: "c"}},
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !res.Verified || res.ModelID != "check-model" {
		t.Errorf("result = %+v", res)
	}

	for _, needle := range []string{
		"how many tasks are open?",
		"Two tasks are open.",
		"v-1a2b3c4d",
		"mem-aaaa1111",
		"task-aaaa1111",
		"VERIFICATION:",
	} {
		if !strings.Contains(client.prompt, needle) {
			t.Errorf("prompt missing %q", needle)
		}
	}
}
