package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/openclaw/statecraft/internal/config"
	"github.com/openclaw/statecraft/internal/finalout"
	"github.com/openclaw/statecraft/internal/llm"
	"github.com/openclaw/statecraft/internal/recovery"
	"github.com/openclaw/statecraft/internal/sandbox"
	"github.com/openclaw/statecraft/internal/store"
)

// queueClient replays scripted responses in order and records prompts.
type queueClient struct {
	replies []string
	prompts []string
}

func (c *queueClient) GenerateContent(ctx context.Context, modelID, prompt string) (*llm.Response, error) {
	c.prompts = append(c.prompts, prompt)
	reply := ""
	if len(c.replies) > 0 {
		reply = c.replies[0]
		c.replies = c.replies[1:]
	}
	return &llm.Response{Text: reply, ModelID: modelID}, nil
}

func newOrchestrator(st store.Store, client llm.Client, withRecovery bool) *Orchestrator {
	cfg := config.New()
	deps := Deps{
		Store:    st,
		Client:   client,
		Executor: sandbox.NewExecutor(sandbox.DefaultConfig(), nil),
		Pipeline: finalout.New(nil, st, finalout.DefaultConfig(), nil),
	}
	if withRecovery {
		deps.Recoverer = recovery.New(client, cfg.LLM.Model, 0, nil)
	}
	return New(cfg, deps)
}

func TestRunQueryAppliesOperations(t *testing.T) {
	st := store.NewInMemory()
	client := &queueClient{replies: []string{
		`<create-memory heading="Fact">water boils at 100C</create-memory>
<create-task heading="Check sources">verify the claim</create-task>`,
	}}
	o := newOrchestrator(st, client, false)

	result, err := o.RunQuery(context.Background(), "note the boiling point")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Retried {
		t.Error("no trigger, no retry")
	}

	snap, _ := st.LoadAll(context.Background())
	if len(snap.Memory) != 1 || snap.Memory[0].Heading != "Fact" {
		t.Errorf("memory not committed: %+v", snap.Memory)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Status != store.TaskPending {
		t.Errorf("task not committed: %+v", snap.Tasks)
	}

	if q, _ := st.CurrentQuery(context.Background()); q != "note the boiling point" {
		t.Errorf("current query = %q", q)
	}
	if len(client.prompts) != 1 {
		t.Fatalf("expected exactly one model call, got %d", len(client.prompts))
	}
	if !strings.Contains(client.prompts[0], "note the boiling point") {
		t.Error("prompt missing the query")
	}
}

func TestProcessTurnSilentRecovery(t *testing.T) {
	st := store.NewInMemory()
	if err := st.SaveMemory(context.Background(), []store.MemoryEntry{
		{ID: "mem-aaaa1111", Heading: "existing", Content: "v0"},
	}); err != nil {
		t.Fatal(err)
	}

	// The retry response fixes the identifier.
	client := &queueClient{replies: []string{
		`<update-memory id="mem-aaaa1111">corrected</update-memory>`,
	}}
	o := newOrchestrator(st, client, true)

	firstText := `<update-memory id="mem-bogus000">wrong id</update-memory>`
	result, err := o.ProcessTurn(context.Background(), firstText, "prompt", "query")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if !result.Retried {
		t.Fatal("expected a silent retry")
	}
	if result.Summary.HasErrors() {
		t.Errorf("accepted retry summary should be clean: %+v", result.Summary.FailedOps())
	}
	if len(client.prompts) != 1 {
		t.Fatalf("exactly one retry call expected, got %d", len(client.prompts))
	}
	if !strings.Contains(client.prompts[0], "mem-aaaa1111") {
		t.Error("retry prompt missing the entity inventory")
	}

	snap, _ := st.LoadAll(context.Background())
	if snap.Memory[0].Content != "corrected" {
		t.Errorf("retried mutation not committed: %+v", snap.Memory[0])
	}
}

func TestAbortedAttemptLeavesNoTrace(t *testing.T) {
	st := store.NewInMemory()

	// First attempt both spills content into the vault and trips a reference
	// trigger; its vault mutation must not survive the retry.
	big := strings.Repeat("z", 600)
	firstText := `<create-memory heading="spill">` + big + `</create-memory>
<delete-memory id="mem-bogus000"/>`

	client := &queueClient{replies: []string{
		`<create-memory heading="clean">small</create-memory>`,
	}}
	o := newOrchestrator(st, client, true)

	result, err := o.ProcessTurn(context.Background(), firstText, "prompt", "query")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Retried {
		t.Fatal("expected a retry")
	}

	snap, _ := st.LoadAll(context.Background())
	if len(snap.Vault) != 0 {
		t.Errorf("aborted attempt's vault entries leaked: %+v", snap.Vault)
	}
	if len(snap.Memory) != 1 || snap.Memory[0].Heading != "clean" {
		t.Errorf("memory = %+v", snap.Memory)
	}
}

func TestFailedRetryKeepsFirstAttempt(t *testing.T) {
	st := store.NewInMemory()

	// The retry still uses a bad identifier, so the first attempt stands.
	client := &queueClient{replies: []string{
		`<delete-memory id="mem-still0000"/>`,
	}}
	o := newOrchestrator(st, client, true)

	firstText := `<create-memory heading="kept">content</create-memory>
<delete-memory id="mem-bogus000"/>`
	result, err := o.ProcessTurn(context.Background(), firstText, "prompt", "query")
	if err != nil {
		t.Fatal(err)
	}
	if result.Retried {
		t.Error("a retry that still fails must not be accepted")
	}

	snap, _ := st.LoadAll(context.Background())
	if len(snap.Memory) != 1 || snap.Memory[0].Heading != "kept" {
		t.Errorf("first attempt should be committed: %+v", snap.Memory)
	}
	if len(client.prompts) != 1 {
		t.Errorf("only one retry is ever issued, got %d calls", len(client.prompts))
	}
}

func TestEmptyRetryGivesUp(t *testing.T) {
	st := store.NewInMemory()
	client := &queueClient{replies: []string{""}}
	o := newOrchestrator(st, client, true)

	firstText := `<create-memory heading="kept">content</create-memory>
<delete-memory id="mem-bogus000"/>`
	result, err := o.ProcessTurn(context.Background(), firstText, "prompt", "query")
	if err != nil {
		t.Fatal(err)
	}
	if result.Retried {
		t.Error("an empty retry reply must not be accepted")
	}
	snap, _ := st.LoadAll(context.Background())
	if len(snap.Memory) != 1 || snap.Memory[0].Heading != "kept" {
		t.Errorf("first attempt should stand: %+v", snap.Memory)
	}
}

func TestCanvasOutputRunsPipeline(t *testing.T) {
	st := store.NewInMemory()
	client := &queueClient{}
	o := newOrchestrator(st, client, false)

	text := `<canvas-output title="Answer">The final deliverable.</canvas-output>`
	result, err := o.ProcessTurn(context.Background(), text, "prompt", "query")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("outputs = %d", len(result.Outputs))
	}
	out := result.Outputs[0]
	if out.State != finalout.StateSaved || !out.Verified {
		t.Errorf("out = %+v", out)
	}
	if len(st.FinalOutputs()) != 1 {
		t.Error("final output not persisted")
	}
}

func TestCodeExecutionFeedsVaultCommit(t *testing.T) {
	st := store.NewInMemory()
	client := &queueClient{}
	o := newOrchestrator(st, client, false)

	text := "<execute-code>lab.store([1, 2, 3], label=\"nums\")</execute-code>"
	result, err := o.ProcessTurn(context.Background(), text, "prompt", "query")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Summary.Executions) != 1 || !result.Summary.Executions[0].OK {
		t.Fatalf("executions = %+v", result.Summary.Executions)
	}

	snap, _ := st.LoadAll(context.Background())
	if len(snap.Vault) != 1 || snap.Vault[0].Label != "nums" {
		t.Errorf("vault entry from code not committed: %+v", snap.Vault)
	}
	if len(st.Executions()) != 1 {
		t.Error("execution audit record missing")
	}
}

func TestPlainTextTurnIsNoOp(t *testing.T) {
	st := store.NewInMemory()
	o := newOrchestrator(st, &queueClient{}, true)

	result, err := o.ProcessTurn(context.Background(), "Just a prose answer.", "prompt", "query")
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.HasErrors() || result.Retried {
		t.Errorf("result = %+v", result)
	}
	snap, _ := st.LoadAll(context.Background())
	if len(snap.Memory)+len(snap.Tasks)+len(snap.Goals)+len(snap.Vault) != 0 {
		t.Error("no operations, no mutations")
	}
}
