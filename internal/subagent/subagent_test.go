package subagent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/statecraft/internal/llm"
)

type countingCaller struct {
	calls int
	reply string
	err   error
	wait  time.Duration
}

func (c *countingCaller) Call(ctx context.Context, name, input string) (string, error) {
	c.calls++
	if c.wait > 0 {
		select {
		case <-time.After(c.wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func TestRunBasic(t *testing.T) {
	caller := &countingCaller{reply: "summary text"}
	r := NewRunner(caller, 0, nil)

	res, err := r.Run(context.Background(), Request{Name: "summarizer", Input: "long doc"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Output != "summary text" || res.Cached {
		t.Errorf("result = %+v", res)
	}
}

func TestRunRequiresName(t *testing.T) {
	r := NewRunner(&countingCaller{}, 0, nil)
	if _, err := r.Run(context.Background(), Request{Input: "x"}); err == nil {
		t.Error("nameless request must fail")
	}
}

func TestRunCacheHit(t *testing.T) {
	caller := &countingCaller{reply: "cached answer"}
	r := NewRunner(caller, 0, nil)
	req := Request{Name: "a", Input: "same", CacheTTL: time.Minute}

	first, _ := r.Run(context.Background(), req)
	second, _ := r.Run(context.Background(), req)

	if caller.calls != 1 {
		t.Errorf("caller invoked %d times, want 1", caller.calls)
	}
	if first.Cached || !second.Cached {
		t.Errorf("cached flags: first=%t second=%t", first.Cached, second.Cached)
	}
}

func TestRunCacheKeyedByInput(t *testing.T) {
	caller := &countingCaller{reply: "r"}
	r := NewRunner(caller, 0, nil)

	r.Run(context.Background(), Request{Name: "a", Input: "one", CacheTTL: time.Minute})
	r.Run(context.Background(), Request{Name: "a", Input: "two", CacheTTL: time.Minute})

	if caller.calls != 2 {
		t.Errorf("different inputs must not share cache entries: %d calls", caller.calls)
	}
}

func TestRunNoCacheWithoutTTL(t *testing.T) {
	caller := &countingCaller{reply: "r"}
	r := NewRunner(caller, 0, nil)
	req := Request{Name: "a", Input: "x"}

	r.Run(context.Background(), req)
	r.Run(context.Background(), req)

	if caller.calls != 2 {
		t.Errorf("zero TTL must disable caching: %d calls", caller.calls)
	}
}

func TestRunTimeout(t *testing.T) {
	caller := &countingCaller{reply: "late", wait: time.Second}
	r := NewRunner(caller, 0, nil)

	_, err := r.Run(context.Background(), Request{Name: "slow", Input: "x", Timeout: 20 * time.Millisecond})
	if err == nil {
		t.Error("expected a timeout error")
	}
}

func TestRunCallerErrorWrapped(t *testing.T) {
	caller := &countingCaller{err: errors.New("upstream broke")}
	r := NewRunner(caller, 0, nil)

	_, err := r.Run(context.Background(), Request{Name: "flaky", Input: "x"})
	if err == nil || !strings.Contains(err.Error(), `agent "flaky"`) {
		t.Errorf("err = %v", err)
	}
}

type scriptedClient struct {
	prompt string
}

func (c *scriptedClient) GenerateContent(ctx context.Context, modelID, prompt string) (*llm.Response, error) {
	c.prompt = prompt
	return &llm.Response{Text: "reply", ModelID: modelID}, nil
}

func TestLLMCallerUnknownAgent(t *testing.T) {
	caller := NewLLMCaller(&scriptedClient{}, "m", map[string]string{
		"researcher": "You research.",
		"critic":     "You critique.",
	})

	_, err := caller.Call(context.Background(), "nope", "x")
	if err == nil {
		t.Fatal("unknown agent must fail")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "critic, researcher") {
		t.Errorf("valid identifiers must be listed sorted: %v", err)
	}
}

func TestLLMCallerPrependsPreamble(t *testing.T) {
	client := &scriptedClient{}
	caller := NewLLMCaller(client, "m", map[string]string{"researcher": "You research."})

	out, err := caller.Call(context.Background(), "researcher", "find sources")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if out != "reply" {
		t.Errorf("out = %q", out)
	}
	if !strings.HasPrefix(client.prompt, "You research.") || !strings.Contains(client.prompt, "find sources") {
		t.Errorf("prompt = %q", client.prompt)
	}
}
