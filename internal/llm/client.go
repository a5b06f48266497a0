// Package llm abstracts the model client consumed by the orchestrator, the
// verification service and silent recovery.
package llm

import (
	"context"
	"strings"
)

// Response is a single model reply.
type Response struct {
	Text    string
	ModelID string
}

// Client issues one content-generation call per invocation.
type Client interface {
	GenerateContent(ctx context.Context, modelID, prompt string) (*Response, error)
}

// ExtractText returns the trimmed reply text, empty for a nil response.
func ExtractText(resp *Response) string {
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Text)
}
