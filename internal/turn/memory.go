package turn

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/tags"
	"github.com/openclaw/statecraft/internal/vault"
)

// ProcessMemory applies memory operations in order. Creates validate their
// required fields; fetch, update and delete are strict about the identifier
// existing. Oversized content is vaulted and replaced by a reference token.
func (c *Context) ProcessMemory(ctx context.Context, ops []tags.Operation) {
	for _, op := range ops {
		var res OpResult
		switch o := op.(type) {
		case tags.CreateMemory:
			res = c.createMemory(ctx, o)
		case tags.FetchMemory:
			res = c.fetchMemory(ctx, o)
		case tags.UpdateMemory:
			res = c.updateMemory(ctx, o)
		case tags.DeleteMemory:
			res = c.deleteMemory(ctx, o)
		default:
			continue
		}
		c.summary.Memory = append(c.summary.Memory, res)
		c.logger.OpResult("memory", res.Action, res.ID, res.Status)
	}
}

func (c *Context) createMemory(ctx context.Context, op tags.CreateMemory) OpResult {
	if op.Heading == "" || op.Content == "" {
		return OpResult{
			Entity: "memory", Action: "create", Status: "error",
			Error: "create-memory requires both a heading and content",
		}
	}

	entry := &store.MemoryEntry{
		ID:        newEntityID("mem"),
		Heading:   op.Heading,
		Content:   c.maybeVault(op.Content, "memory: "+op.Heading),
		Notes:     op.Notes,
		CreatedAt: time.Now().UTC(),
	}
	c.memory[entry.ID] = entry
	c.memoryOrder = append(c.memoryOrder, entry.ID)
	c.MarkDirty(storeMemory)
	c.LogActivity(ctx, "memory_created", op.Heading, entry.ID)
	return OpResult{Entity: "memory", Action: "create", ID: entry.ID, Status: "ok"}
}

func (c *Context) fetchMemory(ctx context.Context, op tags.FetchMemory) OpResult {
	entry, ok := c.memory[op.ID]
	if !ok {
		return OpResult{
			Entity: "memory", Action: "fetch", ID: op.ID, Status: "error",
			Error: refError("memory", op.ID, c.memoryIDs()),
		}
	}
	detail := entry.Content
	if vault.IsReferenceToken(detail) {
		if preview, err := c.vault.Preview(detail, 0); err == nil {
			detail = fmt.Sprintf("%s (%s)", detail, preview)
		}
	}
	c.LogActivity(ctx, "memory_fetched", entry.Heading, entry.ID)
	return OpResult{Entity: "memory", Action: "fetch", ID: entry.ID, Status: "ok", Detail: detail}
}

func (c *Context) updateMemory(ctx context.Context, op tags.UpdateMemory) OpResult {
	entry, ok := c.memory[op.ID]
	if !ok {
		return OpResult{
			Entity: "memory", Action: "update", ID: op.ID, Status: "error",
			Error: refError("memory", op.ID, c.memoryIDs()),
		}
	}
	if op.HasHeading {
		entry.Heading = op.Heading
	}
	if op.HasContent {
		entry.Content = c.maybeVault(op.Content, "memory: "+entry.Heading)
	}
	if op.HasNotes {
		entry.Notes = op.Notes
	}
	c.MarkDirty(storeMemory)
	c.LogActivity(ctx, "memory_updated", entry.Heading, entry.ID)
	return OpResult{Entity: "memory", Action: "update", ID: entry.ID, Status: "ok"}
}

func (c *Context) deleteMemory(ctx context.Context, op tags.DeleteMemory) OpResult {
	entry, ok := c.memory[op.ID]
	if !ok {
		return OpResult{
			Entity: "memory", Action: "delete", ID: op.ID, Status: "error",
			Error: refError("memory", op.ID, c.memoryIDs()),
		}
	}
	delete(c.memory, op.ID)
	for i, id := range c.memoryOrder {
		if id == op.ID {
			c.memoryOrder = append(c.memoryOrder[:i], c.memoryOrder[i+1:]...)
			break
		}
	}
	c.MarkDirty(storeMemory)
	c.LogActivity(ctx, "memory_deleted", entry.Heading, op.ID)
	return OpResult{Entity: "memory", Action: "delete", ID: op.ID, Status: "ok"}
}

// maybeVault stores content past the inline limit and returns its reference
// token; short content passes through unchanged. The limit counts characters,
// not bytes.
func (c *Context) maybeVault(content, label string) string {
	if utf8.RuneCountInString(content) <= c.vault.InlineLimit() {
		return content
	}
	entry := c.vault.Store(content, vault.Options{Force: true, Label: label, Source: "entity content"})
	c.MarkDirty(storeVault)
	return vault.Token(entry.ID)
}
