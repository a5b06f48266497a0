package turn

import (
	"context"
	"time"

	"github.com/openclaw/statecraft/internal/subagent"
	"github.com/openclaw/statecraft/internal/tags"
	"github.com/openclaw/statecraft/internal/vault"
)

// ProcessAgents dispatches spawn-agent operations in order. Replies past the
// inline limit are vaulted; the summary then carries the reference token.
func (c *Context) ProcessAgents(ctx context.Context, ops []tags.SpawnAgent, runner *subagent.Runner) {
	for _, op := range ops {
		res := c.spawnAgent(ctx, op, runner)
		c.summary.Agents = append(c.summary.Agents, res)
		c.logger.OpResult("agent", res.Action, res.ID, res.Status)
	}
}

func (c *Context) spawnAgent(ctx context.Context, op tags.SpawnAgent, runner *subagent.Runner) OpResult {
	req := subagent.Request{
		Name:     op.Name,
		Input:    op.Input,
		Timeout:  time.Duration(op.TimeoutSec) * time.Second,
		CacheTTL: time.Duration(op.CacheSec) * time.Second,
	}
	reply, err := runner.Run(ctx, req)
	if err != nil {
		return OpResult{
			Entity: "agent", Action: "spawn", ID: op.Name, Status: "error",
			Error: err.Error(),
		}
	}

	detail := reply.Output
	if len(detail) > c.vault.InlineLimit() {
		entry := c.vault.Store(detail, vault.Options{
			Force:  true,
			Label:  "agent reply: " + op.Name,
			Source: "agent " + op.Name,
		})
		c.MarkDirty(storeVault)
		detail = vault.Token(entry.ID)
	}
	c.LogActivity(ctx, "agent_spawned", op.Name, "")
	return OpResult{Entity: "agent", Action: "spawn", ID: op.Name, Status: "ok", Detail: detail}
}
