package turn

import (
	"context"
	"time"

	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/tags"
)

// ProcessGoals applies goal operations in order. Goals are create-only.
func (c *Context) ProcessGoals(ctx context.Context, ops []tags.Operation) {
	for _, op := range ops {
		o, ok := op.(tags.CreateGoal)
		if !ok {
			continue
		}
		res := c.createGoal(ctx, o)
		c.summary.Goals = append(c.summary.Goals, res)
		c.logger.OpResult("goal", res.Action, res.ID, res.Status)
	}
}

func (c *Context) createGoal(ctx context.Context, op tags.CreateGoal) OpResult {
	if op.Heading == "" || op.Content == "" {
		return OpResult{
			Entity: "goal", Action: "create", Status: "error",
			Error: "create-goal requires both a heading and content",
		}
	}

	entry := &store.GoalEntry{
		ID:        newEntityID("goal"),
		Heading:   op.Heading,
		Content:   c.maybeVault(op.Content, "goal: "+op.Heading),
		Notes:     op.Notes,
		CreatedAt: time.Now().UTC(),
	}
	c.goals[entry.ID] = entry
	c.goalOrder = append(c.goalOrder, entry.ID)
	c.MarkDirty(storeGoals)
	c.LogActivity(ctx, "goal_created", op.Heading, entry.ID)
	return OpResult{Entity: "goal", Action: "create", ID: entry.ID, Status: "ok"}
}
