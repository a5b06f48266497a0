package turn

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/tags"
)

func validStatus(s string) bool {
	switch s {
	case store.TaskPending, store.TaskOngoing, store.TaskComplete:
		return true
	}
	return false
}

// ProcessTasks applies task operations in order. Status values outside the
// lifecycle set are rejected.
func (c *Context) ProcessTasks(ctx context.Context, ops []tags.Operation) {
	for _, op := range ops {
		var res OpResult
		switch o := op.(type) {
		case tags.CreateTask:
			res = c.createTask(ctx, o)
		case tags.UpdateTask:
			res = c.updateTask(ctx, o)
		default:
			continue
		}
		c.summary.Tasks = append(c.summary.Tasks, res)
		c.logger.OpResult("task", res.Action, res.ID, res.Status)
	}
}

func (c *Context) createTask(ctx context.Context, op tags.CreateTask) OpResult {
	if op.Heading == "" || op.Content == "" {
		return OpResult{
			Entity: "task", Action: "create", Status: "error",
			Error: "create-task requires both a heading and content",
		}
	}
	status := op.Status
	if status == "" {
		status = store.TaskPending
	}
	if !validStatus(status) {
		return OpResult{
			Entity: "task", Action: "create", Status: "error",
			Error: fmt.Sprintf("invalid task status %q, valid values: %s, %s, %s",
				op.Status, store.TaskPending, store.TaskOngoing, store.TaskComplete),
		}
	}

	entry := &store.TaskEntry{
		ID:        newEntityID("task"),
		Heading:   op.Heading,
		Content:   c.maybeVault(op.Content, "task: "+op.Heading),
		Status:    status,
		Notes:     op.Notes,
		CreatedAt: time.Now().UTC(),
	}
	c.tasks[entry.ID] = entry
	c.taskOrder = append(c.taskOrder, entry.ID)
	c.MarkDirty(storeTasks)
	c.LogActivity(ctx, "task_created", op.Heading, entry.ID)
	return OpResult{Entity: "task", Action: "create", ID: entry.ID, Status: "ok"}
}

func (c *Context) updateTask(ctx context.Context, op tags.UpdateTask) OpResult {
	entry, ok := c.tasks[op.ID]
	if !ok {
		return OpResult{
			Entity: "task", Action: "update", ID: op.ID, Status: "error",
			Error: refError("task", op.ID, c.taskIDs()),
		}
	}
	if op.HasStatus && !validStatus(op.Status) {
		return OpResult{
			Entity: "task", Action: "update", ID: op.ID, Status: "error",
			Error: fmt.Sprintf("invalid task status %q, valid values: %s, %s, %s",
				op.Status, store.TaskPending, store.TaskOngoing, store.TaskComplete),
		}
	}
	if op.HasHeading {
		entry.Heading = op.Heading
	}
	if op.HasContent {
		entry.Content = c.maybeVault(op.Content, "task: "+entry.Heading)
	}
	if op.HasStatus {
		entry.Status = op.Status
	}
	if op.HasNotes {
		entry.Notes = op.Notes
	}
	c.MarkDirty(storeTasks)
	c.LogActivity(ctx, "task_updated", entry.Heading, entry.ID)
	return OpResult{Entity: "task", Action: "update", ID: entry.ID, Status: "ok"}
}
