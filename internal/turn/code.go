package turn

import (
	"context"
	"time"

	"github.com/openclaw/statecraft/internal/sandbox"
	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/tags"
)

// ProcessCode runs each snippet through the sandbox, strictly in order, one
// at a time. Snippets observe the vault mutations of earlier snippets in the
// same turn. Failures land in the summary; they never abort the loop.
func (c *Context) ProcessCode(ctx context.Context, execs []tags.ExecuteCode, executor *sandbox.Executor) {
	for _, e := range execs {
		res := executor.Run(ctx, e.Code, c.vault)
		if len(res.VaultIDs) > 0 {
			c.MarkDirty(storeVault)
		}

		exec := Execution{
			Code:       e.Code,
			Output:     res.Output,
			OK:         res.OK,
			Err:        res.Err,
			ErrClass:   res.ErrClass,
			Warnings:   res.Warnings,
			VaultIDs:   res.VaultIDs,
			MissingIDs: res.MissingIDs,
		}
		c.summary.Executions = append(c.summary.Executions, exec)

		status := "ok"
		if !res.OK {
			status = "error"
		}
		rec := store.ExecutionRecord{
			Code:       e.Code,
			Output:     res.Output,
			Status:     status,
			Error:      res.Err,
			ErrClass:   res.ErrClass,
			Warnings:   res.Warnings,
			VaultIDs:   res.VaultIDs,
			MissingIDs: res.MissingIDs,
			Timestamp:  time.Now().UTC(),
		}
		if err := c.store.AppendExecution(ctx, rec); err != nil {
			c.logger.Warn("execution_append_failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
