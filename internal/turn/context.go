// Package turn holds the per-turn mutation context: working copies of the
// four entity stores, the operation processors that mutate them, and the
// end-of-turn commit that writes every dirty store back in one pass. Nothing
// here touches persistence before commit, which is what makes an aborted turn
// free to throw the whole context away.
package turn

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/vault"
)

// Dirty-store names, also the fixed commit order.
const (
	storeVault  = "vault"
	storeMemory = "memory"
	storeTasks  = "tasks"
	storeGoals  = "goals"
)

var commitOrder = []string{storeVault, storeMemory, storeTasks, storeGoals}

// OpResult records the outcome of one entity operation in the turn summary.
type OpResult struct {
	Entity string
	Action string
	ID     string
	Status string // "ok" or "error"
	Detail string
	Error  string
}

// Execution records one sandbox run in the turn summary.
type Execution struct {
	Code       string
	Output     string
	OK         bool
	Err        string
	ErrClass   string
	Warnings   []string
	VaultIDs   []string
	MissingIDs []string
}

// Summary is everything a turn did, the raw material for activity logging,
// recovery triggers and the retry prompt.
type Summary struct {
	Memory     []OpResult
	Tasks      []OpResult
	Goals      []OpResult
	Vault      []OpResult
	Agents     []OpResult
	Executions []Execution
}

// HasErrors reports whether any operation or execution failed.
func (s *Summary) HasErrors() bool {
	for _, group := range [][]OpResult{s.Memory, s.Tasks, s.Goals, s.Vault, s.Agents} {
		for _, r := range group {
			if r.Status == "error" {
				return true
			}
		}
	}
	for _, e := range s.Executions {
		if !e.OK {
			return true
		}
	}
	return false
}

// FailedOps returns every failed operation across all groups.
func (s *Summary) FailedOps() []OpResult {
	var failed []OpResult
	for _, group := range [][]OpResult{s.Memory, s.Tasks, s.Goals, s.Vault, s.Agents} {
		for _, r := range group {
			if r.Status == "error" {
				failed = append(failed, r)
			}
		}
	}
	return failed
}

// Context is the working state of one turn.
type Context struct {
	vault  *vault.Vault
	store  store.Store
	logger *logging.Logger

	memory map[string]*store.MemoryEntry
	tasks  map[string]*store.TaskEntry
	goals  map[string]*store.GoalEntry

	memoryOrder []string
	taskOrder   []string
	goalOrder   []string

	dirty   map[string]bool
	summary Summary
}

// NewContext builds a turn context over a loaded snapshot. v must already be
// seeded with the snapshot's vault entries.
func NewContext(snap *store.Snapshot, v *vault.Vault, st store.Store, logger *logging.Logger) *Context {
	if logger == nil {
		logger = logging.New().WithComponent("turn")
	}
	c := &Context{
		vault:  v,
		store:  st,
		logger: logger,
		memory: make(map[string]*store.MemoryEntry),
		tasks:  make(map[string]*store.TaskEntry),
		goals:  make(map[string]*store.GoalEntry),
		dirty:  make(map[string]bool),
	}
	if snap != nil {
		for i := range snap.Memory {
			e := snap.Memory[i]
			c.memory[e.ID] = &e
			c.memoryOrder = append(c.memoryOrder, e.ID)
		}
		for i := range snap.Tasks {
			e := snap.Tasks[i]
			c.tasks[e.ID] = &e
			c.taskOrder = append(c.taskOrder, e.ID)
		}
		for i := range snap.Goals {
			e := snap.Goals[i]
			c.goals[e.ID] = &e
			c.goalOrder = append(c.goalOrder, e.ID)
		}
	}
	return c
}

// Vault exposes the per-turn vault.
func (c *Context) Vault() *vault.Vault { return c.vault }

// Summary returns the accumulated turn summary.
func (c *Context) Summary() *Summary { return &c.summary }

// MarkDirty flags a store for the end-of-turn commit.
func (c *Context) MarkDirty(name string) {
	c.dirty[name] = true
}

// Dirty reports whether the named store has uncommitted mutations.
func (c *Context) Dirty(name string) bool { return c.dirty[name] }

// CommitDirtyEntities persists every dirty store, always in the same order:
// vault, memory, tasks, goals. The first failure aborts the commit.
func (c *Context) CommitDirtyEntities(ctx context.Context, turnID string) error {
	var saved []string
	for _, name := range commitOrder {
		if !c.dirty[name] {
			continue
		}
		var err error
		switch name {
		case storeVault:
			err = c.store.SaveVault(ctx, c.vault.Entries())
		case storeMemory:
			err = c.store.SaveMemory(ctx, c.memoryEntries())
		case storeTasks:
			err = c.store.SaveTasks(ctx, c.taskEntries())
		case storeGoals:
			err = c.store.SaveGoals(ctx, c.goalEntries())
		}
		if err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		saved = append(saved, name)
	}
	if len(saved) > 0 {
		c.logger.CommitPhase(turnID, saved)
	}
	return nil
}

// LogActivity appends one record to the audit log. Audit failures are logged
// and swallowed; they never fail a turn.
func (c *Context) LogActivity(ctx context.Context, typ, detail, refID string) {
	rec := store.ActivityRecord{
		Type:      typ,
		Detail:    detail,
		RefID:     refID,
		Timestamp: time.Now().UTC(),
	}
	if err := c.store.AppendActivity(ctx, rec); err != nil {
		c.logger.Warn("activity_append_failed", map[string]interface{}{"error": err.Error()})
	}
}

// MemoryEntries returns the working memory store in insertion order.
func (c *Context) MemoryEntries() []store.MemoryEntry { return c.memoryEntries() }

// TaskEntries returns the working task store in insertion order.
func (c *Context) TaskEntries() []store.TaskEntry { return c.taskEntries() }

// GoalEntries returns the working goal store in insertion order.
func (c *Context) GoalEntries() []store.GoalEntry { return c.goalEntries() }

func (c *Context) memoryEntries() []store.MemoryEntry {
	out := make([]store.MemoryEntry, 0, len(c.memoryOrder))
	for _, id := range c.memoryOrder {
		if e, ok := c.memory[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

func (c *Context) taskEntries() []store.TaskEntry {
	out := make([]store.TaskEntry, 0, len(c.taskOrder))
	for _, id := range c.taskOrder {
		if e, ok := c.tasks[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

func (c *Context) goalEntries() []store.GoalEntry {
	out := make([]store.GoalEntry, 0, len(c.goalOrder))
	for _, id := range c.goalOrder {
		if e, ok := c.goals[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// EntityIndex renders the live identifier inventory used by recovery prompts
// and reference-integrity errors.
func (c *Context) EntityIndex() EntityIndex {
	return EntityIndex{
		Memory: c.memoryIDs(),
		Tasks:  c.taskIDs(),
		Goals:  c.goalIDs(),
		Vault:  c.vaultIDs(),
	}
}

// EntityIndex lists every live identifier per store.
type EntityIndex struct {
	Memory []string
	Tasks  []string
	Goals  []string
	Vault  []string
}

func (c *Context) memoryIDs() []string { return sortedIDs(c.memory) }
func (c *Context) goalIDs() []string   { return sortedIDs(c.goals) }

func (c *Context) taskIDs() []string { return sortedIDs(c.tasks) }

func (c *Context) vaultIDs() []string {
	var ids []string
	for _, e := range c.vault.List() {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newEntityID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// refError phrases a reference-integrity failure. The wording is load-bearing:
// recovery classifies failures by matching on it.
func refError(entity, id string, valid []string) string {
	list := "none"
	if len(valid) > 0 {
		list = joinIDs(valid)
	}
	return fmt.Sprintf("%s entry %q does not exist, valid identifiers: %s", entity, id, list)
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}
