// Package store defines the entity model shared by the turn pipeline and the
// storage collaborator that persists it. Persistence is load-all/save-all per
// entity store: there is no partial-update API, which is what lets the turn
// context batch every mutation into a single end-of-turn commit.
package store

import (
	"context"
	"errors"
	"time"
)

// Task status values.
const (
	TaskPending  = "pending"
	TaskOngoing  = "ongoing"
	TaskComplete = "complete"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// VaultEntry is a content-addressed value held by the vault. Payload is the
// serialized form; Preview is a bounded human-readable rendering.
type VaultEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      string    `json:"kind" yaml:"kind"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	Preview   string    `json:"preview" yaml:"preview"`
	Truncated bool      `json:"truncated" yaml:"truncated"`
	Size      int       `json:"size" yaml:"size"`
	Payload   string    `json:"payload" yaml:"payload"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// MemoryEntry is a durable note the model keeps across turns.
type MemoryEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Heading   string    `json:"heading" yaml:"heading"`
	Content   string    `json:"content" yaml:"content"`
	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// TaskEntry is a tracked unit of work with a lifecycle status.
type TaskEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Heading   string    `json:"heading" yaml:"heading"`
	Content   string    `json:"content" yaml:"content"`
	Status    string    `json:"status" yaml:"status"`
	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// GoalEntry is a long-lived objective.
type GoalEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Heading   string    `json:"heading" yaml:"heading"`
	Content   string    `json:"content" yaml:"content"`
	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// FinalOutput is a candidate deliverable after the final-output pipeline ran.
// Failed candidates are persisted too, explicitly marked unverified.
type FinalOutput struct {
	ID            string    `json:"id" yaml:"id"`
	Title         string    `json:"title,omitempty" yaml:"title,omitempty"`
	Content       string    `json:"content" yaml:"content"`
	State         string    `json:"state" yaml:"state"`
	Verified      bool      `json:"verified" yaml:"verified"`
	Confidence    int       `json:"confidence" yaml:"confidence"`
	ResolvedRefs  int       `json:"resolved_refs" yaml:"resolved_refs"`
	FailureReason string    `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// ActivityRecord is one entry in the append-only tool-activity audit log.
type ActivityRecord struct {
	Type      string    `json:"type" yaml:"type"`
	Detail    string    `json:"detail" yaml:"detail"`
	RefID     string    `json:"ref_id,omitempty" yaml:"ref_id,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// ExecutionRecord is one entry in the append-only code-execution audit log.
type ExecutionRecord struct {
	Code       string    `json:"code" yaml:"code"`
	Output     string    `json:"output" yaml:"output"`
	Status     string    `json:"status" yaml:"status"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	ErrClass   string    `json:"err_class,omitempty" yaml:"err_class,omitempty"`
	Warnings   []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	VaultIDs   []string  `json:"vault_ids,omitempty" yaml:"vault_ids,omitempty"`
	MissingIDs []string  `json:"missing_ids,omitempty" yaml:"missing_ids,omitempty"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// Snapshot holds in-memory copies of the four entity stores, loaded at turn
// context creation and mutated until commit.
type Snapshot struct {
	Vault  []VaultEntry  `yaml:"vault"`
	Memory []MemoryEntry `yaml:"memory"`
	Tasks  []TaskEntry   `yaml:"tasks"`
	Goals  []GoalEntry   `yaml:"goals"`
}

// Store is the storage collaborator. Each SaveX replaces the whole store in
// one transaction; the append methods feed the audit logs.
type Store interface {
	LoadAll(ctx context.Context) (*Snapshot, error)

	SaveVault(ctx context.Context, entries []VaultEntry) error
	SaveMemory(ctx context.Context, entries []MemoryEntry) error
	SaveTasks(ctx context.Context, entries []TaskEntry) error
	SaveGoals(ctx context.Context, entries []GoalEntry) error

	SaveFinalOutput(ctx context.Context, out FinalOutput) error

	AppendActivity(ctx context.Context, rec ActivityRecord) error
	AppendExecution(ctx context.Context, rec ExecutionRecord) error

	CurrentQuery(ctx context.Context) (string, error)
	SetCurrentQuery(ctx context.Context, query string) error

	Close() error
}
