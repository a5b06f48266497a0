package store

import (
	"context"
	"sync"
)

// InMemory is a Store kept entirely in process memory. It backs tests and the
// CLI apply mode when no database path is configured.
type InMemory struct {
	mu sync.Mutex

	vault  []VaultEntry
	memory []MemoryEntry
	tasks  []TaskEntry
	goals  []GoalEntry

	outputs    []FinalOutput
	activity   []ActivityRecord
	executions []ExecutionRecord
	query      string
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// LoadAll returns a deep copy of the four entity stores.
func (s *InMemory) LoadAll(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Snapshot{
		Vault:  append([]VaultEntry(nil), s.vault...),
		Memory: append([]MemoryEntry(nil), s.memory...),
		Tasks:  append([]TaskEntry(nil), s.tasks...),
		Goals:  append([]GoalEntry(nil), s.goals...),
	}, nil
}

// SaveVault replaces the vault store.
func (s *InMemory) SaveVault(ctx context.Context, entries []VaultEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vault = append([]VaultEntry(nil), entries...)
	return nil
}

// SaveMemory replaces the memory store.
func (s *InMemory) SaveMemory(ctx context.Context, entries []MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = append([]MemoryEntry(nil), entries...)
	return nil
}

// SaveTasks replaces the tasks store.
func (s *InMemory) SaveTasks(ctx context.Context, entries []TaskEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]TaskEntry(nil), entries...)
	return nil
}

// SaveGoals replaces the goals store.
func (s *InMemory) SaveGoals(ctx context.Context, entries []GoalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append([]GoalEntry(nil), entries...)
	return nil
}

// SaveFinalOutput appends a final output record.
func (s *InMemory) SaveFinalOutput(ctx context.Context, out FinalOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, out)
	return nil
}

// AppendActivity appends to the tool-activity log.
func (s *InMemory) AppendActivity(ctx context.Context, rec ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, rec)
	return nil
}

// AppendExecution appends to the code-execution log.
func (s *InMemory) AppendExecution(ctx context.Context, rec ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, rec)
	return nil
}

// CurrentQuery returns the query being served.
func (s *InMemory) CurrentQuery(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query, nil
}

// SetCurrentQuery records the query being served.
func (s *InMemory) SetCurrentQuery(ctx context.Context, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	return nil
}

// Close is a no-op.
func (s *InMemory) Close() error { return nil }

// FinalOutputs returns persisted final outputs, oldest first.
func (s *InMemory) FinalOutputs() []FinalOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FinalOutput(nil), s.outputs...)
}

// Activity returns the tool-activity log, oldest first.
func (s *InMemory) Activity() []ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActivityRecord(nil), s.activity...)
}

// Executions returns the code-execution log, oldest first.
func (s *InMemory) Executions() []ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExecutionRecord(nil), s.executions...)
}
