// Package tags extracts entity operations from model text. The markup is an
// inline micro-format, <tag attr="value">content</tag> or a self-closing
// <tag attr="value"/>, parsed forgivingly: anything malformed or unmatched is
// skipped, never fatal. Downstream processors consume the typed operation
// variants, never raw attribute maps.
package tags

// TagKind names a recognized tag.
type TagKind string

const (
	TagCreateMemory TagKind = "create-memory"
	TagFetchMemory  TagKind = "fetch-memory"
	TagUpdateMemory TagKind = "update-memory"
	TagDeleteMemory TagKind = "delete-memory"
	TagCreateTask   TagKind = "create-task"
	TagUpdateTask   TagKind = "update-task"
	TagCreateGoal   TagKind = "create-goal"
	TagVaultRead    TagKind = "vault-read"
	TagVaultDelete  TagKind = "vault-delete"
	TagExecuteCode  TagKind = "execute-code"
	TagSpawnAgent   TagKind = "spawn-agent"
	TagCanvasOutput TagKind = "canvas-output"
)

// Operation is implemented by every parsed operation variant.
type Operation interface {
	Kind() TagKind
}

// CreateMemory adds a memory entry. Content is the tag body.
type CreateMemory struct {
	Heading string
	Content string
	Notes   string
}

func (CreateMemory) Kind() TagKind { return TagCreateMemory }

// FetchMemory appends an existing memory entry to the reasoning log.
type FetchMemory struct {
	ID string
}

func (FetchMemory) Kind() TagKind { return TagFetchMemory }

// UpdateMemory updates fields of an existing memory entry. The Has flags
// distinguish an absent attribute from an empty one, so partial updates work.
type UpdateMemory struct {
	ID      string
	Heading string
	Content string
	Notes   string

	HasHeading bool
	HasContent bool
	HasNotes   bool
}

func (UpdateMemory) Kind() TagKind { return TagUpdateMemory }

// DeleteMemory removes an existing memory entry.
type DeleteMemory struct {
	ID string
}

func (DeleteMemory) Kind() TagKind { return TagDeleteMemory }

// CreateTask adds a task entry. Content is the tag body.
type CreateTask struct {
	Heading string
	Content string
	Status  string
	Notes   string
}

func (CreateTask) Kind() TagKind { return TagCreateTask }

// UpdateTask updates fields of an existing task entry.
type UpdateTask struct {
	ID      string
	Heading string
	Content string
	Status  string
	Notes   string

	HasHeading bool
	HasContent bool
	HasStatus  bool
	HasNotes   bool
}

func (UpdateTask) Kind() TagKind { return TagUpdateTask }

// CreateGoal adds a goal entry. Content is the tag body.
type CreateGoal struct {
	Heading string
	Content string
	Notes   string
}

func (CreateGoal) Kind() TagKind { return TagCreateGoal }

// VaultRead appends resolved vault content to the reasoning log.
type VaultRead struct {
	Ref   string
	Limit int
}

func (VaultRead) Kind() TagKind { return TagVaultRead }

// VaultDelete drops a vault entry.
type VaultDelete struct {
	Ref string
}

func (VaultDelete) Kind() TagKind { return TagVaultDelete }

// ExecuteCode runs the tag body in the sandbox.
type ExecuteCode struct {
	Code string
}

func (ExecuteCode) Kind() TagKind { return TagExecuteCode }

// SpawnAgent invokes an external sub-agent with the tag body as input.
type SpawnAgent struct {
	Name       string
	Input      string
	TimeoutSec int
	CacheSec   int
}

func (SpawnAgent) Kind() TagKind { return TagSpawnAgent }

// CanvasOutput submits the tag body as the candidate final deliverable.
type CanvasOutput struct {
	Title   string
	Content string
}

func (CanvasOutput) Kind() TagKind { return TagCanvasOutput }

// OperationSet groups the parsed operations by the processor that consumes
// them, preserving in-text order within each group.
type OperationSet struct {
	Memory []Operation
	Tasks  []Operation
	Goals  []Operation
	Vault  []Operation
	Code   []ExecuteCode
	Agents []SpawnAgent
	Canvas []CanvasOutput
}

// Empty reports whether no operations were found.
func (s *OperationSet) Empty() bool {
	return len(s.Memory) == 0 && len(s.Tasks) == 0 && len(s.Goals) == 0 &&
		len(s.Vault) == 0 && len(s.Code) == 0 && len(s.Agents) == 0 && len(s.Canvas) == 0
}

// Count returns the total number of parsed operations.
func (s *OperationSet) Count() int {
	return len(s.Memory) + len(s.Tasks) + len(s.Goals) +
		len(s.Vault) + len(s.Code) + len(s.Agents) + len(s.Canvas)
}
