package valueobject

import "fmt"

// TaskStatus represents a task's position in its lifecycle.
// Transitions are Queued -> InProgress -> {Complete, Failed, Cancelled}; once
// terminal, a task never transitions again.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusComplete   TaskStatus = "complete"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) String() string {
	return string(s)
}

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusInProgress, TaskStatusComplete, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusComplete, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

func ParseTaskStatus(str string) (TaskStatus, error) {
	s := TaskStatus(str)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid task status: %s", str)
	}
	return s, nil
}

// RunType is the execution environment a task-type targets.
type RunType string

const (
	RunTypeGPU RunType = "gpu"
	RunTypeAPI RunType = "api"
)

func (t RunType) String() string {
	return string(t)
}

func (t RunType) IsValid() bool {
	switch t {
	case RunTypeGPU, RunTypeAPI:
		return true
	}
	return false
}

// ParseRunType parses a run type filter. An invalid or empty string is
// silently treated as "no filter" by callers, not surfaced as an error -
// this constructor is strict; the leniency lives in the HTTP layer's
// parseRunTypeFilter.
func ParseRunType(str string) (RunType, error) {
	t := RunType(str)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid run type: %s", str)
	}
	return t, nil
}

// TaskCategory groups task types by what they do with a completed run.
// Only "generation" category tasks are eligible for materialization.
type TaskCategory string

const (
	TaskCategoryGeneration    TaskCategory = "generation"
	TaskCategoryOrchestration TaskCategory = "orchestration"
	TaskCategoryProcessing    TaskCategory = "processing"
	TaskCategoryUtility       TaskCategory = "utility"
)

func (c TaskCategory) String() string {
	return string(c)
}

func (c TaskCategory) IsValid() bool {
	switch c {
	case TaskCategoryGeneration, TaskCategoryOrchestration, TaskCategoryProcessing, TaskCategoryUtility:
		return true
	}
	return false
}

func ParseTaskCategory(str string) (TaskCategory, error) {
	c := TaskCategory(str)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid task category: %s", str)
	}
	return c, nil
}

// BillingType describes how a task-type's usage is metered. Cost math itself
// is an external collaborator's concern; the scheduler only carries the tag.
type BillingType string

const (
	BillingTypePerSecond BillingType = "per_second"
	BillingTypePerUnit   BillingType = "per_unit"
)

func (b BillingType) String() string {
	return string(b)
}

func (b BillingType) IsValid() bool {
	switch b {
	case BillingTypePerSecond, BillingTypePerUnit:
		return true
	}
	return false
}

func ParseBillingType(str string) (BillingType, error) {
	b := BillingType(str)
	if !b.IsValid() {
		return "", fmt.Errorf("invalid billing type: %s", str)
	}
	return b, nil
}

// GenerationType is the media kind of a materialized generation.
type GenerationType string

const (
	GenerationTypeImage GenerationType = "image"
	GenerationTypeVideo GenerationType = "video"
)

func (t GenerationType) String() string {
	return string(t)
}

// videoToolTypes holds the explicit alias table for tool types that produce
// video generations. Historical names accumulate here.
var videoToolTypes = map[string]bool{
	"travel-between-images": true,
	"edit-travel":           true,
}

// GenerationTypeForToolType determines generation_type from a task-type's
// tool_type tag.
func GenerationTypeForToolType(toolType string) GenerationType {
	if videoToolTypes[toolType] {
		return GenerationTypeVideo
	}
	return GenerationTypeImage
}

// WorkerStatus tracks a worker's registration lifecycle.
type WorkerStatus string

const (
	WorkerStatusActive     WorkerStatus = "active"
	WorkerStatusInactive   WorkerStatus = "inactive"
	WorkerStatusTerminated WorkerStatus = "terminated"
)

func (s WorkerStatus) String() string {
	return string(s)
}

func (s WorkerStatus) IsValid() bool {
	switch s {
	case WorkerStatusActive, WorkerStatusInactive, WorkerStatusTerminated:
		return true
	}
	return false
}

func ParseWorkerStatus(str string) (WorkerStatus, error) {
	s := WorkerStatus(str)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid worker status: %s", str)
	}
	return s, nil
}

// RejectionReason is the single reason a task failed eligibility,
// reported in precedence order by the analysis engine.
type RejectionReason string

const (
	RejectionNoCredits         RejectionReason = "no_credits"
	RejectionCloudDisabled     RejectionReason = "cloud_disabled"
	RejectionLocalDisabled     RejectionReason = "local_disabled"
	RejectionConcurrencyLimit  RejectionReason = "concurrency_limit"
	RejectionDependencyBlocked RejectionReason = "dependency_blocked"
	RejectionWrongRunType      RejectionReason = "wrong_run_type"
)

func (r RejectionReason) String() string {
	return string(r)
}
