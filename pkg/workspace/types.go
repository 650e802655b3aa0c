package workspace

import (
	"fmt"

	"github.com/google/uuid"
)

// Task is the unit of schedulable work: a prompt assigned to one specialist
// agent role within one workspace. Tasks are created in pending status and
// driven through their lifecycle exclusively by the scheduler. They are never
// deleted - the task list is the workspace's append-only work history.
type Task struct {
	ID            string     `json:"id"`                      // UUID - unique identifier for this task
	Title         string     `json:"title"`                   // Short human-readable summary
	Description   string     `json:"description"`             // The prompt body sent to the agent
	Role          AgentRole  `json:"agentType"`               // Specialist role that will execute the task
	Priority      Priority   `json:"priority"`                // Scheduling priority tier
	Status        TaskStatus `json:"status"`                  // Current lifecycle state
	Result        string     `json:"result,omitempty"`        // Agent output (completed) or error text (failed)
	Context       string     `json:"context,omitempty"`       // Free-form context supplied at creation
	WorkspaceID   string     `json:"workspaceId"`             // Workspace that owns the task (required)
	PaperID       string     `json:"paperId,omitempty"`       // Optional paper this task refers to
	CreatedAtMs   int64      `json:"created_at_ms"`           // Unix timestamp in milliseconds when task was created
	StartedAtMs   int64      `json:"started_at_ms,omitempty"` // Set exactly once, when execution begins
	CompletedAtMs int64      `json:"completed_at_ms,omitempty"` // Set exactly once, when a terminal state is reached
}

// TaskStatus defines the lifecycle state of a task.
// Transitions are monotonic: pending -> in_progress -> completed|failed.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting in its workspace queue
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusInProgress indicates the scheduler is executing the task
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusCompleted indicates the agent produced a result (terminal)
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates execution failed; Result holds the error text (terminal)
	TaskStatusFailed TaskStatus = "failed"
)

// Priority defines a task's scheduling tier. Within a workspace, higher tiers
// always start before lower tiers; ties break by creation order.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// AgentRole identifies one of the fixed set of specialist agents.
// Each role maps to a static system prompt (see internal/agent).
type AgentRole string

const (
	RoleNLP       AgentRole = "nlp"
	RoleReasoning AgentRole = "reasoning"
	RoleData      AgentRole = "data"
	RoleCV        AgentRole = "cv"
	RoleCritic    AgentRole = "critic"
	RoleRetrieval AgentRole = "retrieval"
)

// Message is a chat log entry in a workspace conversation. Agent task results
// are posted back into the conversation as agent messages.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Role        string    `json:"role"`                // "user" or "agent"
	AgentRole   AgentRole `json:"agentType,omitempty"` // Set when Role is "agent"
	WorkspaceID string    `json:"workspaceId"`
	PaperID     string    `json:"paperId,omitempty"`
	CreatedAtMs int64     `json:"created_at_ms"`
}

// Paper is an uploaded document scoped to a workspace. Papers feed the bounded
// context digest passed to agents alongside task prompts.
type Paper struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Abstract    string `json:"abstract,omitempty"`
	Content     string `json:"content,omitempty"`
	Year        int    `json:"year,omitempty"`
	URL         string `json:"url,omitempty"`
	WorkspaceID string `json:"workspaceId"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// PriorityRank returns the sort rank for a priority tier (urgent=0 .. low=3).
// Unknown priorities rank alongside low, matching the queue's defaulting.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Validate checks if the Task has valid field values.
// Returns an error if any validation fails.
func (t *Task) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid task ID: not a valid UUID")
	}

	if t.Title == "" {
		return fmt.Errorf("task title cannot be empty")
	}

	if t.Description == "" {
		return fmt.Errorf("task description cannot be empty")
	}

	if err := t.Role.Validate(); err != nil {
		return fmt.Errorf("invalid agent role: %w", err)
	}

	if err := t.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid priority: %w", err)
	}

	if err := t.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if t.WorkspaceID == "" {
		return fmt.Errorf("workspace ID cannot be empty")
	}

	return nil
}

// Validate checks if the TaskStatus is a valid enum value.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown task status: %q", s)
	}
}

// Terminal reports whether the status is a terminal lifecycle state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Terminal states permit no further transitions; no transition skips
// in_progress.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// Validate checks if the AgentRole is a valid enum value.
func (r AgentRole) Validate() error {
	switch r {
	case RoleNLP, RoleReasoning, RoleData, RoleCV, RoleCritic, RoleRetrieval:
		return nil
	default:
		return fmt.Errorf("unknown agent role: %q", r)
	}
}

// Validate checks if the Message has valid field values.
func (m *Message) Validate() error {
	if !isValidUUID(m.ID) {
		return fmt.Errorf("invalid message ID: not a valid UUID")
	}

	if m.Content == "" {
		return fmt.Errorf("message content cannot be empty")
	}

	if m.Role != "user" && m.Role != "agent" {
		return fmt.Errorf("unknown message role: %q", m.Role)
	}

	if m.WorkspaceID == "" {
		return fmt.Errorf("workspace ID cannot be empty")
	}

	return nil
}

// Validate checks if the Paper has valid field values.
func (p *Paper) Validate() error {
	if !isValidUUID(p.ID) {
		return fmt.Errorf("invalid paper ID: not a valid UUID")
	}

	if p.Title == "" {
		return fmt.Errorf("paper title cannot be empty")
	}

	if p.WorkspaceID == "" {
		return fmt.Errorf("workspace ID cannot be empty")
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
