package workspace

import "time"

// Lifecycle event wire format
//
// Events are immutable notifications fanned out to workspace subscribers over
// WebSocket and mirrored on the task_events Pub/Sub channel. They carry a
// minimal task snapshot rather than the full record; late joiners resync via
// the task list read path instead of relying on missed events.

// Event type discriminators.
const (
	EventTaskQueued    = "task_queued"
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
	EventNewMessage    = "new_message"
)

// ResultPreviewLimit caps the result excerpt carried by task_completed events.
// The full result travels through the chat message, not the lifecycle event.
const ResultPreviewLimit = 200

// TaskSnapshot is the minimal task view embedded in lifecycle events.
type TaskSnapshot struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Role     AgentRole  `json:"agentType"`
	Priority Priority   `json:"priority,omitempty"`
	Status   TaskStatus `json:"status"`
	Result   string     `json:"result,omitempty"` // Truncated preview (completed only)
	Error    string     `json:"error,omitempty"`  // Error text (failed only)
}

// Event is a discriminated union over task lifecycle transitions and chat
// messages. Exactly one of Task or Message is set, per Type.
type Event struct {
	Type      string        `json:"type"`
	Task      *TaskSnapshot `json:"task,omitempty"`
	Message   *Message      `json:"message,omitempty"`
	Timestamp string        `json:"timestamp"`
}

// NewTaskEvent builds a lifecycle event of the given type from a task.
// Completed events carry a truncated result preview; failed events carry the
// error text verbatim.
func NewTaskEvent(eventType string, t *Task) Event {
	snap := &TaskSnapshot{
		ID:       t.ID,
		Title:    t.Title,
		Role:     t.Role,
		Priority: t.Priority,
		Status:   t.Status,
	}

	switch eventType {
	case EventTaskCompleted:
		snap.Result = TruncateResult(t.Result, ResultPreviewLimit)
	case EventTaskFailed:
		snap.Error = t.Result
	}

	return Event{
		Type:      eventType,
		Task:      snap,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewMessageEvent builds a chat broadcast event from a stored message.
func NewMessageEvent(m *Message) Event {
	return Event{
		Type:      EventNewMessage,
		Message:   m,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// TruncateResult shortens s to at most limit characters, appending an ellipsis
// when anything was cut.
func TruncateResult(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// EventTypeForStatus maps a task status to its lifecycle event type.
// Pending maps to task_queued; there is no event for an unknown status.
func EventTypeForStatus(s TaskStatus) string {
	switch s {
	case TaskStatusPending:
		return EventTaskQueued
	case TaskStatusInProgress:
		return EventTaskStarted
	case TaskStatusCompleted:
		return EventTaskCompleted
	case TaskStatusFailed:
		return EventTaskFailed
	default:
		return ""
	}
}
