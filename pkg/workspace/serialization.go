package workspace

import (
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores records as string-to-string maps (hashes). Numeric fields are
// stringified; optional fields round-trip as empty strings. This keeps
// individual fields queryable without a serialization layer in front of Redis.

// TaskToHash converts a Task struct to a Redis hash format.
func TaskToHash(t *Task) map[string]interface{} {
	return map[string]interface{}{
		"id":              t.ID,
		"title":           t.Title,
		"description":     t.Description,
		"agent_role":      string(t.Role),
		"priority":        string(t.Priority),
		"status":          string(t.Status),
		"result":          t.Result,
		"context":         t.Context,
		"workspace_id":    t.WorkspaceID,
		"paper_id":        t.PaperID,
		"created_at_ms":   t.CreatedAtMs,
		"started_at_ms":   t.StartedAtMs,
		"completed_at_ms": t.CompletedAtMs,
	}
}

// HashToTask converts a Redis hash to a Task struct.
func HashToTask(hash map[string]string) (*Task, error) {
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	startedAtMs, _ := strconv.ParseInt(hash["started_at_ms"], 10, 64)
	completedAtMs, _ := strconv.ParseInt(hash["completed_at_ms"], 10, 64)

	task := &Task{
		ID:            hash["id"],
		Title:         hash["title"],
		Description:   hash["description"],
		Role:          AgentRole(hash["agent_role"]),
		Priority:      Priority(hash["priority"]),
		Status:        TaskStatus(hash["status"]),
		Result:        hash["result"],
		Context:       hash["context"],
		WorkspaceID:   hash["workspace_id"],
		PaperID:       hash["paper_id"],
		CreatedAtMs:   createdAtMs,
		StartedAtMs:   startedAtMs,
		CompletedAtMs: completedAtMs,
	}

	return task, nil
}

// MessageToHash converts a Message struct to a Redis hash format.
func MessageToHash(m *Message) map[string]interface{} {
	return map[string]interface{}{
		"id":            m.ID,
		"content":       m.Content,
		"role":          m.Role,
		"agent_role":    string(m.AgentRole),
		"workspace_id":  m.WorkspaceID,
		"paper_id":      m.PaperID,
		"created_at_ms": m.CreatedAtMs,
	}
}

// HashToMessage converts a Redis hash to a Message struct.
func HashToMessage(hash map[string]string) (*Message, error) {
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	message := &Message{
		ID:          hash["id"],
		Content:     hash["content"],
		Role:        hash["role"],
		AgentRole:   AgentRole(hash["agent_role"]),
		WorkspaceID: hash["workspace_id"],
		PaperID:     hash["paper_id"],
		CreatedAtMs: createdAtMs,
	}

	return message, nil
}

// PaperToHash converts a Paper struct to a Redis hash format.
func PaperToHash(p *Paper) map[string]interface{} {
	return map[string]interface{}{
		"id":            p.ID,
		"title":         p.Title,
		"abstract":      p.Abstract,
		"content":       p.Content,
		"year":          p.Year,
		"url":           p.URL,
		"workspace_id":  p.WorkspaceID,
		"created_at_ms": p.CreatedAtMs,
	}
}

// HashToPaper converts a Redis hash to a Paper struct.
func HashToPaper(hash map[string]string) (*Paper, error) {
	year, _ := strconv.Atoi(hash["year"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	paper := &Paper{
		ID:          hash["id"],
		Title:       hash["title"],
		Abstract:    hash["abstract"],
		Content:     hash["content"],
		Year:        year,
		URL:         hash["url"],
		WorkspaceID: hash["workspace_id"],
		CreatedAtMs: createdAtMs,
	}

	return paper, nil
}
