package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-dev/atelier/pkg/workspace"
)

// createTaskRequest is the POST /api/tasks body.
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AgentType   string `json:"agentType"`
	Priority    string `json:"priority"`
	WorkspaceID string `json:"workspaceId"`
	PaperID     string `json:"paperId"`
	Context     string `json:"context"`
}

// handleCreateTask validates the request, persists the task as pending and
// hands it to the scheduler. The task_queued event reaches WebSocket
// subscribers through the scheduler's emit path.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Title == "" || req.Description == "" || req.AgentType == "" || req.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "title, description, agentType and workspaceId are required")
		return
	}

	role := workspace.AgentRole(req.AgentType)
	if err := role.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	priority := workspace.Priority(req.Priority)
	if req.Priority == "" {
		priority = workspace.PriorityMedium
	}
	if err := priority.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := &workspace.Task{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Role:        role,
		Priority:    priority,
		Status:      workspace.TaskStatusPending,
		Context:     req.Context,
		WorkspaceID: req.WorkspaceID,
		PaperID:     req.PaperID,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := s.store.CreateTask(r.Context(), task); err != nil {
		log.Printf("[Server] Failed to create task: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	if err := s.scheduler.Enqueue(task); err != nil {
		// The task is persisted as pending; a scheduler restart picks it up.
		log.Printf("[Server] Failed to enqueue task %s: %v", task.ID, err)
	}

	writeJSON(w, http.StatusCreated, task)
}

// handleListWorkspaceTasks returns all tasks in a workspace, newest first.
func (s *Server) handleListWorkspaceTasks(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceID")

	tasks, err := s.store.ListWorkspaceTasks(r.Context(), workspaceID)
	if err != nil {
		log.Printf("[Server] Failed to list tasks for workspace %s: %v", workspaceID, err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// handleListPendingTasks returns the pending queue for a workspace in
// creation order. The scheduler reorders by priority when it drains.
func (s *Server) handleListPendingTasks(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceID")

	tasks, err := s.store.ListPendingTasks(r.Context(), workspaceID)
	if err != nil {
		log.Printf("[Server] Failed to list queue for workspace %s: %v", workspaceID, err)
		writeError(w, http.StatusInternalServerError, "failed to list queue")
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// handleGetTask returns one task by ID, 404 when it does not exist.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		if workspace.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		log.Printf("[Server] Failed to get task %s: %v", taskID, err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// createMessageRequest is the POST /api/workspace/messages body.
type createMessageRequest struct {
	Content     string `json:"content"`
	Role        string `json:"role"`
	AgentType   string `json:"agentType"`
	WorkspaceID string `json:"workspaceId"`
	PaperID     string `json:"paperId"`
}

// handleCreateMessage appends a chat message and broadcasts it to the
// workspace's live subscribers.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Role == "" {
		req.Role = "user"
	}

	msg := &workspace.Message{
		ID:          uuid.New().String(),
		Content:     req.Content,
		Role:        req.Role,
		AgentRole:   workspace.AgentRole(req.AgentType),
		WorkspaceID: req.WorkspaceID,
		PaperID:     req.PaperID,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := msg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		log.Printf("[Server] Failed to create message: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create message")
		return
	}

	s.hub.Publish(msg.WorkspaceID, workspace.NewMessageEvent(msg))

	writeJSON(w, http.StatusCreated, msg)
}

// handleListMessages returns a workspace's chat history, oldest first.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceID")

	messages, err := s.store.ListWorkspaceMessages(r.Context(), workspaceID)
	if err != nil {
		log.Printf("[Server] Failed to list messages for workspace %s: %v", workspaceID, err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// createPaperRequest is the POST /api/papers body.
type createPaperRequest struct {
	Title       string `json:"title"`
	Abstract    string `json:"abstract"`
	Content     string `json:"content"`
	Year        int    `json:"year"`
	URL         string `json:"url"`
	WorkspaceID string `json:"workspaceId"`
}

// handleCreatePaper stores an uploaded paper in its workspace.
func (s *Server) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	var req createPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	paper := &workspace.Paper{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Abstract:    req.Abstract,
		Content:     req.Content,
		Year:        req.Year,
		URL:         req.URL,
		WorkspaceID: req.WorkspaceID,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := paper.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreatePaper(r.Context(), paper); err != nil {
		log.Printf("[Server] Failed to create paper: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create paper")
		return
	}

	writeJSON(w, http.StatusCreated, paper)
}

// handleListPapers returns a workspace's uploaded papers, oldest first.
func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceID")

	papers, err := s.store.ListWorkspacePapers(r.Context(), workspaceID)
	if err != nil {
		log.Printf("[Server] Failed to list papers for workspace %s: %v", workspaceID, err)
		writeError(w, http.StatusInternalServerError, "failed to list papers")
		return
	}

	writeJSON(w, http.StatusOK, papers)
}
