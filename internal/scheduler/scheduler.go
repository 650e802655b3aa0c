// Package scheduler owns task execution: per-workspace FIFO-within-priority
// queues, serialized execution against the slow agent responder, the task
// state machine, and lifecycle event emission.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-dev/atelier/internal/agent"
	"github.com/atelier-dev/atelier/internal/digest"
	"github.com/atelier-dev/atelier/pkg/workspace"
)

// DefaultResponderTimeout bounds a single agent responder call. An unbounded
// external call would stall the whole workspace queue, so expiry is treated
// as a failed task.
const DefaultResponderTimeout = 120 * time.Second

// paperExcerptLimit caps the per-task paper content excerpt.
const paperExcerptLimit = 2000

// Store is the slice of the workspace store the scheduler drives.
// *workspace.Client satisfies it.
type Store interface {
	GetPaper(ctx context.Context, paperID string) (*workspace.Paper, error)
	ListWorkspacePapers(ctx context.Context, workspaceID string) ([]*workspace.Paper, error)
	ListPendingTasks(ctx context.Context, workspaceID string) ([]*workspace.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status workspace.TaskStatus, result string) (*workspace.Task, error)
	UpdateTaskProgress(ctx context.Context, taskID string, status workspace.TaskStatus, startedAtMs, completedAtMs int64) (*workspace.Task, error)
	CreateMessage(ctx context.Context, m *workspace.Message) error
}

// EmitFunc delivers a lifecycle or chat event to the workspace's live
// subscribers. Implementations must not block: the broadcast hub absorbs
// slow consumers, never the scheduler.
type EmitFunc func(workspaceID string, event workspace.Event)

// Options tunes scheduler behavior.
type Options struct {
	// ResponderTimeout bounds each agent responder call.
	// Zero means DefaultResponderTimeout.
	ResponderTimeout time.Duration
}

// Scheduler drains each workspace's pending queue sequentially, in priority
// order, executing at most one task per workspace at a time. Different
// workspaces drain concurrently and independently.
type Scheduler struct {
	store     Store
	responder agent.Responder
	emit      EmitFunc
	timeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}      // task IDs currently executing
	loops    map[string]chan struct{} // workspaceID -> wake channel
	closed   bool
}

// New creates a scheduler. The emit callback may be nil, in which case
// lifecycle events are only published through the store's Pub/Sub channel.
func New(store Store, responder agent.Responder, emit EmitFunc, opts Options) *Scheduler {
	if emit == nil {
		emit = func(string, workspace.Event) {}
	}

	timeout := opts.ResponderTimeout
	if timeout <= 0 {
		timeout = DefaultResponderTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:     store,
		responder: responder,
		emit:      emit,
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[string]struct{}),
		loops:     make(map[string]chan struct{}),
	}
}

// Enqueue accepts a task already persisted in pending status: it emits the
// task_queued event and wakes the workspace's drain loop. It never blocks
// waiting for execution.
func (s *Scheduler) Enqueue(task *workspace.Task) error {
	if task.Status != workspace.TaskStatusPending {
		return fmt.Errorf("cannot enqueue task %s in status %q", task.ID, task.Status)
	}

	s.emit(task.WorkspaceID, workspace.NewTaskEvent(workspace.EventTaskQueued, task))

	s.logEvent("task_enqueued", map[string]interface{}{
		"task_id":      task.ID,
		"workspace_id": task.WorkspaceID,
		"priority":     string(task.Priority),
	})

	s.wake(task.WorkspaceID)
	return nil
}

// Close stops all drain loops and waits for in-flight executions to finish.
// Safe to call once; the scheduler cannot be reused afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// wake signals the workspace's drain loop, starting it lazily on first use.
// The wake channel has capacity 1 so concurrent triggers coalesce into a
// single drain pass.
func (s *Scheduler) wake(workspaceID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	ch, ok := s.loops[workspaceID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.loops[workspaceID] = ch
		s.wg.Add(1)
		go s.drainLoop(workspaceID, ch)
	}
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
}

// drainLoop is the single scheduling loop for one workspace. Task execution
// within a workspace is strictly sequential through this loop.
func (s *Scheduler) drainLoop(workspaceID string, wake <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-wake:
			s.drainWorkspace(workspaceID)
		}
	}
}

// drainWorkspace fetches the workspace's pending tasks, orders them by
// priority (stable within a tier by creation order, which is how the store
// returns them), and executes them one at a time. Task IDs already in flight
// are skipped: the guard prevents double execution when a drain trigger races
// an executing task.
func (s *Scheduler) drainWorkspace(workspaceID string) {
	pending, err := s.store.ListPendingTasks(s.ctx, workspaceID)
	if err != nil {
		log.Printf("[Scheduler] Error listing pending tasks for workspace %s: %v", workspaceID, err)
		return
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return workspace.PriorityRank(pending[i].Priority) < workspace.PriorityRank(pending[j].Priority)
	})

	for _, task := range pending {
		if s.ctx.Err() != nil {
			return
		}

		if !s.claim(task.ID) {
			continue
		}

		err := s.executeTask(task)
		s.release(task.ID)

		if err != nil {
			log.Printf("[Scheduler] Error processing task %s: %v", task.ID, err)
			// Continue draining - one broken task must not wedge the queue
		}
	}
}

// claim marks a task in flight. Returns false if it already was.
func (s *Scheduler) claim(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[taskID]; busy {
		return false
	}
	s.inflight[taskID] = struct{}{}
	return true
}

// release drops the in-flight mark. Always called, even when execution
// failed on a store error, so future drains of the workspace are not
// deadlocked.
func (s *Scheduler) release(taskID string) {
	s.mu.Lock()
	delete(s.inflight, taskID)
	s.mu.Unlock()
}

// executeTask drives one task through in_progress to a terminal state.
// Responder failures are recovered at the task level (status failed); store
// failures propagate to the drain loop.
func (s *Scheduler) executeTask(task *workspace.Task) error {
	started, err := s.store.UpdateTaskProgress(s.ctx, task.ID, workspace.TaskStatusInProgress, time.Now().UnixMilli(), 0)
	if err != nil {
		return fmt.Errorf("failed to mark task in progress: %w", err)
	}

	s.emit(task.WorkspaceID, workspace.NewTaskEvent(workspace.EventTaskStarted, started))

	s.logEvent("task_started", map[string]interface{}{
		"task_id":      task.ID,
		"workspace_id": task.WorkspaceID,
		"title":        task.Title,
		"agent_role":   string(task.Role),
	})

	contextText, err := s.buildContext(task)
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	result, queryErr := s.responder.Query(queryCtx, task.Role, task.Description, contextText)
	cancel()

	if queryErr != nil {
		return s.failTask(task, queryErr)
	}

	return s.completeTask(task, result)
}

// buildContext assembles the prompt context: the task's own context, then a
// paper excerpt when the task references one, then the bounded workspace
// uploads digest.
func (s *Scheduler) buildContext(task *workspace.Task) (string, error) {
	contextText := task.Context

	if task.PaperID != "" {
		paper, err := s.store.GetPaper(s.ctx, task.PaperID)
		switch {
		case err == nil:
			contextText += formatPaperContext(paper)
		case workspace.IsNotFound(err):
			// Dangling paper reference: execute without the excerpt
		default:
			return "", fmt.Errorf("failed to fetch paper %s: %w", task.PaperID, err)
		}
	}

	if uploads := digest.Build(s.ctx, s.store, task.WorkspaceID); uploads != "" {
		contextText += "\n\n" + uploads
	}

	return contextText, nil
}

// formatPaperContext renders the referenced paper's contribution to the
// prompt context, with the body capped at paperExcerptLimit characters.
func formatPaperContext(p *workspace.Paper) string {
	abstract := p.Abstract
	if abstract == "" {
		abstract = "Not available"
	}

	out := fmt.Sprintf("\n\nPaper Title: %s\nAbstract: %s", p.Title, abstract)
	if p.Content != "" {
		excerpt := p.Content
		if len(excerpt) > paperExcerptLimit {
			excerpt = excerpt[:paperExcerptLimit]
		}
		out += fmt.Sprintf("\n\nContent: %s...", excerpt)
	}
	return out
}

// completeTask persists the terminal completed state, broadcasts the
// lifecycle event with a truncated preview, and posts the full result into
// the workspace conversation.
func (s *Scheduler) completeTask(task *workspace.Task, result string) error {
	updated, err := s.store.UpdateTaskStatus(s.ctx, task.ID, workspace.TaskStatusCompleted, result)
	if err != nil {
		// The generated result is dropped: there is no compensating re-queue,
		// and the operator learns of the broken store from this error.
		return fmt.Errorf("failed to persist result for task %s: %w", task.ID, err)
	}

	if _, err := s.store.UpdateTaskProgress(s.ctx, task.ID, workspace.TaskStatusCompleted, 0, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to stamp completion time: %w", err)
	}

	s.emit(task.WorkspaceID, workspace.NewTaskEvent(workspace.EventTaskCompleted, updated))

	s.logEvent("task_completed", map[string]interface{}{
		"task_id":      task.ID,
		"workspace_id": task.WorkspaceID,
		"title":        task.Title,
	})

	message := &workspace.Message{
		ID:          uuid.New().String(),
		Content:     fmt.Sprintf("Task completed: %s\n\nResult: %s", task.Title, result),
		Role:        "agent",
		AgentRole:   task.Role,
		WorkspaceID: task.WorkspaceID,
		PaperID:     task.PaperID,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := s.store.CreateMessage(s.ctx, message); err != nil {
		// The task is already terminal; losing the chat echo is not worth
		// reporting the whole execution as failed
		log.Printf("[Scheduler] Error posting result message for task %s: %v", task.ID, err)
		return nil
	}

	s.emit(task.WorkspaceID, workspace.NewMessageEvent(message))
	return nil
}

// failTask persists the terminal failed state with a descriptive result and
// broadcasts the failure. The task is not retried; a retry is a new task.
func (s *Scheduler) failTask(task *workspace.Task, cause error) error {
	updated, err := s.store.UpdateTaskStatus(s.ctx, task.ID, workspace.TaskStatusFailed, fmt.Sprintf("Error: %v", cause))
	if err != nil {
		return fmt.Errorf("failed to persist failure for task %s: %w", task.ID, err)
	}

	if _, err := s.store.UpdateTaskProgress(s.ctx, task.ID, workspace.TaskStatusFailed, 0, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to stamp completion time: %w", err)
	}

	s.emit(task.WorkspaceID, workspace.NewTaskEvent(workspace.EventTaskFailed, updated))

	s.logEvent("task_failed", map[string]interface{}{
		"task_id":      task.ID,
		"workspace_id": task.WorkspaceID,
		"title":        task.Title,
		"error":        cause.Error(),
	})

	return nil
}

// logEvent logs a structured event in JSON format.
func (s *Scheduler) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "scheduler"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Scheduler] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
