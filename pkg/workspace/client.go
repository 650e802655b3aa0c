package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for workspace state.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines:
// the scheduler's per-workspace drain loops and the API read path share one client.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new workspace client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Atelier instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateTask writes a task to Redis, indexes it under its workspace, and
// publishes a task_queued event. Validates the task before writing; new tasks
// must be in pending status.
//
// The task is stored as a Redis hash at atelier:{instance}:task:{id} and
// indexed in two workspace ZSETs scored by creation time: the full history
// index and the pending queue.
func (c *Client) CreateTask(ctx context.Context, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	if t.Status != TaskStatusPending {
		return fmt.Errorf("new tasks must be pending, got %q", t.Status)
	}

	key := TaskKey(c.instanceName, t.ID)
	if err := c.rdb.HSet(ctx, key, TaskToHash(t)).Err(); err != nil {
		return fmt.Errorf("failed to write task to Redis: %w", err)
	}

	member := redis.Z{Score: float64(t.CreatedAtMs), Member: t.ID}
	if err := c.rdb.ZAdd(ctx, WorkspaceTasksKey(c.instanceName, t.WorkspaceID), member).Err(); err != nil {
		return fmt.Errorf("failed to index task: %w", err)
	}
	if err := c.rdb.ZAdd(ctx, WorkspaceQueueKey(c.instanceName, t.WorkspaceID), member).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	if err := c.publishTaskEvent(ctx, EventTaskQueued, t); err != nil {
		return err
	}

	return nil
}

// GetTask retrieves a task by ID.
// Returns (nil, redis.Nil) if the task doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	key := TaskKey(c.instanceName, taskID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToTask(hashData)
}

// ListWorkspaceTasks returns every task ever created in the workspace,
// newest first. Returns an empty slice for an unknown workspace.
func (c *Client) ListWorkspaceTasks(ctx context.Context, workspaceID string) ([]*Task, error) {
	ids, err := c.rdb.ZRevRange(ctx, WorkspaceTasksKey(c.instanceName, workspaceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace task index: %w", err)
	}
	return c.fetchTasks(ctx, ids)
}

// ListPendingTasks returns the workspace's pending tasks, oldest first.
// This is the queue view the scheduler drains; priority ordering is applied
// by the scheduler, not the store.
func (c *Client) ListPendingTasks(ctx context.Context, workspaceID string) ([]*Task, error) {
	ids, err := c.rdb.ZRange(ctx, WorkspaceQueueKey(c.instanceName, workspaceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace queue: %w", err)
	}
	return c.fetchTasks(ctx, ids)
}

// fetchTasks resolves an ordered list of task IDs to task records.
// Stale index entries whose hash has expired are skipped, not errors.
func (c *Client) fetchTasks(ctx context.Context, ids []string) ([]*Task, error) {
	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		task, err := c.GetTask(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// UpdateTaskStatus transitions a task to the given status and records its
// result text. The state machine is enforced: a transition the machine does
// not permit is an error, while re-writing the current status (to attach a
// result) is allowed. When the task leaves pending it is removed from the
// workspace queue index. A genuine status change publishes the matching
// lifecycle event.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result string) (*Task, error) {
	if err := status.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status: %w", err)
	}

	task, err := c.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	changed := task.Status != status
	if changed && !task.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("illegal status transition %q -> %q for task %s", task.Status, status, taskID)
	}

	task.Status = status
	if result != "" {
		task.Result = result
	}

	if err := c.writeTask(ctx, task); err != nil {
		return nil, err
	}

	if status != TaskStatusPending {
		if err := c.rdb.ZRem(ctx, WorkspaceQueueKey(c.instanceName, task.WorkspaceID), task.ID).Err(); err != nil {
			return nil, fmt.Errorf("failed to dequeue task: %w", err)
		}
	}

	if changed {
		if err := c.publishTaskEvent(ctx, EventTypeForStatus(status), task); err != nil {
			return nil, err
		}
	}

	return task, nil
}

// UpdateTaskProgress transitions a task's status and stamps its execution
// timestamps. StartedAtMs and CompletedAtMs are each set exactly once: a zero
// argument leaves the stored value alone, and a stored non-zero value is never
// overwritten. Like UpdateTaskStatus, illegal transitions are rejected and a
// genuine status change publishes the matching lifecycle event.
func (c *Client) UpdateTaskProgress(ctx context.Context, taskID string, status TaskStatus, startedAtMs, completedAtMs int64) (*Task, error) {
	if err := status.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status: %w", err)
	}

	task, err := c.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	changed := task.Status != status
	if changed && !task.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("illegal status transition %q -> %q for task %s", task.Status, status, taskID)
	}

	task.Status = status
	if startedAtMs != 0 && task.StartedAtMs == 0 {
		task.StartedAtMs = startedAtMs
	}
	if completedAtMs != 0 && task.CompletedAtMs == 0 {
		task.CompletedAtMs = completedAtMs
	}

	if err := c.writeTask(ctx, task); err != nil {
		return nil, err
	}

	if status != TaskStatusPending {
		if err := c.rdb.ZRem(ctx, WorkspaceQueueKey(c.instanceName, task.WorkspaceID), task.ID).Err(); err != nil {
			return nil, fmt.Errorf("failed to dequeue task: %w", err)
		}
	}

	if changed {
		if err := c.publishTaskEvent(ctx, EventTypeForStatus(status), task); err != nil {
			return nil, err
		}
	}

	return task, nil
}

// writeTask persists the full task hash (full replacement).
func (c *Client) writeTask(ctx context.Context, t *Task) error {
	key := TaskKey(c.instanceName, t.ID)
	if err := c.rdb.HSet(ctx, key, TaskToHash(t)).Err(); err != nil {
		return fmt.Errorf("failed to update task in Redis: %w", err)
	}
	return nil
}

// publishTaskEvent publishes a lifecycle event to the task_events channel.
func (c *Client) publishTaskEvent(ctx context.Context, eventType string, t *Task) error {
	if eventType == "" {
		return nil
	}

	event := NewTaskEvent(eventType, t)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	if err := c.rdb.Publish(ctx, TaskEventsChannel(c.instanceName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish task event: %w", err)
	}

	return nil
}

// CreateMessage writes a chat message to Redis and indexes it under its workspace.
// Validates the message before writing.
func (c *Client) CreateMessage(ctx context.Context, m *Message) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	key := MessageKey(c.instanceName, m.ID)
	if err := c.rdb.HSet(ctx, key, MessageToHash(m)).Err(); err != nil {
		return fmt.Errorf("failed to write message to Redis: %w", err)
	}

	member := redis.Z{Score: float64(m.CreatedAtMs), Member: m.ID}
	if err := c.rdb.ZAdd(ctx, WorkspaceMessagesKey(c.instanceName, m.WorkspaceID), member).Err(); err != nil {
		return fmt.Errorf("failed to index message: %w", err)
	}

	return nil
}

// ListWorkspaceMessages returns the workspace conversation, oldest first.
func (c *Client) ListWorkspaceMessages(ctx context.Context, workspaceID string) ([]*Message, error) {
	ids, err := c.rdb.ZRange(ctx, WorkspaceMessagesKey(c.instanceName, workspaceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace message index: %w", err)
	}

	messages := make([]*Message, 0, len(ids))
	for _, id := range ids {
		hashData, err := c.rdb.HGetAll(ctx, MessageKey(c.instanceName, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read message from Redis: %w", err)
		}
		if len(hashData) == 0 {
			continue
		}
		message, err := HashToMessage(hashData)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, nil
}

// CreatePaper writes an uploaded paper to Redis and indexes it under its workspace.
// Validates the paper before writing.
func (c *Client) CreatePaper(ctx context.Context, p *Paper) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid paper: %w", err)
	}

	key := PaperKey(c.instanceName, p.ID)
	if err := c.rdb.HSet(ctx, key, PaperToHash(p)).Err(); err != nil {
		return fmt.Errorf("failed to write paper to Redis: %w", err)
	}

	member := redis.Z{Score: float64(p.CreatedAtMs), Member: p.ID}
	if err := c.rdb.ZAdd(ctx, WorkspacePapersKey(c.instanceName, p.WorkspaceID), member).Err(); err != nil {
		return fmt.Errorf("failed to index paper: %w", err)
	}

	return nil
}

// GetPaper retrieves a paper by ID.
// Returns (nil, redis.Nil) if the paper doesn't exist.
func (c *Client) GetPaper(ctx context.Context, paperID string) (*Paper, error) {
	key := PaperKey(c.instanceName, paperID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read paper from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToPaper(hashData)
}

// ListWorkspacePapers returns the workspace's uploaded papers, oldest first.
func (c *Client) ListWorkspacePapers(ctx context.Context, workspaceID string) ([]*Paper, error) {
	ids, err := c.rdb.ZRange(ctx, WorkspacePapersKey(c.instanceName, workspaceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace paper index: %w", err)
	}

	papers := make([]*Paper, 0, len(ids))
	for _, id := range ids {
		paper, err := c.GetPaper(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		papers = append(papers, paper)
	}

	return papers, nil
}

// Subscription represents an active Pub/Sub subscription to task lifecycle events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver full event envelopes via the Events() channel.
type Subscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of task lifecycle events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeTaskEvents subscribes to task lifecycle events for this instance.
// Returns a Subscription that delivers full event envelopes.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery); consumers resync via the task list read path.
func (c *Client) SubscribeTaskEvents(ctx context.Context) (*Subscription, error) {
	channel := TaskEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal task event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetTask or GetPaper returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
