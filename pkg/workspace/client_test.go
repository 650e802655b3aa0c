package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// testTask builds a valid pending task for the given workspace.
func testTask(workspaceID string, createdAtMs int64) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Title:       "Summarize the abstract",
		Description: "Produce a three sentence summary",
		Role:        RoleNLP,
		Priority:    PriorityMedium,
		Status:      TaskStatusPending,
		WorkspaceID: workspaceID,
		CreatedAtMs: createdAtMs,
	}
}

// waitForEvent receives one event from a subscription or fails the test.
func waitForEvent(t *testing.T, sub *Subscription) *Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		require.NotNil(t, event)
		return event
	case err := <-sub.Errors():
		t.Fatalf("subscription error: %v", err)
		return nil
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task event")
		return nil
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.instanceName)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	err := client.Ping(ctx)
	assert.NoError(t, err)
}

func TestCreateTask(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates valid task", func(t *testing.T) {
		task := testTask("ws-1", time.Now().UnixMilli())

		err := client.CreateTask(ctx, task)
		assert.NoError(t, err)

		retrieved, err := client.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, retrieved.ID)
		assert.Equal(t, task.Title, retrieved.Title)
		assert.Equal(t, TaskStatusPending, retrieved.Status)
		assert.Equal(t, RoleNLP, retrieved.Role)
	})

	t.Run("rejects invalid task", func(t *testing.T) {
		task := testTask("ws-1", time.Now().UnixMilli())
		task.Title = ""

		err := client.CreateTask(ctx, task)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid task")
	})

	t.Run("rejects non-pending task", func(t *testing.T) {
		task := testTask("ws-1", time.Now().UnixMilli())
		task.Status = TaskStatusInProgress

		err := client.CreateTask(ctx, task)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be pending")
	})

	t.Run("publishes task_queued event", func(t *testing.T) {
		sub, err := client.SubscribeTaskEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		task := testTask("ws-1", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		event := waitForEvent(t, sub)
		assert.Equal(t, EventTaskQueued, event.Type)
		require.NotNil(t, event.Task)
		assert.Equal(t, task.ID, event.Task.ID)
		assert.Equal(t, TaskStatusPending, event.Task.Status)
	})
}

func TestGetTask(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns not found for unknown ID", func(t *testing.T) {
		_, err := client.GetTask(ctx, uuid.New().String())
		assert.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}

func TestListWorkspaceTasks(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns empty slice for unknown workspace", func(t *testing.T) {
		tasks, err := client.ListWorkspaceTasks(ctx, "nowhere")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("returns tasks newest first", func(t *testing.T) {
		first := testTask("ws-list", 1000)
		second := testTask("ws-list", 2000)
		require.NoError(t, client.CreateTask(ctx, first))
		require.NoError(t, client.CreateTask(ctx, second))

		tasks, err := client.ListWorkspaceTasks(ctx, "ws-list")
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, second.ID, tasks[0].ID)
		assert.Equal(t, first.ID, tasks[1].ID)
	})

	t.Run("does not leak across workspaces", func(t *testing.T) {
		other := testTask("ws-other", 3000)
		require.NoError(t, client.CreateTask(ctx, other))

		tasks, err := client.ListWorkspaceTasks(ctx, "ws-list")
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})
}

func TestListPendingTasks(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns pending tasks oldest first", func(t *testing.T) {
		first := testTask("ws-queue", 1000)
		second := testTask("ws-queue", 2000)
		require.NoError(t, client.CreateTask(ctx, first))
		require.NoError(t, client.CreateTask(ctx, second))

		pending, err := client.ListPendingTasks(ctx, "ws-queue")
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, first.ID, pending[0].ID)
		assert.Equal(t, second.ID, pending[1].ID)
	})

	t.Run("excludes tasks that left pending", func(t *testing.T) {
		pending, err := client.ListPendingTasks(ctx, "ws-queue")
		require.NoError(t, err)
		require.Len(t, pending, 2)

		_, err = client.UpdateTaskStatus(ctx, pending[0].ID, TaskStatusInProgress, "")
		require.NoError(t, err)

		remaining, err := client.ListPendingTasks(ctx, "ws-queue")
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, pending[1].ID, remaining[0].ID)
	})
}

func TestUpdateTaskStatus(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("performs legal transition and publishes event", func(t *testing.T) {
		task := testTask("ws-status", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		sub, err := client.SubscribeTaskEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		updated, err := client.UpdateTaskStatus(ctx, task.ID, TaskStatusInProgress, "")
		require.NoError(t, err)
		assert.Equal(t, TaskStatusInProgress, updated.Status)

		event := waitForEvent(t, sub)
		assert.Equal(t, EventTaskStarted, event.Type)
		assert.Equal(t, task.ID, event.Task.ID)
	})

	t.Run("rejects illegal transition", func(t *testing.T) {
		task := testTask("ws-status", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		_, err := client.UpdateTaskStatus(ctx, task.ID, TaskStatusCompleted, "done")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "illegal status transition")
	})

	t.Run("rejects transitions out of terminal states", func(t *testing.T) {
		task := testTask("ws-status", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		_, err := client.UpdateTaskStatus(ctx, task.ID, TaskStatusInProgress, "")
		require.NoError(t, err)
		_, err = client.UpdateTaskStatus(ctx, task.ID, TaskStatusFailed, "Error: boom")
		require.NoError(t, err)

		_, err = client.UpdateTaskStatus(ctx, task.ID, TaskStatusInProgress, "")
		assert.Error(t, err)
	})

	t.Run("stores result on completion", func(t *testing.T) {
		task := testTask("ws-status", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		_, err := client.UpdateTaskStatus(ctx, task.ID, TaskStatusInProgress, "")
		require.NoError(t, err)

		updated, err := client.UpdateTaskStatus(ctx, task.ID, TaskStatusCompleted, "the summary")
		require.NoError(t, err)
		assert.Equal(t, TaskStatusCompleted, updated.Status)
		assert.Equal(t, "the summary", updated.Result)
	})

	t.Run("same-status rewrite publishes no event", func(t *testing.T) {
		task := testTask("ws-status", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))
		_, err := client.UpdateTaskStatus(ctx, task.ID, TaskStatusInProgress, "")
		require.NoError(t, err)

		sub, err := client.SubscribeTaskEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		_, err = client.UpdateTaskStatus(ctx, task.ID, TaskStatusInProgress, "partial notes")
		require.NoError(t, err)

		select {
		case event := <-sub.Events():
			t.Fatalf("unexpected event: %s", event.Type)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("returns not found for unknown task", func(t *testing.T) {
		_, err := client.UpdateTaskStatus(ctx, uuid.New().String(), TaskStatusInProgress, "")
		assert.True(t, IsNotFound(err))
	})
}

func TestUpdateTaskProgress(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("stamps timestamps exactly once", func(t *testing.T) {
		task := testTask("ws-progress", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		started, err := client.UpdateTaskProgress(ctx, task.ID, TaskStatusInProgress, 5000, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), started.StartedAtMs)
		assert.Zero(t, started.CompletedAtMs)

		// A second started stamp is ignored; the completion stamp lands.
		done, err := client.UpdateTaskProgress(ctx, task.ID, TaskStatusCompleted, 9999, 6000)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), done.StartedAtMs)
		assert.Equal(t, int64(6000), done.CompletedAtMs)
	})

	t.Run("zero arguments leave timestamps alone", func(t *testing.T) {
		task := testTask("ws-progress", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		updated, err := client.UpdateTaskProgress(ctx, task.ID, TaskStatusInProgress, 0, 0)
		require.NoError(t, err)
		assert.Zero(t, updated.StartedAtMs)
		assert.Zero(t, updated.CompletedAtMs)
	})

	t.Run("rejects illegal transition", func(t *testing.T) {
		task := testTask("ws-progress", time.Now().UnixMilli())
		require.NoError(t, client.CreateTask(ctx, task))

		_, err := client.UpdateTaskProgress(ctx, task.ID, TaskStatusFailed, 0, time.Now().UnixMilli())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "illegal status transition")
	})
}

func TestMessages(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates and lists messages oldest first", func(t *testing.T) {
		first := &Message{
			ID:          uuid.New().String(),
			Content:     "hello",
			Role:        "user",
			WorkspaceID: "ws-chat",
			CreatedAtMs: 1000,
		}
		second := &Message{
			ID:          uuid.New().String(),
			Content:     "Task completed: Summarize",
			Role:        "agent",
			AgentRole:   RoleNLP,
			WorkspaceID: "ws-chat",
			CreatedAtMs: 2000,
		}
		require.NoError(t, client.CreateMessage(ctx, first))
		require.NoError(t, client.CreateMessage(ctx, second))

		messages, err := client.ListWorkspaceMessages(ctx, "ws-chat")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, first.ID, messages[0].ID)
		assert.Equal(t, second.ID, messages[1].ID)
		assert.Equal(t, RoleNLP, messages[1].AgentRole)
	})

	t.Run("rejects invalid message", func(t *testing.T) {
		msg := &Message{
			ID:          uuid.New().String(),
			Content:     "",
			Role:        "user",
			WorkspaceID: "ws-chat",
		}
		err := client.CreateMessage(ctx, msg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid message")
	})
}

func TestPapers(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates, gets and lists papers", func(t *testing.T) {
		paper := &Paper{
			ID:          uuid.New().String(),
			Title:       "Attention Is All You Need",
			Abstract:    "The dominant sequence transduction models...",
			Year:        2017,
			WorkspaceID: "ws-papers",
			CreatedAtMs: 1000,
		}
		require.NoError(t, client.CreatePaper(ctx, paper))

		retrieved, err := client.GetPaper(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, paper.Title, retrieved.Title)
		assert.Equal(t, 2017, retrieved.Year)

		papers, err := client.ListWorkspacePapers(ctx, "ws-papers")
		require.NoError(t, err)
		require.Len(t, papers, 1)
		assert.Equal(t, paper.ID, papers[0].ID)
	})

	t.Run("returns not found for unknown paper", func(t *testing.T) {
		_, err := client.GetPaper(ctx, uuid.New().String())
		assert.True(t, IsNotFound(err))
	})
}

func TestSubscriptionClose(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeTaskEvents(ctx)
	require.NoError(t, err)

	// Close is idempotent
	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}
