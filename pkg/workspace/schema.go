package workspace

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple Atelier instances to safely coexist on a single Redis server.
//
// Key pattern: atelier:{instance_name}:{entity}:{uuid}
// Index pattern: atelier:{instance_name}:workspace:{workspace_id}:{index}
// Channel pattern: atelier:{instance_name}:{event_type}_events

// TaskKey returns the Redis key for a task.
// Pattern: atelier:{instance_name}:task:{task_id}
func TaskKey(instanceName, taskID string) string {
	return fmt.Sprintf("atelier:%s:task:%s", instanceName, taskID)
}

// WorkspaceTasksKey returns the Redis key for a workspace's task index ZSET.
// Scored by creation time in milliseconds; holds every task ever created.
// Pattern: atelier:{instance_name}:workspace:{workspace_id}:tasks
func WorkspaceTasksKey(instanceName, workspaceID string) string {
	return fmt.Sprintf("atelier:%s:workspace:%s:tasks", instanceName, workspaceID)
}

// WorkspaceQueueKey returns the Redis key for a workspace's pending-task ZSET.
// Scored by creation time; tasks are removed when they leave pending status.
// Pattern: atelier:{instance_name}:workspace:{workspace_id}:queue
func WorkspaceQueueKey(instanceName, workspaceID string) string {
	return fmt.Sprintf("atelier:%s:workspace:%s:queue", instanceName, workspaceID)
}

// MessageKey returns the Redis key for a chat message.
// Pattern: atelier:{instance_name}:message:{message_id}
func MessageKey(instanceName, messageID string) string {
	return fmt.Sprintf("atelier:%s:message:%s", instanceName, messageID)
}

// WorkspaceMessagesKey returns the Redis key for a workspace's message index ZSET.
// Pattern: atelier:{instance_name}:workspace:{workspace_id}:messages
func WorkspaceMessagesKey(instanceName, workspaceID string) string {
	return fmt.Sprintf("atelier:%s:workspace:%s:messages", instanceName, workspaceID)
}

// PaperKey returns the Redis key for an uploaded paper.
// Pattern: atelier:{instance_name}:paper:{paper_id}
func PaperKey(instanceName, paperID string) string {
	return fmt.Sprintf("atelier:%s:paper:%s", instanceName, paperID)
}

// WorkspacePapersKey returns the Redis key for a workspace's paper index ZSET.
// Pattern: atelier:{instance_name}:workspace:{workspace_id}:papers
func WorkspacePapersKey(instanceName, workspaceID string) string {
	return fmt.Sprintf("atelier:%s:workspace:%s:papers", instanceName, workspaceID)
}

// TaskEventsChannel returns the Pub/Sub channel name for task lifecycle events.
// Every task status write publishes its lifecycle event here so out-of-process
// observers (the watch CLI) can follow scheduling in real time.
// Pattern: atelier:{instance_name}:task_events
func TaskEventsChannel(instanceName string) string {
	return fmt.Sprintf("atelier:%s:task_events", instanceName)
}
