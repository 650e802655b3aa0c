// Package workspace provides type-safe Go definitions and Redis schema patterns
// for Atelier's shared workspace state.
//
// # Overview
//
// A workspace is the collaboration scope that owns tasks, chat messages,
// uploaded papers and live subscriptions. All durable workspace state lives in
// Redis, and every component (API server, scheduler, watch CLI) interacts with
// it through the types and client defined here.
//
// # Core Concepts
//
// Tasks are units of schedulable work assigned to one specialist agent role.
// They are created pending, driven through a monotonic state machine
// (pending -> in_progress -> completed|failed) by the scheduler, and never
// deleted: the task index is the workspace's append-only work history.
//
// Messages form the workspace conversation. When a task completes, its full
// result is posted back into the conversation as an agent message.
//
// Papers are uploaded documents. They feed the bounded context digest passed
// to agents alongside task prompts.
//
// # Events
//
// Every task status write publishes a lifecycle event on the instance's
// task_events Pub/Sub channel. Delivery is at-most-once and best-effort;
// consumers that miss events resynchronize from the task list read path.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Atelier instances to safely coexist on a single Redis
// server without interference.
package workspace
