// Package actions provides the durable queue that inbound robot commands are
// written to.
//
// The session dispatcher decodes each MQTT message and calls Enqueue with the
// command's tool name. An external executor drains pending actions and marks
// them done through Complete (exposed on the status API).
//
// # Key Types
//
//   - Action: One queued command (ID, tool name, status, timestamps)
//   - SQLiteQueue: Queue implementation on the action_queue table
//   - Counts: Pending/done totals for the status API
//
// # Usage
//
//	queue := actions.NewSQLiteQueue(db.DB)
//	id, err := queue.Enqueue(ctx, "vacuum")
//	...
//	pending, err := queue.Pending(ctx, 10)
//	err = queue.Complete(ctx, pending[0].ID)
//
// # Thread Safety
//
// All methods are safe for concurrent use; serialisation is left to SQLite.
package actions
