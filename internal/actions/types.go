package actions

import "time"

// Status is the lifecycle state of a queued action.
type Status string

const (
	// StatusPending marks an action waiting for the executor.
	StatusPending Status = "pending"

	// StatusDone marks an action the executor has completed.
	StatusDone Status = "done"
)

// Action is one command received over MQTT and queued by tool name.
type Action struct {
	ID          string     `json:"id"`
	ToolName    string     `json:"tool_name"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Counts summarises the queue by status.
type Counts struct {
	Pending int `json:"pending"`
	Done    int `json:"done"`
}

// Total returns the number of actions ever enqueued.
func (c Counts) Total() int {
	return c.Pending + c.Done
}
