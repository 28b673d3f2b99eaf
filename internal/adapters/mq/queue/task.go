package queue

import "time"

// State is the lifecycle position of a task.
type State string

// Task states. PENDING on enqueue, STARTED when a worker picks the task up,
// then exactly one of SUCCESS or FAILURE.
const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Task is one unit of asynchronous work.
type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Args       []string  `json:"args"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// raw is the encoded form the redis backend needs to acknowledge the task.
	raw string
}

// Status is a point-in-time snapshot of a task.
type Status struct {
	TaskID    string
	Name      string
	State     State
	Result    string // set only for SUCCESS
	Error     string // set only for FAILURE
	UpdatedAt time.Time
}
