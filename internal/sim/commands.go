package sim

import "github.com/talgya/mars-colony/internal/catalog"

// CommandKind identifies a queued player order.
type CommandKind uint8

const (
	CommandBuild CommandKind = iota
)

// Command is a player order scheduled for a specific hour.
type Command struct {
	Hour int64
	Kind CommandKind
	// Build payload.
	Facility catalog.Kind
}

// CommandQueue holds pending orders indexed by scheduled hour. Orders
// at the same hour apply in submission order.
type CommandQueue struct {
	pending map[int64][]Command
}

// NewCommandQueue returns an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{pending: make(map[int64][]Command)}
}

// Submit schedules a command for its hour.
func (q *CommandQueue) Submit(c Command) {
	q.pending[c.Hour] = append(q.pending[c.Hour], c)
}

// DrainForHour removes and returns every command scheduled at exactly
// hour, in submission order. Callers own the result: a command is
// consumed whether its application succeeds or fails.
func (q *CommandQueue) DrainForHour(hour int64) []Command {
	cmds, ok := q.pending[hour]
	if !ok {
		return nil
	}
	delete(q.pending, hour)
	return cmds
}

// Len reports how many commands are still pending.
func (q *CommandQueue) Len() int {
	n := 0
	for _, cmds := range q.pending {
		n += len(cmds)
	}
	return n
}

// Pending returns all queued commands in hour order (submission order
// within an hour); used by save inspection and tests.
func (q *CommandQueue) Pending() []Command {
	hours := make([]int64, 0, len(q.pending))
	for h := range q.pending {
		hours = append(hours, h)
	}
	// Small n; insertion sort keeps this allocation-free.
	for i := 1; i < len(hours); i++ {
		for j := i; j > 0 && hours[j] < hours[j-1]; j-- {
			hours[j], hours[j-1] = hours[j-1], hours[j]
		}
	}
	out := make([]Command, 0)
	for _, h := range hours {
		out = append(out, q.pending[h]...)
	}
	return out
}

// Clone deep-copies the queue so forecast look-ahead can consume
// commands without touching the live queue.
func (q *CommandQueue) Clone() *CommandQueue {
	c := NewCommandQueue()
	for h, cmds := range q.pending {
		cp := make([]Command, len(cmds))
		copy(cp, cmds)
		c.pending[h] = cp
	}
	return c
}
