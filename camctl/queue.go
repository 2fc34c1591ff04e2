package camctl

import (
	"sync"

	"github.com/signalsfoundry/orrery/model"
)

// DefaultQueueCapacity bounds the events buffered between two frames.
const DefaultQueueCapacity = 256

// InputObserver receives input counters. FrameCollector satisfies it.
type InputObserver interface {
	ObserveInput(kind string)
	IncDroppedInput()
}

// Queue is a goroutine-safe mailbox between input sources and the frame
// loop. Events past capacity are dropped and counted.
type Queue struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	dropped  int
	observer InputObserver
}

// QueueOption customises a Queue.
type QueueOption func(*Queue)

// WithCapacity overrides DefaultQueueCapacity.
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithObserver reports accepted and dropped events.
func WithObserver(o InputObserver) QueueOption {
	return func(q *Queue) { q.observer = o }
}

func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{capacity: DefaultQueueCapacity}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Push enqueues ev and reports whether it was accepted.
func (q *Queue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) >= q.capacity {
		q.dropped++
		if q.observer != nil {
			q.observer.IncDroppedInput()
		}
		return false
	}
	q.events = append(q.events, ev)
	if q.observer != nil {
		q.observer.ObserveInput(ev.Kind.String())
	}
	return true
}

// Drain hands every pending event to c in arrival order and returns how
// many were delivered.
func (q *Queue) Drain(c *Controller) int {
	q.mu.Lock()
	events := q.events
	q.events = nil
	q.mu.Unlock()

	for _, ev := range events {
		c.HandleEvent(ev)
	}
	return len(events)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns the number of events rejected so far.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// QueuedRig drains a Queue into a Controller before each Update, so
// input arriving between frames lands in exactly one frame.
type QueuedRig struct {
	Controller *Controller
	Queue      *Queue
}

func (r QueuedRig) Update() model.CameraPose {
	if r.Queue != nil {
		r.Queue.Drain(r.Controller)
	}
	return r.Controller.Update()
}
