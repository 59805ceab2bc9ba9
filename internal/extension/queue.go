package extension

import (
	"sync"

	"pushbridge/pkg/metrics"
)

const defaultQueueCapacity = 256

// serialQueue runs submitted tasks one at a time, in submission order, on
// a single goroutine. It exists so event handling never runs concurrently
// with itself and never blocks the caller's goroutine.
type serialQueue struct {
	tasks    chan func()
	stopOnce sync.Once
	done     chan struct{}
}

func newSerialQueue(capacity int) *serialQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	q := &serialQueue{
		tasks: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *serialQueue) loop() {
	defer close(q.done)
	for task := range q.tasks {
		metrics.ExtensionQueueDepth.Set(float64(len(q.tasks)))
		task()
	}
}

// submit enqueues a task. It blocks only when the queue buffer is full.
// Submitting after stop panics on the closed channel, so the extension
// guards submits with its registered flag.
func (q *serialQueue) submit(task func()) {
	q.tasks <- task
	metrics.ExtensionQueueDepth.Set(float64(len(q.tasks)))
}

// stop closes the queue and waits for already-enqueued tasks to finish.
func (q *serialQueue) stop() {
	q.stopOnce.Do(func() {
		close(q.tasks)
	})
	<-q.done
}
