package workers

import "sync"

// Queue runs submitted tasks one at a time, in submission order, on a
// single goroutine. Submit never blocks: the backlog is unbounded, so a
// slow task cannot stall its producers.
type Queue struct {
	name string

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	closed  bool
	stopped chan struct{}
}

// NewQueue starts a Queue. name is used only for diagnostics.
func NewQueue(name string) *Queue {
	q := &Queue{
		name:    name,
		stopped: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Name returns the name the queue was created with.
func (q *Queue) Name() string {
	return q.name
}

// Submit appends task to the queue. It returns false once the queue has
// been closed; the task is then dropped.
func (q *Queue) Submit(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	return true
}

// Len reports the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks, waits for the backlog to drain and returns.
// It must not be called from a task running on q.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
	}
}
