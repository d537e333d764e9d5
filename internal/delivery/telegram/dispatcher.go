package telegram

import "sync"

// dispatcher runs jobs for the same user strictly in arrival order while
// letting different users proceed in parallel. A job blocks only its own
// user's queue; pacing delays and oracle round trips inside a job never stall
// anyone else.
type dispatcher struct {
	mu     sync.Mutex
	queues map[int64]*userQueue
}

type userQueue struct {
	mu      sync.Mutex
	jobs    []func()
	running bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{queues: make(map[int64]*userQueue)}
}

// enqueue appends job to the user's queue and starts a worker if none runs.
func (d *dispatcher) enqueue(userID int64, job func()) {
	d.mu.Lock()
	q, ok := d.queues[userID]
	if !ok {
		q = &userQueue{}
		d.queues[userID] = q
	}
	d.mu.Unlock()

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	if !q.running {
		q.running = true
		go q.drain()
	}
	q.mu.Unlock()
}

// drain runs queued jobs one at a time until the queue is empty, then exits.
// The next enqueue starts a fresh worker.
func (q *userQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		job()
	}
}
