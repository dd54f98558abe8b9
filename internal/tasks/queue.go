package tasks

import (
	"context"
	"go.uber.org/zap"
	"sync"
	"time"
)

const DefaultAttempts = 3

// Task is a best-effort side effect. Run is retried until it succeeds or
// Attempts is exhausted; the task is then dropped.
type Task struct {
	Name     string
	Attempts int
	Run      func(ctx context.Context) error
}

type Dispatcher interface {
	Dispatch(t Task)
}

// Queue runs tasks on a fixed pool of workers.
type Queue struct {
	jobs    chan Task
	workers int
	backoff time.Duration
	log     *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(workers, buf int, log *zap.SugaredLogger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		jobs:    make(chan Task, buf),
		workers: workers,
		backoff: 200 * time.Millisecond,
		log:     log,
	}
}

func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for t := range q.jobs {
				run(ctx, t, q.backoff, q.log)
			}
		}()
	}
}

// Dispatch never blocks the caller; a full queue drops the task.
func (q *Queue) Dispatch(t Task) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.log.Warnw("task dropped, queue closed", "task", t.Name)
		return
	}
	select {
	case q.jobs <- t:
	default:
		q.log.Warnw("task dropped, queue full", "task", t.Name)
	}
}

// Close stops intake and waits for queued tasks to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Inline runs each task on the caller's goroutine.
type Inline struct {
	Log     *zap.SugaredLogger
	Backoff time.Duration
}

func (i Inline) Dispatch(t Task) {
	run(context.Background(), t, i.Backoff, i.Log)
}

func run(ctx context.Context, t Task, backoff time.Duration, log *zap.SugaredLogger) {
	attempts := t.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	var err error
	for n := 1; n <= attempts; n++ {
		if err = t.Run(ctx); err == nil {
			return
		}
		log.Warnw("task failed", "task", t.Name, "attempt", n, "error", err)
		if n < attempts && backoff > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(n) * backoff):
			}
		}
	}
	log.Errorw("task discarded", "task", t.Name, "attempts", attempts, "error", err)
}
