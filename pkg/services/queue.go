package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerbaras/mangashelf/pkg/logging"
)

var (
	ErrQueueClosed  = errors.New("download queue is closed")
	ErrTaskPanicked = errors.New("download task panicked")
)

// QueueState is the worker state of a SerialQueue.
type QueueState int

const (
	QueueIdle QueueState = iota
	QueueDraining
)

func (s QueueState) String() string {
	switch s {
	case QueueIdle:
		return "idle"
	case QueueDraining:
		return "draining"
	default:
		return fmt.Sprintf("QueueState(%d)", int(s))
	}
}

// Task is a unit of work run by the queue. It should return promptly once
// ctx is cancelled.
type Task func(ctx context.Context) error

// Ticket tracks one enqueued task.
type Ticket struct {
	ID   string
	Name string

	done chan struct{}
	err  error
}

func newTicket(name string) *Ticket {
	return &Ticket{ID: uuid.NewString(), Name: name, done: make(chan struct{})}
}

// Done is closed when the task has finished or was skipped.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the task outcome. It is nil until Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Ticket) finish(err error) {
	t.err = err
	close(t.done)
}

type queuedTask struct {
	ctx    context.Context
	task   Task
	ticket *Ticket
}

// SerialQueue runs tasks one at a time in arrival order. A worker goroutine is
// started on the first enqueue while idle and exits once the queue is empty.
type SerialQueue struct {
	mu       sync.Mutex
	pending  []*queuedTask
	draining bool
	closed   bool
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func NewSerialQueue(logger *slog.Logger) *SerialQueue {
	return &SerialQueue{logger: logging.NewComponentLogger(logger, "queue")}
}

// Enqueue appends task to the queue. The returned ticket completes when this
// task has run. A task whose ctx is done before it starts is skipped.
func (q *SerialQueue) Enqueue(ctx context.Context, name string, task Task) *Ticket {
	if ctx == nil {
		ctx = context.Background()
	}
	ticket := newTicket(name)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		ticket.finish(ErrQueueClosed)
		return ticket
	}
	q.pending = append(q.pending, &queuedTask{ctx: ctx, task: task, ticket: ticket})
	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
	}
	q.mu.Unlock()

	q.logger.Debug("task queued",
		logging.String(logging.FieldTaskID, ticket.ID),
		logging.String("name", name))
	return ticket
}

func (q *SerialQueue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		next.ticket.finish(q.run(next))
	}
}

func (q *SerialQueue) run(t *queuedTask) (err error) {
	if err := t.ctx.Err(); err != nil {
		q.logger.Info("skipping cancelled task",
			logging.String(logging.FieldTaskID, t.ticket.ID),
			logging.String("name", t.ticket.Name))
		return err
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		if err != nil {
			q.logger.Warn("task failed",
				logging.String(logging.FieldTaskID, t.ticket.ID),
				logging.String("name", t.ticket.Name),
				logging.Duration("elapsed", time.Since(start)),
				logging.Error(err))
			return
		}
		q.logger.Debug("task finished",
			logging.String(logging.FieldTaskID, t.ticket.ID),
			logging.Duration("elapsed", time.Since(start)))
	}()
	return t.task(t.ctx)
}

// State reports whether a worker is currently draining the queue.
func (q *SerialQueue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.draining {
		return QueueDraining
	}
	return QueueIdle
}

// Pending returns the number of tasks waiting to start.
func (q *SerialQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting tasks and waits for queued ones to finish.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}
