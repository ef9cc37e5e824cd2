// Package tasks runs slow side effects, such as purging deleted content,
// detached from the request that triggered them.
//
// Every submitted unit of work gets an index into an append-only list of
// results. A result starts pending and ends either succeeded or failed with
// the reason recorded; nothing is retried.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lines-of-codes/litestore/metrics"
)

// State is the outcome of a task.
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Task is the recorded state of one submitted unit of work.
type Task struct {
	Index       int        `json:"id"`
	Owner       int64      `json:"-"`
	Label       string     `json:"label"`
	State       State      `json:"state"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Work is a deferred unit of work. Its returned error marks the task failed.
type Work func(ctx context.Context) error

// Queue starts submitted work immediately on its own goroutine and keeps
// the outcome of every task for the lifetime of the process.
type Queue struct {
	mu      sync.RWMutex
	tasks   []Task
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewQueue creates a queue. Each task gets a context detached from the
// submitter and bounded by timeout; zero means no bound.
func NewQueue(timeout time.Duration) *Queue {
	return &Queue{timeout: timeout}
}

// Submit records a pending task and starts work without waiting for it.
func (q *Queue) Submit(owner int64, label string, work Work) int {
	q.mu.Lock()
	index := len(q.tasks)
	q.tasks = append(q.tasks, Task{
		Index:       index,
		Owner:       owner,
		Label:       label,
		State:       StatePending,
		SubmittedAt: time.Now().UTC(),
	})
	q.mu.Unlock()

	metrics.TaskSubmitted()
	q.wg.Go(func() {
		q.finish(index, q.run(work))
	})

	return index
}

func (q *Queue) run(work Work) (err error) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return work(ctx)
}

func (q *Queue) finish(index int, err error) {
	now := time.Now().UTC()

	q.mu.Lock()
	task := &q.tasks[index]
	task.FinishedAt = &now
	if err != nil {
		task.State = StateFailed
		task.Error = err.Error()
	} else {
		task.State = StateSucceeded
	}
	label, state := task.Label, task.State
	q.mu.Unlock()

	metrics.RecordTaskFinished(label, string(state))

	if err != nil {
		slog.Error("task failed", "task", index, "label", label, "err", err)
		return
	}
	slog.Debug("task succeeded", "task", index, "label", label)
}

// Get returns a copy of the task at index.
func (q *Queue) Get(index int) (Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if index < 0 || index >= len(q.tasks) {
		return Task{}, false
	}
	return q.tasks[index], true
}

// Len returns the number of tasks ever submitted.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// Wait blocks until all submitted work has finished or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for tasks: %w", ctx.Err())
	}
}
