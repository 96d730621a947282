package track

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/helical/genefold/errors"
)

// subscriberBufferSize bounds each subscriber channel so a slow consumer
// never stalls job processing.
const subscriberBufferSize = 100

// Tracker is the canonical job registry and the only component that mutates
// persisted job state. All reads and writes go through its synchronized
// accessors; callers only ever see snapshots.
type Tracker struct {
	store       *Store
	mu          sync.RWMutex
	subscribers []chan Job
	cancels     map[string]context.CancelFunc // local job id -> running session cancel
}

// NewTracker creates a tracker backed by an open database.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{
		store:   NewStore(db),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Submit persists a new queued job and notifies subscribers. The runner
// picks it up on its next tick.
func (t *Tracker) Submit(job *Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.CreateJob(job); err != nil {
		return err
	}
	t.notify(job)
	return nil
}

// Get returns a read-only snapshot of a job.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, err := t.store.GetJob(id)
	if err != nil {
		return Job{}, err
	}
	return job.Snapshot(), nil
}

// Update persists a job mutation and notifies subscribers. Handlers call
// this after each state or phase change so status surveys stay current.
func (t *Tracker) Update(job *Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.UpdateJob(job); err != nil {
		return err
	}
	t.notify(job)
	return nil
}

// List returns job snapshots newest first, optionally filtered by status.
func (t *Tracker) List(status *Status, limit int) ([]Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	jobs, err := t.store.ListJobs(status, limit)
	if err != nil {
		return nil, err
	}
	return snapshots(jobs), nil
}

// ListActive returns non-terminal job snapshots, oldest first.
func (t *Tracker) ListActive(limit int) ([]Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	jobs, err := t.store.ListActiveJobs(limit)
	if err != nil {
		return nil, err
	}
	return snapshots(jobs), nil
}

// Cancel requests cancellation of a job. A queued job is cancelled
// immediately; a running job's session context is cancelled so the handler
// aborts at its next checkpoint, between interactions. A terminal job is
// left untouched.
func (t *Tracker) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.store.GetJob(id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	if cancel, running := t.cancels[id]; running {
		cancel()
		return nil // the runner marks the job cancelled once the handler returns
	}

	if err := job.Cancel("cancelled by user"); err != nil {
		return err
	}
	if err := t.store.UpdateJob(job); err != nil {
		return err
	}
	t.notify(job)
	return nil
}

// Archive removes a terminal job from the registry. Active jobs must be
// cancelled first: a job is never destroyed implicitly.
func (t *Tracker) Archive(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.store.GetJob(id)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return errors.Wrapf(errors.ErrValidation,
			"job %s is still %s, cancel it before archiving", id, job.Status)
	}
	return t.store.DeleteJob(id)
}

// Cleanup removes terminal jobs older than the given age.
func (t *Tracker) Cleanup(olderThan time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.store.CleanupOldJobs(olderThan)
}

// Stats returns job counts keyed by status.
func (t *Tracker) Stats() (map[Status]int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.store.CountByStatus()
}

// Subscribe returns a channel receiving a snapshot on every job change.
// Callers must Unsubscribe when done; the channel is buffered so a slow
// subscriber drops updates instead of blocking the tracker.
func (t *Tracker) Subscribe() chan Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Job, subscriberBufferSize)
	t.subscribers = append(t.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel. The channel is not closed here;
// the caller owns its lifecycle.
func (t *Tracker) Unsubscribe(ch chan Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, sub := range t.subscribers {
		if sub == ch {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}

// registerCancel associates a running job with its session cancel func.
func (t *Tracker) registerCancel(id string, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancels[id] = cancel
}

// unregisterCancel drops the cancel func once the job's session ends.
func (t *Tracker) unregisterCancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cancels, id)
}

// notify sends a snapshot to all subscribers without blocking. Requires t.mu.
func (t *Tracker) notify(job *Job) {
	snap := job.Snapshot()
	for _, ch := range t.subscribers {
		select {
		case ch <- snap:
		default: // subscriber full, drop
		}
	}
}

func snapshots(jobs []*Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	return out
}
