package track

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helical/genefold/errors"
)

// maxRecoverableJobs bounds how many interrupted jobs are picked up on
// startup so a crash never floods the portal on restart.
const maxRecoverableJobs = 1000

// Runner executes queued jobs on background workers. Each in-flight job runs
// on its own worker with its own cancellable context, so callers are never
// blocked and jobs never share session state.
type Runner struct {
	tracker  *Tracker
	registry *HandlerRegistry
	workers  int
	interval time.Duration

	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	log       *zap.SugaredLogger
}

// RunnerConfig sizes the worker pool.
type RunnerConfig struct {
	Workers      int
	PollInterval time.Duration
}

// NewRunner creates a runner. Handlers must be registered before Start.
func NewRunner(ctx context.Context, tracker *Tracker, registry *HandlerRegistry, cfg RunnerConfig, log *zap.SugaredLogger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	runCtx, cancel := context.WithCancel(ctx)
	return &Runner{
		tracker:   tracker,
		registry:  registry,
		workers:   cfg.Workers,
		interval:  cfg.PollInterval,
		parentCtx: ctx,
		ctx:       runCtx,
		cancel:    cancel,
		log:       log,
	}
}

// Start recovers interrupted jobs from a previous run, then spawns workers.
func (r *Runner) Start() {
	select {
	case <-r.ctx.Done():
		// Restart after Stop: derive a fresh context from the parent.
		r.ctx, r.cancel = context.WithCancel(r.parentCtx)
	default:
	}

	if err := r.recoverInterruptedJobs(); err != nil {
		r.log.Warnw("Failed to recover interrupted jobs", "error", err)
	}

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop cancels all workers and waits for them to exit their current
// checkpoint, bounded by a timeout so shutdown never hangs on a slow poll.
func (r *Runner) Stop() {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Infow("Runner stopped, all workers exited")
	case <-time.After(30 * time.Second):
		r.log.Warnw("Runner stop timed out, workers may still be checkpointing")
	}
}

// recoverInterruptedJobs handles jobs left non-terminal by a previous
// process. Jobs that already hold an external portal id re-attach to their
// running portal job (the durable resumption key) instead of re-submitting;
// jobs interrupted before an id was assigned go back to the queue.
func (r *Runner) recoverInterruptedJobs() error {
	orphans, err := r.tracker.store.ListOrphanedJobs(maxRecoverableJobs)
	if err != nil {
		return errors.Wrap(err, "list orphaned jobs")
	}
	for _, job := range orphans {
		// Interrupted before the portal assigned an id: safe to re-queue.
		job.Status = StatusQueued
		job.Phase = ""
		job.Error = ""
		job.UpdatedAt = time.Now().UTC()
		if err := r.tracker.Update(job); err != nil {
			r.log.Warnw("Failed to re-queue orphaned job", "job_id", job.ID, "error", err)
			continue
		}
		r.log.Infow("Re-queued orphaned job", "job_id", job.ID, "handler", job.HandlerName)
	}

	resumable, err := r.tracker.store.ListResumableJobs(maxRecoverableJobs)
	if err != nil {
		return errors.Wrap(err, "list resumable jobs")
	}
	for _, job := range resumable {
		r.log.Infow("Resuming job from stored external id",
			"job_id", job.ID,
			"external_id", job.ExternalID,
			"status", job.Status,
		)
		r.wg.Add(1)
		go func(j *Job) {
			defer r.wg.Done()
			r.runJob(j)
		}(job)
	}
	return nil
}

// worker claims and executes queued jobs until the runner stops.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			job, err := r.claimNext()
			if err != nil {
				if r.ctx.Err() == nil {
					r.log.Errorw("Worker failed to claim job", "worker_id", id, "error", err)
				}
				continue
			}
			if job == nil {
				continue
			}
			r.runJob(job)
		}
	}
}

// claimNext takes the oldest queued job and marks it submitting.
func (r *Runner) claimNext() (*Job, error) {
	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()

	jobs, err := r.tracker.store.ListQueuedJobs(1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	job := jobs[0]
	if err := job.StartSubmitting(); err != nil {
		return nil, err
	}
	if err := r.tracker.store.UpdateJob(job); err != nil {
		return nil, err
	}
	r.tracker.notify(job)
	return job, nil
}

// runJob executes one job through its handler and records the terminal
// outcome. The job context is separately cancellable so a user cancel aborts
// this job alone, while a runner shutdown re-queues or resumes it later.
func (r *Runner) runJob(job *Job) {
	jobCtx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	r.tracker.registerCancel(job.ID, cancel)
	defer r.tracker.unregisterCancel(job.ID)

	err := r.registry.Execute(jobCtx, job)

	switch {
	case err == nil:
		if !job.Status.IsTerminal() {
			if terr := job.Complete(job.ResultPath, job.Result); terr != nil {
				r.log.Errorw("Failed to mark job completed", "job_id", job.ID, "error", terr)
				return
			}
		}
		r.log.Infow("Job completed", "job_id", job.ID, "handler", job.HandlerName)

	case r.ctx.Err() != nil:
		// Runner shutdown, not a user cancel. Leave resumable jobs in place
		// and push unsubmitted work back onto the queue for the next run.
		if job.ExternalID == "" && !job.Status.IsTerminal() {
			job.Status = StatusQueued
			job.Phase = ""
			job.UpdatedAt = time.Now().UTC()
		}
		r.log.Infow("Job interrupted by shutdown", "job_id", job.ID, "status", job.Status)

	case jobCtx.Err() != nil:
		if terr := job.Cancel("cancelled by user"); terr != nil {
			r.log.Errorw("Failed to mark job cancelled", "job_id", job.ID, "error", terr)
		}
		r.log.Infow("Job cancelled", "job_id", job.ID)

	default:
		if !job.Status.IsTerminal() {
			if terr := job.Fail(err); terr != nil {
				r.log.Errorw("Failed to mark job failed", "job_id", job.ID, "error", terr)
				return
			}
		}
		r.log.Warnw("Job failed", "job_id", job.ID, "handler", job.HandlerName, "error", err)
	}

	if uerr := r.tracker.Update(job); uerr != nil {
		if errors.Is(uerr, ErrJobFinalized) {
			// Cancelled from another process while the session ran; the
			// persisted terminal state stands.
			r.log.Infow("Job was finalized elsewhere, keeping persisted state", "job_id", job.ID)
			return
		}
		r.log.Errorw("Failed to persist job outcome", "job_id", job.ID, "error", uerr)
	}
}
