// Package track owns the durable prediction job registry: the job state
// machine, its SQLite persistence, and the worker pool that executes jobs
// through registered handlers. Infrastructure here is domain-agnostic;
// domain packages provide handlers and payloads.
package track

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/helical/genefold/errors"
)

// Status is the coarse lifecycle state of a job. Transitions are monotonic:
// a job never returns to an earlier non-terminal status, and terminal
// statuses are never exited. Re-entering the same status is allowed (retry
// of the same step).
type Status string

const (
	StatusQueued      Status = "queued"
	StatusSubmitting  Status = "submitting"  // claimed by a worker, driving submission
	StatusPolling     Status = "polling"     // external job id known, awaiting completion
	StatusDownloading Status = "downloading" // portal reported complete, fetching artifacts
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// statusRank orders the non-terminal statuses for monotonicity checks.
var statusRank = map[Status]int{
	StatusQueued:      0,
	StatusSubmitting:  1,
	StatusPolling:     2,
	StatusDownloading: 3,
}

// IsValidStatus returns true if the status string is a known Status.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusQueued, StatusSubmitting, StatusPolling, StatusDownloading,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a status can never be exited.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether moving from s to next respects the state
// machine: terminal states are absorbing, non-terminal states only move
// forward (or re-enter themselves).
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next.IsTerminal() {
		return true
	}
	return statusRank[next] >= statusRank[s]
}

// Job is one tracked prediction request.
//
// The local ID is generated at creation; ExternalID is assigned by the
// portal once submission succeeds and is write-once from then on. It is the
// durable resumption key: a restart re-attaches to a polling job through it
// instead of re-submitting.
type Job struct {
	ID          string          `json:"id"`
	HandlerName string          `json:"handler_name"` // "ncbi.fetch", "roi.scan", "portal.predict"
	Name        string          `json:"name"`         // user-supplied job name
	Source      string          `json:"source"`       // accession or input that produced this job
	Status      Status          `json:"status"`
	Phase       string          `json:"phase,omitempty"` // fine-grained progress within a status
	ExternalID  string          `json:"external_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"` // handler-specific data (domain-owned)
	Result      json.RawMessage `json:"result,omitempty"`
	ResultPath  string          `json:"result_path,omitempty"` // artifact location once downloaded
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewJob creates a queued job for a handler with a typed payload.
func NewJob(handlerName, name, source string, payload json.RawMessage) (*Job, error) {
	if handlerName == "" {
		return nil, errors.New("handlerName cannot be empty")
	}
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.NewString(),
		HandlerName: handlerName,
		Name:        name,
		Source:      source,
		Status:      StatusQueued,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// transition applies a status change, enforcing monotonicity.
func (j *Job) transition(next Status) error {
	if !j.Status.CanTransition(next) {
		return errors.Wrapf(errors.ErrValidation,
			"job %s cannot move from %s to %s", j.ID, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// StartSubmitting marks the job as claimed by a worker.
func (j *Job) StartSubmitting() error {
	now := time.Now().UTC()
	if err := j.transition(StatusSubmitting); err != nil {
		return err
	}
	j.SubmittedAt = &now
	return nil
}

// SetExternalID records the portal-assigned job id. Write-once: a second
// assignment with a different id is rejected.
func (j *Job) SetExternalID(id string) error {
	if j.ExternalID != "" && j.ExternalID != id {
		return errors.Wrapf(errors.ErrValidation,
			"job %s already has external id %s", j.ID, j.ExternalID)
	}
	j.ExternalID = id
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// StartPolling marks the job as awaiting portal completion.
func (j *Job) StartPolling() error {
	return j.transition(StatusPolling)
}

// TouchPoll records one completed poll cycle.
func (j *Job) TouchPoll() {
	now := time.Now().UTC()
	j.LastPolledAt = &now
	j.UpdatedAt = now
}

// StartDownloading marks the job as fetching result artifacts.
func (j *Job) StartDownloading() error {
	return j.transition(StatusDownloading)
}

// Complete marks the job as successfully finished.
func (j *Job) Complete(resultPath string, result json.RawMessage) error {
	now := time.Now().UTC()
	if err := j.transition(StatusCompleted); err != nil {
		return err
	}
	j.ResultPath = resultPath
	j.Result = result
	j.CompletedAt = &now
	return nil
}

// Fail marks the job as failed, recording the cause.
func (j *Job) Fail(err error) error {
	now := time.Now().UTC()
	if terr := j.transition(StatusFailed); terr != nil {
		return terr
	}
	j.Error = err.Error()
	j.CompletedAt = &now
	return nil
}

// Cancel marks the job as cancelled with a reason.
func (j *Job) Cancel(reason string) error {
	now := time.Now().UTC()
	if err := j.transition(StatusCancelled); err != nil {
		return err
	}
	j.Error = reason
	j.CompletedAt = &now
	return nil
}

// SetPhase records fine-grained progress within the current status.
func (j *Job) SetPhase(phase string) {
	j.Phase = phase
	j.UpdatedAt = time.Now().UTC()
}

// Snapshot returns a read-only copy safe for concurrent callers.
func (j *Job) Snapshot() Job {
	snap := *j
	if j.Payload != nil {
		snap.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.Result != nil {
		snap.Result = append(json.RawMessage(nil), j.Result...)
	}
	return snap
}
