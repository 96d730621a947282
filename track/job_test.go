package track

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helical/genefold/errors"
)

func TestNewJob(t *testing.T) {
	job, err := NewJob("portal.predict", "max-ebox", "NM_007294.4", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, "portal.predict", job.HandlerName)
	assert.False(t, job.CreatedAt.IsZero())

	_, err = NewJob("", "x", "y", nil)
	assert.Error(t, err)
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	job, err := NewJob("portal.predict", "j", "s", nil)
	require.NoError(t, err)

	require.NoError(t, job.StartSubmitting())
	require.NotNil(t, job.SubmittedAt)
	require.NoError(t, job.StartPolling())
	require.NoError(t, job.StartDownloading())
	require.NoError(t, job.Complete("results/j", nil))
	require.NotNil(t, job.CompletedAt)

	// Terminal states are never exited.
	assert.Error(t, job.StartPolling())
	assert.Error(t, job.Fail(errors.New("late")))
	assert.Error(t, job.Cancel("late"))
	assert.Equal(t, StatusCompleted, job.Status)
}

func TestStatusNeverMovesBackward(t *testing.T) {
	job, err := NewJob("portal.predict", "j", "s", nil)
	require.NoError(t, err)

	require.NoError(t, job.StartSubmitting())
	require.NoError(t, job.StartPolling())

	assert.Error(t, job.StartSubmitting())
	assert.Equal(t, StatusPolling, job.Status)

	// Re-entering the same status is a retry of the same step, allowed.
	assert.NoError(t, job.StartPolling())
}

func TestFailReachableFromEveryNonTerminalStatus(t *testing.T) {
	advance := map[Status]func(j *Job) error{
		StatusQueued:      func(j *Job) error { return nil },
		StatusSubmitting:  func(j *Job) error { return j.StartSubmitting() },
		StatusPolling: func(j *Job) error {
			if err := j.StartSubmitting(); err != nil {
				return err
			}
			return j.StartPolling()
		},
		StatusDownloading: func(j *Job) error {
			if err := j.StartSubmitting(); err != nil {
				return err
			}
			if err := j.StartPolling(); err != nil {
				return err
			}
			return j.StartDownloading()
		},
	}
	for status, steps := range advance {
		job, err := NewJob("portal.predict", "j", "s", nil)
		require.NoError(t, err)
		require.NoError(t, steps(job))
		require.Equal(t, status, job.Status)
		require.NoError(t, job.Fail(errors.New("boom")))
		assert.Equal(t, StatusFailed, job.Status)
		assert.Equal(t, "boom", job.Error)
	}
}

func TestExternalIDIsWriteOnce(t *testing.T) {
	job, err := NewJob("portal.predict", "j", "s", nil)
	require.NoError(t, err)

	require.NoError(t, job.SetExternalID("AF-123"))
	require.NoError(t, job.SetExternalID("AF-123")) // idempotent re-set is fine
	assert.Error(t, job.SetExternalID("AF-456"))
	assert.Equal(t, "AF-123", job.ExternalID)
}

func TestSnapshotIsIndependent(t *testing.T) {
	job, err := NewJob("portal.predict", "j", "s", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)

	snap := job.Snapshot()
	job.Payload[2] = 'x'
	job.SetPhase("FillingForm")

	assert.Equal(t, json.RawMessage(`{"a":1}`), snap.Payload)
	assert.Empty(t, snap.Phase)
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus("queued"))
	assert.True(t, IsValidStatus("downloading"))
	assert.False(t, IsValidStatus("running"))
	assert.False(t, IsValidStatus(""))
}
