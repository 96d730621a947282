package track

import (
	"database/sql"
	"time"

	"github.com/helical/genefold/errors"
)

// ErrJobFinalized is returned when an update targets a row that has already
// reached completed, failed, or cancelled. The in-memory copy is stale; the
// persisted terminal state wins.
var ErrJobFinalized = errors.New("job already finalized")

// Store handles persistence of prediction jobs.
type Store struct {
	db *sql.DB
}

// NewStore creates a job store backed by an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job.
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO prediction_jobs (
			id, handler_name, name, source, status, phase, external_id,
			payload, result, result_path, error, retry_count,
			created_at, submitted_at, last_polled_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		job.ID,
		job.HandlerName,
		job.Name,
		job.Source,
		job.Status,
		job.Phase,
		nullString(job.ExternalID),
		nullString(string(job.Payload)),
		nullString(string(job.Result)),
		nullString(job.ResultPath),
		nullString(job.Error),
		job.RetryCount,
		job.CreatedAt,
		job.SubmittedAt,
		job.LastPolledAt,
		job.CompletedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create job %s", job.ID)
	}
	return nil
}

// GetJob retrieves a job by local id.
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns() + ` FROM prediction_jobs WHERE id = ?`

	var job Job
	args := &jobScanArgs{}
	err := s.db.QueryRow(query, id).Scan(jobScanTargets(&job, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get job %s", id)
	}
	applyScanArgs(&job, args)
	return &job, nil
}

// UpdateJob persists the mutable fields of an existing job. The guard on the
// persisted status keeps terminal rows immutable, so a job cancelled from
// another process is never resurrected by a stale in-memory copy.
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE prediction_jobs
		SET status = ?,
		    phase = ?,
		    external_id = ?,
		    payload = ?,
		    result = ?,
		    result_path = ?,
		    error = ?,
		    retry_count = ?,
		    submitted_at = ?,
		    last_polled_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
		  AND status NOT IN ('completed', 'failed', 'cancelled')
	`
	res, err := s.db.Exec(query,
		job.Status,
		job.Phase,
		nullString(job.ExternalID),
		nullString(string(job.Payload)),
		nullString(string(job.Result)),
		nullString(job.ResultPath),
		nullString(job.Error),
		job.RetryCount,
		job.SubmittedAt,
		job.LastPolledAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "update job %s", job.ID)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		current, gerr := s.GetJob(job.ID)
		if gerr != nil {
			return gerr
		}
		return errors.Wrapf(ErrJobFinalized, "job %s is already %s", job.ID, current.Status)
	}
	return nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(status *Status, limit int) ([]*Job, error) {
	var (
		query string
		args  []interface{}
	)
	base := `SELECT ` + jobSelectColumns() + ` FROM prediction_jobs`
	if status != nil {
		query = base + ` WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = base + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListQueuedJobs returns queued jobs oldest first so the longest-waiting job
// is claimed next.
func (s *Store) ListQueuedJobs(limit int) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns() + `
		FROM prediction_jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list queued jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListActiveJobs returns jobs that have not reached a terminal status,
// oldest first so the longest-waiting job is claimed next.
func (s *Store) ListActiveJobs(limit int) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns() + `
		FROM prediction_jobs
		WHERE status IN ('queued', 'submitting', 'polling', 'downloading')
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list active jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListResumableJobs returns non-terminal jobs that already hold an external
// job id. After a restart these re-attach to polling instead of re-submitting.
func (s *Store) ListResumableJobs(limit int) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns() + `
		FROM prediction_jobs
		WHERE status IN ('submitting', 'polling', 'downloading')
		  AND external_id IS NOT NULL
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list resumable jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListOrphanedJobs returns jobs stuck in submitting with no external id.
// These were interrupted before the portal assigned an id and must be
// re-queued from scratch.
func (s *Store) ListOrphanedJobs(limit int) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns() + `
		FROM prediction_jobs
		WHERE status = 'submitting'
		  AND external_id IS NULL
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orphaned jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// DeleteJob removes a job row.
func (s *Store) DeleteJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM prediction_jobs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete job %s", id)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	return nil
}

// CleanupOldJobs removes terminal jobs older than the given age and returns
// how many were removed.
func (s *Store) CleanupOldJobs(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.Exec(`
		DELETE FROM prediction_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "cleanup old jobs")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return int(rows), nil
}

// CountByStatus returns job counts keyed by status.
func (s *Store) CountByStatus() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM prediction_jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "count jobs by status")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan status count")
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate status counts")
	}
	return counts, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := scanJobFromRows(rows, &job); err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate jobs")
	}
	return jobs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
