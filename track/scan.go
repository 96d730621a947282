package track

import "database/sql"

// jobScanArgs holds the nullable column targets used when scanning a job row.
type jobScanArgs struct {
	Phase        sql.NullString
	ExternalID   sql.NullString
	Payload      sql.NullString
	Result       sql.NullString
	ResultPath   sql.NullString
	ErrorMsg     sql.NullString
	SubmittedAt  sql.NullTime
	LastPolledAt sql.NullTime
	CompletedAt  sql.NullTime
}

// jobScanTargets returns scan destinations in the order of jobSelectColumns.
func jobScanTargets(job *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.HandlerName,
		&job.Name,
		&job.Source,
		&job.Status,
		&args.Phase,
		&args.ExternalID,
		&args.Payload,
		&args.Result,
		&args.ResultPath,
		&args.ErrorMsg,
		&job.RetryCount,
		&job.CreatedAt,
		&args.SubmittedAt,
		&args.LastPolledAt,
		&args.CompletedAt,
		&job.UpdatedAt,
	}
}

// applyScanArgs copies the nullable columns into the job struct.
func applyScanArgs(job *Job, args *jobScanArgs) {
	if args.Phase.Valid {
		job.Phase = args.Phase.String
	}
	if args.ExternalID.Valid {
		job.ExternalID = args.ExternalID.String
	}
	if args.Payload.Valid {
		job.Payload = []byte(args.Payload.String)
	}
	if args.Result.Valid {
		job.Result = []byte(args.Result.String)
	}
	if args.ResultPath.Valid {
		job.ResultPath = args.ResultPath.String
	}
	if args.ErrorMsg.Valid {
		job.Error = args.ErrorMsg.String
	}
	if args.SubmittedAt.Valid {
		job.SubmittedAt = &args.SubmittedAt.Time
	}
	if args.LastPolledAt.Valid {
		job.LastPolledAt = &args.LastPolledAt.Time
	}
	if args.CompletedAt.Valid {
		job.CompletedAt = &args.CompletedAt.Time
	}
}

// scanJobFromRows scans a single job from sql.Rows (for use in loops).
func scanJobFromRows(rows *sql.Rows, job *Job) error {
	args := &jobScanArgs{}
	if err := rows.Scan(jobScanTargets(job, args)...); err != nil {
		return err
	}
	applyScanArgs(job, args)
	return nil
}

// jobSelectColumns is the standard column list for job SELECT queries.
func jobSelectColumns() string {
	return `id, handler_name, name, source, status, phase, external_id,
		payload, result, result_path, error, retry_count,
		created_at, submitted_at, last_polled_at, completed_at, updated_at`
}
