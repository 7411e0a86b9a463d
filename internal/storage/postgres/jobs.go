package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/synchronization"
)

// JobStore persists synchronization jobs. The status column is kept next
// to the payload so the scheduler queries never parse documents.
type JobStore struct {
	engine *Engine
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(ctx context.Context, job synchronization.Job) error {
	payload, err := jsonCodec.MarshalToString(job)
	if err != nil {
		return errors.Join(ErrDocumentCodecFailed, err)
	}

	sqlQuery, _, err := dialect.Insert(tableSyncJobs).
		Rows(goqu.Record{
			colID:      job.ID.String(),
			colStatus:  string(job.Status),
			colPayload: goqu.L("?::jsonb", payload),
		}).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	_, err = s.engine.exec(ctx, "job_create", sqlQuery)

	return err
}

// GetJob returns one job by id.
func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (synchronization.Job, error) {
	sqlQuery, _, err := dialect.From(tableSyncJobs).
		Select(goqu.C(colPayload)).
		Where(goqu.C(colID).Eq(id.String())).
		ToSQL()
	if err != nil {
		return synchronization.Job{}, errors.Join(ErrBuildingQueryFailed, err)
	}

	return s.querySingle(ctx, "job_get", sqlQuery)
}

// UpdateJob replaces a stored job.
func (s *JobStore) UpdateJob(ctx context.Context, job synchronization.Job) error {
	payload, err := jsonCodec.MarshalToString(job)
	if err != nil {
		return errors.Join(ErrDocumentCodecFailed, err)
	}

	sqlQuery, _, err := dialect.Update(tableSyncJobs).
		Set(goqu.Record{
			colStatus:  string(job.Status),
			colPayload: goqu.L("?::jsonb", payload),
		}).
		Where(goqu.C(colID).Eq(job.ID.String())).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	rowsAffected, err := s.engine.exec(ctx, "job_update", sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// OldestOpenJob returns the OPEN job that has waited longest.
func (s *JobStore) OldestOpenJob(ctx context.Context) (synchronization.Job, error) {
	sqlQuery, _, err := dialect.From(tableSyncJobs).
		Select(goqu.C(colPayload)).
		Where(goqu.C(colStatus).Eq(string(synchronization.StatusOpen))).
		Order(goqu.C(colSeq).Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return synchronization.Job{}, errors.Join(ErrBuildingQueryFailed, err)
	}

	return s.querySingle(ctx, "job_oldest_open", sqlQuery)
}

// ClaimJob transitions a job from OPEN to IN_PROGRESS. The write is
// status-guarded like the summary store's versioned update: zero rows
// affected means another runner claimed the job first.
func (s *JobStore) ClaimJob(ctx context.Context, id uuid.UUID) error {
	sqlQuery, err := buildJobClaim(id)
	if err != nil {
		return err
	}

	rowsAffected, err := s.engine.exec(ctx, "job_claim", sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		s.engine.countConflict(ctx)
		return storage.ErrVersionConflict
	}

	return nil
}

// InProgressJobExists reports whether any job is currently running.
func (s *JobStore) InProgressJobExists(ctx context.Context) (bool, error) {
	sqlQuery, _, err := dialect.From(tableSyncJobs).
		Select(goqu.C(colID)).
		Where(goqu.C(colStatus).Eq(string(synchronization.StatusInProgress))).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := s.engine.query(ctx, "job_in_progress_exists", sqlQuery)
	if err != nil {
		return false, err
	}
	defer s.engine.closeRows(rows)

	return rows.Next(), nil
}

// buildJobClaim guards the status transition in the statement itself and
// keeps the payload's status field in step with the column.
func buildJobClaim(id uuid.UUID) (string, error) {
	inProgress := string(synchronization.StatusInProgress)

	sqlQuery, _, err := dialect.Update(tableSyncJobs).
		Set(goqu.Record{
			colStatus:  inProgress,
			colPayload: goqu.L("jsonb_set(?, '{status}', ?::jsonb)", goqu.C(colPayload), `"`+inProgress+`"`),
		}).
		Where(
			goqu.C(colID).Eq(id.String()),
			goqu.C(colStatus).Eq(string(synchronization.StatusOpen)),
		).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func (s *JobStore) querySingle(ctx context.Context, operation string, sqlQuery string) (synchronization.Job, error) {
	rows, err := s.engine.query(ctx, operation, sqlQuery)
	if err != nil {
		return synchronization.Job{}, err
	}
	defer s.engine.closeRows(rows)

	if !rows.Next() {
		return synchronization.Job{}, storage.ErrNotFound
	}

	var payload []byte
	if err := rows.Scan(&payload); err != nil {
		return synchronization.Job{}, errors.Join(ErrScanningRowFailed, err)
	}

	var job synchronization.Job
	if err := jsonCodec.Unmarshal(payload, &job); err != nil {
		return synchronization.Job{}, errors.Join(ErrDocumentCodecFailed, err)
	}

	return job, nil
}
