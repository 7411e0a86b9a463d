package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
)

// SummaryStore persists patron summaries as jsonb documents with a
// version column driving the optimistic concurrency check.
type SummaryStore struct {
	engine *Engine
}

// GetByID returns the summary with the given id.
func (s *SummaryStore) GetByID(ctx context.Context, id uuid.UUID) (core.UserSummary, error) {
	sqlQuery, err := buildSummarySelect(goqu.C(colID).Eq(id.String()))
	if err != nil {
		return core.UserSummary{}, err
	}

	return s.querySingle(ctx, "summary_get_by_id", sqlQuery)
}

// GetByUserID returns the summary belonging to the given patron.
func (s *SummaryStore) GetByUserID(ctx context.Context, userID uuid.UUID) (core.UserSummary, error) {
	sqlQuery, err := buildSummarySelect(goqu.C(colUserID).Eq(userID.String()))
	if err != nil {
		return core.UserSummary{}, err
	}

	return s.querySingle(ctx, "summary_get_by_user_id", sqlQuery)
}

// FindByFeeFineID resolves the summary holding an open fee/fine account
// through a jsonb containment predicate on the payload.
func (s *SummaryStore) FindByFeeFineID(ctx context.Context, feeFineID uuid.UUID) (core.UserSummary, error) {
	sqlQuery, err := buildSummarySelectByFeeFineID(feeFineID)
	if err != nil {
		return core.UserSummary{}, err
	}

	return s.querySingle(ctx, "summary_find_by_fee_fine_id", sqlQuery)
}

// Save inserts a fresh summary at version 1. A conflicting row means a
// concurrent creator won the race, reported as ErrVersionConflict.
func (s *SummaryStore) Save(ctx context.Context, summary core.UserSummary) error {
	sqlQuery, err := buildSummaryInsert(summary)
	if err != nil {
		return err
	}

	rowsAffected, err := s.engine.exec(ctx, "summary_save", sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		s.engine.countConflict(ctx)
		return storage.ErrVersionConflict
	}

	return nil
}

// Update performs the versioned write: the row is only touched when its
// stored version still equals the version the caller read.
func (s *SummaryStore) Update(ctx context.Context, summary core.UserSummary) error {
	sqlQuery, err := buildSummaryUpdate(summary)
	if err != nil {
		return err
	}

	rowsAffected, err := s.engine.exec(ctx, "summary_update", sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		s.engine.countConflict(ctx)
		return storage.ErrVersionConflict
	}

	return nil
}

// DeleteByUserID removes the summary belonging to the given patron, if any.
func (s *SummaryStore) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	sqlQuery, _, err := dialect.Delete(tableUserSummaries).
		Where(goqu.C(colUserID).Eq(userID.String())).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	_, err = s.engine.exec(ctx, "summary_delete_by_user_id", sqlQuery)

	return err
}

// DeleteAll wipes every summary.
func (s *SummaryStore) DeleteAll(ctx context.Context) error {
	sqlQuery, _, err := dialect.Delete(tableUserSummaries).ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	_, err = s.engine.exec(ctx, "summary_delete_all", sqlQuery)

	return err
}

func (s *SummaryStore) querySingle(ctx context.Context, operation string, sqlQuery string) (core.UserSummary, error) {
	rows, err := s.engine.query(ctx, operation, sqlQuery)
	if err != nil {
		return core.UserSummary{}, err
	}
	defer s.engine.closeRows(rows)

	if !rows.Next() {
		return core.UserSummary{}, storage.ErrNotFound
	}

	var payload []byte
	var version int64
	if err := rows.Scan(&payload, &version); err != nil {
		return core.UserSummary{}, errors.Join(ErrScanningRowFailed, err)
	}

	var summary core.UserSummary
	if err := jsonCodec.Unmarshal(payload, &summary); err != nil {
		return core.UserSummary{}, errors.Join(ErrDocumentCodecFailed, err)
	}
	summary.Version = version

	return summary, nil
}

func buildSummarySelect(condition goqu.Expression) (string, error) {
	sqlQuery, _, err := dialect.From(tableUserSummaries).
		Select(goqu.C(colPayload), goqu.C(colVersion)).
		Where(condition).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func buildSummarySelectByFeeFineID(feeFineID uuid.UUID) (string, error) {
	containment, err := jsonCodec.MarshalToString(map[string]any{
		"openFeesFines": []map[string]string{{"feeFineId": feeFineID.String()}},
	})
	if err != nil {
		return "", errors.Join(ErrDocumentCodecFailed, err)
	}

	return buildSummarySelect(goqu.L("? @> ?::jsonb", goqu.C(colPayload), containment))
}

func buildSummaryInsert(summary core.UserSummary) (string, error) {
	payload, err := jsonCodec.MarshalToString(summary)
	if err != nil {
		return "", errors.Join(ErrDocumentCodecFailed, err)
	}

	sqlQuery, _, err := dialect.Insert(tableUserSummaries).
		Rows(goqu.Record{
			colID:      summary.ID.String(),
			colUserID:  summary.UserID.String(),
			colPayload: goqu.L("?::jsonb", payload),
			colVersion: 1,
		}).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func buildSummaryUpdate(summary core.UserSummary) (string, error) {
	payload, err := jsonCodec.MarshalToString(summary)
	if err != nil {
		return "", errors.Join(ErrDocumentCodecFailed, err)
	}

	sqlQuery, _, err := dialect.Update(tableUserSummaries).
		Set(goqu.Record{
			colPayload: goqu.L("?::jsonb", payload),
			colVersion: goqu.L("? + 1", goqu.C(colVersion)),
		}).
		Where(
			goqu.C(colID).Eq(summary.ID.String()),
			goqu.C(colVersion).Eq(summary.Version),
		).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}
