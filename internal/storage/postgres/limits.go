package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/libcirc/patronblocks/internal/storage"
)

// LimitStore persists the per-patron-group thresholds.
type LimitStore struct {
	engine *Engine
}

// GetLimit returns one limit by id.
func (s *LimitStore) GetLimit(ctx context.Context, id uuid.UUID) (storage.Limit, error) {
	sqlQuery, _, err := dialect.From(tableLimits).
		Select(goqu.C(colPayload)).
		Where(goqu.C(colID).Eq(id.String())).
		ToSQL()
	if err != nil {
		return storage.Limit{}, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := s.engine.query(ctx, "limit_get", sqlQuery)
	if err != nil {
		return storage.Limit{}, err
	}
	defer s.engine.closeRows(rows)

	if !rows.Next() {
		return storage.Limit{}, storage.ErrNotFound
	}

	return scanLimit(rows.Scan)
}

// FindLimitsForPatronGroup returns the limits configured for one group,
// ordered by condition id for deterministic evaluation order.
func (s *LimitStore) FindLimitsForPatronGroup(ctx context.Context, patronGroupID uuid.UUID) ([]storage.Limit, error) {
	sqlQuery, _, err := dialect.From(tableLimits).
		Select(goqu.C(colPayload)).
		Where(goqu.C(colPatronGroupID).Eq(patronGroupID.String())).
		Order(goqu.C(colConditionID).Asc()).
		ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := s.engine.query(ctx, "limit_find_for_patron_group", sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.engine.closeRows(rows)

	limits := make([]storage.Limit, 0)
	for rows.Next() {
		limit, err := scanLimit(rows.Scan)
		if err != nil {
			return nil, err
		}

		limits = append(limits, limit)
	}

	return limits, nil
}

// AllLimits returns every configured limit, ordered by condition id then
// patron group id.
func (s *LimitStore) AllLimits(ctx context.Context) ([]storage.Limit, error) {
	sqlQuery, _, err := dialect.From(tableLimits).
		Select(goqu.C(colPayload)).
		Order(goqu.C(colConditionID).Asc(), goqu.C(colPatronGroupID).Asc()).
		ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := s.engine.query(ctx, "limit_all", sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.engine.closeRows(rows)

	limits := make([]storage.Limit, 0)
	for rows.Next() {
		limit, err := scanLimit(rows.Scan)
		if err != nil {
			return nil, err
		}

		limits = append(limits, limit)
	}

	return limits, nil
}

// SaveLimit inserts or replaces a limit. The unique index on the
// (patron group, condition) pair rejects a second limit for the same
// pair, reported as ErrDuplicateLimit.
func (s *LimitStore) SaveLimit(ctx context.Context, limit storage.Limit) error {
	payload, err := jsonCodec.MarshalToString(limit)
	if err != nil {
		return errors.Join(ErrDocumentCodecFailed, err)
	}

	sqlQuery, _, err := dialect.Insert(tableLimits).
		Rows(goqu.Record{
			colID:            limit.ID.String(),
			colConditionID:   limit.ConditionID.String(),
			colPatronGroupID: limit.PatronGroupID.String(),
			colPayload:       goqu.L("?::jsonb", payload),
		}).
		OnConflict(goqu.DoUpdate(colID, goqu.Record{
			colConditionID:   limit.ConditionID.String(),
			colPatronGroupID: limit.PatronGroupID.String(),
			colPayload:       goqu.L("?::jsonb", payload),
		})).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	if _, err := s.engine.exec(ctx, "limit_save", sqlQuery); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateLimit
		}

		return err
	}

	return nil
}

// isUniqueViolation recognizes SQLSTATE 23505 from either driver family.
func isUniqueViolation(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == "23505"
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return false
}

// DeleteLimit removes a limit by id.
func (s *LimitStore) DeleteLimit(ctx context.Context, id uuid.UUID) error {
	sqlQuery, _, err := dialect.Delete(tableLimits).
		Where(goqu.C(colID).Eq(id.String())).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	rowsAffected, err := s.engine.exec(ctx, "limit_delete", sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func scanLimit(scan func(dest ...any) error) (storage.Limit, error) {
	var payload []byte
	if err := scan(&payload); err != nil {
		return storage.Limit{}, errors.Join(ErrScanningRowFailed, err)
	}

	var limit storage.Limit
	if err := jsonCodec.Unmarshal(payload, &limit); err != nil {
		return storage.Limit{}, errors.Join(ErrDocumentCodecFailed, err)
	}

	return limit, nil
}
