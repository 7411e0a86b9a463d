package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
)

// ConditionStore persists the rule catalog. The rows are seeded by the
// schema; only their payload ever changes.
type ConditionStore struct {
	engine *Engine
}

// GetCondition returns one catalog entry.
func (s *ConditionStore) GetCondition(ctx context.Context, id uuid.UUID) (core.Condition, error) {
	sqlQuery, _, err := dialect.From(tableConditions).
		Select(goqu.C(colPayload)).
		Where(goqu.C(colID).Eq(id.String())).
		ToSQL()
	if err != nil {
		return core.Condition{}, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := s.engine.query(ctx, "condition_get", sqlQuery)
	if err != nil {
		return core.Condition{}, err
	}
	defer s.engine.closeRows(rows)

	if !rows.Next() {
		return core.Condition{}, storage.ErrNotFound
	}

	return scanCondition(rows.Scan)
}

// AllConditions returns the catalog ordered by name.
func (s *ConditionStore) AllConditions(ctx context.Context) ([]core.Condition, error) {
	sqlQuery, _, err := dialect.From(tableConditions).
		Select(goqu.C(colPayload)).
		Order(goqu.L("? ->> 'name'", goqu.C(colPayload)).Asc()).
		ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := s.engine.query(ctx, "condition_all", sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.engine.closeRows(rows)

	conditions := make([]core.Condition, 0)
	for rows.Next() {
		condition, err := scanCondition(rows.Scan)
		if err != nil {
			return nil, err
		}

		conditions = append(conditions, condition)
	}

	return conditions, nil
}

// UpdateCondition replaces the flags and message of one catalog entry.
func (s *ConditionStore) UpdateCondition(ctx context.Context, condition core.Condition) error {
	payload, err := jsonCodec.MarshalToString(condition)
	if err != nil {
		return errors.Join(ErrDocumentCodecFailed, err)
	}

	sqlQuery, _, err := dialect.Update(tableConditions).
		Set(goqu.Record{colPayload: goqu.L("?::jsonb", payload)}).
		Where(goqu.C(colID).Eq(condition.ID.String())).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	rowsAffected, err := s.engine.exec(ctx, "condition_update", sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func scanCondition(scan func(dest ...any) error) (core.Condition, error) {
	var payload []byte
	if err := scan(&payload); err != nil {
		return core.Condition{}, errors.Join(ErrScanningRowFailed, err)
	}

	var condition core.Condition
	if err := jsonCodec.Unmarshal(payload, &condition); err != nil {
		return core.Condition{}, errors.Join(ErrDocumentCodecFailed, err)
	}

	return condition, nil
}
