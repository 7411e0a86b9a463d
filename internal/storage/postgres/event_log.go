package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/shell"
)

// EventLogStore persists the append-only circulation event log. Events
// are stored as jsonb payloads next to the columns the replay query
// filters and orders on.
type EventLogStore struct {
	engine *Engine
}

// Append adds an event to the log and returns its log entry id.
func (s *EventLogStore) Append(ctx context.Context, event core.Event) (uuid.UUID, error) {
	id := uuid.New()

	sqlQuery, err := buildEventInsert(id, event)
	if err != nil {
		return uuid.Nil, err
	}

	if _, err := s.engine.exec(ctx, "event_append", sqlQuery); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// FindByUserID returns a patron's events ordered by occurrence time,
// with insertion order breaking ties.
func (s *EventLogStore) FindByUserID(ctx context.Context, userID uuid.UUID) (core.Events, error) {
	sqlQuery, err := buildEventSelectByUserID(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.engine.query(ctx, "event_find_by_user_id", sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.engine.closeRows(rows)

	events := make(core.Events, 0)
	for rows.Next() {
		var eventType string
		var payload []byte
		if err := rows.Scan(&eventType, &payload); err != nil {
			return nil, errors.Join(ErrScanningRowFailed, err)
		}

		event, err := shell.UnmarshalEvent(eventType, payload)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, nil
}

// RemoveByUserID drops a patron's events from the log.
func (s *EventLogStore) RemoveByUserID(ctx context.Context, userID uuid.UUID) error {
	sqlQuery, _, err := dialect.Delete(tableEventLog).
		Where(goqu.C(colUserID).Eq(userID.String())).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	_, err = s.engine.exec(ctx, "event_remove_by_user_id", sqlQuery)

	return err
}

// RemoveAll wipes the log.
func (s *EventLogStore) RemoveAll(ctx context.Context) error {
	sqlQuery, _, err := dialect.Delete(tableEventLog).ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	_, err = s.engine.exec(ctx, "event_remove_all", sqlQuery)

	return err
}

func buildEventInsert(id uuid.UUID, event core.Event) (string, error) {
	payload, err := shell.MarshalEvent(event)
	if err != nil {
		return "", err
	}

	record := goqu.Record{
		colID:        id.String(),
		colEventType: event.IsEventType(),
		colPayload:   goqu.L("?::jsonb", string(payload)),
	}

	// Balance events may carry no patron id; the column stays NULL so the
	// per-patron replay never picks them up under the wrong key.
	if userID := event.AffectsUser(); userID != uuid.Nil {
		record[colUserID] = userID.String()
	}

	if occurredAt := event.HasOccurredAt(); !occurredAt.IsZero() {
		record[colOccurredAt] = occurredAt
	}

	sqlQuery, _, err := dialect.Insert(tableEventLog).Rows(record).ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func buildEventSelectByUserID(userID uuid.UUID) (string, error) {
	sqlQuery, _, err := dialect.From(tableEventLog).
		Select(goqu.C(colEventType), goqu.C(colPayload)).
		Where(goqu.C(colUserID).Eq(userID.String())).
		Order(goqu.C(colOccurredAt).Asc(), goqu.C(colSeq).Asc()).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}
