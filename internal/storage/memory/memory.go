// Package memory provides in-memory implementations of the store
// contracts. They back the unit tests and the local demo wiring; the
// production engine lives in the postgres package.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
)

// SummaryStore keeps patron summaries in a map guarded by a mutex.
// Summaries are copied on the way in and out so callers can never alias
// stored state.
type SummaryStore struct {
	mu        sync.Mutex
	summaries map[uuid.UUID]core.UserSummary
}

// NewSummaryStore creates an empty summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{summaries: make(map[uuid.UUID]core.UserSummary)}
}

// GetByID returns the summary with the given id.
func (s *SummaryStore) GetByID(_ context.Context, id uuid.UUID) (core.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, exists := s.summaries[id]
	if !exists {
		return core.UserSummary{}, storage.ErrNotFound
	}

	return copySummary(summary), nil
}

// GetByUserID returns the summary belonging to the given patron.
func (s *SummaryStore) GetByUserID(_ context.Context, userID uuid.UUID) (core.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, summary := range s.summaries {
		if summary.UserID == userID {
			return copySummary(summary), nil
		}
	}

	return core.UserSummary{}, storage.ErrNotFound
}

// FindByFeeFineID returns the summary holding the given open fee/fine.
func (s *SummaryStore) FindByFeeFineID(_ context.Context, feeFineID uuid.UUID) (core.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, summary := range s.summaries {
		if summary.ReferencesFeeFine(feeFineID) {
			return copySummary(summary), nil
		}
	}

	return core.UserSummary{}, storage.ErrNotFound
}

// Save inserts a fresh summary at version 1. A summary already stored for
// the same patron means a concurrent creator won the race.
func (s *SummaryStore) Save(_ context.Context, summary core.UserSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.summaries {
		if existing.UserID == summary.UserID {
			return storage.ErrVersionConflict
		}
	}

	summary.Version = 1
	s.summaries[summary.ID] = copySummary(summary)

	return nil
}

// Update performs the versioned write: the stored version must equal the
// version the caller read, otherwise nothing is written.
func (s *SummaryStore) Update(_ context.Context, summary core.UserSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.summaries[summary.ID]
	if !exists || stored.Version != summary.Version {
		return storage.ErrVersionConflict
	}

	summary.Version++
	s.summaries[summary.ID] = copySummary(summary)

	return nil
}

// DeleteByUserID removes the summary belonging to the given patron, if any.
func (s *SummaryStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, summary := range s.summaries {
		if summary.UserID == userID {
			delete(s.summaries, id)
		}
	}

	return nil
}

// DeleteAll wipes every summary.
func (s *SummaryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = make(map[uuid.UUID]core.UserSummary)

	return nil
}

func copySummary(summary core.UserSummary) core.UserSummary {
	loans := make([]core.OpenLoan, len(summary.OpenLoans))
	copy(loans, summary.OpenLoans)
	summary.OpenLoans = loans

	feesFines := make([]core.OpenFeeFine, len(summary.OpenFeesFines))
	copy(feesFines, summary.OpenFeesFines)
	summary.OpenFeesFines = feesFines

	return summary
}

type loggedEvent struct {
	id    uuid.UUID
	seq   int
	event core.Event
}

// EventLogStore keeps the append-only event log in memory.
type EventLogStore struct {
	mu      sync.Mutex
	events  []loggedEvent
	nextSeq int
}

// NewEventLogStore creates an empty event log.
func NewEventLogStore() *EventLogStore {
	return &EventLogStore{}
}

// Append adds an event to the log and returns its log entry id.
func (s *EventLogStore) Append(_ context.Context, event core.Event) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.events = append(s.events, loggedEvent{id: id, seq: s.nextSeq, event: event})
	s.nextSeq++

	return id, nil
}

// FindByUserID returns a patron's events ordered by occurrence time, with
// insertion order breaking ties.
func (s *EventLogStore) FindByUserID(_ context.Context, userID uuid.UUID) (core.Events, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matching := make([]loggedEvent, 0)
	for _, entry := range s.events {
		if entry.event.AffectsUser() == userID {
			matching = append(matching, entry)
		}
	}

	sort.SliceStable(matching, func(i, j int) bool {
		occurredI := matching[i].event.HasOccurredAt()
		occurredJ := matching[j].event.HasOccurredAt()
		if occurredI.Equal(occurredJ) {
			return matching[i].seq < matching[j].seq
		}
		return occurredI.Before(occurredJ)
	})

	events := make(core.Events, len(matching))
	for i, entry := range matching {
		events[i] = entry.event
	}

	return events, nil
}

// RemoveByUserID drops a patron's events from the log.
func (s *EventLogStore) RemoveByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := make([]loggedEvent, 0, len(s.events))
	for _, entry := range s.events {
		if entry.event.AffectsUser() != userID {
			remaining = append(remaining, entry)
		}
	}
	s.events = remaining

	return nil
}

// RemoveAll wipes the log.
func (s *EventLogStore) RemoveAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil

	return nil
}

// ConditionStore keeps the rule catalog in memory, seeded with the full
// default catalog.
type ConditionStore struct {
	mu         sync.Mutex
	conditions map[uuid.UUID]core.Condition
}

// NewConditionStore creates a catalog store seeded with the defaults.
func NewConditionStore() *ConditionStore {
	conditions := make(map[uuid.UUID]core.Condition)
	for _, condition := range core.DefaultConditions() {
		conditions[condition.ID] = condition
	}

	return &ConditionStore{conditions: conditions}
}

// GetCondition returns one catalog entry.
func (s *ConditionStore) GetCondition(_ context.Context, id uuid.UUID) (core.Condition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	condition, exists := s.conditions[id]
	if !exists {
		return core.Condition{}, storage.ErrNotFound
	}

	return condition, nil
}

// AllConditions returns the catalog ordered by name.
func (s *ConditionStore) AllConditions(_ context.Context) ([]core.Condition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conditions := make([]core.Condition, 0, len(s.conditions))
	for _, condition := range s.conditions {
		conditions = append(conditions, condition)
	}

	sort.Slice(conditions, func(i, j int) bool { return conditions[i].Name < conditions[j].Name })

	return conditions, nil
}

// UpdateCondition replaces the flags and message of one catalog entry.
func (s *ConditionStore) UpdateCondition(_ context.Context, condition core.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conditions[condition.ID]; !exists {
		return storage.ErrNotFound
	}

	s.conditions[condition.ID] = condition

	return nil
}

// RemoveCondition deletes a catalog entry outright. Only tests use this,
// to provoke the limit-references-missing-condition fault.
func (s *ConditionStore) RemoveCondition(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conditions, id)
}

// LimitStore keeps the per-patron-group thresholds in memory.
type LimitStore struct {
	mu     sync.Mutex
	limits map[uuid.UUID]storage.Limit
}

// NewLimitStore creates an empty limit store.
func NewLimitStore() *LimitStore {
	return &LimitStore{limits: make(map[uuid.UUID]storage.Limit)}
}

// GetLimit returns one limit by id.
func (s *LimitStore) GetLimit(_ context.Context, id uuid.UUID) (storage.Limit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit, exists := s.limits[id]
	if !exists {
		return storage.Limit{}, storage.ErrNotFound
	}

	return limit, nil
}

// FindLimitsForPatronGroup returns the limits configured for one group,
// ordered by condition id for deterministic evaluation order.
func (s *LimitStore) FindLimitsForPatronGroup(_ context.Context, patronGroupID uuid.UUID) ([]storage.Limit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits := make([]storage.Limit, 0)
	for _, limit := range s.limits {
		if limit.PatronGroupID == patronGroupID {
			limits = append(limits, limit)
		}
	}

	sort.Slice(limits, func(i, j int) bool {
		return limits[i].ConditionID.String() < limits[j].ConditionID.String()
	})

	return limits, nil
}

// AllLimits returns every configured limit, ordered by condition id then
// patron group id.
func (s *LimitStore) AllLimits(_ context.Context) ([]storage.Limit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits := make([]storage.Limit, 0, len(s.limits))
	for _, limit := range s.limits {
		limits = append(limits, limit)
	}

	sort.Slice(limits, func(i, j int) bool {
		if limits[i].ConditionID != limits[j].ConditionID {
			return limits[i].ConditionID.String() < limits[j].ConditionID.String()
		}
		return limits[i].PatronGroupID.String() < limits[j].PatronGroupID.String()
	})

	return limits, nil
}

// SaveLimit inserts or replaces a limit. A pair of condition and patron
// group holds at most one threshold.
func (s *LimitStore) SaveLimit(_ context.Context, limit storage.Limit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.limits {
		if existing.ID != limit.ID &&
			existing.ConditionID == limit.ConditionID &&
			existing.PatronGroupID == limit.PatronGroupID {

			return storage.ErrDuplicateLimit
		}
	}

	s.limits[limit.ID] = limit

	return nil
}

// DeleteLimit removes a limit by id.
func (s *LimitStore) DeleteLimit(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.limits[id]; !exists {
		return storage.ErrNotFound
	}

	delete(s.limits, id)

	return nil
}
