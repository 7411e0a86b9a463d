package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/blocks"
	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/shell"
	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/synchronization"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	event, err := shell.EventFromJSON(body)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	summaryID, err := s.events.Handle(r.Context(), event)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"summaryId": summaryID.String()})
}

func (s *Server) handlePatronBlocks(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	patronBlocks, err := s.blocks.BlocksForUser(r.Context(), userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string][]blocks.Block{"blocks": patronBlocks})
}

func (s *Server) handleConditionList(w http.ResponseWriter, r *http.Request) {
	conditions, err := s.conditions.AllConditions(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string][]core.Condition{"conditions": conditions})
}

func (s *Server) handleConditionGet(w http.ResponseWriter, r *http.Request) {
	conditionID, err := uuid.Parse(chi.URLParam(r, "conditionID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid condition id"})
		return
	}

	condition, err := s.conditions.GetCondition(r.Context(), conditionID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, condition)
}

// handleConditionUpdate edits the flags and message of one catalog
// entry. Name and identity are fixed: the stored name always wins.
func (s *Server) handleConditionUpdate(w http.ResponseWriter, r *http.Request) {
	conditionID, err := uuid.Parse(chi.URLParam(r, "conditionID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid condition id"})
		return
	}

	var edited core.Condition
	if err := jsonCodec.NewDecoder(r.Body).Decode(&edited); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	current, err := s.conditions.GetCondition(r.Context(), conditionID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	current.Message = edited.Message
	current.BlockFlags = edited.BlockFlags

	if err := current.Validate(); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if err := s.conditions.UpdateCondition(r.Context(), current); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, current)
}

// handleLimitList lists all limits, or one patron group's limits when the
// patronGroupId query parameter is given.
func (s *Server) handleLimitList(w http.ResponseWriter, r *http.Request) {
	var limits []storage.Limit
	var err error

	if raw := r.URL.Query().Get("patronGroupId"); raw != "" {
		patronGroupID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patronGroupId query parameter"})
			return
		}

		limits, err = s.limits.FindLimitsForPatronGroup(r.Context(), patronGroupID)
	} else {
		limits, err = s.limits.AllLimits(r.Context())
	}

	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string][]storage.Limit{"limits": limits})
}

func (s *Server) handleLimitGet(w http.ResponseWriter, r *http.Request) {
	limitID, err := uuid.Parse(chi.URLParam(r, "limitID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit id"})
		return
	}

	limit, err := s.limits.GetLimit(r.Context(), limitID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, limit)
}

func (s *Server) handleLimitCreate(w http.ResponseWriter, r *http.Request) {
	var limit storage.Limit
	if err := jsonCodec.NewDecoder(r.Body).Decode(&limit); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if limit.ID == uuid.Nil {
		limit.ID = uuid.New()
	}

	if err := validateLimit(limit); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if err := s.limits.SaveLimit(r.Context(), limit); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, limit)
}

func (s *Server) handleLimitUpdate(w http.ResponseWriter, r *http.Request) {
	limitID, err := uuid.Parse(chi.URLParam(r, "limitID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit id"})
		return
	}

	var limit storage.Limit
	if err := jsonCodec.NewDecoder(r.Body).Decode(&limit); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	limit.ID = limitID

	if err := validateLimit(limit); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	// Updating through SaveLimit would silently create; require existence.
	if _, err := s.limits.GetLimit(r.Context(), limitID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if err := s.limits.SaveLimit(r.Context(), limit); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, limit)
}

func (s *Server) handleLimitDelete(w http.ResponseWriter, r *http.Request) {
	limitID, err := uuid.Parse(chi.URLParam(r, "limitID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit id"})
		return
	}

	if err := s.limits.DeleteLimit(r.Context(), limitID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateLimit(limit storage.Limit) error {
	if limit.Value.IsNegative() {
		return ErrLimitValueNegative
	}

	if !core.KnownConditionID(limit.ConditionID) {
		return ErrLimitUnknownCondition
	}

	return nil
}

type jobRequest struct {
	Scope  synchronization.Scope `json:"scope"`
	UserID uuid.UUID             `json:"userId"`
}

func (s *Server) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	var request jobRequest
	if err := jsonCodec.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	jobID, err := s.sync.Request(r.Context(), request.Scope, request.UserID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"id": jobID.String()})
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return
	}

	job, err := s.sync.Job(r.Context(), jobID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, job)
}

// handleRun executes the oldest pending job inline. The periodic runner
// calls the same operation; this endpoint exists for operators who do
// not want to wait for the next tick.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.RunDue(r.Context()); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
