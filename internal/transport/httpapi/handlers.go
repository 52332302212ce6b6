package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"road-monitor/internal/domain"
	"road-monitor/internal/ingest"
	"road-monitor/internal/store"
)

// handleIngest accepts a JSON array of classified records, persists it
// all-or-nothing, and answers with the persisted rows in input order.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw []domain.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON array of records: "+err.Error())
		return
	}

	persisted, err := s.service.Ingest(r.Context(), raw)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		var pErr *ingest.PersistenceError
		if errors.As(err, &pErr) {
			s.logger.Error("batch persistence failed", zap.Int("batch", len(raw)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to persist batch")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if persisted == nil {
		persisted = []domain.PersistedRecord{}
	}
	writeJSON(w, http.StatusOK, persisted)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List(r.Context())
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if records == nil {
		records = []domain.PersistedRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "data not found")
		return
	}
	if err != nil {
		s.logger.Error("get record failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var raw domain.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON record: "+err.Error())
		return
	}
	records, err := domain.ValidateBatch([]domain.RawRecord{raw})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.records.Update(r.Context(), id, records[0])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "data not found")
		return
	}
	if err != nil {
		s.logger.Error("update record failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "data not found")
		return
	}
	if err != nil {
		s.logger.Error("delete record failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}
