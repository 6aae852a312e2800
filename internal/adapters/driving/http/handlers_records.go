package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// SyncRecordRequest is the body of POST /records/{id}/sync
type SyncRecordRequest struct {
	Type domain.TaskType `json:"type" example:"github_sync"`
}

// recordFilter parses the record listing query. Status filters accept a
// comma-separated list, the parameter repeated, or both.
func recordFilter(r *http.Request) (domain.RecordFilter, error) {
	q := r.URL.Query()
	var filter domain.RecordFilter

	for _, ch := range domain.AllChannels() {
		param := string(ch) + "_sync_status"
		var statuses []domain.ChannelStatus
		for _, raw := range q[param] {
			for _, v := range strings.Split(raw, ",") {
				v = strings.TrimSpace(v)
				if v == "" {
					continue
				}
				st := domain.ChannelStatus(v)
				if !st.IsValid() {
					return filter, fmt.Errorf("%w: unknown %s %q", domain.ErrValidation, param, v)
				}
				statuses = append(statuses, st)
			}
		}
		filter.SetStatuses(ch, statuses)
	}

	if raw := q.Get("problem_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, fmt.Errorf("%w: invalid problem_id %q", domain.ErrValidation, raw)
		}
		filter.ProblemID = id
	}
	filter.Language = strings.TrimSpace(q.Get("language"))

	switch sort := domain.RecordSort(q.Get("sort")); sort {
	case "", domain.SortDescending:
		filter.Sort = domain.SortDescending
	case domain.SortAscending:
		filter.Sort = sort
	default:
		return filter, fmt.Errorf("%w: sort must be asc or desc", domain.ErrValidation)
	}

	var err error
	filter.Limit, filter.Offset, err = paging(r)
	return filter, err
}

// handleListRecords godoc
// @Summary      List records
// @Description  Each *_sync_status filter matches any of its values
// @Tags         Records
// @Produce      json
// @Security     BearerAuth
// @Param        oj_sync_status      query  string  false  "e.g. completed,failed"
// @Param        github_sync_status  query  string  false  "e.g. pending"
// @Param        ai_sync_status      query  string  false  "e.g. synced"
// @Param        notion_sync_status  query  string  false  "e.g. failed"
// @Param        problem_id          query  int     false  "Problem ID"
// @Param        language            query  string  false  "Language, case-insensitive"
// @Param        sort                query  string  false  "asc or desc by submit time (default desc)"
// @Success      200  {object}  driving.RecordList
// @Router       /records [get]
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := recordFilter(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	list, err := s.records.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateRecord godoc
// @Summary      Create record
// @Description  Stores a submission with every channel pending
// @Tags         Records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.Submission  true  "Submission"
// @Success      201      {object}  domain.Record
// @Failure      409      {object}  ErrorResponse  "Submission already stored"
// @Router       /records [post]
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var sub domain.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	record, err := s.records.Create(r.Context(), sub)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	record, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.records.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleSyncRecord godoc
// @Summary      Sync one record
// @Description  Creates a single-record task of the given type
// @Tags         Records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                true  "Record ID"
// @Param        request  body      SyncRecordRequest  true  "Task type"
// @Success      201      {object}  domain.SyncTask
// @Router       /records/{id}/sync [post]
func (s *Server) handleSyncRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var req SyncRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	task, err := s.records.Sync(r.Context(), id, req.Type)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}
