package http

import (
	"fmt"
	"net/http"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

// UpdateSyncTaskRequest is the body of PUT /sync-tasks/{id}
type UpdateSyncTaskRequest struct {
	Status string `json:"status" example:"stopped"`
}

// taskFilter parses the type and status query parameters
func taskFilter(r *http.Request) (domain.TaskFilter, error) {
	q := r.URL.Query()
	filter := domain.TaskFilter{
		Type:   domain.TaskType(q.Get("type")),
		Status: domain.TaskStatus(q.Get("status")),
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return filter, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, filter.Type)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return filter, fmt.Errorf("%w: unknown task status %q", domain.ErrValidation, filter.Status)
	}
	return filter, nil
}

// handleListSyncTasks godoc
// @Summary      List sync tasks
// @Description  Newest first, filtered by type and status
// @Tags         SyncTasks
// @Produce      json
// @Security     BearerAuth
// @Param        type    query  string  false  "Task type"
// @Param        status  query  string  false  "Task status"
// @Param        limit   query  int     false  "Page size"
// @Param        offset  query  int     false  "Page offset"
// @Success      200  {object}  driving.SyncTaskList
// @Failure      400  {object}  ErrorResponse
// @Router       /sync-tasks [get]
func (s *Server) handleListSyncTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := taskFilter(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if filter.Limit, filter.Offset, err = paging(r); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	list, err := s.syncTasks.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSyncTaskStats godoc
// @Summary      Count sync tasks per status
// @Tags         SyncTasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.TaskStats
// @Router       /sync-tasks/stats [get]
func (s *Server) handleSyncTaskStats(w http.ResponseWriter, r *http.Request) {
	filter, err := taskFilter(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	stats, err := s.syncTasks.Stats(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCreateSyncTask godoc
// @Summary      Create sync task
// @Description  Omitting record_ids targets every record whose channel can start
// @Tags         SyncTasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.CreateSyncTaskRequest  true  "Task"
// @Success      201      {object}  domain.SyncTask
// @Failure      400      {object}  ErrorResponse  "validation_error"
// @Failure      409      {object}  ErrorResponse  "conflict"
// @Failure      422      {object}  ErrorResponse  "precondition_not_met"
// @Failure      424      {object}  ErrorResponse  "configuration_missing"
// @Router       /sync-tasks [post]
func (s *Server) handleCreateSyncTask(w http.ResponseWriter, r *http.Request) {
	var req driving.CreateSyncTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	task, err := s.syncTasks.Create(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetSyncTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	task, err := s.syncTasks.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListSyncTaskItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	items, err := s.syncTasks.Items(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// handleUpdateSyncTask godoc
// @Summary      Pause, resume or retry a sync task
// @Description  status is stopped (or paused), running, or retry
// @Tags         SyncTasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                    true  "Task ID"
// @Param        request  body      UpdateSyncTaskRequest  true  "Requested status"
// @Success      200      {object}  domain.SyncTask
// @Failure      409      {object}  ErrorResponse  "Not allowed in the current status"
// @Router       /sync-tasks/{id} [put]
func (s *Server) handleUpdateSyncTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var req UpdateSyncTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	action, err := domain.ParseTaskAction(req.Status)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	task, err := s.syncTasks.Apply(r.Context(), id, action)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteSyncTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.syncTasks.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
