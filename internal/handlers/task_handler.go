package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
	"github.com/pixelforge/backend/internal/services"
)

// TaskRepoForHandler is the subset of the task repository needed here.
type TaskRepoForHandler interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*models.Task, error)
}

// AssignmentEngine abstracts the state machine operations the task routes invoke.
type AssignmentEngine interface {
	StartAssignment(ctx context.Context, taskID uuid.UUID) (string, error)
	AcceptOffer(ctx context.Context, taskID uuid.UUID, actor models.Actor) (*services.AcceptResult, error)
	DeclineOffer(ctx context.Context, taskID uuid.UUID, actor models.Actor, reason, note string) (*services.DeclineResult, error)
}

// TaskHandler serves /v1/tasks endpoints.
type TaskHandler struct {
	TaskRepo TaskRepoForHandler
	Engine   AssignmentEngine
	Logger   *slog.Logger
}

// --- POST /v1/tasks ---

type createTaskRequest struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Category             string     `json:"category"`
	RequiredSkills       []string   `json:"required_skills"`
	Complexity           string     `json:"complexity"`
	Urgency              string     `json:"urgency"`
	ClientTimezoneOffset int        `json:"client_timezone_offset"`
	Deadline             *time.Time `json:"deadline,omitempty"`
}

type createTaskResponse struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	NextAction string `json:"next_action"`
}

// CreateTask handles POST /v1/tasks: persist the pending task, then run the
// first offer selection.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	if !models.ValidComplexity(req.Complexity) {
		http.Error(w, `{"error":"unknown complexity"}`, http.StatusBadRequest)
		return
	}
	if !models.ValidUrgency(req.Urgency) {
		http.Error(w, `{"error":"unknown urgency"}`, http.StatusBadRequest)
		return
	}

	task := &models.Task{
		ID:                   uuid.New(),
		ClientID:             actor.ID,
		Title:                req.Title,
		Description:          req.Description,
		Category:             req.Category,
		RequiredSkills:       req.RequiredSkills,
		Complexity:           req.Complexity,
		Urgency:              req.Urgency,
		ClientTimezoneOffset: req.ClientTimezoneOffset,
		Deadline:             req.Deadline,
		Status:               models.TaskStatusPending,
		EscalationLevel:      models.EscalationLevelBestFit,
	}
	if err := h.TaskRepo.Create(r.Context(), task); err != nil {
		h.Logger.Error("create task", "error", err)
		http.Error(w, `{"error":"failed to create task"}`, http.StatusInternalServerError)
		return
	}

	next, err := h.Engine.StartAssignment(r.Context(), task.ID)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("start assignment", "task_id", task.ID, "error", err)
		http.Error(w, `{"error":"failed to start assignment"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, createTaskResponse{
		TaskID:     task.ID.String(),
		Status:     models.TaskStatusPending,
		NextAction: next,
	})
}

// --- GET /v1/tasks/{id} ---

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTaskID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	task, err := h.TaskRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get task", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- GET /v1/tasks ---

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tasks, err := h.TaskRepo.ListByClientID(r.Context(), actor.ID)
	if err != nil {
		h.Logger.Error("list tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// --- POST /v1/tasks/{id}/accept ---

func (h *TaskHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathTaskID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	result, err := h.Engine.AcceptOffer(r.Context(), id, *actor)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("accept offer", "task_id", id, "artist_id", actor.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- POST /v1/tasks/{id}/decline ---

type declineRequest struct {
	Reason string `json:"reason,omitempty"`
	Note   string `json:"note,omitempty"`
}

func (h *TaskHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathTaskID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	var req declineRequest
	if r.Body != nil {
		// A bare decline with no body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.Engine.DeclineOffer(r.Context(), id, *actor, req.Reason, req.Note)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("decline offer", "task_id", id, "artist_id", actor.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- helpers ---

func pathTaskID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// writeDomainError maps a services.Error to its transport status. Returns
// false when err is not a domain error.
func writeDomainError(w http.ResponseWriter, err error) bool {
	var de *services.Error
	if !errors.As(err, &de) {
		return false
	}
	status := http.StatusInternalServerError
	switch de.Kind {
	case services.KindUnauthorized:
		status = http.StatusUnauthorized
	case services.KindForbidden:
		status = http.StatusForbidden
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindInvalidState:
		status = http.StatusConflict
	case services.KindExpired:
		status = http.StatusGone
	case services.KindValidation:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": de.Message, "kind": string(de.Kind)})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
