package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
	"github.com/pixelforge/backend/internal/services"
)

// UnassignableLister lists tasks awaiting manual resolution.
type UnassignableLister interface {
	ListByStatus(ctx context.Context, status string) ([]*models.Task, error)
}

// ConfigAdmin abstracts the configuration service for the admin routes.
type ConfigAdmin interface {
	GetActive(ctx context.Context) (*models.AlgorithmConfig, error)
	List(ctx context.Context) ([]*models.AlgorithmConfig, error)
	Create(ctx context.Context, params services.ConfigParams, actor models.Actor) (*models.AlgorithmConfig, error)
	Update(ctx context.Context, id uuid.UUID, params services.ConfigParams, actor models.Actor) (*models.AlgorithmConfig, error)
	Publish(ctx context.Context, id uuid.UUID, actor models.Actor) error
}

// ManualAssigner is the admin path past the engine's terminal failure state:
// bind an artist directly, or requeue the task through the automated cascade.
type ManualAssigner interface {
	AdminAssign(ctx context.Context, taskID, artistID uuid.UUID, actor models.Actor) (*services.AcceptResult, error)
	AdminRequeue(ctx context.Context, taskID uuid.UUID, actor models.Actor) (string, error)
}

// OfferHistory exposes a task's full offer ledger for audit.
type OfferHistory interface {
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Offer, error)
}

// AdminHandler serves the /v1/admin endpoints.
type AdminHandler struct {
	Tasks    UnassignableLister
	Offers   OfferHistory
	Configs  ConfigAdmin
	Assigner ManualAssigner
	Logger   *slog.Logger
}

// --- GET /v1/admin/tasks/unassignable ---

func (h *AdminHandler) ListUnassignable(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListByStatus(r.Context(), models.TaskStatusUnassignable)
	if err != nil {
		h.Logger.Error("list unassignable tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// --- GET /v1/admin/tasks/{id}/offers ---

// ListTaskOffers returns the task's complete offer history, including the
// score breakdown behind every selection.
func (h *AdminHandler) ListTaskOffers(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathTaskID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	offers, err := h.Offers.ListByTask(r.Context(), taskID)
	if err != nil {
		h.Logger.Error("list task offers", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

// --- POST /v1/admin/tasks/{id}/assign ---

type adminAssignRequest struct {
	ArtistID string `json:"artist_id"`
}

func (h *AdminHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathTaskID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	var req adminAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	artistID, err := uuid.Parse(req.ArtistID)
	if err != nil {
		http.Error(w, `{"error":"invalid artist_id"}`, http.StatusBadRequest)
		return
	}

	result, err := h.Assigner.AdminAssign(r.Context(), taskID, artistID, *actor)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("admin assign", "task_id", taskID, "artist_id", artistID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- POST /v1/admin/tasks/{id}/requeue ---

// RequeueTask resets an unassignable task to pending and reruns offer
// selection. Useful after the artist pool changed.
func (h *AdminHandler) RequeueTask(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathTaskID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	next, err := h.Assigner.AdminRequeue(r.Context(), taskID, *actor)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("admin requeue", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"next_action": next})
}

// --- GET /v1/admin/configs/active ---

func (h *AdminHandler) GetActiveConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.GetActive(r.Context())
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("get active config", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- GET /v1/admin/configs ---

func (h *AdminHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Configs.List(r.Context())
	if err != nil {
		h.Logger.Error("list configs", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// --- POST /v1/admin/configs ---

func (h *AdminHandler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var params services.ConfigParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	cfg, err := h.Configs.Create(r.Context(), params, *actor)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("create config", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// --- PUT /v1/admin/configs/{id} ---

func (h *AdminHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid config id"}`, http.StatusBadRequest)
		return
	}
	var params services.ConfigParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	cfg, err := h.Configs.Update(r.Context(), id, params, *actor)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("update config", "config_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- POST /v1/admin/configs/{id}/publish ---

func (h *AdminHandler) PublishConfig(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid config id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Configs.Publish(r.Context(), id, *actor); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.Logger.Error("publish config", "config_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "published"})
}
