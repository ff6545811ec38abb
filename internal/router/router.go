package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixelforge/backend/internal/handlers"
	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
)

// New returns the API handler. Session auth wraps everything under /v1;
// artist-facing routes additionally require the freelancer (or admin) role
// and /v1/admin requires admin.
func New(taskHandler *handlers.TaskHandler, adminHandler *handlers.AdminHandler, sessionSecret []byte) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.SessionAuth(sessionSecret)
	clientOnly := middleware.RequireRole(models.RoleClient, models.RoleAdmin)
	artistOnly := middleware.RequireRole(models.RoleFreelancer, models.RoleAdmin)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	mux.Handle("POST /v1/tasks", auth(clientOnly(http.HandlerFunc(taskHandler.CreateTask))))
	mux.Handle("GET /v1/tasks", auth(http.HandlerFunc(taskHandler.ListTasks)))
	mux.Handle("GET /v1/tasks/{id}", auth(http.HandlerFunc(taskHandler.GetTask)))
	mux.Handle("POST /v1/tasks/{id}/accept", auth(artistOnly(http.HandlerFunc(taskHandler.AcceptOffer))))
	mux.Handle("POST /v1/tasks/{id}/decline", auth(artistOnly(http.HandlerFunc(taskHandler.DeclineOffer))))

	mux.Handle("GET /v1/admin/tasks/unassignable", auth(adminOnly(http.HandlerFunc(adminHandler.ListUnassignable))))
	mux.Handle("GET /v1/admin/tasks/{id}/offers", auth(adminOnly(http.HandlerFunc(adminHandler.ListTaskOffers))))
	mux.Handle("POST /v1/admin/tasks/{id}/assign", auth(adminOnly(http.HandlerFunc(adminHandler.AssignTask))))
	mux.Handle("POST /v1/admin/tasks/{id}/requeue", auth(adminOnly(http.HandlerFunc(adminHandler.RequeueTask))))
	mux.Handle("GET /v1/admin/configs", auth(adminOnly(http.HandlerFunc(adminHandler.ListConfigs))))
	mux.Handle("GET /v1/admin/configs/active", auth(adminOnly(http.HandlerFunc(adminHandler.GetActiveConfig))))
	mux.Handle("POST /v1/admin/configs", auth(adminOnly(http.HandlerFunc(adminHandler.CreateConfig))))
	mux.Handle("PUT /v1/admin/configs/{id}", auth(adminOnly(http.HandlerFunc(adminHandler.UpdateConfig))))
	mux.Handle("POST /v1/admin/configs/{id}/publish", auth(adminOnly(http.HandlerFunc(adminHandler.PublishConfig))))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
