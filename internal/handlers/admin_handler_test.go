package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/pixelforge/backend/internal/models"
	"github.com/pixelforge/backend/internal/services"
)

type stubUnassignableLister struct {
	tasks []*models.Task
}

func (s *stubUnassignableLister) ListByStatus(_ context.Context, status string) ([]*models.Task, error) {
	if status != models.TaskStatusUnassignable {
		return nil, nil
	}
	return s.tasks, nil
}

type stubConfigAdmin struct {
	active  *models.AlgorithmConfig
	created *models.AlgorithmConfig
	err     error
}

func (s *stubConfigAdmin) GetActive(context.Context) (*models.AlgorithmConfig, error) {
	if s.active == nil {
		return nil, services.NewError(services.KindNotFound, "no active configuration")
	}
	return s.active, nil
}

func (s *stubConfigAdmin) List(context.Context) ([]*models.AlgorithmConfig, error) {
	return nil, nil
}

func (s *stubConfigAdmin) Create(_ context.Context, _ services.ConfigParams, _ models.Actor) (*models.AlgorithmConfig, error) {
	return s.created, s.err
}

func (s *stubConfigAdmin) Update(_ context.Context, _ uuid.UUID, _ services.ConfigParams, _ models.Actor) (*models.AlgorithmConfig, error) {
	return s.created, s.err
}

func (s *stubConfigAdmin) Publish(context.Context, uuid.UUID, models.Actor) error {
	return s.err
}

type stubOfferHistory struct {
	offers []*models.Offer
}

func (s *stubOfferHistory) ListByTask(_ context.Context, taskID uuid.UUID) ([]*models.Offer, error) {
	var out []*models.Offer
	for _, o := range s.offers {
		if o.TaskID == taskID {
			out = append(out, o)
		}
	}
	return out, nil
}

type stubAssigner struct {
	result *services.AcceptResult
	next   string
	err    error
}

func (s *stubAssigner) AdminAssign(_ context.Context, _, _ uuid.UUID, _ models.Actor) (*services.AcceptResult, error) {
	return s.result, s.err
}

func (s *stubAssigner) AdminRequeue(_ context.Context, _ uuid.UUID, _ models.Actor) (string, error) {
	return s.next, s.err
}

func newAdminHandler(lister *stubUnassignableLister, cfgs *stubConfigAdmin, assigner *stubAssigner) *AdminHandler {
	return &AdminHandler{
		Tasks:    lister,
		Offers:   &stubOfferHistory{},
		Configs:  cfgs,
		Assigner: assigner,
		Logger:   slog.Default(),
	}
}

func TestListUnassignable(t *testing.T) {
	task := &models.Task{ID: uuid.New(), Status: models.TaskStatusUnassignable, EscalationLevel: models.EscalationLevelAdmin}
	h := newAdminHandler(&stubUnassignableLister{tasks: []*models.Task{task}}, &stubConfigAdmin{}, &stubAssigner{})

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/admin/tasks/unassignable", nil), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.ListUnassignable(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tasks []*models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestListTaskOffers(t *testing.T) {
	taskID := uuid.New()
	h := newAdminHandler(&stubUnassignableLister{}, &stubConfigAdmin{}, &stubAssigner{})
	h.Offers = &stubOfferHistory{offers: []*models.Offer{
		{ID: uuid.New(), TaskID: taskID, EscalationLevel: models.EscalationLevelBestFit, Response: models.OfferResponseDeclined},
		{ID: uuid.New(), TaskID: taskID, EscalationLevel: models.EscalationLevelRelaxed, Response: models.OfferResponseAccepted},
		{ID: uuid.New(), TaskID: uuid.New(), Response: models.OfferResponsePending},
	}}

	req := authed(withTaskID(httptest.NewRequest(http.MethodGet, "/v1/admin/tasks/x/offers", nil), taskID.String()), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.ListTaskOffers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var offers []*models.Offer
	if err := json.Unmarshal(rec.Body.Bytes(), &offers); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(offers) != 2 {
		t.Errorf("offers = %d, want the 2 for this task", len(offers))
	}
}

func TestAssignTask_OK(t *testing.T) {
	taskID := uuid.New()
	assigner := &stubAssigner{result: &services.AcceptResult{TaskID: taskID, NewStatus: models.TaskStatusAssigned}}
	h := newAdminHandler(&stubUnassignableLister{}, &stubConfigAdmin{}, assigner)

	body, _ := json.Marshal(adminAssignRequest{ArtistID: uuid.New().String()})
	req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/admin/tasks/x/assign", bytes.NewReader(body)), taskID.String()), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.AssignTask(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAssignTask_BadArtistID(t *testing.T) {
	h := newAdminHandler(&stubUnassignableLister{}, &stubConfigAdmin{}, &stubAssigner{})

	body := []byte(`{"artist_id":"not-a-uuid"}`)
	req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/admin/tasks/x/assign", bytes.NewReader(body)), uuid.New().String()), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.AssignTask(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAssignTask_InvalidState(t *testing.T) {
	assigner := &stubAssigner{err: services.NewError(services.KindInvalidState, "task is not awaiting manual assignment")}
	h := newAdminHandler(&stubUnassignableLister{}, &stubConfigAdmin{}, assigner)

	body, _ := json.Marshal(adminAssignRequest{ArtistID: uuid.New().String()})
	req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/admin/tasks/x/assign", bytes.NewReader(body)), uuid.New().String()), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.AssignTask(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestRequeueTask_OK(t *testing.T) {
	assigner := &stubAssigner{next: services.NextOffered}
	h := newAdminHandler(&stubUnassignableLister{}, &stubConfigAdmin{}, assigner)

	req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/admin/tasks/x/requeue", nil), uuid.New().String()), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.RequeueTask(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["next_action"] != services.NextOffered {
		t.Errorf("next_action = %q, want offered", resp["next_action"])
	}
}

func TestGetActiveConfig_NotFound(t *testing.T) {
	h := newAdminHandler(&stubUnassignableLister{}, &stubConfigAdmin{}, &stubAssigner{})

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/admin/configs/active", nil), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.GetActiveConfig(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCreateConfig_ValidationMapsTo422(t *testing.T) {
	cfgs := &stubConfigAdmin{err: services.NewError(services.KindValidation, "weights must sum to 100")}
	h := newAdminHandler(&stubUnassignableLister{}, cfgs, &stubAssigner{})

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/admin/configs", bytes.NewReader([]byte(`{}`))), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.CreateConfig(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestPublishConfig_OK(t *testing.T) {
	h := newAdminHandler(&stubUnassignableLister{}, &stubConfigAdmin{}, &stubAssigner{})

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/admin/configs/x/publish", nil), models.RoleAdmin)
	req.SetPathValue("id", uuid.New().String())
	rec := httptest.NewRecorder()
	h.PublishConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "published" {
		t.Errorf("status = %q, want published", resp["status"])
	}
}
