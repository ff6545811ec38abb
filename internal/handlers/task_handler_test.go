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
	"github.com/jackc/pgx/v5"

	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
	"github.com/pixelforge/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubTaskRepo struct {
	created *models.Task
	task    *models.Task
	err     error
}

func (s *stubTaskRepo) Create(_ context.Context, t *models.Task) error {
	s.created = t
	return s.err
}

func (s *stubTaskRepo) GetByID(_ context.Context, _ uuid.UUID) (*models.Task, error) {
	if s.task == nil {
		return nil, pgx.ErrNoRows
	}
	return s.task, s.err
}

func (s *stubTaskRepo) ListByClientID(_ context.Context, _ uuid.UUID) ([]*models.Task, error) {
	if s.task == nil {
		return nil, s.err
	}
	return []*models.Task{s.task}, s.err
}

type stubEngine struct {
	next       string
	acceptRes  *services.AcceptResult
	declineRes *services.DeclineResult
	err        error

	gotReason string
	gotNote   string
}

func (s *stubEngine) StartAssignment(_ context.Context, _ uuid.UUID) (string, error) {
	return s.next, s.err
}

func (s *stubEngine) AcceptOffer(_ context.Context, _ uuid.UUID, _ models.Actor) (*services.AcceptResult, error) {
	return s.acceptRes, s.err
}

func (s *stubEngine) DeclineOffer(_ context.Context, _ uuid.UUID, _ models.Actor, reason, note string) (*services.DeclineResult, error) {
	s.gotReason = reason
	s.gotNote = note
	return s.declineRes, s.err
}

func newTaskHandler(repo *stubTaskRepo, engine *stubEngine) *TaskHandler {
	return &TaskHandler{
		TaskRepo: repo,
		Engine:   engine,
		Logger:   slog.Default(),
	}
}

func authed(req *http.Request, role string) *http.Request {
	actor := &models.Actor{ID: uuid.New(), Role: role}
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func withTaskID(req *http.Request, id string) *http.Request {
	req.SetPathValue("id", id)
	return req
}

// ---------------------------------------------------------------------------
// CreateTask
// ---------------------------------------------------------------------------

func TestCreateTask_Accepted(t *testing.T) {
	repo := &stubTaskRepo{}
	engine := &stubEngine{next: services.NextOffered}
	h := newTaskHandler(repo, engine)

	body, _ := json.Marshal(map[string]any{
		"title":           "logo refresh",
		"category":        "branding",
		"required_skills": []string{"logo"},
		"complexity":      models.ComplexityBasic,
		"urgency":         models.UrgencyStandard,
	})
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader(body)), models.RoleClient)
	rec := httptest.NewRecorder()
	h.CreateTask(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.created == nil {
		t.Fatal("task must be persisted")
	}
	if repo.created.Status != models.TaskStatusPending || repo.created.EscalationLevel != models.EscalationLevelBestFit {
		t.Fatalf("persisted task = %s level %d, want pending level 1", repo.created.Status, repo.created.EscalationLevel)
	}

	var resp createTaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NextAction != services.NextOffered {
		t.Errorf("next_action = %q, want %q", resp.NextAction, services.NextOffered)
	}
}

func TestCreateTask_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"complexity": models.ComplexityBasic, "urgency": models.UrgencyRush}},
		{"unknown complexity", map[string]any{"title": "x", "complexity": "herculean", "urgency": models.UrgencyRush}},
		{"unknown urgency", map[string]any{"title": "x", "complexity": models.ComplexityBasic, "urgency": "whenever"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTaskHandler(&stubTaskRepo{}, &stubEngine{})
			body, _ := json.Marshal(tc.body)
			req := authed(httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader(body)), models.RoleClient)
			rec := httptest.NewRecorder()
			h.CreateTask(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestCreateTask_Unauthenticated(t *testing.T) {
	h := newTaskHandler(&stubTaskRepo{}, &stubEngine{})
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.CreateTask(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// GetTask
// ---------------------------------------------------------------------------

func TestGetTask_NotFound(t *testing.T) {
	h := newTaskHandler(&stubTaskRepo{}, &stubEngine{})
	req := withTaskID(httptest.NewRequest(http.MethodGet, "/v1/tasks/x", nil), uuid.New().String())
	rec := httptest.NewRecorder()
	h.GetTask(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetTask_InvalidID(t *testing.T) {
	h := newTaskHandler(&stubTaskRepo{}, &stubEngine{})
	req := withTaskID(httptest.NewRequest(http.MethodGet, "/v1/tasks/garbage", nil), "garbage")
	rec := httptest.NewRecorder()
	h.GetTask(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Accept / Decline status mapping
// ---------------------------------------------------------------------------

func TestAcceptOffer_OK(t *testing.T) {
	taskID := uuid.New()
	engine := &stubEngine{acceptRes: &services.AcceptResult{TaskID: taskID, NewStatus: models.TaskStatusAssigned}}
	h := newTaskHandler(&stubTaskRepo{}, engine)

	req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/tasks/x/accept", nil), taskID.String()), models.RoleFreelancer)
	rec := httptest.NewRecorder()
	h.AcceptOffer(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp services.AcceptResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NewStatus != models.TaskStatusAssigned {
		t.Errorf("new_status = %q, want assigned", resp.NewStatus)
	}
}

func TestDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind services.ErrorKind
		want int
	}{
		{services.KindUnauthorized, http.StatusUnauthorized},
		{services.KindForbidden, http.StatusForbidden},
		{services.KindNotFound, http.StatusNotFound},
		{services.KindInvalidState, http.StatusConflict},
		{services.KindExpired, http.StatusGone},
		{services.KindValidation, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			engine := &stubEngine{err: services.NewError(tc.kind, "boom")}
			h := newTaskHandler(&stubTaskRepo{}, engine)

			req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/tasks/x/accept", nil), uuid.New().String()), models.RoleFreelancer)
			rec := httptest.NewRecorder()
			h.AcceptOffer(rec, req)

			if rec.Code != tc.want {
				t.Errorf("kind %s: expected %d, got %d", tc.kind, tc.want, rec.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["kind"] != string(tc.kind) {
				t.Errorf("kind in body = %q, want %q", resp["kind"], tc.kind)
			}
		})
	}
}

func TestDeclineOffer_ForwardsReasonAndNote(t *testing.T) {
	engine := &stubEngine{declineRes: &services.DeclineResult{NextAction: services.NextBroadcast}}
	h := newTaskHandler(&stubTaskRepo{}, engine)

	body, _ := json.Marshal(declineRequest{Reason: models.DeclineReasonTooBusy, Note: "fully booked"})
	req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/tasks/x/decline", bytes.NewReader(body)), uuid.New().String()), models.RoleFreelancer)
	rec := httptest.NewRecorder()
	h.DeclineOffer(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if engine.gotReason != models.DeclineReasonTooBusy || engine.gotNote != "fully booked" {
		t.Errorf("forwarded reason/note = %q/%q", engine.gotReason, engine.gotNote)
	}
	var resp services.DeclineResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NextAction != services.NextBroadcast {
		t.Errorf("next_action = %q, want broadcast", resp.NextAction)
	}
}

func TestDeclineOffer_EmptyBodyAllowed(t *testing.T) {
	engine := &stubEngine{declineRes: &services.DeclineResult{NextAction: services.NextOffered}}
	h := newTaskHandler(&stubTaskRepo{}, engine)

	req := authed(withTaskID(httptest.NewRequest(http.MethodPost, "/v1/tasks/x/decline", nil), uuid.New().String()), models.RoleFreelancer)
	rec := httptest.NewRecorder()
	h.DeclineOffer(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if engine.gotReason != "" || engine.gotNote != "" {
		t.Errorf("empty body must forward empty reason/note, got %q/%q", engine.gotReason, engine.gotNote)
	}
}
