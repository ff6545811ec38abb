package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const deliveryTimeout = 5 * time.Second

// TaskSummary is the externally visible shape of a task state change.
type TaskSummary struct {
	TaskID  uuid.UUID `json:"task_id"`
	Message string    `json:"message"`
}

// EscalationDetails describes a task the automated engine gave up on.
type EscalationDetails struct {
	TaskID  uuid.UUID `json:"task_id"`
	Message string    `json:"message"`
}

// Gateway is the outbound notification contract. All methods are
// fire-and-forget: failures are logged by the implementation and never
// propagate to the caller.
type Gateway interface {
	NotifyArtist(ctx context.Context, artistID uuid.UUID, summary TaskSummary, kind string)
	NotifyClient(ctx context.Context, clientID uuid.UUID, summary TaskSummary, kind string)
	NotifyAdmin(ctx context.Context, details EscalationDetails)
}

// WebhookGateway posts notification events to an external delivery service.
type WebhookGateway struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewWebhookGateway returns a gateway delivering to the given base URL.
func NewWebhookGateway(baseURL string, logger *slog.Logger) *WebhookGateway {
	return &WebhookGateway{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: deliveryTimeout},
		Logger:     logger,
	}
}

type webhookEvent struct {
	Recipient string    `json:"recipient"`
	TargetID  uuid.UUID `json:"target_id"`
	Kind      string    `json:"kind"`
	TaskID    uuid.UUID `json:"task_id"`
	Message   string    `json:"message"`
}

func (g *WebhookGateway) NotifyArtist(ctx context.Context, artistID uuid.UUID, summary TaskSummary, kind string) {
	g.post(ctx, webhookEvent{Recipient: "artist", TargetID: artistID, Kind: kind, TaskID: summary.TaskID, Message: summary.Message})
}

func (g *WebhookGateway) NotifyClient(ctx context.Context, clientID uuid.UUID, summary TaskSummary, kind string) {
	g.post(ctx, webhookEvent{Recipient: "client", TargetID: clientID, Kind: kind, TaskID: summary.TaskID, Message: summary.Message})
}

func (g *WebhookGateway) NotifyAdmin(ctx context.Context, details EscalationDetails) {
	g.post(ctx, webhookEvent{Recipient: "admin", Kind: "task_escalated", TaskID: details.TaskID, Message: details.Message})
}

// post delivers one event. Errors are logged, never returned: the state
// transition that produced the event is already committed and authoritative.
func (g *WebhookGateway) post(ctx context.Context, ev webhookEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		g.Logger.Error("notification marshal failed", "kind", ev.Kind, "task_id", ev.TaskID, "error", err)
		return
	}
	url := fmt.Sprintf("%s/events", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		g.Logger.Error("notification request build failed", "kind", ev.Kind, "task_id", ev.TaskID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		g.Logger.Warn("notification delivery failed", "kind", ev.Kind, "task_id", ev.TaskID, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.Logger.Warn("notification delivery rejected", "kind", ev.Kind, "task_id", ev.TaskID, "status", resp.StatusCode)
	}
}

// LogGateway writes notifications to the log only. Used in development and
// when no delivery service is configured.
type LogGateway struct {
	Logger *slog.Logger
}

func (g *LogGateway) NotifyArtist(_ context.Context, artistID uuid.UUID, summary TaskSummary, kind string) {
	g.Logger.Info("notify artist", "artist_id", artistID, "kind", kind, "task_id", summary.TaskID)
}

func (g *LogGateway) NotifyClient(_ context.Context, clientID uuid.UUID, summary TaskSummary, kind string) {
	g.Logger.Info("notify client", "client_id", clientID, "kind", kind, "task_id", summary.TaskID)
}

func (g *LogGateway) NotifyAdmin(_ context.Context, details EscalationDetails) {
	g.Logger.Info("notify admin", "task_id", details.TaskID, "message", details.Message)
}
