package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/pixelforge/backend/internal/notify"
)

// Notification kinds carried by outbox jobs.
const (
	NotifyKindOfferReceived  = "offer_received"
	NotifyKindOfferBroadcast = "offer_broadcast"
	NotifyKindTaskAssigned   = "task_assigned"
	NotifyKindTaskEscalated  = "task_escalated"
	NotifyKindOfferExpired   = "offer_expired"
)

// SendNotificationArgs is the transactional-outbox job payload. The engine
// inserts these with river.Client.InsertTx inside the same transaction as the
// state change, so a notification is enqueued iff the transition committed.
type SendNotificationArgs struct {
	NotifyKind string     `json:"kind"`
	TaskID     uuid.UUID  `json:"task_id"`
	ArtistID   *uuid.UUID `json:"artist_id,omitempty"`
	ClientID   *uuid.UUID `json:"client_id,omitempty"`
	Message    string     `json:"message"`
}

func (SendNotificationArgs) Kind() string { return "send_notification" }

// NotificationWorker drains outbox jobs through the notification gateway.
// Gateway failures are the gateway's problem to log; they never resurrect
// the originating state transition.
type NotificationWorker struct {
	river.WorkerDefaults[SendNotificationArgs]
	gateway notify.Gateway
}

// NewNotificationWorker returns a worker that delivers through gw.
func NewNotificationWorker(gw notify.Gateway) *NotificationWorker {
	return &NotificationWorker{gateway: gw}
}

func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[SendNotificationArgs]) error {
	args := job.Args
	summary := notify.TaskSummary{TaskID: args.TaskID, Message: args.Message}

	switch args.NotifyKind {
	case NotifyKindTaskEscalated:
		w.gateway.NotifyAdmin(ctx, notify.EscalationDetails{TaskID: args.TaskID, Message: args.Message})
	case NotifyKindTaskAssigned:
		if args.ClientID != nil {
			w.gateway.NotifyClient(ctx, *args.ClientID, summary, args.NotifyKind)
		}
		if args.ArtistID != nil {
			w.gateway.NotifyArtist(ctx, *args.ArtistID, summary, args.NotifyKind)
		}
	default:
		if args.ArtistID != nil {
			w.gateway.NotifyArtist(ctx, *args.ArtistID, summary, args.NotifyKind)
		}
	}
	return nil
}
