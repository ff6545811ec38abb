package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pixelforge/backend/internal/jobs"
	"github.com/pixelforge/backend/internal/metrics"
	"github.com/pixelforge/backend/internal/models"
)

// NextAction is the outcome of the re-offer cascade after a decline or expiry.
const (
	NextOffered   = "offered"
	NextBroadcast = "broadcast"
	NextEscalated = "escalated_to_admin"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TaskStore is the task repository interface used by the state machine. All
// mutating access goes through the Tx variants so the row lock is held.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	ListExpiredOfferIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListExpiredBroadcastIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// OfferLedger is the append-only offer record interface.
type OfferLedger interface {
	CreateTx(ctx context.Context, tx pgx.Tx, o *models.Offer) error
	ListArtistIDsByTaskTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) ([]uuid.UUID, error)
	GetPendingTx(ctx context.Context, tx pgx.Tx, taskID, artistID uuid.UUID) (*models.Offer, error)
	MarkResponseTx(ctx context.Context, tx pgx.Tx, taskID, artistID uuid.UUID, response string, reason, note *string, respondedAt time.Time) (bool, error)
	CountByTaskLevelTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, level int) (int, error)
	ExpirePendingTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, respondedAt time.Time) (int, error)
}

// ArtistDirectory is the artist-side interface used on acceptance and manual
// assignment.
type ArtistDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artist, error)
	MarkAssignedTx(ctx context.Context, tx pgx.Tx, artistID, clientID uuid.UUID) error
}

// ConfigSource yields the single active algorithm configuration. It is
// read-only at scoring/escalation time.
type ConfigSource interface {
	GetActive(ctx context.Context) (*models.AlgorithmConfig, error)
}

// ActivityLog is the write-only audit collaborator.
type ActivityLog interface {
	AppendTx(ctx context.Context, tx pgx.Tx, e *models.ActivityEntry) error
}

// EnqueueNotificationTx inserts a notification outbox job inside the given
// transaction. Typically a closure over river.Client.InsertTx.
type EnqueueNotificationTx func(ctx context.Context, tx pgx.Tx, args jobs.SendNotificationArgs) error

// AcceptResult is returned from a successful acceptance.
type AcceptResult struct {
	TaskID    uuid.UUID `json:"task_id"`
	NewStatus string    `json:"new_status"`
}

// DeclineResult reports which cascade branch followed the decline.
type DeclineResult struct {
	NextAction string `json:"next_action"`
}

// AssignmentService owns the task assignment state machine. Every
// state-changing operation runs in one transaction that locks the task row
// before reading status/offeredTo/expiry, so competing accepts, declines, and
// sweeps serialize on the row and the loser fails its precondition check
// instead of double-assigning.
type AssignmentService struct {
	Pool     TxBeginner
	Tasks    TaskStore
	Offers   OfferLedger
	Artists  ArtistDirectory
	Configs  ConfigSource
	Activity ActivityLog
	Ranker   *Ranker
	Enqueue  EnqueueNotificationTx
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewAssignmentService wires the state machine.
func NewAssignmentService(
	pool TxBeginner,
	tasks TaskStore,
	offers OfferLedger,
	artists ArtistDirectory,
	configs ConfigSource,
	activity ActivityLog,
	ranker *Ranker,
	enqueue EnqueueNotificationTx,
	logger *slog.Logger,
) *AssignmentService {
	return &AssignmentService{
		Pool:     pool,
		Tasks:    tasks,
		Offers:   offers,
		Artists:  artists,
		Configs:  configs,
		Activity: activity,
		Ranker:   ranker,
		Enqueue:  enqueue,
		Logger:   logger,
		Now:      time.Now,
	}
}

// StartAssignment runs the first offer selection for a pending task.
// Returns the cascade outcome ("offered", "broadcast", or
// "escalated_to_admin").
func (s *AssignmentService) StartAssignment(ctx context.Context, taskID uuid.UUID) (string, error) {
	cfg, err := s.Configs.GetActive(ctx)
	if err != nil {
		return "", fmt.Errorf("load active config: %w", err)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.lockTask(ctx, tx, taskID)
	if err != nil {
		return "", err
	}
	if task.Status != models.TaskStatusPending {
		return "", NewError(KindInvalidState, "task %s is not pending", taskID)
	}

	next, err := s.advanceLocked(ctx, tx, task, cfg)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// AcceptOffer handles both direct-offer acceptance (task offered to this
// artist, unexpired) and broadcast acceptance (task pending at level 3 with
// the caller's own unexpired pending offer). First transaction to take the
// row lock wins; everyone else sees "offer no longer valid".
func (s *AssignmentService) AcceptOffer(ctx context.Context, taskID uuid.UUID, actor models.Actor) (*AcceptResult, error) {
	if err := requireArtistRole(actor); err != nil {
		return nil, err
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.lockTask(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	switch {
	case task.Status == models.TaskStatusOffered:
		if task.OfferedTo == nil || *task.OfferedTo != actor.ID {
			return nil, NewError(KindForbidden, "task %s is not offered to artist %s", taskID, actor.ID)
		}
		// Late accept on an expired offer is rejected without mutation;
		// the sweep owns the expiry transition.
		if task.OfferExpiresAt != nil && now.After(*task.OfferExpiresAt) {
			return nil, NewError(KindExpired, "offer on task %s expired at %s", taskID, task.OfferExpiresAt.Format(time.RFC3339))
		}
		ok, err := s.Offers.MarkResponseTx(ctx, tx, taskID, actor.ID, models.OfferResponseAccepted, nil, nil, now)
		if err != nil {
			return nil, fmt.Errorf("mark offer accepted: %w", err)
		}
		if !ok {
			return nil, ErrOfferNoLongerValid()
		}

	case task.Status == models.TaskStatusPending && task.EscalationLevel == models.EscalationLevelBroadcast:
		offer, err := s.Offers.GetPendingTx(ctx, tx, taskID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("get pending broadcast offer: %w", err)
		}
		if offer == nil {
			return nil, ErrOfferNoLongerValid()
		}
		if now.After(offer.ExpiresAt) {
			return nil, NewError(KindExpired, "broadcast offer on task %s expired at %s", taskID, offer.ExpiresAt.Format(time.RFC3339))
		}
		ok, err := s.Offers.MarkResponseTx(ctx, tx, taskID, actor.ID, models.OfferResponseAccepted, nil, nil, now)
		if err != nil {
			return nil, fmt.Errorf("mark broadcast offer accepted: %w", err)
		}
		if !ok {
			return nil, ErrOfferNoLongerValid()
		}
		// First accept wins: the rest of the fan-out is closed out.
		if _, err := s.Offers.ExpirePendingTx(ctx, tx, taskID, now); err != nil {
			return nil, fmt.Errorf("expire broadcast losers: %w", err)
		}

	default:
		return nil, ErrOfferNoLongerValid()
	}

	prev := task.Status
	task.Status = models.TaskStatusAssigned
	task.FreelancerID = &actor.ID
	task.OfferedTo = nil
	task.OfferExpiresAt = nil
	task.AssignedAt = &now
	if err := s.Tasks.UpdateTx(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := s.Artists.MarkAssignedTx(ctx, tx, actor.ID, task.ClientID); err != nil {
		return nil, fmt.Errorf("mark artist assigned: %w", err)
	}
	if err := s.appendActivity(ctx, tx, task, &actor.ID, models.ActorTypeArtist, models.ActionOfferAccepted, prev); err != nil {
		return nil, err
	}
	if err := s.Enqueue(ctx, tx, jobs.SendNotificationArgs{
		NotifyKind: jobs.NotifyKindTaskAssigned,
		TaskID:     task.ID,
		ArtistID:   &actor.ID,
		ClientID:   &task.ClientID,
		Message:    fmt.Sprintf("%q was assigned", task.Title),
	}); err != nil {
		return nil, fmt.Errorf("enqueue assignment notification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	metrics.OfferResponses.WithLabelValues(models.OfferResponseAccepted).Inc()
	s.Logger.Info("offer accepted", "task_id", task.ID, "artist_id", actor.ID)
	return &AcceptResult{TaskID: task.ID, NewStatus: task.Status}, nil
}

// DeclineOffer records the decline and immediately re-enters offer selection.
// Exactly one of "offered", "broadcast", or "escalated_to_admin" is returned
// for downstream notification dispatch.
func (s *AssignmentService) DeclineOffer(ctx context.Context, taskID uuid.UUID, actor models.Actor, reason, note string) (*DeclineResult, error) {
	if err := requireArtistRole(actor); err != nil {
		return nil, err
	}
	if reason != "" && !models.ValidDeclineReason(reason) {
		return nil, NewError(KindValidation, "unknown decline reason %q", reason)
	}

	cfg, err := s.Configs.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active config: %w", err)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.lockTask(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	switch {
	case task.Status == models.TaskStatusOffered:
		if task.OfferedTo == nil || *task.OfferedTo != actor.ID {
			return nil, NewError(KindForbidden, "task %s is not offered to artist %s", taskID, actor.ID)
		}
		// Same rule as a late accept: past the window the sweep owns the
		// transition, and the ledger must record expired, not declined.
		if task.OfferExpiresAt != nil && now.After(*task.OfferExpiresAt) {
			return nil, NewError(KindExpired, "offer on task %s expired at %s", taskID, task.OfferExpiresAt.Format(time.RFC3339))
		}
	case task.Status == models.TaskStatusPending && task.EscalationLevel == models.EscalationLevelBroadcast:
		// Broadcast declines just need a live pending offer from this artist.
	default:
		return nil, ErrOfferNoLongerValid()
	}

	ok, err := s.Offers.MarkResponseTx(ctx, tx, taskID, actor.ID, models.OfferResponseDeclined, optional(reason), optional(note), now)
	if err != nil {
		return nil, fmt.Errorf("mark offer declined: %w", err)
	}
	if !ok {
		return nil, ErrOfferNoLongerValid()
	}

	prev := task.Status
	var next string
	if task.Status == models.TaskStatusOffered {
		// Direct offer declined: clear the offer fields and re-select.
		task.Status = models.TaskStatusPending
		task.OfferedTo = nil
		task.OfferExpiresAt = nil
		if err := s.appendActivity(ctx, tx, task, &actor.ID, models.ActorTypeArtist, models.ActionOfferDeclined, prev); err != nil {
			return nil, err
		}
		next, err = s.advanceLocked(ctx, tx, task, cfg)
		if err != nil {
			return nil, err
		}
	} else {
		if err := s.appendActivity(ctx, tx, task, &actor.ID, models.ActorTypeArtist, models.ActionOfferDeclined, prev); err != nil {
			return nil, err
		}
		// Broadcast decline: if anyone in the fan-out still holds a live
		// pending offer the broadcast continues; otherwise re-select, which
		// escalates to admin when the pool is exhausted.
		next, err = s.afterBroadcastDeclineLocked(ctx, tx, task, cfg, now)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	metrics.OfferResponses.WithLabelValues(models.OfferResponseDeclined).Inc()
	s.Logger.Info("offer declined", "task_id", task.ID, "artist_id", actor.ID, "reason", reason, "next", next)
	return &DeclineResult{NextAction: next}, nil
}

// SweepExpiredOffers processes every task whose offer window has passed:
// expired direct offers follow the decline cascade with reason "expired";
// level-3 tasks whose broadcast window closed without an acceptance escalate
// to admin. Returns the number of tasks processed. Invoked by the periodic
// river job.
func (s *AssignmentService) SweepExpiredOffers(ctx context.Context) (int, error) {
	cfg, err := s.Configs.GetActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active config: %w", err)
	}
	now := s.Now()
	count := 0

	direct, err := s.Tasks.ListExpiredOfferIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired offers: %w", err)
	}
	for _, id := range direct {
		if err := s.expireDirectOffer(ctx, id, cfg); err != nil {
			s.Logger.Error("sweep: expire direct offer failed", "task_id", id, "error", err)
			continue
		}
		count++
	}

	broadcast, err := s.Tasks.ListExpiredBroadcastIDs(ctx, now)
	if err != nil {
		return count, fmt.Errorf("list expired broadcasts: %w", err)
	}
	for _, id := range broadcast {
		if err := s.expireBroadcast(ctx, id); err != nil {
			s.Logger.Error("sweep: close broadcast failed", "task_id", id, "error", err)
			continue
		}
		count++
	}

	metrics.SweepProcessed.Add(float64(count))
	return count, nil
}

// expireDirectOffer treats one expired direct offer identically to a decline
// with reason "expired". The candidate list is rechecked under the lock, so a
// task accepted between the sweep's scan and this transaction is skipped.
func (s *AssignmentService) expireDirectOffer(ctx context.Context, taskID uuid.UUID, cfg *models.AlgorithmConfig) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.lockTask(ctx, tx, taskID)
	if err != nil {
		return err
	}
	now := s.Now()
	if task.Status != models.TaskStatusOffered || task.OfferedTo == nil || task.OfferExpiresAt == nil || now.Before(*task.OfferExpiresAt) {
		return nil // resolved meanwhile
	}

	artistID := *task.OfferedTo
	reason := models.DeclineReasonExpired
	ok, err := s.Offers.MarkResponseTx(ctx, tx, taskID, artistID, models.OfferResponseExpired, &reason, nil, now)
	if err != nil {
		return fmt.Errorf("mark offer expired: %w", err)
	}
	if !ok {
		return nil // ledger already terminal; nothing to cascade
	}
	if err := s.appendActivity(ctx, tx, task, &artistID, models.ActorTypeSystem, models.ActionOfferExpired, task.Status); err != nil {
		return err
	}
	if err := s.Enqueue(ctx, tx, jobs.SendNotificationArgs{
		NotifyKind: jobs.NotifyKindOfferExpired,
		TaskID:     task.ID,
		ArtistID:   &artistID,
		Message:    fmt.Sprintf("offer on %q expired", task.Title),
	}); err != nil {
		return fmt.Errorf("enqueue expiry notification: %w", err)
	}

	task.Status = models.TaskStatusPending
	task.OfferedTo = nil
	task.OfferExpiresAt = nil
	if _, err := s.advanceLocked(ctx, tx, task, cfg); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.OfferResponses.WithLabelValues(models.OfferResponseExpired).Inc()
	return nil
}

// expireBroadcast closes a level-3 task whose broadcast window passed with no
// acceptance: all remaining pending offers become expired and the task
// escalates to admin.
func (s *AssignmentService) expireBroadcast(ctx context.Context, taskID uuid.UUID) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.lockTask(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusPending || task.EscalationLevel != models.EscalationLevelBroadcast {
		return nil // resolved meanwhile
	}
	now := s.Now()
	if _, err := s.Offers.ExpirePendingTx(ctx, tx, taskID, now); err != nil {
		return fmt.Errorf("expire broadcast offers: %w", err)
	}
	if err := s.escalateToAdminLocked(ctx, tx, task); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AdminAssign lets an admin resolve an unassignable task by binding it to a
// chosen artist directly. This is the manual path past the automated engine's
// terminal failure state.
func (s *AssignmentService) AdminAssign(ctx context.Context, taskID, artistID uuid.UUID, actor models.Actor) (*AcceptResult, error) {
	if actor.Role != models.RoleAdmin {
		return nil, NewError(KindForbidden, "admin role required")
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.lockTask(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusUnassignable {
		return nil, NewError(KindInvalidState, "task %s is not awaiting manual assignment", taskID)
	}

	artist, err := s.Artists.GetByID(ctx, artistID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, "artist %s not found", artistID)
		}
		return nil, fmt.Errorf("get artist: %w", err)
	}
	if artist.Suspended {
		return nil, NewError(KindValidation, "artist %s is suspended", artistID)
	}

	now := s.Now()
	prev := task.Status
	task.Status = models.TaskStatusAssigned
	task.FreelancerID = &artistID
	task.AssignedAt = &now
	if err := s.Tasks.UpdateTx(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := s.Artists.MarkAssignedTx(ctx, tx, artistID, task.ClientID); err != nil {
		return nil, fmt.Errorf("mark artist assigned: %w", err)
	}
	if err := s.appendActivity(ctx, tx, task, &actor.ID, models.ActorTypeAdmin, models.ActionManualReassign, prev); err != nil {
		return nil, err
	}
	if err := s.Enqueue(ctx, tx, jobs.SendNotificationArgs{
		NotifyKind: jobs.NotifyKindTaskAssigned,
		TaskID:     task.ID,
		ArtistID:   &artistID,
		ClientID:   &task.ClientID,
		Message:    fmt.Sprintf("%q was assigned by an administrator", task.Title),
	}); err != nil {
		return nil, fmt.Errorf("enqueue assignment notification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.Logger.Info("task manually assigned", "task_id", task.ID, "artist_id", artistID, "admin_id", actor.ID)
	return &AcceptResult{TaskID: task.ID, NewStatus: task.Status}, nil
}

// AdminRequeue resets an unassignable task to pending at level 1 and reruns
// offer selection. Previously offered artists stay excluded, so a requeue only
// moves the task when the pool has changed since the escalation.
func (s *AssignmentService) AdminRequeue(ctx context.Context, taskID uuid.UUID, actor models.Actor) (string, error) {
	if actor.Role != models.RoleAdmin {
		return "", NewError(KindForbidden, "admin role required")
	}
	cfg, err := s.Configs.GetActive(ctx)
	if err != nil {
		return "", fmt.Errorf("load active config: %w", err)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.lockTask(ctx, tx, taskID)
	if err != nil {
		return "", err
	}
	if task.Status != models.TaskStatusUnassignable {
		return "", NewError(KindInvalidState, "task %s is not awaiting manual assignment", taskID)
	}

	prev := task.Status
	task.Status = models.TaskStatusPending
	task.EscalationLevel = models.EscalationLevelBestFit
	if err := s.appendActivity(ctx, tx, task, &actor.ID, models.ActorTypeAdmin, models.ActionRequeued, prev); err != nil {
		return "", err
	}
	next, err := s.advanceLocked(ctx, tx, task, cfg)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	s.Logger.Info("task requeued", "task_id", task.ID, "admin_id", actor.ID, "next", next)
	return next, nil
}

// advanceLocked runs offer selection for a pending task whose row lock is
// already held: check per-level caps, rank at the (possibly raised) level
// excluding everyone previously offered, and either create the next direct
// offer, start a broadcast, or escalate to admin. The escalation level only
// ever moves up here.
func (s *AssignmentService) advanceLocked(ctx context.Context, tx pgx.Tx, task *models.Task, cfg *models.AlgorithmConfig) (string, error) {
	now := s.Now()

	prevOffered, err := s.Offers.ListArtistIDsByTaskTx(ctx, tx, task.ID)
	if err != nil {
		return "", fmt.Errorf("list previously offered: %w", err)
	}
	already := make(map[uuid.UUID]bool, len(prevOffered))
	for _, id := range prevOffered {
		already[id] = true
	}

	level := task.EscalationLevel
	if level < models.EscalationLevelBestFit {
		level = models.EscalationLevelBestFit
	}
	if level < models.EscalationLevelBroadcast {
		count, err := s.Offers.CountByTaskLevelTx(ctx, tx, task.ID, level)
		if err != nil {
			return "", fmt.Errorf("count offers at level: %w", err)
		}
		if count >= cfg.MaxOffersAtLevel(level) {
			level++
			metrics.Escalations.WithLabelValues(metrics.Level(level)).Inc()
		}
	}

	for level < models.EscalationLevelBroadcast {
		cand, err := s.topCandidate(ctx, task, level, cfg, already)
		if err != nil {
			return "", err
		}
		if cand != nil {
			return NextOffered, s.createDirectOfferLocked(ctx, tx, task, cand, level, cfg, now)
		}
		level++
		metrics.Escalations.WithLabelValues(metrics.Level(level)).Inc()
	}

	// Level 3: broadcast to the remaining wider pool, first accept wins.
	pool, err := s.rankTimed(ctx, task, models.EscalationLevelBroadcast, cfg)
	if err != nil {
		return "", err
	}
	var fresh []Candidate
	for _, c := range pool {
		if !already[c.Artist.ID] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		return NextBroadcast, s.startBroadcastLocked(ctx, tx, task, fresh, cfg, now)
	}

	return NextEscalated, s.escalateToAdminLocked(ctx, tx, task)
}

// topCandidate ranks at the given level and returns the best artist not yet
// offered this task, or nil when the level is exhausted.
func (s *AssignmentService) topCandidate(ctx context.Context, task *models.Task, level int, cfg *models.AlgorithmConfig, already map[uuid.UUID]bool) (*Candidate, error) {
	ranked, err := s.rankTimed(ctx, task, level, cfg)
	if err != nil {
		return nil, err
	}
	for i := range ranked {
		if !already[ranked[i].Artist.ID] {
			return &ranked[i], nil
		}
	}
	return nil, nil
}

func (s *AssignmentService) rankTimed(ctx context.Context, task *models.Task, level int, cfg *models.AlgorithmConfig) ([]Candidate, error) {
	start := time.Now()
	ranked, err := s.Ranker.Rank(ctx, task, level, cfg)
	metrics.RankDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}
	return ranked, nil
}

// createDirectOfferLocked writes the ledger row and moves the task to offered.
func (s *AssignmentService) createDirectOfferLocked(ctx context.Context, tx pgx.Tx, task *models.Task, cand *Candidate, level int, cfg *models.AlgorithmConfig, now time.Time) error {
	expiry := now.Add(cfg.AcceptanceWindow(task.Urgency))
	offer := &models.Offer{
		ID:              uuid.New(),
		TaskID:          task.ID,
		ArtistID:        cand.Artist.ID,
		Score:           cand.Score,
		Breakdown:       cand.Breakdown,
		EscalationLevel: level,
		ExpiresAt:       expiry,
		Response:        models.OfferResponsePending,
	}
	if err := s.Offers.CreateTx(ctx, tx, offer); err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	prev := task.Status
	task.Status = models.TaskStatusOffered
	task.OfferedTo = &cand.Artist.ID
	task.OfferExpiresAt = &expiry
	task.EscalationLevel = level
	if err := s.Tasks.UpdateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if err := s.appendActivity(ctx, tx, task, &cand.Artist.ID, models.ActorTypeSystem, models.ActionOfferCreated, prev); err != nil {
		return err
	}
	if err := s.Enqueue(ctx, tx, jobs.SendNotificationArgs{
		NotifyKind: jobs.NotifyKindOfferReceived,
		TaskID:     task.ID,
		ArtistID:   &cand.Artist.ID,
		Message:    fmt.Sprintf("new offer: %q", task.Title),
	}); err != nil {
		return fmt.Errorf("enqueue offer notification: %w", err)
	}
	metrics.OffersCreated.WithLabelValues(metrics.Level(level)).Inc()
	return nil
}

// startBroadcastLocked fans pending offers out to the top candidates and
// holds the task in pending at level 3 for the configured window.
func (s *AssignmentService) startBroadcastLocked(ctx context.Context, tx pgx.Tx, task *models.Task, pool []Candidate, cfg *models.AlgorithmConfig, now time.Time) error {
	fanout := cfg.Escalation.BroadcastFanout
	if fanout <= 0 || fanout > len(pool) {
		fanout = len(pool)
	}
	expiry := now.Add(cfg.BroadcastWindow())

	for i := 0; i < fanout; i++ {
		cand := pool[i]
		offer := &models.Offer{
			ID:              uuid.New(),
			TaskID:          task.ID,
			ArtistID:        cand.Artist.ID,
			Score:           cand.Score,
			Breakdown:       cand.Breakdown,
			EscalationLevel: models.EscalationLevelBroadcast,
			ExpiresAt:       expiry,
			Response:        models.OfferResponsePending,
		}
		if err := s.Offers.CreateTx(ctx, tx, offer); err != nil {
			return fmt.Errorf("create broadcast offer: %w", err)
		}
		if err := s.Enqueue(ctx, tx, jobs.SendNotificationArgs{
			NotifyKind: jobs.NotifyKindOfferBroadcast,
			TaskID:     task.ID,
			ArtistID:   &cand.Artist.ID,
			Message:    fmt.Sprintf("open offer: %q", task.Title),
		}); err != nil {
			return fmt.Errorf("enqueue broadcast notification: %w", err)
		}
		metrics.OffersCreated.WithLabelValues(metrics.Level(models.EscalationLevelBroadcast)).Inc()
	}

	prev := task.Status
	task.Status = models.TaskStatusPending
	task.OfferedTo = nil
	task.OfferExpiresAt = nil
	task.EscalationLevel = models.EscalationLevelBroadcast
	if err := s.Tasks.UpdateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return s.appendActivity(ctx, tx, task, nil, models.ActorTypeSystem, models.ActionBroadcast, prev)
}

// escalateToAdminLocked moves the task to the automated engine's terminal
// failure state and notifies admins.
func (s *AssignmentService) escalateToAdminLocked(ctx context.Context, tx pgx.Tx, task *models.Task) error {
	prev := task.Status
	task.Status = models.TaskStatusUnassignable
	task.OfferedTo = nil
	task.OfferExpiresAt = nil
	task.EscalationLevel = models.EscalationLevelAdmin
	if err := s.Tasks.UpdateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if err := s.appendActivity(ctx, tx, task, nil, models.ActorTypeSystem, models.ActionEscalatedAdmin, prev); err != nil {
		return err
	}
	if err := s.Enqueue(ctx, tx, jobs.SendNotificationArgs{
		NotifyKind: jobs.NotifyKindTaskEscalated,
		TaskID:     task.ID,
		Message:    fmt.Sprintf("no candidates left for %q, manual assignment required", task.Title),
	}); err != nil {
		return fmt.Errorf("enqueue escalation notification: %w", err)
	}
	metrics.Escalations.WithLabelValues(metrics.Level(models.EscalationLevelAdmin)).Inc()
	return nil
}

func (s *AssignmentService) lockTask(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.Tasks.GetForUpdateTx(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, "task %s not found", taskID)
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}
	return task, nil
}

// afterBroadcastDeclineLocked decides whether a broadcast survives one
// artist's decline. With live pending offers remaining the fan-out stands;
// otherwise selection runs again and typically escalates.
func (s *AssignmentService) afterBroadcastDeclineLocked(ctx context.Context, tx pgx.Tx, task *models.Task, cfg *models.AlgorithmConfig, now time.Time) (string, error) {
	offered, err := s.Offers.ListArtistIDsByTaskTx(ctx, tx, task.ID)
	if err != nil {
		return "", fmt.Errorf("list offered: %w", err)
	}
	for _, artistID := range offered {
		pending, err := s.Offers.GetPendingTx(ctx, tx, task.ID, artistID)
		if err != nil {
			return "", fmt.Errorf("check pending offer: %w", err)
		}
		if pending != nil && now.Before(pending.ExpiresAt) {
			return NextBroadcast, nil
		}
	}
	return s.advanceLocked(ctx, tx, task, cfg)
}

func (s *AssignmentService) appendActivity(ctx context.Context, tx pgx.Tx, task *models.Task, actorID *uuid.UUID, actorType, action, previousStatus string) error {
	newStatus := task.Status
	entry := &models.ActivityEntry{
		ID:             uuid.New(),
		TaskID:         task.ID,
		ActorID:        actorID,
		ActorType:      actorType,
		Action:         action,
		PreviousStatus: &previousStatus,
		NewStatus:      &newStatus,
	}
	if err := s.Activity.AppendTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func requireArtistRole(actor models.Actor) error {
	if actor.Role != models.RoleFreelancer && actor.Role != models.RoleAdmin {
		return NewError(KindForbidden, "role %q may not respond to offers", actor.Role)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
