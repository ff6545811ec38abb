package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelforge/backend/internal/models"
)

// OfferRepo is the append-only offer ledger. Rows are never deleted; a row is
// mutated exactly once when its response moves from pending to a terminal value.
type OfferRepo struct {
	pool *pgxpool.Pool
}

func NewOfferRepo(pool *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{pool: pool}
}

const offerColumns = `id, task_id, artist_id, score, breakdown, escalation_level, expires_at, response, decline_reason, decline_note, responded_at, created_at`

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var o models.Offer
	var breakdown []byte
	err := row.Scan(&o.ID, &o.TaskID, &o.ArtistID, &o.Score, &breakdown, &o.EscalationLevel, &o.ExpiresAt, &o.Response, &o.DeclineReason, &o.DeclineNote, &o.RespondedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &o.Breakdown); err != nil {
			return nil, fmt.Errorf("decode score breakdown: %w", err)
		}
	}
	return &o, nil
}

// CreateTx appends a ledger row inside the given transaction.
func (r *OfferRepo) CreateTx(ctx context.Context, tx pgx.Tx, o *models.Offer) error {
	breakdown, err := json.Marshal(o.Breakdown)
	if err != nil {
		return fmt.Errorf("encode score breakdown: %w", err)
	}
	return tx.QueryRow(ctx, `
		INSERT INTO offers (id, task_id, artist_id, score, breakdown, escalation_level, expires_at, response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, o.ID, o.TaskID, o.ArtistID, o.Score, breakdown, o.EscalationLevel, o.ExpiresAt, o.Response).Scan(&o.CreatedAt)
}

// ListArtistIDsByTaskTx returns every artist ever offered the task, regardless
// of response. This is the previously-offered exclusion set: declined and
// expired artists must never see the same task again.
func (r *OfferRepo) ListArtistIDsByTaskTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `SELECT DISTINCT artist_id FROM offers WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// GetPendingTx returns the pending offer for (task, artist), or nil when none
// exists. At most one row per pair may be pending.
func (r *OfferRepo) GetPendingTx(ctx context.Context, tx pgx.Tx, taskID, artistID uuid.UUID) (*models.Offer, error) {
	o, err := scanOffer(tx.QueryRow(ctx, `
		SELECT `+offerColumns+` FROM offers
		WHERE task_id = $1 AND artist_id = $2 AND response = $3
	`, taskID, artistID, models.OfferResponsePending))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// MarkResponseTx resolves the pending offer for (task, artist). It updates
// only the row still in pending response; a false return means no such row
// exists and the caller holds stale state (treat as a conflict).
func (r *OfferRepo) MarkResponseTx(ctx context.Context, tx pgx.Tx, taskID, artistID uuid.UUID, response string, reason, note *string, respondedAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE offers SET response = $4, decline_reason = $5, decline_note = $6, responded_at = $7
		WHERE task_id = $1 AND artist_id = $2 AND response = $3
	`, taskID, artistID, models.OfferResponsePending, response, reason, note, respondedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountByTaskLevelTx counts how many offers have been made for the task at the
// given escalation level, any response.
func (r *OfferRepo) CountByTaskLevelTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, level int) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM offers WHERE task_id = $1 AND escalation_level = $2
	`, taskID, level).Scan(&n)
	return n, err
}

// ExpirePendingTx marks every remaining pending offer for the task expired.
// Used when a broadcast resolves (winner accepted or window closed).
func (r *OfferRepo) ExpirePendingTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, respondedAt time.Time) (int, error) {
	reason := models.DeclineReasonExpired
	tag, err := tx.Exec(ctx, `
		UPDATE offers SET response = $3, decline_reason = $4, responded_at = $5
		WHERE task_id = $1 AND response = $2
	`, taskID, models.OfferResponsePending, models.OfferResponseExpired, reason, respondedAt)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListByTask returns the task's full offer history, oldest first.
func (r *OfferRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Offer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+offerColumns+` FROM offers WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
