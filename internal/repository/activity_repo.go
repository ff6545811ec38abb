package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelforge/backend/internal/models"
)

// ActivityRepo is the write-only audit trail. The engine appends and never
// reads; admin tooling queries these rows elsewhere.
type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

// AppendTx writes one audit row inside the given transaction, so the audit
// trail commits atomically with the transition it records.
func (r *ActivityRepo) AppendTx(ctx context.Context, tx pgx.Tx, e *models.ActivityEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO task_activity (id, task_id, actor_id, actor_type, action, previous_status, new_status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.TaskID, e.ActorID, e.ActorType, e.Action, e.PreviousStatus, e.NewStatus, e.Metadata).Scan(&e.CreatedAt)
}
