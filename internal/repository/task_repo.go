package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelforge/backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, client_id, title, description, category, required_skills, complexity, urgency, client_timezone_offset, deadline, status, offered_to, offer_expires_at, escalation_level, freelancer_id, assigned_at, completed_at, created_at, updated_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.ClientID, &t.Title, &t.Description, &t.Category, &t.RequiredSkills, &t.Complexity, &t.Urgency, &t.ClientTimezoneOffset, &t.Deadline, &t.Status, &t.OfferedTo, &t.OfferExpiresAt, &t.EscalationLevel, &t.FreelancerID, &t.AssignedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, client_id, title, description, category, required_skills, complexity, urgency, client_timezone_offset, deadline, status, escalation_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, t.ID, t.ClientID, t.Title, t.Description, t.Category, t.RequiredSkills, t.Complexity, t.Urgency, t.ClientTimezoneOffset, t.Deadline, t.Status, t.EscalationLevel).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// GetForUpdateTx locks the task row for update. Call within a transaction;
// this is the serialization point for all competing state transitions.
func (r *TaskRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
}

// UpdateTx writes the task's assignment state inside the given transaction.
func (r *TaskRepo) UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	_, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, offered_to = $3, offer_expires_at = $4, escalation_level = $5, freelancer_id = $6, assigned_at = $7, completed_at = $8, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Status, t.OfferedTo, t.OfferExpiresAt, t.EscalationLevel, t.FreelancerID, t.AssignedAt, t.CompletedAt)
	return err
}

// ListExpiredOfferIDs returns tasks whose direct offer window has passed.
func (r *TaskRepo) ListExpiredOfferIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM tasks
		WHERE status = $1 AND offer_expires_at IS NOT NULL AND offer_expires_at < $2
		ORDER BY offer_expires_at
	`, models.TaskStatusOffered, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListExpiredBroadcastIDs returns level-3 tasks whose fan-out has no live
// pending offer left.
func (r *TaskRepo) ListExpiredBroadcastIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id FROM tasks t
		WHERE t.status = $1 AND t.escalation_level = $2
		AND EXISTS (SELECT 1 FROM offers o WHERE o.task_id = t.id AND o.escalation_level = $2)
		AND NOT EXISTS (
			SELECT 1 FROM offers o
			WHERE o.task_id = t.id AND o.response = $3 AND o.expires_at >= $4
		)
		ORDER BY t.created_at
	`, models.TaskStatusPending, models.EscalationLevelBroadcast, models.OfferResponsePending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListByStatus returns tasks in the given status, newest first. Used for the
// admin unassignable queue.
func (r *TaskRepo) ListByStatus(ctx context.Context, status string) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ListByClientID returns a client's tasks, newest first.
func (r *TaskRepo) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
