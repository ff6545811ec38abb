package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelforge/backend/internal/models"
)

type ArtistRepo struct {
	pool *pgxpool.Pool
}

func NewArtistRepo(pool *pgxpool.Pool) *ArtistRepo {
	return &ArtistRepo{pool: pool}
}

const artistColumns = `id, display_name, skills, specializations, timezone_offset, experience_level, active_task_count, rating, completed_task_count, availability, suspended, last_client_id, created_at, updated_at`

func scanArtist(row pgx.Row) (*models.Artist, error) {
	var a models.Artist
	err := row.Scan(&a.ID, &a.DisplayName, &a.Skills, &a.Specializations, &a.TimezoneOffset, &a.ExperienceLevel, &a.ActiveTaskCount, &a.Rating, &a.CompletedTaskCount, &a.Availability, &a.Suspended, &a.LastClientID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ArtistRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Artist, error) {
	return scanArtist(r.pool.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = $1`, id))
}

// FindAvailable returns the roster the ranker scores: not away, not
// suspended. Finer-grained exclusion rules are applied in the ranker against
// the active configuration.
func (r *ArtistRepo) FindAvailable(ctx context.Context) ([]*models.Artist, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+artistColumns+` FROM artists
		WHERE availability <> $1 AND suspended = FALSE
		ORDER BY id
	`, models.ArtistAway)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// MarkAssignedTx bumps the artist's active workload and records the client
// for the same-client cooldown rule. Call within the assignment transaction.
func (r *ArtistRepo) MarkAssignedTx(ctx context.Context, tx pgx.Tx, artistID, clientID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE artists SET active_task_count = active_task_count + 1, last_client_id = $2, updated_at = now()
		WHERE id = $1
	`, artistID, clientID)
	return err
}
