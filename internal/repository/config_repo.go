package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelforge/backend/internal/models"
)

// ConfigRepo persists algorithm configuration versions. The structured policy
// fields are stored as one JSONB document; version numbers are assigned by
// the insert.
type ConfigRepo struct {
	pool *pgxpool.Pool
}

func NewConfigRepo(pool *pgxpool.Pool) *ConfigRepo {
	return &ConfigRepo{pool: pool}
}

// configPolicy is the JSONB document holding everything except identity and
// activation state.
type configPolicy struct {
	Weights          models.Weights            `json:"weights"`
	Windows          models.AcceptanceWindows  `json:"acceptance_windows"`
	Escalation       models.EscalationSettings `json:"escalation"`
	ExperienceMatrix models.ExperienceMatrix   `json:"experience_matrix"`
	Workload         models.WorkloadSettings   `json:"workload"`
	Exclusions       models.ExclusionRules     `json:"exclusions"`
	Bonuses          models.BonusModifiers     `json:"bonuses"`
}

func policyOf(c *models.AlgorithmConfig) configPolicy {
	return configPolicy{
		Weights:          c.Weights,
		Windows:          c.Windows,
		Escalation:       c.Escalation,
		ExperienceMatrix: c.ExperienceMatrix,
		Workload:         c.Workload,
		Exclusions:       c.Exclusions,
		Bonuses:          c.Bonuses,
	}
}

func applyPolicy(c *models.AlgorithmConfig, raw []byte) error {
	var p configPolicy
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode config policy: %w", err)
	}
	c.Weights = p.Weights
	c.Windows = p.Windows
	c.Escalation = p.Escalation
	c.ExperienceMatrix = p.ExperienceMatrix
	c.Workload = p.Workload
	c.Exclusions = p.Exclusions
	c.Bonuses = p.Bonuses
	return nil
}

func scanConfig(row pgx.Row) (*models.AlgorithmConfig, error) {
	var c models.AlgorithmConfig
	var raw []byte
	err := row.Scan(&c.ID, &c.Version, &c.IsActive, &raw, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := applyPolicy(&c, raw); err != nil {
		return nil, err
	}
	return &c, nil
}

const configColumns = `id, version, is_active, policy, created_at, updated_at`

func (r *ConfigRepo) Create(ctx context.Context, c *models.AlgorithmConfig) error {
	policy, err := json.Marshal(policyOf(c))
	if err != nil {
		return fmt.Errorf("encode config policy: %w", err)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO algorithm_configs (id, version, is_active, policy)
		VALUES ($1, (SELECT COALESCE(MAX(version), 0) + 1 FROM algorithm_configs), $2, $3)
		RETURNING version, created_at, updated_at
	`, c.ID, c.IsActive, policy).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
}

func (r *ConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AlgorithmConfig, error) {
	return scanConfig(r.pool.QueryRow(ctx, `SELECT `+configColumns+` FROM algorithm_configs WHERE id = $1`, id))
}

// GetActive returns the single active configuration version.
func (r *ConfigRepo) GetActive(ctx context.Context) (*models.AlgorithmConfig, error) {
	return scanConfig(r.pool.QueryRow(ctx, `SELECT `+configColumns+` FROM algorithm_configs WHERE is_active = TRUE`))
}

func (r *ConfigRepo) Update(ctx context.Context, c *models.AlgorithmConfig) error {
	policy, err := json.Marshal(policyOf(c))
	if err != nil {
		return fmt.Errorf("encode config policy: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE algorithm_configs SET policy = $2, updated_at = now() WHERE id = $1
	`, c.ID, policy)
	return err
}

// PublishTx deactivates every version and activates the given one. Run inside
// a transaction so concurrent readers always observe exactly one active row.
func (r *ConfigRepo) PublishTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if _, err := tx.Exec(ctx, `UPDATE algorithm_configs SET is_active = FALSE, updated_at = now() WHERE is_active = TRUE`); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE algorithm_configs SET is_active = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ConfigRepo) List(ctx context.Context) ([]*models.AlgorithmConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+configColumns+` FROM algorithm_configs ORDER BY version DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.AlgorithmConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
