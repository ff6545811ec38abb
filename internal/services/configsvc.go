package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pixelforge/backend/internal/models"
)

// ConfigStore is the algorithm-configuration repository interface.
type ConfigStore interface {
	GetActive(ctx context.Context) (*models.AlgorithmConfig, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.AlgorithmConfig, error)
	Create(ctx context.Context, c *models.AlgorithmConfig) error
	Update(ctx context.Context, c *models.AlgorithmConfig) error
	PublishTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	List(ctx context.Context) ([]*models.AlgorithmConfig, error)
}

// ConfigParams is the mutable portion of a configuration version.
type ConfigParams struct {
	Weights          models.Weights            `json:"weights"`
	Windows          models.AcceptanceWindows  `json:"acceptance_windows"`
	Escalation       models.EscalationSettings `json:"escalation"`
	ExperienceMatrix models.ExperienceMatrix   `json:"experience_matrix"`
	Workload         models.WorkloadSettings   `json:"workload"`
	Exclusions       models.ExclusionRules     `json:"exclusions"`
	Bonuses          models.BonusModifiers     `json:"bonuses"`
}

// ConfigService manages algorithm configuration versions. Exactly one version
// is active; edits to the active version are rejected, and publishing a
// version transactionally deactivates every other one.
type ConfigService struct {
	Pool   TxBeginner
	Store  ConfigStore
	Logger *slog.Logger
}

// NewConfigService returns a new ConfigService.
func NewConfigService(pool TxBeginner, store ConfigStore, logger *slog.Logger) *ConfigService {
	return &ConfigService{Pool: pool, Store: store, Logger: logger}
}

// GetActive returns the active configuration version.
func (s *ConfigService) GetActive(ctx context.Context) (*models.AlgorithmConfig, error) {
	cfg, err := s.Store.GetActive(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, "no active configuration")
		}
		return nil, fmt.Errorf("get active config: %w", err)
	}
	return cfg, nil
}

// List returns all configuration versions.
func (s *ConfigService) List(ctx context.Context) ([]*models.AlgorithmConfig, error) {
	return s.Store.List(ctx)
}

// Create validates the parameters and writes a new inactive draft version.
func (s *ConfigService) Create(ctx context.Context, params ConfigParams, actor models.Actor) (*models.AlgorithmConfig, error) {
	if actor.Role != models.RoleAdmin {
		return nil, NewError(KindForbidden, "admin role required")
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	cfg := &models.AlgorithmConfig{
		ID:               uuid.New(),
		IsActive:         false,
		Weights:          params.Weights,
		Windows:          params.Windows,
		Escalation:       params.Escalation,
		ExperienceMatrix: params.ExperienceMatrix,
		Workload:         params.Workload,
		Exclusions:       params.Exclusions,
		Bonuses:          params.Bonuses,
	}
	if err := s.Store.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}
	s.Logger.Info("configuration draft created", "config_id", cfg.ID, "version", cfg.Version, "admin_id", actor.ID)
	return cfg, nil
}

// Update edits a draft version in place. The active version is immutable:
// tuning it means creating and publishing a new draft.
func (s *ConfigService) Update(ctx context.Context, id uuid.UUID, params ConfigParams, actor models.Actor) (*models.AlgorithmConfig, error) {
	if actor.Role != models.RoleAdmin {
		return nil, NewError(KindForbidden, "admin role required")
	}
	cfg, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.IsActive {
		return nil, NewError(KindInvalidState, "configuration %s is active and cannot be edited", id)
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	cfg.Weights = params.Weights
	cfg.Windows = params.Windows
	cfg.Escalation = params.Escalation
	cfg.ExperienceMatrix = params.ExperienceMatrix
	cfg.Workload = params.Workload
	cfg.Exclusions = params.Exclusions
	cfg.Bonuses = params.Bonuses
	if err := s.Store.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	s.Logger.Info("configuration draft updated", "config_id", cfg.ID, "version", cfg.Version, "admin_id", actor.ID)
	return cfg, nil
}

// Publish makes the given version the single active one. Deactivate-all then
// activate-one runs in a single transaction so concurrent rankings always see
// exactly one active configuration.
func (s *ConfigService) Publish(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		return NewError(KindForbidden, "admin role required")
	}
	if _, err := s.getByID(ctx, id); err != nil {
		return err
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Store.PublishTx(ctx, tx, id); err != nil {
		return fmt.Errorf("publish config: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.Logger.Info("configuration published", "config_id", id, "admin_id", actor.ID)
	return nil
}

func (s *ConfigService) getByID(ctx context.Context, id uuid.UUID) (*models.AlgorithmConfig, error) {
	cfg, err := s.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, "configuration %s not found", id)
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// validateParams rejects malformed policy at the write boundary so scoring
// never has to re-check it.
func validateParams(p ConfigParams) error {
	w := p.Weights
	for name, v := range map[string]float64{
		"skill_match":         w.SkillMatch,
		"timezone_fit":        w.TimezoneFit,
		"experience_match":    w.ExperienceMatch,
		"workload_balance":    w.WorkloadBalance,
		"performance_history": w.PerformanceHistory,
	} {
		if v < 0 || v > 100 {
			return NewError(KindValidation, "weight %s must be in [0,100], got %v", name, v)
		}
	}
	if !w.SumValid() {
		return NewError(KindValidation, "weights must sum to 100, got %v", w.Sum())
	}
	if p.Windows.StandardMinutes <= 0 || p.Windows.RushMinutes <= 0 || p.Windows.UrgentMinutes <= 0 {
		return NewError(KindValidation, "acceptance windows must be positive")
	}
	if p.Escalation.Level1MaxOffers < 1 || p.Escalation.Level2MaxOffers < 1 {
		return NewError(KindValidation, "per-level offer caps must be at least 1")
	}
	if p.Escalation.BroadcastWindowMinutes <= 0 {
		return NewError(KindValidation, "broadcast window must be positive")
	}
	if p.Escalation.BroadcastFanout < 0 {
		return NewError(KindValidation, "broadcast fanout must not be negative")
	}
	for complexity, row := range p.ExperienceMatrix {
		for level, fit := range row {
			if fit < 0 || fit > 1 {
				return NewError(KindValidation, "experience matrix entry %s/%s must be in [0,1]", complexity, level)
			}
		}
	}
	if p.Workload.HardMaxActive > 0 && p.Workload.PreferredMaxActive > p.Workload.HardMaxActive {
		return NewError(KindValidation, "preferred workload cap exceeds the hard cap")
	}
	return nil
}
