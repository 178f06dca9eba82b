package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// portfolioRepository implements domain.PortfolioRepository
type portfolioRepository struct {
	db *DB
}

// NewPortfolioRepository creates a new portfolio config repository
func NewPortfolioRepository(db *DB) domain.PortfolioRepository {
	return &portfolioRepository{db: db}
}

// GetConfig retrieves the config and its target allocations for a portfolio
func (r *portfolioRepository) GetConfig(ctx context.Context, portfolioID uuid.UUID) (*domain.PortfolioConfig, error) {
	query := `
		SELECT portfolio_id, name, rebalance_months
		FROM portfolio_configs
		WHERE portfolio_id = $1
	`

	cfg := &domain.PortfolioConfig{}
	err := r.db.QueryRowContext(ctx, query, portfolioID).
		Scan(&cfg.PortfolioID, &cfg.Name, &cfg.RebalanceMonths)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio config %s", domain.ErrNotFound, portfolioID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio config: %w", err)
	}

	if cfg.Targets, err = r.targets(ctx, portfolioID); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig creates or replaces the config for a portfolio.
// The config is validated before it touches the database: invalid target
// allocations never get persisted.
func (r *portfolioRepository) SaveConfig(ctx context.Context, cfg *domain.PortfolioConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	upsertQuery := `
		INSERT INTO portfolio_configs (portfolio_id, name, rebalance_months)
		VALUES ($1, $2, $3)
		ON CONFLICT (portfolio_id)
		DO UPDATE SET name = EXCLUDED.name, rebalance_months = EXCLUDED.rebalance_months
	`
	if _, err := dbTx.ExecContext(ctx, upsertQuery, cfg.PortfolioID, cfg.Name, cfg.RebalanceMonths); err != nil {
		return fmt.Errorf("failed to upsert portfolio config: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM portfolio_targets WHERE portfolio_id = $1`, cfg.PortfolioID); err != nil {
		return fmt.Errorf("failed to clear portfolio targets: %w", err)
	}

	insertTarget := `
		INSERT INTO portfolio_targets (portfolio_id, ticker, weight)
		VALUES ($1, $2, $3)
	`
	for _, target := range cfg.Targets {
		if _, err := dbTx.ExecContext(ctx, insertTarget, cfg.PortfolioID, target.Ticker, target.Weight.String()); err != nil {
			return fmt.Errorf("failed to insert portfolio target: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List retrieves all portfolio configs with their targets
func (r *portfolioRepository) List(ctx context.Context) ([]*domain.PortfolioConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT portfolio_id, name, rebalance_months FROM portfolio_configs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio configs: %w", err)
	}
	defer rows.Close()

	configs := make([]*domain.PortfolioConfig, 0)
	for rows.Next() {
		cfg := &domain.PortfolioConfig{}
		if err := rows.Scan(&cfg.PortfolioID, &cfg.Name, &cfg.RebalanceMonths); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolio configs: %w", err)
	}

	for _, cfg := range configs {
		if cfg.Targets, err = r.targets(ctx, cfg.PortfolioID); err != nil {
			return nil, err
		}
	}

	return configs, nil
}

func (r *portfolioRepository) targets(ctx context.Context, portfolioID uuid.UUID) ([]domain.TargetAllocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticker, weight FROM portfolio_targets WHERE portfolio_id = $1 ORDER BY ticker`,
		portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio targets: %w", err)
	}
	defer rows.Close()

	targets := make([]domain.TargetAllocation, 0)
	for rows.Next() {
		var (
			target domain.TargetAllocation
			weight string
		)
		if err := rows.Scan(&target.Ticker, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio target: %w", err)
		}
		if target.Weight, err = decimal.NewFromString(weight); err != nil {
			return nil, fmt.Errorf("invalid weight for target %s: %w", target.Ticker, err)
		}
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolio targets: %w", err)
	}

	return targets, nil
}
