package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *PortfolioConfig {
	return &PortfolioConfig{
		PortfolioID: uuid.New(),
		Name:        "Aposentadoria",
		Targets: []TargetAllocation{
			{Ticker: "PETR4", Weight: decimal.RequireFromString("0.5")},
			{Ticker: "VALE3", Weight: decimal.RequireFromString("0.3")},
			{Ticker: "ITUB4", Weight: decimal.RequireFromString("0.2")},
		},
		RebalanceMonths: 6,
	}
}

func TestConfigValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfigValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := validConfig()
	cfg.Targets[2].Weight = decimal.RequireFromString("0.15") // sum = 0.95

	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidAllocation)
	assert.Contains(t, err.Error(), "expected 1.0")
}

func TestConfigValidate_SumWithinTolerance(t *testing.T) {
	cfg := validConfig()

	// 0.5 + 0.3 + 0.2009 = 1.0009 is inside the 0.001 tolerance.
	cfg.Targets[2].Weight = decimal.RequireFromString("0.2009")
	assert.NoError(t, cfg.Validate())

	// 1.002 is outside it.
	cfg.Targets[2].Weight = decimal.RequireFromString("0.202")
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_DuplicateTicker(t *testing.T) {
	cfg := validConfig()
	cfg.Targets[1].Ticker = "PETR4"

	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidAllocation)
	assert.Contains(t, err.Error(), "duplicate target")
}

func TestConfigValidate_WeightRange(t *testing.T) {
	cfg := &PortfolioConfig{
		PortfolioID: uuid.New(),
		Targets: []TargetAllocation{
			{Ticker: "PETR4", Weight: decimal.Zero},
			{Ticker: "VALE3", Weight: decimal.NewFromInt(1)},
		},
	}
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidAllocation)
	assert.Contains(t, err.Error(), "must be in (0, 1]")
}

func TestConfigValidate_EmptyTargets(t *testing.T) {
	cfg := &PortfolioConfig{PortfolioID: uuid.New()}
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidAllocation)
	assert.Contains(t, err.Error(), "no target allocations")
}

func TestTargetWeight(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.TargetWeight("VALE3").Equal(decimal.RequireFromString("0.3")))
	assert.True(t, cfg.TargetWeight("BBAS3").IsZero())
}
