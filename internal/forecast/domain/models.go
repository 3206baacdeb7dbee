// Package domain contains the forecasting types: periods, scenarios,
// seasonal profiles, forecast points and backtest windows.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ForecastRecord is the persisted snapshot of a computed forecast. The
// engine itself is pure; records exist so sales requests can reference the
// exact numbers that drove an adjustment.
type ForecastRecord struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	BranchID    snowflake.ID `gorm:"not null;uniqueIndex:idx_forecast_records_natural,priority:1" json:"branch_id"`
	RecipeID    snowflake.ID `gorm:"not null;uniqueIndex:idx_forecast_records_natural,priority:2" json:"recipe_id"`
	PeriodType  string       `gorm:"type:text;not null;uniqueIndex:idx_forecast_records_natural,priority:3" json:"period_type"`
	PeriodStart time.Time    `gorm:"type:date;not null;uniqueIndex:idx_forecast_records_natural,priority:4" json:"period_start"`
	Scenario    string       `gorm:"type:text;not null;default:BASE;uniqueIndex:idx_forecast_records_natural,priority:5" json:"scenario"`
	Point       float64      `gorm:"not null" json:"point"`
	LowerBound  float64      `gorm:"column:lower_bound;not null" json:"lower_bound"`
	UpperBound  float64      `gorm:"column:upper_bound;not null" json:"upper_bound"`
	Confidence  float64      `gorm:"not null" json:"confidence"`
	Degraded    bool         `gorm:"not null;default:false" json:"degraded"`
	HistoryDays int          `gorm:"not null;default:0" json:"history_days"`
	ComputedAt  time.Time    `gorm:"not null" json:"computed_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ForecastRecord) TableName() string { return "forecast_records" }
