package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/pagination"
)

// Scenario selects which edge of the demand band a forecast targets.
type Scenario string

const (
	ScenarioBase Scenario = "BASE"
	ScenarioLow  Scenario = "LOW"
	ScenarioHigh Scenario = "HIGH"
)

func ParseScenario(value string) (Scenario, error) {
	switch Scenario(strings.ToUpper(strings.TrimSpace(value))) {
	case ScenarioBase, "":
		return ScenarioBase, nil
	case ScenarioLow:
		return ScenarioLow, nil
	case ScenarioHigh:
		return ScenarioHigh, nil
	default:
		return "", ErrInvalidScenario
	}
}

// Policy carries the tunable statistical constants. Engines receive it
// explicitly so tests can vary the constants deterministically.
type Policy struct {
	MinHistoryDays            int
	LookbackDays              int
	BandK                     float64
	BandZ                     float64
	DegradedConfidenceCeiling float64
	BacktestTolerancePct      float64
}

// SeasonalProfile holds normalized seasonal indices for one series. The
// demand-weighted mean of each index family over the observed window is 1.0.
type SeasonalProfile struct {
	ByMonth       map[time.Month]float64   `json:"by_month"`
	ByWeekday     map[time.Weekday]float64 `json:"by_weekday"`
	Participation float64                  `json:"participation"`
	// LowConfidenceMonths and LowConfidenceWeekdays name buckets that had no
	// observations and were defaulted to a neutral 1.0.
	LowConfidenceMonths   []time.Month   `json:"low_confidence_months,omitempty"`
	LowConfidenceWeekdays []time.Weekday `json:"low_confidence_weekdays,omitempty"`
	HistoryDays           int            `json:"history_days"`
}

// ForecastPoint is the result of one forecast computation.
type ForecastPoint struct {
	BranchID    snowflake.ID `json:"branch_id"`
	RecipeID    snowflake.ID `json:"recipe_id"`
	Period      Period       `json:"period"`
	Scenario    Scenario     `json:"scenario"`
	Point       float64      `json:"point"`
	LowerBound  float64      `json:"lower_bound"`
	UpperBound  float64      `json:"upper_bound"`
	Confidence  float64      `json:"confidence"`
	Degraded    bool         `json:"degraded"`
	HistoryDays int          `json:"history_days"`
	// Filtered marks a point that fell below the caller's confidence floor.
	// The numbers stay visible; only response sets exclude it.
	Filtered bool `json:"filtered,omitempty"`
}

type ForecastRequest struct {
	BranchID         snowflake.ID `json:"branch_id"`
	RecipeID         snowflake.ID `json:"recipe_id"`
	PeriodType       string       `json:"period_type"`
	PeriodAnchor     time.Time    `json:"period_anchor"`
	Scenario         string       `json:"scenario"`
	MinConfidencePct *float64     `json:"min_confidence_pct,omitempty"`
}

type ForecastBatchItem struct {
	BranchID snowflake.ID `json:"branch_id"`
	RecipeID snowflake.ID `json:"recipe_id"`
}

type ForecastBatchRequest struct {
	Items            []ForecastBatchItem `json:"items"`
	PeriodType       string              `json:"period_type"`
	PeriodAnchor     time.Time           `json:"period_anchor"`
	Scenario         string              `json:"scenario"`
	MinConfidencePct *float64            `json:"min_confidence_pct,omitempty"`
	// Persist snapshots the computed points as ForecastRecord rows.
	Persist bool `json:"persist"`
}

// ForecastBatchOutcome reports one item of a batch; failures never abort
// the surrounding batch.
type ForecastBatchOutcome struct {
	BranchID snowflake.ID   `json:"branch_id"`
	RecipeID snowflake.ID   `json:"recipe_id"`
	Status   string         `json:"status"` // OK, FILTERED, ERROR
	Error    string         `json:"error,omitempty"`
	Point    *ForecastPoint `json:"point,omitempty"`
}

type ForecastBatchResponse struct {
	Points   []ForecastPoint        `json:"points"`
	Outcomes []ForecastBatchOutcome `json:"outcomes"`
	Computed int                    `json:"computed"`
	Filtered int                    `json:"filtered"`
	Failed   int                    `json:"failed"`
	Saved    int                    `json:"saved"`
}

// BacktestWindow compares what the engine would have forecast for a past
// period, trained only on data strictly before it, against what actually
// sold.
type BacktestWindow struct {
	Period        Period  `json:"period"`
	Forecast      float64 `json:"forecast"`
	Actual        float64 `json:"actual"`
	NObservations int     `json:"n_observations"`
	APEPct        float64 `json:"ape_pct"`
	BiasPct       float64 `json:"bias_pct"`
	Degraded      bool    `json:"degraded"`
	// Status tags the window against the tolerance band: OK, OVER, UNDER,
	// or NO_BASE when the window has no actuals.
	Status string `json:"status"`
}

const (
	BacktestStatusOK     = "OK"
	BacktestStatusOver   = "OVER"
	BacktestStatusUnder  = "UNDER"
	BacktestStatusNoBase = "NO_BASE"
)

type BacktestAggregate struct {
	MAPEPct          float64 `json:"mape_pct"`
	BiasPct          float64 `json:"bias_pct"`
	CoveragePct      float64 `json:"coverage_pct"`
	UsableWindows    int     `json:"usable_windows"`
	TotalWindows     int     `json:"total_windows"`
	InsufficientData bool    `json:"insufficient_data"`
}

type BacktestRequest struct {
	BranchID   snowflake.ID `json:"branch_id"`
	RecipeID   snowflake.ID `json:"recipe_id"`
	Scenario   string       `json:"scenario"`
	PeriodType string       `json:"period_type"`
	// Windows is how many held-out periods to evaluate, walking back from
	// the most recent closed period.
	Windows int `json:"windows"`
	// Step is how many periods to skip between windows; 1 evaluates every
	// period.
	Step int `json:"step"`
}

type BacktestReport struct {
	BranchID  snowflake.ID      `json:"branch_id"`
	RecipeID  snowflake.ID      `json:"recipe_id"`
	Scenario  Scenario          `json:"scenario"`
	Windows   []BacktestWindow  `json:"windows"`
	Aggregate BacktestAggregate `json:"aggregate"`
}

type InsightsRequest struct {
	// BranchID scopes the insight; zero means consolidated across branches.
	BranchID            snowflake.ID `json:"branch_id"`
	From                time.Time    `json:"from"`
	To                  time.Time    `json:"to"`
	TopN                int          `json:"top_n"`
	Offset              int          `json:"offset"`
	IncludePreparations bool         `json:"include_preparations"`
}

type RecipeShare struct {
	RecipeID snowflake.ID `json:"recipe_id"`
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	Total    float64      `json:"total"`
	SharePct float64      `json:"share_pct"`
}

type InsightsResponse struct {
	ByMonth    map[time.Month]float64   `json:"by_month"`
	ByWeekday  map[time.Weekday]float64 `json:"by_weekday"`
	TopRecipes []RecipeShare            `json:"top_recipes"`
	TotalQty   float64                  `json:"total_qty"`
	From       time.Time                `json:"from"`
	To         time.Time                `json:"to"`
}

type ListRecordsRequest struct {
	BranchID   snowflake.ID `json:"branch_id"`
	RecipeID   snowflake.ID `json:"recipe_id"`
	PeriodType string       `json:"period_type"`
	Scenario   string       `json:"scenario"`
	PageToken  string       `json:"page_token"`
	PageSize   int          `json:"page_size"`
}

type ListRecordsResponse struct {
	pagination.PageInfo
	Records []ForecastRecord `json:"records"`
}

type Service interface {
	Forecast(context.Context, ForecastRequest) (*ForecastPoint, error)
	ForecastBatch(context.Context, ForecastBatchRequest) (ForecastBatchResponse, error)
	Backtest(context.Context, BacktestRequest) (BacktestReport, error)
	SeasonalInsights(context.Context, InsightsRequest) (InsightsResponse, error)
	ListRecords(context.Context, ListRecordsRequest) (ListRecordsResponse, error)
	// Point returns the forecast a reconciliation should compare against,
	// preferring a persisted snapshot and computing on the fly otherwise.
	Point(ctx context.Context, branchID, recipeID snowflake.ID, period Period, scenario Scenario) (*ForecastPoint, error)
}

var (
	ErrInvalidScenario     = errors.New("invalid_scenario")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidBranch       = errors.New("invalid_branch")
	ErrInvalidRecipe       = errors.New("invalid_recipe")
	ErrInsufficientHistory = errors.New("insufficient_history")
)
