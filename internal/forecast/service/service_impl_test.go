package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/clock"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/config"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	mastersservice "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/service"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	historyservice "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type forecastFixture struct {
	svc     forecastdomain.Service
	history historydomain.Service
	branch  *mastersdomain.Branch
	recipe  *mastersdomain.Recipe
	clock   *clock.FakeClock
}

func newForecastFixture(t *testing.T) *forecastFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&mastersdomain.Branch{},
		&mastersdomain.Recipe{},
		&historydomain.SaleFact{},
		&forecastdomain.ForecastRecord{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	masters := mastersservice.NewService(mastersservice.ServiceParam{DB: db, Log: log, GenID: node})
	history := historyservice.NewService(historyservice.ServiceParam{DB: db, Log: log, GenID: node})

	ctx := context.Background()
	branch, err := masters.CreateBranch(ctx, mastersdomain.CreateBranchRequest{Code: "SUC-CENTRO", Name: "Sucursal Centro"})
	require.NoError(t, err)
	recipe, err := masters.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Concha Vainilla"})
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC))

	cfg := config.Config{Forecast: config.ForecastConfig(testPolicy)}
	svc := NewService(ServiceParam{
		DB:      db,
		Log:     log,
		GenID:   node,
		Cfg:     cfg,
		Clock:   fake,
		History: history,
		Masters: masters,
	})

	return &forecastFixture{svc: svc, history: history, branch: branch, recipe: recipe, clock: fake}
}

func (f *forecastFixture) seed(t *testing.T, start time.Time, days int, qty func(time.Time) float64) {
	t.Helper()

	facts := make([]historydomain.UpsertFact, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		facts = append(facts, historydomain.UpsertFact{
			BranchID: f.branch.ID,
			RecipeID: f.recipe.ID,
			SaleDate: d,
			Quantity: qty(d),
			Source:   "seed",
		})
	}
	_, err := f.history.UpsertFacts(context.Background(), facts)
	require.NoError(t, err)
}

func TestForecastService_WeekendInsights(t *testing.T) {
	ctx := context.Background()
	f := newForecastFixture(t)
	f.seed(t, date(2025, 8, 29), 365, weekendDouble)

	resp, err := f.svc.SeasonalInsights(ctx, forecastdomain.InsightsRequest{BranchID: f.branch.ID})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, resp.ByWeekday[time.Saturday], 0.15)
	assert.InDelta(t, 2.0, resp.ByWeekday[time.Sunday], 0.15)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		assert.InDelta(t, 1.0, resp.ByWeekday[wd], 0.15)
	}

	require.Len(t, resp.TopRecipes, 1)
	assert.Equal(t, f.recipe.ID, resp.TopRecipes[0].RecipeID)
	assert.InDelta(t, 100.0, resp.TopRecipes[0].SharePct, 1e-9)
}

func TestForecastService_DegradedShortHistory(t *testing.T) {
	ctx := context.Background()
	f := newForecastFixture(t)
	f.seed(t, date(2026, 8, 15), 10, func(time.Time) float64 { return 15 })

	point, err := f.svc.Forecast(ctx, forecastdomain.ForecastRequest{
		BranchID:   f.branch.ID,
		RecipeID:   f.recipe.ID,
		PeriodType: "WEEK",
		Scenario:   "BASE",
	})
	require.NoError(t, err)
	assert.True(t, point.Degraded)
	assert.LessOrEqual(t, point.Confidence, testPolicy.DegradedConfidenceCeiling)
}

func TestForecastService_UnknownRecipe(t *testing.T) {
	ctx := context.Background()
	f := newForecastFixture(t)

	_, err := f.svc.Forecast(ctx, forecastdomain.ForecastRequest{
		BranchID:   f.branch.ID,
		RecipeID:   snowflake.ID(999),
		PeriodType: "WEEK",
	})
	assert.ErrorIs(t, err, mastersdomain.ErrRecipeNotFound)
}

func TestForecastService_BatchPartialFailureAndPersist(t *testing.T) {
	ctx := context.Background()
	f := newForecastFixture(t)
	f.seed(t, date(2026, 5, 1), 90, noisy)

	resp, err := f.svc.ForecastBatch(ctx, forecastdomain.ForecastBatchRequest{
		Items: []forecastdomain.ForecastBatchItem{
			{BranchID: f.branch.ID, RecipeID: f.recipe.ID},
			{BranchID: f.branch.ID, RecipeID: snowflake.ID(999)}, // unknown
		},
		PeriodType: "WEEK",
		Scenario:   "BASE",
		Persist:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Computed)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 1, resp.Saved)
	require.Len(t, resp.Points, 1)

	records, err := f.svc.ListRecords(ctx, forecastdomain.ListRecordsRequest{BranchID: f.branch.ID})
	require.NoError(t, err)
	require.Len(t, records.Records, 1)

	// re-running the batch upserts the same natural key, no duplicate rows
	_, err = f.svc.ForecastBatch(ctx, forecastdomain.ForecastBatchRequest{
		Items:      []forecastdomain.ForecastBatchItem{{BranchID: f.branch.ID, RecipeID: f.recipe.ID}},
		PeriodType: "WEEK",
		Scenario:   "BASE",
		Persist:    true,
	})
	require.NoError(t, err)

	records, err = f.svc.ListRecords(ctx, forecastdomain.ListRecordsRequest{BranchID: f.branch.ID})
	require.NoError(t, err)
	assert.Len(t, records.Records, 1)
}

func TestForecastService_ConfidenceFloorFiltersButKeepsNumbers(t *testing.T) {
	ctx := context.Background()
	f := newForecastFixture(t)
	// highly volatile series pushes confidence down
	f.seed(t, date(2026, 5, 1), 90, func(d time.Time) float64 {
		if d.Day()%2 == 0 {
			return 100
		}
		return 1
	})

	floor := 80.0
	resp, err := f.svc.ForecastBatch(ctx, forecastdomain.ForecastBatchRequest{
		Items:            []forecastdomain.ForecastBatchItem{{BranchID: f.branch.ID, RecipeID: f.recipe.ID}},
		PeriodType:       "WEEK",
		Scenario:         "BASE",
		MinConfidencePct: &floor,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Filtered)
	assert.Empty(t, resp.Points)
	// the raw computation stays visible in the outcome
	require.Len(t, resp.Outcomes, 1)
	require.NotNil(t, resp.Outcomes[0].Point)
	assert.Equal(t, "FILTERED", resp.Outcomes[0].Status)
	assert.Positive(t, resp.Outcomes[0].Point.Point)
}

func TestForecastService_PointPrefersPersistedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newForecastFixture(t)
	f.seed(t, date(2026, 5, 1), 90, func(time.Time) float64 { return 10 })

	period, err := forecastdomain.NewPeriod(forecastdomain.PeriodWeek, date(2026, 8, 31))
	require.NoError(t, err)

	_, err = f.svc.ForecastBatch(ctx, forecastdomain.ForecastBatchRequest{
		Items:        []forecastdomain.ForecastBatchItem{{BranchID: f.branch.ID, RecipeID: f.recipe.ID}},
		PeriodType:   "WEEK",
		PeriodAnchor: period.Start,
		Scenario:     "BASE",
		Persist:      true,
	})
	require.NoError(t, err)

	// new history after the snapshot must not change what Point returns
	f.seed(t, date(2026, 8, 1), 20, func(time.Time) float64 { return 500 })

	point, err := f.svc.Point(ctx, f.branch.ID, f.recipe.ID, period, forecastdomain.ScenarioBase)
	require.NoError(t, err)
	assert.InDelta(t, 70.0, point.Point, 1e-6)
}

func TestForecastService_BacktestThroughService(t *testing.T) {
	ctx := context.Background()
	f := newForecastFixture(t)
	f.seed(t, date(2026, 1, 1), 240, func(time.Time) float64 { return 10 })

	report, err := f.svc.Backtest(ctx, forecastdomain.BacktestRequest{
		BranchID:   f.branch.ID,
		RecipeID:   f.recipe.ID,
		Scenario:   "BASE",
		PeriodType: "WEEK",
		Windows:    3,
	})
	require.NoError(t, err)
	require.Len(t, report.Windows, 3)
	assert.False(t, report.Aggregate.InsufficientData)
	assert.InDelta(t, 0.0, report.Aggregate.MAPEPct, 1.0)

	again, err := f.svc.Backtest(ctx, forecastdomain.BacktestRequest{
		BranchID:   f.branch.ID,
		RecipeID:   f.recipe.ID,
		Scenario:   "BASE",
		PeriodType: "WEEK",
		Windows:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, report.Aggregate, again.Aggregate)
}
