package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/clock"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/config"
	bulkdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/bulkload/domain"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	forecastservice "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/service"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	mastersservice "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/service"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	historyservice "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/service"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
	requestservice "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type bulkFixture struct {
	db      *gorm.DB
	svc     bulkdomain.Service
	history historydomain.Service
	branch  *mastersdomain.Branch
	recipe  *mastersdomain.Recipe
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newBulkFixture(t *testing.T) *bulkFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&mastersdomain.Branch{},
		&mastersdomain.Recipe{},
		&historydomain.SaleFact{},
		&forecastdomain.ForecastRecord{},
		&requestdomain.SalesRequest{},
		&bulkdomain.StagedBatch{},
		&bulkdomain.StagedRow{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	cfg := config.Config{Forecast: config.ForecastConfig{
		MinHistoryDays:            14,
		LookbackDays:              90,
		BandK:                     1.0,
		BandZ:                     1.645,
		DegradedConfidenceCeiling: 30,
		BacktestTolerancePct:      10,
	}}
	fake := clock.NewFakeClock(date(2026, 8, 29))

	masters := mastersservice.NewService(mastersservice.ServiceParam{DB: db, Log: log, GenID: node})
	history := historyservice.NewService(historyservice.ServiceParam{DB: db, Log: log, GenID: node})
	forecast := forecastservice.NewService(forecastservice.ServiceParam{
		DB: db, Log: log, GenID: node, Cfg: cfg, Clock: fake, History: history, Masters: masters,
	})
	requests := requestservice.NewService(requestservice.ServiceParam{
		DB: db, Log: log, GenID: node, Cfg: cfg, Clock: fake, Forecast: forecast, Masters: masters,
	})
	svc := NewService(ServiceParam{
		DB: db, Log: log, GenID: node, Masters: masters, History: history, Requests: requests,
	})

	ctx := context.Background()
	branch, err := masters.CreateBranch(ctx, mastersdomain.CreateBranchRequest{Code: "SUC-SUR", Name: "Sucursal Sur"})
	require.NoError(t, err)
	recipe, err := masters.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Concha Vainilla"})
	require.NoError(t, err)

	return &bulkFixture{db: db, svc: svc, history: history, branch: branch, recipe: recipe}
}

func TestBulk_PreviewRejectsDuplicateInBatch(t *testing.T) {
	ctx := context.Background()
	f := newBulkFixture(t)

	preview, err := f.svc.Preview(ctx, bulkdomain.PreviewRequest{
		Kind:   bulkdomain.KindHistory,
		Source: "excel",
		Rows: []bulkdomain.InputRow{
			{Branch: "Sucursal Sur", Recipe: "Concha Vainilla", Date: "2026-08-20", Quantity: 12},
			{Branch: "Sucursal Sur", Recipe: "Concha Vainilla", Date: "2026-08-20", Quantity: 99},
		},
	})
	require.NoError(t, err)
	require.Len(t, preview.Outcomes, 2)
	assert.Equal(t, bulkdomain.RowAccept, preview.Outcomes[0].Status)
	assert.Equal(t, bulkdomain.RowReject, preview.Outcomes[1].Status)
	assert.Equal(t, bulkdomain.ReasonDuplicateInBatch, preview.Outcomes[1].Reason)
	assert.Equal(t, 1, preview.Accepted)
	assert.Equal(t, 1, preview.Rejected)

	confirm, err := f.svc.Confirm(ctx, bulkdomain.ConfirmRequest{Ref: preview.Ref})
	require.NoError(t, err)
	assert.Equal(t, 1, confirm.Applied)
	assert.Equal(t, 1, confirm.Rejected)

	// the first row won; the duplicate never reached the fact table
	facts, err := f.history.Facts(ctx, historydomain.FactsQuery{
		BranchID: f.branch.ID,
		RecipeID: f.recipe.ID,
		From:     date(2026, 8, 20),
		To:       date(2026, 8, 21),
	})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, float64(12), facts[0].Quantity)
}

func TestBulk_ConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newBulkFixture(t)

	preview, err := f.svc.Preview(ctx, bulkdomain.PreviewRequest{
		Kind: bulkdomain.KindHistory,
		Rows: []bulkdomain.InputRow{
			{Branch: "SUC-SUR", Recipe: "R-001", Date: "2026-08-21", Quantity: 8},
		},
	})
	require.NoError(t, err)

	first, err := f.svc.Confirm(ctx, bulkdomain.ConfirmRequest{Ref: preview.Ref})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Applied)
	assert.False(t, first.AlreadyApplied)

	second, err := f.svc.Confirm(ctx, bulkdomain.ConfirmRequest{Ref: preview.Ref})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Applied)
	assert.True(t, second.AlreadyApplied)

	facts, err := f.history.Facts(ctx, historydomain.FactsQuery{
		BranchID: f.branch.ID,
		RecipeID: f.recipe.ID,
		From:     date(2026, 8, 21),
		To:       date(2026, 8, 22),
	})
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestBulk_PreviewUnknownRecipe(t *testing.T) {
	f := newBulkFixture(t)

	preview, err := f.svc.Preview(context.Background(), bulkdomain.PreviewRequest{
		Kind: bulkdomain.KindHistory,
		Rows: []bulkdomain.InputRow{
			{Branch: "Sucursal Sur", Recipe: "Croissant Almendra", Date: "2026-08-20", Quantity: 5},
		},
	})
	require.NoError(t, err)
	require.Len(t, preview.Outcomes, 1)
	assert.Equal(t, bulkdomain.RowReject, preview.Outcomes[0].Status)
	assert.Equal(t, bulkdomain.ReasonUnknownRecipe, preview.Outcomes[0].Reason)
}

func TestBulk_FuzzyMatchWarnsButApplies(t *testing.T) {
	ctx := context.Background()
	f := newBulkFixture(t)

	preview, err := f.svc.Preview(ctx, bulkdomain.PreviewRequest{
		Kind: bulkdomain.KindHistory,
		Rows: []bulkdomain.InputRow{
			{Branch: "Sucursal Sur", Recipe: "Choncha Vainilla", Date: "2026-08-22", Quantity: 7},
		},
	})
	require.NoError(t, err)
	require.Len(t, preview.Outcomes, 1)
	assert.Equal(t, bulkdomain.RowWarn, preview.Outcomes[0].Status)
	assert.Equal(t, bulkdomain.ReasonFuzzyMatch, preview.Outcomes[0].Reason)
	assert.Equal(t, string(mastersdomain.MatchFuzzy), preview.Outcomes[0].RecipeMatch)

	confirm, err := f.svc.Confirm(ctx, bulkdomain.ConfirmRequest{Ref: preview.Ref})
	require.NoError(t, err)
	assert.Equal(t, 1, confirm.Applied)
}

func TestBulk_ForecastKindPersistsRecords(t *testing.T) {
	ctx := context.Background()
	f := newBulkFixture(t)

	preview, err := f.svc.Preview(ctx, bulkdomain.PreviewRequest{
		Kind: bulkdomain.KindForecast,
		Rows: []bulkdomain.InputRow{
			// anchored mid-week, canonicalizes to Monday 2026-08-24
			{Branch: "SUC-SUR", Recipe: "R-001", PeriodType: "week", PeriodAnchor: "2026-08-26", Quantity: 84, Scenario: "base"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, preview.Accepted)

	confirm, err := f.svc.Confirm(ctx, bulkdomain.ConfirmRequest{Ref: preview.Ref})
	require.NoError(t, err)
	assert.Equal(t, 1, confirm.Applied)

	var record forecastdomain.ForecastRecord
	err = f.db.Where("branch_id = ? AND recipe_id = ?", f.branch.ID, f.recipe.ID).First(&record).Error
	require.NoError(t, err)
	assert.Equal(t, "WEEK", record.PeriodType)
	assert.Equal(t, date(2026, 8, 24), record.PeriodStart.UTC())
	assert.Equal(t, "BASE", record.Scenario)
	assert.Equal(t, float64(84), record.Point)
}

// Staged payloads come back from the database with numerics decoded as
// json.Number, not float64. Quantities must survive that round trip intact.
func TestBulk_ConfirmAppliesStoredQuantities(t *testing.T) {
	ctx := context.Background()
	f := newBulkFixture(t)

	preview, err := f.svc.Preview(ctx, bulkdomain.PreviewRequest{
		Kind:   bulkdomain.KindHistory,
		Source: "excel",
		Rows: []bulkdomain.InputRow{
			{Branch: "SUC-SUR", Recipe: "R-001", Date: "2026-08-23", Quantity: 17.5},
		},
	})
	require.NoError(t, err)

	confirm, err := f.svc.Confirm(ctx, bulkdomain.ConfirmRequest{Ref: preview.Ref})
	require.NoError(t, err)
	assert.Equal(t, 1, confirm.Applied)

	facts, err := f.history.Facts(ctx, historydomain.FactsQuery{
		BranchID: f.branch.ID,
		RecipeID: f.recipe.ID,
		From:     date(2026, 8, 23),
		To:       date(2026, 8, 24),
	})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 17.5, facts[0].Quantity)
}

func TestPayloadFloatDecodedNumbers(t *testing.T) {
	payload := datatypes.JSONMap{
		"quantity":   json.Number("12"),
		"lower":      json.Number("9.25"),
		"bad":        json.Number("not-a-number"),
		"inline":     float64(3.5),
		"unexpected": "12",
	}

	assert.Equal(t, float64(12), payloadFloat(payload, "quantity"))
	assert.Equal(t, 9.25, payloadFloat(payload, "lower"))
	assert.Equal(t, float64(0), payloadFloat(payload, "bad"))
	assert.Equal(t, 3.5, payloadFloat(payload, "inline"))
	assert.Equal(t, float64(0), payloadFloat(payload, "unexpected"))

	assert.Equal(t, 9.25, payloadFloatDefault(payload, "lower", 1))
	assert.Equal(t, float64(1), payloadFloatDefault(payload, "missing", 1))
}

func TestBulk_InvalidInputs(t *testing.T) {
	ctx := context.Background()
	f := newBulkFixture(t)

	_, err := f.svc.Preview(ctx, bulkdomain.PreviewRequest{Kind: "inventory"})
	assert.ErrorIs(t, err, bulkdomain.ErrInvalidKind)

	_, err = f.svc.Preview(ctx, bulkdomain.PreviewRequest{Kind: bulkdomain.KindHistory})
	assert.ErrorIs(t, err, bulkdomain.ErrEmptyBatch)

	_, err = f.svc.Confirm(ctx, bulkdomain.ConfirmRequest{Ref: "01J0000000000000000000000"})
	assert.ErrorIs(t, err, bulkdomain.ErrBatchNotFound)

	preview, err := f.svc.Preview(ctx, bulkdomain.PreviewRequest{
		Kind: bulkdomain.KindHistory,
		Rows: []bulkdomain.InputRow{
			{Branch: "SUC-SUR", Recipe: "R-001", Date: "20/08/2026", Quantity: 5},
			{Branch: "SUC-SUR", Recipe: "R-001", Date: "2026-08-20", Quantity: -3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, preview.Rejected)
	assert.Equal(t, bulkdomain.ReasonInvalidDate, preview.Outcomes[0].Reason)
	assert.Equal(t, bulkdomain.ReasonInvalidQuantity, preview.Outcomes[1].Reason)
}
