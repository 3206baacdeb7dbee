package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) historydomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&historydomain.SaleFact{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHistory_UpsertReplacesOnNaturalKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	branchID := snowflake.ID(10)
	recipeID := snowflake.ID(20)

	n, err := svc.UpsertFacts(ctx, []historydomain.UpsertFact{
		{BranchID: branchID, RecipeID: recipeID, SaleDate: day(2026, 8, 1), Quantity: 40, Source: "pos"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// same day again replaces, it must not stack a second row
	_, err = svc.UpsertFacts(ctx, []historydomain.UpsertFact{
		{BranchID: branchID, RecipeID: recipeID, SaleDate: day(2026, 8, 1), Quantity: 55, Source: "pos-corrected"},
	})
	require.NoError(t, err)

	facts, err := svc.Facts(ctx, historydomain.FactsQuery{BranchID: branchID, RecipeID: recipeID})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 55.0, facts[0].Quantity)
}

func TestHistory_FactsOrderedAndWindowed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	branchID := snowflake.ID(10)
	recipeID := snowflake.ID(20)

	_, err := svc.UpsertFacts(ctx, []historydomain.UpsertFact{
		{BranchID: branchID, RecipeID: recipeID, SaleDate: day(2026, 8, 3), Quantity: 30},
		{BranchID: branchID, RecipeID: recipeID, SaleDate: day(2026, 8, 1), Quantity: 10},
		{BranchID: branchID, RecipeID: recipeID, SaleDate: day(2026, 8, 2), Quantity: 20},
	})
	require.NoError(t, err)

	facts, err := svc.Facts(ctx, historydomain.FactsQuery{
		BranchID: branchID,
		RecipeID: recipeID,
		From:     day(2026, 8, 1),
		To:       day(2026, 8, 3), // exclusive
	})
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, day(2026, 8, 1), facts[0].Date)
	assert.Equal(t, day(2026, 8, 2), facts[1].Date)
}

func TestHistory_FactsIsolatedPerSeries(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.UpsertFacts(ctx, []historydomain.UpsertFact{
		{BranchID: 10, RecipeID: 20, SaleDate: day(2026, 8, 1), Quantity: 10},
		{BranchID: 10, RecipeID: 21, SaleDate: day(2026, 8, 1), Quantity: 99},
		{BranchID: 11, RecipeID: 20, SaleDate: day(2026, 8, 1), Quantity: 77},
	})
	require.NoError(t, err)

	facts, err := svc.Facts(ctx, historydomain.FactsQuery{BranchID: 10, RecipeID: 20})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 10.0, facts[0].Quantity)
}

func TestHistory_RejectsNegativeQuantity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.UpsertFacts(ctx, []historydomain.UpsertFact{
		{BranchID: 10, RecipeID: 20, SaleDate: day(2026, 8, 1), Quantity: -5},
	})
	assert.ErrorIs(t, err, historydomain.ErrInvalidQuantity)
}
