package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
	"github.com/stretchr/testify/assert"
)

func newRequest(qty int64) *requestdomain.SalesRequest {
	return &requestdomain.SalesRequest{
		RequestID:    uuid.New(),
		BranchID:     1,
		RecipeID:     2,
		RequestedQty: decimal.NewFromInt(qty),
	}
}

func newPoint(qty, confidence float64) *forecastdomain.ForecastPoint {
	return &forecastdomain.ForecastPoint{
		Scenario:   forecastdomain.ScenarioBase,
		Point:      qty,
		Confidence: confidence,
	}
}

func fptr(v float64) *float64 { return &v }

func TestBuildProposal_CapRetainsUncapped(t *testing.T) {
	proposal := BuildProposal(newRequest(100), newPoint(150, 90), fptr(10), nil)

	assert.Equal(t, requestdomain.ProposalProposed, proposal.Status)
	assert.True(t, proposal.Capped)
	assert.True(t, proposal.ProposedQty.Equal(decimal.NewFromInt(110)), "got %s", proposal.ProposedQty)
	assert.True(t, proposal.UncappedQty.Equal(decimal.NewFromInt(150)), "got %s", proposal.UncappedQty)
	assert.InDelta(t, 10.0, proposal.DeltaPct, 1e-9)
}

func TestBuildProposal_CapDownward(t *testing.T) {
	proposal := BuildProposal(newRequest(100), newPoint(50, 90), fptr(10), nil)

	assert.True(t, proposal.Capped)
	assert.True(t, proposal.ProposedQty.Equal(decimal.NewFromInt(90)), "got %s", proposal.ProposedQty)
	assert.True(t, proposal.UncappedQty.Equal(decimal.NewFromInt(50)))
	assert.InDelta(t, -10.0, proposal.DeltaPct, 1e-9)
}

func TestBuildProposal_WithinCapNotCapped(t *testing.T) {
	proposal := BuildProposal(newRequest(100), newPoint(105, 90), fptr(10), nil)

	assert.False(t, proposal.Capped)
	assert.True(t, proposal.ProposedQty.Equal(decimal.NewFromInt(105)))
	assert.InDelta(t, 5.0, proposal.DeltaPct, 1e-9)
}

func TestBuildProposal_ConfidenceFloor(t *testing.T) {
	proposal := BuildProposal(newRequest(100), newPoint(150, 60), fptr(10), fptr(80))

	assert.Equal(t, requestdomain.ProposalNotApplicable, proposal.Status)
	assert.Equal(t, "confidence_below_floor", proposal.Reason)
	// no change proposed
	assert.True(t, proposal.ProposedQty.Equal(decimal.NewFromInt(100)))
}

func TestBuildProposal_NeverNegative(t *testing.T) {
	proposal := BuildProposal(newRequest(100), newPoint(-5, 90), nil, nil)

	assert.False(t, proposal.ProposedQty.IsNegative())
	assert.True(t, proposal.ProposedQty.Equal(decimal.Zero))
}

func TestBuildProposal_ZeroCurrentSkipsCap(t *testing.T) {
	// a zero-quantity request has no base for a relative cap; the forecast
	// passes through uncapped
	proposal := BuildProposal(newRequest(0), newPoint(40, 90), fptr(10), nil)

	assert.False(t, proposal.Capped)
	assert.True(t, proposal.ProposedQty.Equal(decimal.NewFromInt(40)))
	assert.Zero(t, proposal.DeltaPct)
}

func TestBuildProposal_NoCapSupplied(t *testing.T) {
	proposal := BuildProposal(newRequest(100), newPoint(150, 90), nil, nil)

	assert.False(t, proposal.Capped)
	assert.True(t, proposal.ProposedQty.Equal(decimal.NewFromInt(150)))
	assert.InDelta(t, 50.0, proposal.DeltaPct, 1e-9)
}
