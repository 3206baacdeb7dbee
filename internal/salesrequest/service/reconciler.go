package service

import (
	"github.com/shopspring/decimal"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
)

var oneHundred = decimal.NewFromInt(100)

// BuildProposal computes the bounded adjustment for one request against one
// forecast point. Pure: persistence and provenance are the caller's problem.
//
// The proposal is NOT_APPLICABLE when the forecast's confidence is below the
// caller's floor. Otherwise the proposed quantity is the forecast estimate,
// capped so the relative change against the current quantity stays within
// maxVariationPct; a capped proposal retains the uncapped quantity so the
// operator sees what the cap suppressed.
func BuildProposal(
	request *requestdomain.SalesRequest,
	point *forecastdomain.ForecastPoint,
	maxVariationPct, minConfidencePct *float64,
) requestdomain.ReconciliationProposal {
	proposal := requestdomain.ReconciliationProposal{
		RequestID:   request.RequestID,
		BranchID:    request.BranchID,
		RecipeID:    request.RecipeID,
		CurrentQty:  request.RequestedQty,
		Scenario:    string(point.Scenario),
		ForecastQty: point.Point,
		Confidence:  point.Confidence,
		Degraded:    point.Degraded,
	}

	if minConfidencePct != nil && point.Confidence < *minConfidencePct {
		proposal.Status = requestdomain.ProposalNotApplicable
		proposal.Reason = "confidence_below_floor"
		proposal.ProposedQty = request.RequestedQty
		proposal.UncappedQty = request.RequestedQty
		return proposal
	}

	uncapped := decimal.NewFromFloat(point.Point).Round(3)
	if uncapped.IsNegative() {
		uncapped = decimal.Zero
	}
	proposal.UncappedQty = uncapped

	current := request.RequestedQty
	proposed := uncapped

	if maxVariationPct != nil && current.IsPositive() {
		maxVar := decimal.NewFromFloat(*maxVariationPct)
		ceiling := current.Mul(oneHundred.Add(maxVar)).Div(oneHundred)
		floor := current.Mul(oneHundred.Sub(maxVar)).Div(oneHundred)
		if floor.IsNegative() {
			floor = decimal.Zero
		}

		switch {
		case proposed.GreaterThan(ceiling):
			proposed = ceiling
			proposal.Capped = true
			proposal.Reason = "capped_at_max_variation"
		case proposed.LessThan(floor):
			proposed = floor
			proposal.Capped = true
			proposal.Reason = "capped_at_max_variation"
		}
	}

	if proposed.IsNegative() {
		proposed = decimal.Zero
	}
	proposal.ProposedQty = proposed.Round(3)

	if current.IsPositive() {
		delta, _ := proposed.Sub(current).Div(current).Mul(oneHundred).Float64()
		proposal.DeltaPct = delta
	}

	proposal.Status = requestdomain.ProposalProposed
	if proposal.Reason == "" {
		proposal.Reason = "forecast_adjustment"
	}
	return proposal
}
