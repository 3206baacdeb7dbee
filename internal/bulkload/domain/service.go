package domain

import (
	"context"
	"errors"
)

// Kind selects which table a bulk batch feeds.
const (
	KindHistory  = "history"
	KindForecast = "forecast"
	KindRequest  = "request"
)

// Row outcomes.
const (
	RowAccept = "ACCEPT"
	RowReject = "REJECT"
	RowWarn   = "WARN"
)

// Machine-readable rejection and warning reasons.
const (
	ReasonInvalidQuantity  = "INVALID_QUANTITY"
	ReasonInvalidDate      = "INVALID_DATE"
	ReasonInvalidPeriod    = "INVALID_PERIOD"
	ReasonInvalidScenario  = "INVALID_SCENARIO"
	ReasonUnknownBranch    = "UNKNOWN_BRANCH"
	ReasonUnknownRecipe    = "UNKNOWN_RECIPE"
	ReasonDuplicateInBatch = "DUPLICATE_IN_BATCH"
	ReasonFuzzyMatch       = "FUZZY_MATCH"
)

// InputRow is one raw row as uploaded. Branch and Recipe are free text and
// go through master-data resolution; which of the remaining fields apply
// depends on the batch kind.
type InputRow struct {
	Branch string `json:"branch"`
	Recipe string `json:"recipe"`

	// history rows
	Date string `json:"date,omitempty"` // YYYY-MM-DD

	// forecast and request rows
	PeriodType   string `json:"period_type,omitempty"`
	PeriodAnchor string `json:"period_anchor,omitempty"` // YYYY-MM-DD

	Quantity float64 `json:"quantity"`

	// forecast rows only
	Scenario   string   `json:"scenario,omitempty"`
	Lower      *float64 `json:"lower,omitempty"`
	Upper      *float64 `json:"upper,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// RowOutcome reports the validation verdict for one input row.
type RowOutcome struct {
	LineNo int    `json:"line_no"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	// resolution detail for transparency on non-exact matches
	BranchMatch string `json:"branch_match,omitempty"`
	RecipeMatch string `json:"recipe_match,omitempty"`
}

type PreviewRequest struct {
	Kind   string     `json:"kind"`
	Source string     `json:"source"`
	Rows   []InputRow `json:"rows"`
}

type PreviewResponse struct {
	Ref      string       `json:"ref"`
	Kind     string       `json:"kind"`
	Outcomes []RowOutcome `json:"outcomes"`
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Warned   int          `json:"warned"`
}

type ConfirmRequest struct {
	Ref string `json:"ref"`
}

type ConfirmResponse struct {
	Ref            string       `json:"ref"`
	Applied        int          `json:"applied"`
	Rejected       int          `json:"rejected"`
	AlreadyApplied bool         `json:"already_applied"`
	Details        []RowOutcome `json:"details,omitempty"`
}

type Service interface {
	// Preview validates and stages rows without touching domain tables.
	Preview(context.Context, PreviewRequest) (PreviewResponse, error)
	// Confirm re-validates a staged batch and applies the surviving rows.
	// Confirming an already-applied batch is a no-op reporting zero applied.
	Confirm(context.Context, ConfirmRequest) (ConfirmResponse, error)
}

var (
	ErrInvalidKind   = errors.New("invalid_kind")
	ErrEmptyBatch    = errors.New("empty_batch")
	ErrBatchNotFound = errors.New("batch_not_found")
)
