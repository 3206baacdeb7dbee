package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/pagination"
)

// ProposalStatus classifies the outcome of one reconciliation.
const (
	ProposalProposed      = "PROPOSED"
	ProposalApplied       = "APPLIED"
	ProposalNotApplicable = "NOT_APPLICABLE"
)

// ReconciliationProposal is the bounded adjustment the reconciler suggests
// for one request. A capped proposal always retains the uncapped quantity it
// would have produced.
type ReconciliationProposal struct {
	RequestID   uuid.UUID       `json:"request_id"`
	BranchID    snowflake.ID    `json:"branch_id"`
	RecipeID    snowflake.ID    `json:"recipe_id"`
	CurrentQty  decimal.Decimal `json:"current_qty"`
	ProposedQty decimal.Decimal `json:"proposed_qty"`
	UncappedQty decimal.Decimal `json:"uncapped_qty"`
	DeltaPct    float64         `json:"delta_pct"`
	Capped      bool            `json:"capped"`
	Status      string          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Scenario    string          `json:"scenario"`
	ForecastQty float64         `json:"forecast_qty"`
	Confidence  float64         `json:"confidence"`
	Degraded    bool            `json:"degraded"`
}

type UpsertRequest struct {
	BranchID     snowflake.ID    `json:"branch_id"`
	RecipeID     snowflake.ID    `json:"recipe_id"`
	PeriodType   string          `json:"period_type"`
	PeriodAnchor time.Time       `json:"period_anchor"`
	RequestedQty decimal.Decimal `json:"requested_qty"`
	Source       string          `json:"source"`
}

type ListRequest struct {
	BranchID   snowflake.ID `json:"branch_id"`
	RecipeID   snowflake.ID `json:"recipe_id"`
	PeriodType string       `json:"period_type"`
	Status     string       `json:"status"`
	PageToken  string       `json:"page_token"`
	PageSize   int          `json:"page_size"`
}

type ListResponse struct {
	pagination.PageInfo
	Requests []SalesRequest `json:"requests"`
}

type ReconcileRequest struct {
	RequestID        uuid.UUID `json:"request_id"`
	Scenario         string    `json:"scenario"`
	MaxVariationPct  *float64  `json:"max_variation_pct,omitempty"`
	MinConfidencePct *float64  `json:"min_confidence_pct,omitempty"`
	DryRun           bool      `json:"dry_run"`
}

// ApplyForecastMode selects which requests a bulk reconciliation touches.
const (
	ApplyModeAll      = "all"
	ApplyModeOver     = "over"     // requests above the forecast
	ApplyModeUnder    = "under"    // requests below the forecast
	ApplyModeDeviated = "deviated" // requests outside the tolerance band either way
	ApplyModeRecipe   = "recipe"   // a single recipe
)

type ApplyForecastRequest struct {
	BranchID         snowflake.ID `json:"branch_id"`
	PeriodType       string       `json:"period_type"`
	PeriodAnchor     time.Time    `json:"period_anchor"`
	Scenario         string       `json:"scenario"`
	Mode             string       `json:"mode"`
	RecipeID         snowflake.ID `json:"recipe_id,omitempty"`
	MaxVariationPct  *float64     `json:"max_variation_pct,omitempty"`
	MinConfidencePct *float64     `json:"min_confidence_pct,omitempty"`
	DryRun           bool         `json:"dry_run"`
}

type ApplyForecastResponse struct {
	Proposals     []ReconciliationProposal `json:"proposals"`
	Examined      int                      `json:"examined"`
	Proposed      int                      `json:"proposed"`
	Applied       int                      `json:"applied"`
	NotApplicable int                      `json:"not_applicable"`
	Skipped       int                      `json:"skipped"`
	DryRun        bool                     `json:"dry_run"`
}

type Service interface {
	Upsert(context.Context, UpsertRequest) (*SalesRequest, error)
	List(context.Context, ListRequest) (ListResponse, error)
	Get(ctx context.Context, requestID uuid.UUID) (*SalesRequest, error)
	Reconcile(context.Context, ReconcileRequest) (*ReconciliationProposal, error)
	ApplyForecast(context.Context, ApplyForecastRequest) (ApplyForecastResponse, error)
}

var (
	ErrInvalidBranch   = errors.New("invalid_branch")
	ErrInvalidRecipe   = errors.New("invalid_recipe")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidMode     = errors.New("invalid_mode")
	ErrRequestNotFound = errors.New("request_not_found")
)
