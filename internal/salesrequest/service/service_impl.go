package service

import (
	"context"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/clock"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/config"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	obsmetrics "github.com/maburgos12/pollyanas-dolce-erp/internal/observability/metrics"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/option"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/pagination"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Policy   *config.PolicyHolder `optional:"true"`
	Clock    clock.Clock
	Forecast forecastdomain.Service
	Masters  mastersdomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	policy      forecastdomain.Policy
	holder      *config.PolicyHolder
	clock       clock.Clock
	forecast    forecastdomain.Service
	masters     mastersdomain.Service
	metrics     *obsmetrics.Metrics
	requestRepo repository.Repository[requestdomain.SalesRequest]
}

func NewService(p ServiceParam) requestdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("salesrequest.service"),

		genID:       p.GenID,
		policy:      forecastdomain.Policy(p.Cfg.Forecast),
		holder:      p.Policy,
		clock:       p.Clock,
		forecast:    p.Forecast,
		masters:     p.Masters,
		metrics:     p.Metrics,
		requestRepo: repository.ProvideStore[requestdomain.SalesRequest](p.DB),
	}
}

func (s *Service) Upsert(ctx context.Context, req requestdomain.UpsertRequest) (*requestdomain.SalesRequest, error) {
	if req.BranchID == 0 {
		return nil, requestdomain.ErrInvalidBranch
	}
	if req.RecipeID == 0 {
		return nil, requestdomain.ErrInvalidRecipe
	}
	if req.RequestedQty.IsNegative() {
		return nil, requestdomain.ErrInvalidQuantity
	}
	if _, err := s.masters.GetBranch(ctx, req.BranchID); err != nil {
		return nil, err
	}
	if _, err := s.masters.GetRecipe(ctx, req.RecipeID); err != nil {
		return nil, err
	}

	periodType, err := forecastdomain.ParsePeriodType(req.PeriodType)
	if err != nil {
		return nil, err
	}
	anchor := req.PeriodAnchor
	if anchor.IsZero() {
		anchor = s.clock.Now()
	}
	period, err := forecastdomain.NewPeriod(periodType, anchor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &requestdomain.SalesRequest{
		ID:           s.genID.Generate(),
		RequestID:    uuid.New(),
		BranchID:     req.BranchID,
		RecipeID:     req.RecipeID,
		PeriodType:   string(period.Type),
		PeriodStart:  period.Start,
		RequestedQty: req.RequestedQty,
		Status:       requestdomain.RequestStatusDraft,
		Source:       req.Source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// a re-submitted request supersedes the quantity but keeps its stable
	// request_id, clearing any previous reconciliation
	err = s.requestRepo.Upsert(ctx,
		[]string{"branch_id", "recipe_id", "period_type", "period_start"},
		[]string{"requested_qty", "source", "status", "status_reason", "reconciled_qty", "uncapped_qty", "updated_at"},
		[]*requestdomain.SalesRequest{row},
	)
	if err != nil {
		return nil, err
	}

	return s.findByNaturalKey(ctx, req.BranchID, req.RecipeID, string(period.Type), period.Start)
}

func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*requestdomain.SalesRequest, error) {
	row, err := s.requestRepo.FindOne(ctx, &requestdomain.SalesRequest{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, requestdomain.ErrRequestNotFound
	}
	return row, nil
}

func (s *Service) List(ctx context.Context, req requestdomain.ListRequest) (requestdomain.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := &requestdomain.SalesRequest{
		BranchID:   req.BranchID,
		RecipeID:   req.RecipeID,
		PeriodType: req.PeriodType,
		Status:     req.Status,
	}
	items, err := s.requestRepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize}),
	)
	if err != nil {
		return requestdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *requestdomain.SalesRequest) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: r.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	requests := make([]requestdomain.SalesRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, *item)
	}
	return requestdomain.ListResponse{PageInfo: *pageInfo, Requests: requests}, nil
}

func (s *Service) Reconcile(ctx context.Context, req requestdomain.ReconcileRequest) (*requestdomain.ReconciliationProposal, error) {
	scenario, err := forecastdomain.ParseScenario(req.Scenario)
	if err != nil {
		return nil, err
	}

	request, err := s.Get(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}

	periodType, err := forecastdomain.ParsePeriodType(request.PeriodType)
	if err != nil {
		return nil, err
	}
	period, err := forecastdomain.NewPeriod(periodType, request.PeriodStart)
	if err != nil {
		return nil, err
	}

	point, err := s.forecast.Point(ctx, request.BranchID, request.RecipeID, period, scenario)
	if err != nil {
		return nil, err
	}

	proposal := BuildProposal(request, point, req.MaxVariationPct, req.MinConfidencePct)

	if !req.DryRun && proposal.Status == requestdomain.ProposalProposed {
		if err := s.commit(ctx, request, &proposal); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.RecordReconcileProposal(ctx, proposal.Status)
	}
	return &proposal, nil
}

func (s *Service) ApplyForecast(ctx context.Context, req requestdomain.ApplyForecastRequest) (requestdomain.ApplyForecastResponse, error) {
	scenario, err := forecastdomain.ParseScenario(req.Scenario)
	if err != nil {
		return requestdomain.ApplyForecastResponse{}, err
	}
	periodType, err := forecastdomain.ParsePeriodType(req.PeriodType)
	if err != nil {
		return requestdomain.ApplyForecastResponse{}, err
	}

	mode := req.Mode
	if mode == "" {
		mode = requestdomain.ApplyModeAll
	}
	switch mode {
	case requestdomain.ApplyModeAll, requestdomain.ApplyModeOver, requestdomain.ApplyModeUnder,
		requestdomain.ApplyModeDeviated, requestdomain.ApplyModeRecipe:
	default:
		return requestdomain.ApplyForecastResponse{}, requestdomain.ErrInvalidMode
	}
	if mode == requestdomain.ApplyModeRecipe && req.RecipeID == 0 {
		return requestdomain.ApplyForecastResponse{}, requestdomain.ErrInvalidRecipe
	}

	anchor := req.PeriodAnchor
	if anchor.IsZero() {
		anchor = s.clock.Now()
	}
	period, err := forecastdomain.NewPeriod(periodType, anchor)
	if err != nil {
		return requestdomain.ApplyForecastResponse{}, err
	}

	filter := &requestdomain.SalesRequest{
		BranchID:    req.BranchID,
		PeriodType:  string(period.Type),
		PeriodStart: period.Start,
	}
	if mode == requestdomain.ApplyModeRecipe {
		filter.RecipeID = req.RecipeID
	}
	requests, err := s.requestRepo.Find(ctx, filter, option.WithOrder("recipe_id ASC"))
	if err != nil {
		return requestdomain.ApplyForecastResponse{}, err
	}

	resp := requestdomain.ApplyForecastResponse{DryRun: req.DryRun, Examined: len(requests)}
	for _, request := range requests {
		point, err := s.forecast.Point(ctx, request.BranchID, request.RecipeID, period, scenario)
		if err != nil {
			resp.Skipped++
			s.log.Warn("apply forecast: skipping request",
				zap.String("request_id", request.RequestID.String()),
				zap.Error(err),
			)
			continue
		}

		if !s.modeMatches(mode, request, point) {
			resp.Skipped++
			continue
		}

		proposal := BuildProposal(request, point, req.MaxVariationPct, req.MinConfidencePct)
		switch proposal.Status {
		case requestdomain.ProposalNotApplicable:
			resp.NotApplicable++
		case requestdomain.ProposalProposed:
			resp.Proposed++
			if !req.DryRun {
				if err := s.commit(ctx, request, &proposal); err != nil {
					return resp, err
				}
				resp.Applied++
			}
		}

		if s.metrics != nil {
			s.metrics.RecordReconcileProposal(ctx, proposal.Status)
		}
		resp.Proposals = append(resp.Proposals, proposal)
	}
	return resp, nil
}

// modeMatches decides whether a request participates in a bulk apply, based
// on how far it already sits from the forecast. The deviation tolerance is
// the same band the backtester uses to call a window OK.
func (s *Service) modeMatches(mode string, request *requestdomain.SalesRequest, point *forecastdomain.ForecastPoint) bool {
	current, _ := request.RequestedQty.Float64()

	switch mode {
	case requestdomain.ApplyModeAll, requestdomain.ApplyModeRecipe:
		return true
	case requestdomain.ApplyModeOver:
		return current > point.Point
	case requestdomain.ApplyModeUnder:
		return current < point.Point
	case requestdomain.ApplyModeDeviated:
		if point.Point <= 0 {
			return current > 0
		}
		deviation := math.Abs(current-point.Point) / point.Point * 100
		return deviation > s.currentPolicy().BacktestTolerancePct
	default:
		return false
	}
}

// currentPolicy reads the hot-reloadable policy when a holder is wired and
// falls back to the construction-time snapshot otherwise.
func (s *Service) currentPolicy() forecastdomain.Policy {
	if s.holder != nil {
		return forecastdomain.Policy(s.holder.Get())
	}
	return s.policy
}

// commit persists an accepted proposal onto its request, recording both the
// adjusted quantity and the uncapped forecast for audit.
func (s *Service) commit(ctx context.Context, request *requestdomain.SalesRequest, proposal *requestdomain.ReconciliationProposal) error {
	proposed := proposal.ProposedQty
	uncapped := proposal.UncappedQty

	err := s.requestRepo.Update(ctx, request.ID.String(), map[string]any{
		"reconciled_qty": proposed,
		"uncapped_qty":   uncapped,
		"status":         requestdomain.RequestStatusReconciled,
		"status_reason":  proposal.Reason,
		"updated_at":     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	proposal.Status = requestdomain.ProposalApplied
	return nil
}

func (s *Service) findByNaturalKey(ctx context.Context, branchID, recipeID snowflake.ID, periodType string, periodStart time.Time) (*requestdomain.SalesRequest, error) {
	row, err := s.requestRepo.FindOne(ctx, &requestdomain.SalesRequest{
		BranchID:    branchID,
		RecipeID:    recipeID,
		PeriodType:  periodType,
		PeriodStart: periodStart,
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, requestdomain.ErrRequestNotFound
	}
	return row, nil
}
