package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/clock"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/config"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	obsmetrics "github.com/maburgos12/pollyanas-dolce-erp/internal/observability/metrics"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/option"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/pagination"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Cfg     config.Config
	Policy  *config.PolicyHolder `optional:"true"`
	Clock   clock.Clock
	History historydomain.Service
	Masters mastersdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	policy     forecastdomain.Policy
	holder     *config.PolicyHolder
	clock      clock.Clock
	history    historydomain.Service
	masters    mastersdomain.Service
	metrics    *obsmetrics.Metrics
	recordRepo repository.Repository[forecastdomain.ForecastRecord]
}

func NewService(p ServiceParam) forecastdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("forecast.service"),

		genID:      p.GenID,
		policy:     forecastdomain.Policy(p.Cfg.Forecast),
		holder:     p.Policy,
		clock:      p.Clock,
		history:    p.History,
		masters:    p.Masters,
		metrics:    p.Metrics,
		recordRepo: repository.ProvideStore[forecastdomain.ForecastRecord](p.DB),
	}
}

func (s *Service) Forecast(ctx context.Context, req forecastdomain.ForecastRequest) (*forecastdomain.ForecastPoint, error) {
	scenario, err := forecastdomain.ParseScenario(req.Scenario)
	if err != nil {
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

	if err := s.checkSeries(ctx, req.BranchID, req.RecipeID); err != nil {
		return nil, err
	}

	point, err := s.compute(ctx, req.BranchID, req.RecipeID, period, scenario)
	if err != nil {
		return nil, err
	}

	if req.MinConfidencePct != nil && point.Confidence < *req.MinConfidencePct {
		point.Filtered = true
	}
	return point, nil
}

func (s *Service) ForecastBatch(ctx context.Context, req forecastdomain.ForecastBatchRequest) (forecastdomain.ForecastBatchResponse, error) {
	scenario, err := forecastdomain.ParseScenario(req.Scenario)
	if err != nil {
		return forecastdomain.ForecastBatchResponse{}, err
	}
	periodType, err := forecastdomain.ParsePeriodType(req.PeriodType)
	if err != nil {
		return forecastdomain.ForecastBatchResponse{}, err
	}

	anchor := req.PeriodAnchor
	if anchor.IsZero() {
		anchor = s.clock.Now()
	}
	period, err := forecastdomain.NewPeriod(periodType, anchor)
	if err != nil {
		return forecastdomain.ForecastBatchResponse{}, err
	}

	resp := forecastdomain.ForecastBatchResponse{}
	var toSave []*forecastdomain.ForecastPoint

	for _, item := range req.Items {
		outcome := forecastdomain.ForecastBatchOutcome{BranchID: item.BranchID, RecipeID: item.RecipeID}

		if err := s.checkSeries(ctx, item.BranchID, item.RecipeID); err != nil {
			outcome.Status = "ERROR"
			outcome.Error = err.Error()
			resp.Failed++
			resp.Outcomes = append(resp.Outcomes, outcome)
			continue
		}

		point, err := s.compute(ctx, item.BranchID, item.RecipeID, period, scenario)
		if err != nil {
			outcome.Status = "ERROR"
			outcome.Error = err.Error()
			resp.Failed++
			resp.Outcomes = append(resp.Outcomes, outcome)
			continue
		}

		outcome.Point = point
		resp.Computed++
		toSave = append(toSave, point)

		if req.MinConfidencePct != nil && point.Confidence < *req.MinConfidencePct {
			point.Filtered = true
			outcome.Status = "FILTERED"
			resp.Filtered++
		} else {
			outcome.Status = "OK"
			resp.Points = append(resp.Points, *point)
		}
		resp.Outcomes = append(resp.Outcomes, outcome)
	}

	if req.Persist && len(toSave) > 0 {
		saved, err := s.saveRecords(ctx, toSave)
		if err != nil {
			return resp, err
		}
		resp.Saved = saved
	}
	return resp, nil
}

func (s *Service) Backtest(ctx context.Context, req forecastdomain.BacktestRequest) (forecastdomain.BacktestReport, error) {
	scenario, err := forecastdomain.ParseScenario(req.Scenario)
	if err != nil {
		return forecastdomain.BacktestReport{}, err
	}
	periodType, err := forecastdomain.ParsePeriodType(req.PeriodType)
	if err != nil {
		return forecastdomain.BacktestReport{}, err
	}
	if err := s.checkSeries(ctx, req.BranchID, req.RecipeID); err != nil {
		return forecastdomain.BacktestReport{}, err
	}

	facts, err := s.history.Facts(ctx, historydomain.FactsQuery{
		BranchID: req.BranchID,
		RecipeID: req.RecipeID,
	})
	if err != nil {
		return forecastdomain.BacktestReport{}, err
	}

	windows, agg := ComputeBacktest(facts, periodType, scenario, req.Windows, req.Step, clock.Today(s.clock), s.currentPolicy())

	if s.metrics != nil {
		s.metrics.RecordBacktestWindows(ctx, len(windows))
	}

	return forecastdomain.BacktestReport{
		BranchID:  req.BranchID,
		RecipeID:  req.RecipeID,
		Scenario:  scenario,
		Windows:   windows,
		Aggregate: agg,
	}, nil
}

func (s *Service) ListRecords(ctx context.Context, req forecastdomain.ListRecordsRequest) (forecastdomain.ListRecordsResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := &forecastdomain.ForecastRecord{
		BranchID:   req.BranchID,
		RecipeID:   req.RecipeID,
		PeriodType: req.PeriodType,
		Scenario:   req.Scenario,
	}
	items, err := s.recordRepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize}),
	)
	if err != nil {
		return forecastdomain.ListRecordsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *forecastdomain.ForecastRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: r.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	records := make([]forecastdomain.ForecastRecord, 0, len(items))
	for _, item := range items {
		records = append(records, *item)
	}
	return forecastdomain.ListRecordsResponse{PageInfo: *pageInfo, Records: records}, nil
}

// Point prefers a persisted forecast snapshot for the series and period,
// computing live only when none exists. Reconciliation goes through here so
// an operator reviewing a proposal sees the same numbers that drove it.
func (s *Service) Point(ctx context.Context, branchID, recipeID snowflake.ID, period forecastdomain.Period, scenario forecastdomain.Scenario) (*forecastdomain.ForecastPoint, error) {
	record, err := s.recordRepo.FindOne(ctx, &forecastdomain.ForecastRecord{
		BranchID:    branchID,
		RecipeID:    recipeID,
		PeriodType:  string(period.Type),
		PeriodStart: period.Start,
		Scenario:    string(scenario),
	})
	if err != nil {
		return nil, err
	}
	if record != nil {
		return &forecastdomain.ForecastPoint{
			BranchID:    record.BranchID,
			RecipeID:    record.RecipeID,
			Period:      period,
			Scenario:    scenario,
			Point:       record.Point,
			LowerBound:  record.LowerBound,
			UpperBound:  record.UpperBound,
			Confidence:  record.Confidence,
			Degraded:    record.Degraded,
			HistoryDays: record.HistoryDays,
		}, nil
	}

	if err := s.checkSeries(ctx, branchID, recipeID); err != nil {
		return nil, err
	}
	return s.compute(ctx, branchID, recipeID, period, scenario)
}

// currentPolicy reads the hot-reloadable policy when a holder is wired and
// falls back to the construction-time snapshot otherwise.
func (s *Service) currentPolicy() forecastdomain.Policy {
	if s.holder != nil {
		return forecastdomain.Policy(s.holder.Get())
	}
	return s.policy
}

func (s *Service) compute(ctx context.Context, branchID, recipeID snowflake.ID, period forecastdomain.Period, scenario forecastdomain.Scenario) (*forecastdomain.ForecastPoint, error) {
	policy := s.currentPolicy()
	facts, err := s.history.Facts(ctx, historydomain.FactsQuery{
		BranchID: branchID,
		RecipeID: recipeID,
		From:     period.Start.AddDate(0, 0, -policy.LookbackDays),
		To:       period.Start,
	})
	if err != nil {
		return nil, err
	}

	point := ComputePoint(facts, period, scenario, policy)
	point.BranchID = branchID
	point.RecipeID = recipeID

	if s.metrics != nil {
		s.metrics.RecordForecast(ctx, string(scenario), point.Degraded)
	}
	if point.Degraded {
		s.log.Debug("degraded forecast",
			zap.String("branch_id", branchID.String()),
			zap.String("recipe_id", recipeID.String()),
			zap.String("period", period.Label()),
			zap.Int("history_days", point.HistoryDays),
		)
	}
	return &point, nil
}

func (s *Service) checkSeries(ctx context.Context, branchID, recipeID snowflake.ID) error {
	if branchID == 0 {
		return forecastdomain.ErrInvalidBranch
	}
	if recipeID == 0 {
		return forecastdomain.ErrInvalidRecipe
	}
	if _, err := s.masters.GetBranch(ctx, branchID); err != nil {
		return err
	}
	if _, err := s.masters.GetRecipe(ctx, recipeID); err != nil {
		return err
	}
	return nil
}

func (s *Service) saveRecords(ctx context.Context, points []*forecastdomain.ForecastPoint) (int, error) {
	now := time.Now().UTC()
	rows := make([]*forecastdomain.ForecastRecord, 0, len(points))
	for _, p := range points {
		rows = append(rows, &forecastdomain.ForecastRecord{
			ID:          s.genID.Generate(),
			BranchID:    p.BranchID,
			RecipeID:    p.RecipeID,
			PeriodType:  string(p.Period.Type),
			PeriodStart: p.Period.Start,
			Scenario:    string(p.Scenario),
			Point:       p.Point,
			LowerBound:  p.LowerBound,
			UpperBound:  p.UpperBound,
			Confidence:  p.Confidence,
			Degraded:    p.Degraded,
			HistoryDays: p.HistoryDays,
			ComputedAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	err := s.recordRepo.Upsert(ctx,
		[]string{"branch_id", "recipe_id", "period_type", "period_start", "scenario"},
		[]string{"point", "lower_bound", "upper_bound", "confidence", "degraded", "history_days", "computed_at", "updated_at"},
		rows,
	)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
