package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	bulkdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/bulkload/domain"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	obsmetrics "github.com/maburgos12/pollyanas-dolce-erp/internal/observability/metrics"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/option"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Masters  mastersdomain.Service
	History  historydomain.Service
	Requests requestdomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	masters    mastersdomain.Service
	history    historydomain.Service
	requests   requestdomain.Service
	metrics    *obsmetrics.Metrics
	batchRepo  repository.Repository[bulkdomain.StagedBatch]
	rowRepo    repository.Repository[bulkdomain.StagedRow]
	recordRepo repository.Repository[forecastdomain.ForecastRecord]
}

func NewService(p ServiceParam) bulkdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("bulkload.service"),

		genID:      p.GenID,
		masters:    p.Masters,
		history:    p.History,
		requests:   p.Requests,
		metrics:    p.Metrics,
		batchRepo:  repository.ProvideStore[bulkdomain.StagedBatch](p.DB),
		rowRepo:    repository.ProvideStore[bulkdomain.StagedRow](p.DB),
		recordRepo: repository.ProvideStore[forecastdomain.ForecastRecord](p.DB),
	}
}

func (s *Service) Preview(ctx context.Context, req bulkdomain.PreviewRequest) (bulkdomain.PreviewResponse, error) {
	if err := validKind(req.Kind); err != nil {
		return bulkdomain.PreviewResponse{}, err
	}
	if len(req.Rows) == 0 {
		return bulkdomain.PreviewResponse{}, bulkdomain.ErrEmptyBatch
	}

	batchID := s.genID.Generate()
	ref := ulid.Make().String()
	now := time.Now().UTC()

	resp := bulkdomain.PreviewResponse{Ref: ref, Kind: req.Kind}
	seenKeys := make(map[string]struct{}, len(req.Rows))
	stagedRows := make([]*bulkdomain.StagedRow, 0, len(req.Rows))

	for i, row := range req.Rows {
		lineNo := i + 1
		payload, outcome := s.validateRow(ctx, req.Kind, row)
		outcome.LineNo = lineNo

		// first occurrence of a natural key wins; later ones are rejected,
		// never merged
		if outcome.Status != bulkdomain.RowReject {
			key := naturalKey(req.Kind, payload)
			if _, dup := seenKeys[key]; dup {
				outcome.Status = bulkdomain.RowReject
				outcome.Reason = bulkdomain.ReasonDuplicateInBatch
			} else {
				seenKeys[key] = struct{}{}
			}
		}

		switch outcome.Status {
		case bulkdomain.RowAccept:
			resp.Accepted++
		case bulkdomain.RowWarn:
			resp.Warned++
		case bulkdomain.RowReject:
			resp.Rejected++
			if s.metrics != nil {
				s.metrics.RecordBulkRejected(ctx, req.Kind, outcome.Reason, 1)
			}
		}
		resp.Outcomes = append(resp.Outcomes, outcome)

		stagedRows = append(stagedRows, &bulkdomain.StagedRow{
			ID:        s.genID.Generate(),
			BatchID:   batchID,
			LineNo:    lineNo,
			Payload:   datatypes.JSONMap(payload),
			Status:    outcome.Status,
			Reason:    outcome.Reason,
			CreatedAt: now,
		})
	}

	batch := &bulkdomain.StagedBatch{
		ID:            batchID,
		Ref:           ref,
		Kind:          req.Kind,
		Mode:          "replace",
		Source:        req.Source,
		Status:        bulkdomain.BatchStatusPending,
		RowCount:      len(req.Rows),
		AcceptedCount: resp.Accepted + resp.Warned,
		RejectedCount: resp.Rejected,
		CreatedAt:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.batchRepo.WithTrx(tx).Create(ctx, batch); err != nil {
			return err
		}
		return s.rowRepo.WithTrx(tx).BatchCreate(ctx, stagedRows)
	})
	if err != nil {
		return bulkdomain.PreviewResponse{}, err
	}
	return resp, nil
}

func (s *Service) Confirm(ctx context.Context, req bulkdomain.ConfirmRequest) (bulkdomain.ConfirmResponse, error) {
	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		return bulkdomain.ConfirmResponse{}, bulkdomain.ErrBatchNotFound
	}

	batch, err := s.batchRepo.FindOne(ctx, &bulkdomain.StagedBatch{Ref: ref})
	if err != nil {
		return bulkdomain.ConfirmResponse{}, err
	}
	if batch == nil {
		return bulkdomain.ConfirmResponse{}, bulkdomain.ErrBatchNotFound
	}
	if batch.Status == bulkdomain.BatchStatusApplied {
		return bulkdomain.ConfirmResponse{Ref: ref, AlreadyApplied: true}, nil
	}

	rows, err := s.rowRepo.Find(ctx, &bulkdomain.StagedRow{BatchID: batch.ID}, option.WithOrder("line_no ASC"))
	if err != nil {
		return bulkdomain.ConfirmResponse{}, err
	}

	resp := bulkdomain.ConfirmResponse{Ref: ref}
	var applicable []*bulkdomain.StagedRow
	for _, row := range rows {
		if row.Status == bulkdomain.RowReject {
			resp.Rejected++
			continue
		}
		// data may have changed between preview and confirm
		if reason := s.revalidate(ctx, batch.Kind, row.Payload); reason != "" {
			resp.Rejected++
			resp.Details = append(resp.Details, bulkdomain.RowOutcome{
				LineNo: row.LineNo,
				Status: bulkdomain.RowReject,
				Reason: reason,
			})
			if s.metrics != nil {
				s.metrics.RecordBulkRejected(ctx, batch.Kind, reason, 1)
			}
			continue
		}
		applicable = append(applicable, row)
	}

	// flip first so a concurrent confirm of the same ref loses cleanly;
	// every apply path below is a natural-key upsert, so a retried batch
	// cannot double-count
	res := s.db.WithContext(ctx).Model(&bulkdomain.StagedBatch{}).
		Where("id = ? AND status = ?", batch.ID, bulkdomain.BatchStatusPending).
		Updates(map[string]any{
			"status":     bulkdomain.BatchStatusApplied,
			"applied_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return bulkdomain.ConfirmResponse{}, res.Error
	}
	if res.RowsAffected == 0 {
		resp.AlreadyApplied = true
		return resp, nil
	}

	applied, err := s.apply(ctx, batch, applicable)
	if err != nil {
		s.db.WithContext(ctx).Model(&bulkdomain.StagedBatch{}).
			Where("id = ?", batch.ID).
			Updates(map[string]any{"status": bulkdomain.BatchStatusPending, "applied_at": nil})
		return bulkdomain.ConfirmResponse{}, err
	}
	resp.Applied = applied

	if resp.Applied > 0 && s.metrics != nil {
		s.metrics.RecordBulkApplied(ctx, batch.Kind, resp.Applied)
	}
	return resp, nil
}

func (s *Service) apply(ctx context.Context, batch *bulkdomain.StagedBatch, rows []*bulkdomain.StagedRow) (int, error) {
	switch batch.Kind {
	case bulkdomain.KindHistory:
		facts := make([]historydomain.UpsertFact, 0, len(rows))
		for _, row := range rows {
			d, _ := time.Parse("2006-01-02", payloadString(row.Payload, "date"))
			facts = append(facts, historydomain.UpsertFact{
				BranchID: payloadID(row.Payload, "branch_id"),
				RecipeID: payloadID(row.Payload, "recipe_id"),
				SaleDate: d,
				Quantity: payloadFloat(row.Payload, "quantity"),
				Source:   batch.Source,
			})
		}
		return s.history.UpsertFacts(ctx, facts)

	case bulkdomain.KindForecast:
		now := time.Now().UTC()
		records := make([]*forecastdomain.ForecastRecord, 0, len(rows))
		for _, row := range rows {
			start, _ := time.Parse("2006-01-02", payloadString(row.Payload, "period_start"))
			qty := payloadFloat(row.Payload, "quantity")
			record := &forecastdomain.ForecastRecord{
				ID:          s.genID.Generate(),
				BranchID:    payloadID(row.Payload, "branch_id"),
				RecipeID:    payloadID(row.Payload, "recipe_id"),
				PeriodType:  payloadString(row.Payload, "period_type"),
				PeriodStart: start,
				Scenario:    payloadString(row.Payload, "scenario"),
				Point:       qty,
				LowerBound:  payloadFloatDefault(row.Payload, "lower", qty),
				UpperBound:  payloadFloatDefault(row.Payload, "upper", qty),
				Confidence:  payloadFloatDefault(row.Payload, "confidence", 0),
				ComputedAt:  now,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			records = append(records, record)
		}
		err := s.recordRepo.Upsert(ctx,
			[]string{"branch_id", "recipe_id", "period_type", "period_start", "scenario"},
			[]string{"point", "lower_bound", "upper_bound", "confidence", "computed_at", "updated_at"},
			records,
		)
		if err != nil {
			return 0, err
		}
		return len(records), nil

	case bulkdomain.KindRequest:
		applied := 0
		for _, row := range rows {
			anchor, _ := time.Parse("2006-01-02", payloadString(row.Payload, "period_start"))
			_, err := s.requests.Upsert(ctx, requestdomain.UpsertRequest{
				BranchID:     payloadID(row.Payload, "branch_id"),
				RecipeID:     payloadID(row.Payload, "recipe_id"),
				PeriodType:   payloadString(row.Payload, "period_type"),
				PeriodAnchor: anchor,
				RequestedQty: decimal.NewFromFloat(payloadFloat(row.Payload, "quantity")),
				Source:       batch.Source,
			})
			if err != nil {
				return applied, err
			}
			applied++
		}
		return applied, nil
	}
	return 0, bulkdomain.ErrInvalidKind
}

// validateRow resolves masters and normalizes the row into the payload that
// confirm will apply.
func (s *Service) validateRow(ctx context.Context, kind string, row bulkdomain.InputRow) (map[string]any, bulkdomain.RowOutcome) {
	outcome := bulkdomain.RowOutcome{Status: bulkdomain.RowAccept}
	payload := map[string]any{"quantity": row.Quantity}

	if row.Quantity < 0 || math.IsNaN(row.Quantity) || math.IsInf(row.Quantity, 0) {
		outcome.Status = bulkdomain.RowReject
		outcome.Reason = bulkdomain.ReasonInvalidQuantity
		return payload, outcome
	}

	branch, err := s.masters.ResolveBranch(ctx, row.Branch)
	if err != nil || branch.Method == mastersdomain.MatchNone {
		outcome.Status = bulkdomain.RowReject
		outcome.Reason = bulkdomain.ReasonUnknownBranch
		return payload, outcome
	}
	recipe, err := s.masters.ResolveRecipe(ctx, row.Recipe)
	if err != nil || recipe.Method == mastersdomain.MatchNone {
		outcome.Status = bulkdomain.RowReject
		outcome.Reason = bulkdomain.ReasonUnknownRecipe
		return payload, outcome
	}
	payload["branch_id"] = branch.ID.String()
	payload["recipe_id"] = recipe.ID.String()
	outcome.BranchMatch = string(branch.Method)
	outcome.RecipeMatch = string(recipe.Method)

	if branch.Method == mastersdomain.MatchFuzzy || recipe.Method == mastersdomain.MatchFuzzy {
		outcome.Status = bulkdomain.RowWarn
		outcome.Reason = bulkdomain.ReasonFuzzyMatch
	}

	switch kind {
	case bulkdomain.KindHistory:
		d, err := time.Parse("2006-01-02", strings.TrimSpace(row.Date))
		if err != nil {
			outcome.Status = bulkdomain.RowReject
			outcome.Reason = bulkdomain.ReasonInvalidDate
			return payload, outcome
		}
		payload["date"] = d.Format("2006-01-02")

	case bulkdomain.KindForecast, bulkdomain.KindRequest:
		periodType, err := forecastdomain.ParsePeriodType(row.PeriodType)
		if err != nil {
			outcome.Status = bulkdomain.RowReject
			outcome.Reason = bulkdomain.ReasonInvalidPeriod
			return payload, outcome
		}
		anchor, err := time.Parse("2006-01-02", strings.TrimSpace(row.PeriodAnchor))
		if err != nil {
			outcome.Status = bulkdomain.RowReject
			outcome.Reason = bulkdomain.ReasonInvalidPeriod
			return payload, outcome
		}
		period, err := forecastdomain.NewPeriod(periodType, anchor)
		if err != nil {
			outcome.Status = bulkdomain.RowReject
			outcome.Reason = bulkdomain.ReasonInvalidPeriod
			return payload, outcome
		}
		payload["period_type"] = string(period.Type)
		payload["period_start"] = period.Start.Format("2006-01-02")

		if kind == bulkdomain.KindForecast {
			scenario, err := forecastdomain.ParseScenario(row.Scenario)
			if err != nil {
				outcome.Status = bulkdomain.RowReject
				outcome.Reason = bulkdomain.ReasonInvalidScenario
				return payload, outcome
			}
			payload["scenario"] = string(scenario)
			if row.Lower != nil {
				payload["lower"] = *row.Lower
			}
			if row.Upper != nil {
				payload["upper"] = *row.Upper
			}
			if row.Confidence != nil {
				payload["confidence"] = *row.Confidence
			}
		}
	}

	return payload, outcome
}

// revalidate re-checks a staged payload at confirm time: masters may have
// been deactivated and quantities are checked again defensively.
func (s *Service) revalidate(ctx context.Context, kind string, payload datatypes.JSONMap) string {
	if payloadFloat(payload, "quantity") < 0 {
		return bulkdomain.ReasonInvalidQuantity
	}
	if _, err := s.masters.GetBranch(ctx, payloadID(payload, "branch_id")); err != nil {
		return bulkdomain.ReasonUnknownBranch
	}
	if _, err := s.masters.GetRecipe(ctx, payloadID(payload, "recipe_id")); err != nil {
		return bulkdomain.ReasonUnknownRecipe
	}
	_ = kind
	return ""
}

func validKind(kind string) error {
	switch kind {
	case bulkdomain.KindHistory, bulkdomain.KindForecast, bulkdomain.KindRequest:
		return nil
	default:
		return bulkdomain.ErrInvalidKind
	}
}

func naturalKey(kind string, payload map[string]any) string {
	switch kind {
	case bulkdomain.KindHistory:
		return fmt.Sprintf("%v|%v|%v", payload["branch_id"], payload["recipe_id"], payload["date"])
	case bulkdomain.KindForecast:
		return fmt.Sprintf("%v|%v|%v|%v|%v",
			payload["branch_id"], payload["recipe_id"], payload["period_type"], payload["period_start"], payload["scenario"])
	default:
		return fmt.Sprintf("%v|%v|%v|%v",
			payload["branch_id"], payload["recipe_id"], payload["period_type"], payload["period_start"])
	}
}

func payloadString(payload datatypes.JSONMap, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// payloadFloat covers both in-process payloads (float64) and payloads read
// back from staged_rows, which JSONMap decodes with UseNumber.
func payloadFloat(payload datatypes.JSONMap, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func payloadFloatDefault(payload datatypes.JSONMap, key string, def float64) float64 {
	if _, ok := payload[key]; !ok {
		return def
	}
	return payloadFloat(payload, key)
}

func payloadID(payload datatypes.JSONMap, key string) snowflake.ID {
	id, err := snowflake.ParseString(payloadString(payload, key))
	if err != nil {
		return 0
	}
	return id
}
