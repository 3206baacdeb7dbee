package service

import (
	"context"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
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

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	factRepo repository.Repository[historydomain.SaleFact]
}

func NewService(p ServiceParam) historydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("saleshistory.service"),

		genID:    p.GenID,
		factRepo: repository.ProvideStore[historydomain.SaleFact](p.DB),
	}
}

func (s *Service) Facts(ctx context.Context, q historydomain.FactsQuery) ([]historydomain.Fact, error) {
	if q.BranchID == 0 {
		return nil, historydomain.ErrInvalidBranch
	}
	if q.RecipeID == 0 {
		return nil, historydomain.ErrInvalidRecipe
	}

	opts := []option.QueryOption{option.WithOrder("sale_date ASC")}
	if !q.From.IsZero() {
		opts = append(opts, option.WithWhere("sale_date >= ?", dateOnly(q.From)))
	}
	if !q.To.IsZero() {
		opts = append(opts, option.WithWhere("sale_date < ?", dateOnly(q.To)))
	}

	rows, err := s.factRepo.Find(ctx, &historydomain.SaleFact{BranchID: q.BranchID, RecipeID: q.RecipeID}, opts...)
	if err != nil {
		return nil, err
	}

	facts := make([]historydomain.Fact, 0, len(rows))
	for _, row := range rows {
		facts = append(facts, historydomain.Fact{Date: dateOnly(row.SaleDate), Quantity: row.Quantity})
	}
	return facts, nil
}

func (s *Service) UpsertFacts(ctx context.Context, facts []historydomain.UpsertFact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]*historydomain.SaleFact, 0, len(facts))
	for _, f := range facts {
		if f.BranchID == 0 {
			return 0, historydomain.ErrInvalidBranch
		}
		if f.RecipeID == 0 {
			return 0, historydomain.ErrInvalidRecipe
		}
		if f.SaleDate.IsZero() {
			return 0, historydomain.ErrInvalidDate
		}
		if f.Quantity < 0 || math.IsNaN(f.Quantity) || math.IsInf(f.Quantity, 0) {
			return 0, historydomain.ErrInvalidQuantity
		}
		rows = append(rows, &historydomain.SaleFact{
			ID:        s.genID.Generate(),
			BranchID:  f.BranchID,
			RecipeID:  f.RecipeID,
			SaleDate:  dateOnly(f.SaleDate),
			Quantity:  f.Quantity,
			Source:    f.Source,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err := s.factRepo.Upsert(ctx,
		[]string{"branch_id", "recipe_id", "sale_date"},
		[]string{"quantity", "source", "updated_at"},
		rows,
	)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Service) List(ctx context.Context, req historydomain.ListRequest) (historydomain.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := &historydomain.SaleFact{BranchID: req.BranchID, RecipeID: req.RecipeID}
	opts := []option.QueryOption{
		option.ApplyPagination(pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize}),
	}
	if !req.From.IsZero() {
		opts = append(opts, option.WithWhere("sale_date >= ?", dateOnly(req.From)))
	}
	if !req.To.IsZero() {
		opts = append(opts, option.WithWhere("sale_date < ?", dateOnly(req.To)))
	}

	items, err := s.factRepo.Find(ctx, filter, opts...)
	if err != nil {
		return historydomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(f *historydomain.SaleFact) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: f.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	facts := make([]historydomain.SaleFact, 0, len(items))
	for _, item := range items {
		facts = append(facts, *item)
	}
	return historydomain.ListResponse{PageInfo: *pageInfo, Facts: facts}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
