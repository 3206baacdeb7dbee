package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db"
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

	genID      *snowflake.Node
	branchRepo repository.Repository[mastersdomain.Branch]
	recipeRepo repository.Repository[mastersdomain.Recipe]

	mu             sync.RWMutex
	branchCands    []resolved
	branchLoadedAt time.Time
	recipeCands    []resolved
	recipeLoadedAt time.Time
}

// resolved pairs a master row with its precomputed normalized key.
type resolved struct {
	id   snowflake.ID
	code string
	name string
	key  string
}

const candidateTTL = 5 * time.Minute

func NewService(p ServiceParam) mastersdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("masters.service"),

		genID:      p.GenID,
		branchRepo: repository.ProvideStore[mastersdomain.Branch](p.DB),
		recipeRepo: repository.ProvideStore[mastersdomain.Recipe](p.DB),
	}
}

func (s *Service) ListBranches(ctx context.Context, req mastersdomain.ListBranchesRequest) (mastersdomain.ListBranchesResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.branchRepo.Find(ctx, &mastersdomain.Branch{Active: true},
		option.ApplyPagination(pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize}),
	)
	if err != nil {
		return mastersdomain.ListBranchesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(b *mastersdomain.Branch) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: b.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	branches := make([]mastersdomain.Branch, 0, len(items))
	for _, item := range items {
		branches = append(branches, *item)
	}
	return mastersdomain.ListBranchesResponse{PageInfo: *pageInfo, Branches: branches}, nil
}

func (s *Service) ListRecipes(ctx context.Context, req mastersdomain.ListRecipesRequest) (mastersdomain.ListRecipesResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	opts := []option.QueryOption{
		option.ApplyPagination(pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize}),
	}
	if !req.IncludePreparations {
		opts = append(opts, option.WithWhere("is_preparation = ?", false))
	}

	items, err := s.recipeRepo.Find(ctx, &mastersdomain.Recipe{Active: true}, opts...)
	if err != nil {
		return mastersdomain.ListRecipesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *mastersdomain.Recipe) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: r.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	recipes := make([]mastersdomain.Recipe, 0, len(items))
	for _, item := range items {
		recipes = append(recipes, *item)
	}
	return mastersdomain.ListRecipesResponse{PageInfo: *pageInfo, Recipes: recipes}, nil
}

func (s *Service) GetBranch(ctx context.Context, id snowflake.ID) (*mastersdomain.Branch, error) {
	branch, err := s.branchRepo.FindOne(ctx, &mastersdomain.Branch{ID: id})
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, mastersdomain.ErrBranchNotFound
	}
	return branch, nil
}

func (s *Service) GetRecipe(ctx context.Context, id snowflake.ID) (*mastersdomain.Recipe, error) {
	recipe, err := s.recipeRepo.FindOne(ctx, &mastersdomain.Recipe{ID: id})
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, mastersdomain.ErrRecipeNotFound
	}
	return recipe, nil
}

func (s *Service) CreateBranch(ctx context.Context, req mastersdomain.CreateBranchRequest) (*mastersdomain.Branch, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" {
		return nil, mastersdomain.ErrInvalidCode
	}
	if name == "" {
		return nil, mastersdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	branch := &mastersdomain.Branch{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		Slug:      Normalize(name),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.branchRepo.Create(ctx, branch); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, mastersdomain.ErrDuplicateCode
		}
		return nil, err
	}

	s.invalidateCandidates()
	return branch, nil
}

func (s *Service) CreateRecipe(ctx context.Context, req mastersdomain.CreateRecipeRequest) (*mastersdomain.Recipe, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" {
		return nil, mastersdomain.ErrInvalidCode
	}
	if name == "" {
		return nil, mastersdomain.ErrInvalidName
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = "unidad"
	}

	now := time.Now().UTC()
	recipe := &mastersdomain.Recipe{
		ID:            s.genID.Generate(),
		Code:          code,
		Name:          name,
		Slug:          Normalize(name),
		Unit:          unit,
		IsPreparation: req.IsPreparation,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.recipeRepo.Create(ctx, recipe); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, mastersdomain.ErrDuplicateCode
		}
		return nil, err
	}

	s.invalidateCandidates()
	return recipe, nil
}

// ResolveBranch matches a free-text branch name against active branches.
func (s *Service) ResolveBranch(ctx context.Context, name string) (mastersdomain.Resolution, error) {
	key := Normalize(name)
	if key == "" {
		return mastersdomain.Resolution{}, mastersdomain.ErrInvalidName
	}

	cands, err := s.branchCandidates(ctx)
	if err != nil {
		return mastersdomain.Resolution{}, err
	}
	return resolve(name, key, cands), nil
}

// ResolveRecipe matches a free-text recipe name against active recipes.
// Preparations are included: production history rows legitimately reference
// them even though they never get forecast directly.
func (s *Service) ResolveRecipe(ctx context.Context, name string) (mastersdomain.Resolution, error) {
	key := Normalize(name)
	if key == "" {
		return mastersdomain.Resolution{}, mastersdomain.ErrInvalidName
	}

	cands, err := s.recipeCandidates(ctx)
	if err != nil {
		return mastersdomain.Resolution{}, err
	}
	return resolve(name, key, cands), nil
}

// resolve runs the match chain in order of strictness and stops at the first
// strategy that produces a hit.
func resolve(query, key string, rows []resolved) mastersdomain.Resolution {
	cands := make([]candidate, len(rows))
	for i, row := range rows {
		cands[i] = candidate{key: row.key, index: i}
	}

	type strategy struct {
		method mastersdomain.MatchMethod
		fn     func(string, []candidate) (match, bool)
	}
	chain := []strategy{
		{mastersdomain.MatchExact, matchExact},
		{mastersdomain.MatchContains, matchContains},
		{mastersdomain.MatchFuzzy, matchFuzzy},
	}

	for _, st := range chain {
		if m, ok := st.fn(key, cands); ok {
			row := rows[m.index]
			return mastersdomain.Resolution{
				Query:  query,
				ID:     row.id,
				Code:   row.code,
				Name:   row.name,
				Method: st.method,
				Score:  m.score,
			}
		}
	}
	return mastersdomain.Resolution{Query: query, Method: mastersdomain.MatchNone}
}

func (s *Service) branchCandidates(ctx context.Context) ([]resolved, error) {
	s.mu.RLock()
	if s.branchCands != nil && time.Since(s.branchLoadedAt) < candidateTTL {
		cands := s.branchCands
		s.mu.RUnlock()
		return cands, nil
	}
	s.mu.RUnlock()

	branches, err := s.branchRepo.Find(ctx, &mastersdomain.Branch{Active: true})
	if err != nil {
		return nil, err
	}
	cands := make([]resolved, 0, len(branches))
	for _, b := range branches {
		key := b.Slug
		if key == "" {
			key = Normalize(b.Name)
		}
		cands = append(cands, resolved{id: b.ID, code: b.Code, name: b.Name, key: key})
	}

	s.mu.Lock()
	s.branchCands = cands
	s.branchLoadedAt = time.Now()
	s.mu.Unlock()
	return cands, nil
}

func (s *Service) recipeCandidates(ctx context.Context) ([]resolved, error) {
	s.mu.RLock()
	if s.recipeCands != nil && time.Since(s.recipeLoadedAt) < candidateTTL {
		cands := s.recipeCands
		s.mu.RUnlock()
		return cands, nil
	}
	s.mu.RUnlock()

	recipes, err := s.recipeRepo.Find(ctx, &mastersdomain.Recipe{Active: true})
	if err != nil {
		return nil, err
	}
	cands := make([]resolved, 0, len(recipes))
	for _, r := range recipes {
		key := r.Slug
		if key == "" {
			key = Normalize(r.Name)
		}
		cands = append(cands, resolved{id: r.ID, code: r.Code, name: r.Name, key: key})
	}

	s.mu.Lock()
	s.recipeCands = cands
	s.recipeLoadedAt = time.Now()
	s.mu.Unlock()
	return cands, nil
}

func (s *Service) invalidateCandidates() {
	s.mu.Lock()
	s.branchCands = nil
	s.recipeCands = nil
	s.mu.Unlock()
}
