package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/pagination"
)

// MatchMethod records how a free-text name was resolved against master data.
type MatchMethod string

const (
	MatchExact    MatchMethod = "EXACT"
	MatchContains MatchMethod = "CONTAINS"
	MatchFuzzy    MatchMethod = "FUZZY"
	MatchNone     MatchMethod = "NO_MATCH"
)

// Resolution is the outcome of matching a free-text name. ID is zero when
// Method is MatchNone.
type Resolution struct {
	Query  string       `json:"query"`
	ID     snowflake.ID `json:"id"`
	Code   string       `json:"code"`
	Name   string       `json:"name"`
	Method MatchMethod  `json:"method"`
	Score  float64      `json:"score"`
}

type CreateBranchRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CreateRecipeRequest struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	IsPreparation bool   `json:"is_preparation"`
}

type ListBranchesRequest struct {
	PageToken string `json:"page_token"`
	PageSize  int    `json:"page_size"`
}

type ListBranchesResponse struct {
	pagination.PageInfo
	Branches []Branch `json:"branches"`
}

type ListRecipesRequest struct {
	IncludePreparations bool   `json:"include_preparations"`
	PageToken           string `json:"page_token"`
	PageSize            int    `json:"page_size"`
}

type ListRecipesResponse struct {
	pagination.PageInfo
	Recipes []Recipe `json:"recipes"`
}

type Service interface {
	ListBranches(context.Context, ListBranchesRequest) (ListBranchesResponse, error)
	ListRecipes(context.Context, ListRecipesRequest) (ListRecipesResponse, error)
	GetBranch(ctx context.Context, id snowflake.ID) (*Branch, error)
	GetRecipe(ctx context.Context, id snowflake.ID) (*Recipe, error)
	CreateBranch(context.Context, CreateBranchRequest) (*Branch, error)
	CreateRecipe(context.Context, CreateRecipeRequest) (*Recipe, error)
	ResolveBranch(ctx context.Context, name string) (Resolution, error)
	ResolveRecipe(ctx context.Context, name string) (Resolution, error)
}

var (
	ErrInvalidCode    = errors.New("invalid_code")
	ErrInvalidName    = errors.New("invalid_name")
	ErrDuplicateCode  = errors.New("duplicate_code")
	ErrBranchNotFound = errors.New("branch_not_found")
	ErrRecipeNotFound = errors.New("recipe_not_found")
)
