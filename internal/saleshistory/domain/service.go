package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/pagination"
)

// Fact is the lean read shape consumed by the forecasting engines: one day,
// one observed quantity. Facts are always returned in ascending date order.
type Fact struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// FactsQuery selects the facts of one series. From is inclusive, To is
// exclusive.
type FactsQuery struct {
	BranchID snowflake.ID
	RecipeID snowflake.ID
	From     time.Time
	To       time.Time
}

type UpsertFact struct {
	BranchID snowflake.ID `json:"branch_id"`
	RecipeID snowflake.ID `json:"recipe_id"`
	SaleDate time.Time    `json:"sale_date"`
	Quantity float64      `json:"quantity"`
	Source   string       `json:"source"`
}

type ListRequest struct {
	BranchID  snowflake.ID `json:"branch_id"`
	RecipeID  snowflake.ID `json:"recipe_id"`
	From      time.Time    `json:"from"`
	To        time.Time    `json:"to"`
	PageToken string       `json:"page_token"`
	PageSize  int          `json:"page_size"`
}

type ListResponse struct {
	pagination.PageInfo
	Facts []SaleFact `json:"facts"`
}

type Service interface {
	// Facts returns the series for one branch and recipe, date ascending.
	Facts(context.Context, FactsQuery) ([]Fact, error)
	// UpsertFacts writes daily quantities, replacing existing rows on the
	// natural key.
	UpsertFacts(ctx context.Context, facts []UpsertFact) (int, error)
	List(context.Context, ListRequest) (ListResponse, error)
}

var (
	ErrInvalidBranch   = errors.New("invalid_branch")
	ErrInvalidRecipe   = errors.New("invalid_recipe")
	ErrInvalidDate     = errors.New("invalid_date")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)
