package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
)

func (s *Server) ListHistory(c *gin.Context) {
	var query struct {
		BranchID  string `form:"branch_id"`
		RecipeID  string `form:"recipe_id"`
		From      string `form:"from"`
		To        string `form:"to"`
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	branchID, ok := parseOptionalSnowflakeID(query.BranchID)
	if !ok {
		AbortWithError(c, newValidationError("branch_id", "invalid_branch", "invalid branch_id"))
		return
	}
	recipeID, ok := parseOptionalSnowflakeID(query.RecipeID)
	if !ok {
		AbortWithError(c, newValidationError("recipe_id", "invalid_recipe", "invalid recipe_id"))
		return
	}
	from, ok := parseOptionalDate(query.From)
	if !ok {
		AbortWithError(c, newValidationError("from", "invalid_date", "invalid from date"))
		return
	}
	to, ok := parseOptionalDate(query.To)
	if !ok {
		AbortWithError(c, newValidationError("to", "invalid_date", "invalid to date"))
		return
	}

	resp, err := s.historySvc.List(c.Request.Context(), historydomain.ListRequest{
		BranchID:  branchID,
		RecipeID:  recipeID,
		From:      from,
		To:        to,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type upsertHistoryRequest struct {
	Source string           `json:"source"`
	Facts  []upsertFactItem `json:"facts"`
}

type upsertFactItem struct {
	BranchID string  `json:"branch_id"`
	RecipeID string  `json:"recipe_id"`
	SaleDate string  `json:"sale_date"`
	Quantity float64 `json:"quantity"`
}

func (s *Server) UpsertHistory(c *gin.Context) {
	var req upsertHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Facts) == 0 {
		AbortWithError(c, newValidationError("facts", "invalid_request", "facts is required"))
		return
	}

	facts := make([]historydomain.UpsertFact, 0, len(req.Facts))
	for _, item := range req.Facts {
		branchID, ok := parseSnowflakeID(item.BranchID)
		if !ok {
			AbortWithError(c, newValidationError("branch_id", "invalid_branch", "invalid branch_id"))
			return
		}
		recipeID, ok := parseSnowflakeID(item.RecipeID)
		if !ok {
			AbortWithError(c, newValidationError("recipe_id", "invalid_recipe", "invalid recipe_id"))
			return
		}
		saleDate, ok := parseDate(item.SaleDate)
		if !ok {
			AbortWithError(c, newValidationError("sale_date", "invalid_date", "invalid sale_date"))
			return
		}
		facts = append(facts, historydomain.UpsertFact{
			BranchID: branchID,
			RecipeID: recipeID,
			SaleDate: saleDate,
			Quantity: item.Quantity,
			Source:   req.Source,
		})
	}

	written, err := s.historySvc.UpsertFacts(c.Request.Context(), facts)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"written": written}})
}
