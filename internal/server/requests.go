package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
)

func (s *Server) ListRequests(c *gin.Context) {
	var query struct {
		BranchID   string `form:"branch_id"`
		RecipeID   string `form:"recipe_id"`
		PeriodType string `form:"period_type"`
		Status     string `form:"status"`
		PageToken  string `form:"page_token"`
		PageSize   int    `form:"page_size"`
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

	resp, err := s.requestSvc.List(c.Request.Context(), requestdomain.ListRequest{
		BranchID:   branchID,
		RecipeID:   recipeID,
		PeriodType: query.PeriodType,
		Status:     query.Status,
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type upsertSalesRequest struct {
	BranchID     string          `json:"branch_id"`
	RecipeID     string          `json:"recipe_id"`
	PeriodType   string          `json:"period_type"`
	PeriodAnchor string          `json:"period_anchor"`
	RequestedQty decimal.Decimal `json:"requested_qty"`
	Source       string          `json:"source"`
}

func (s *Server) UpsertRequest(c *gin.Context) {
	var req upsertSalesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	branchID, ok := parseSnowflakeID(req.BranchID)
	if !ok {
		AbortWithError(c, newValidationError("branch_id", "invalid_branch", "invalid branch_id"))
		return
	}
	recipeID, ok := parseSnowflakeID(req.RecipeID)
	if !ok {
		AbortWithError(c, newValidationError("recipe_id", "invalid_recipe", "invalid recipe_id"))
		return
	}
	anchor, ok := parseDate(req.PeriodAnchor)
	if !ok {
		AbortWithError(c, newValidationError("period_anchor", "invalid_period", "invalid period_anchor"))
		return
	}

	resp, err := s.requestSvc.Upsert(c.Request.Context(), requestdomain.UpsertRequest{
		BranchID:     branchID,
		RecipeID:     recipeID,
		PeriodType:   req.PeriodType,
		PeriodAnchor: anchor,
		RequestedQty: req.RequestedQty,
		Source:       strings.TrimSpace(req.Source),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRequestByID(c *gin.Context) {
	requestID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_request_id", "invalid request id"))
		return
	}

	resp, err := s.requestSvc.Get(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type reconcileRequest struct {
	RequestID        string   `json:"request_id"`
	Scenario         string   `json:"scenario"`
	MaxVariationPct  *float64 `json:"max_variation_pct,omitempty"`
	MinConfidencePct *float64 `json:"min_confidence_pct,omitempty"`
	DryRun           bool     `json:"dry_run"`
}

func (s *Server) ReconcileRequest(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	requestID, err := uuid.Parse(strings.TrimSpace(req.RequestID))
	if err != nil {
		AbortWithError(c, newValidationError("request_id", "invalid_request_id", "invalid request_id"))
		return
	}

	resp, err := s.requestSvc.Reconcile(c.Request.Context(), requestdomain.ReconcileRequest{
		RequestID:        requestID,
		Scenario:         req.Scenario,
		MaxVariationPct:  req.MaxVariationPct,
		MinConfidencePct: req.MinConfidencePct,
		DryRun:           req.DryRun,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type applyForecastRequest struct {
	BranchID         string   `json:"branch_id"`
	PeriodType       string   `json:"period_type"`
	PeriodAnchor     string   `json:"period_anchor"`
	Scenario         string   `json:"scenario"`
	Mode             string   `json:"mode"`
	RecipeID         string   `json:"recipe_id,omitempty"`
	MaxVariationPct  *float64 `json:"max_variation_pct,omitempty"`
	MinConfidencePct *float64 `json:"min_confidence_pct,omitempty"`
	DryRun           bool     `json:"dry_run"`
}

func (s *Server) ApplyForecast(c *gin.Context) {
	var req applyForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	branchID, ok := parseSnowflakeID(req.BranchID)
	if !ok {
		AbortWithError(c, newValidationError("branch_id", "invalid_branch", "invalid branch_id"))
		return
	}
	recipeID, ok := parseOptionalSnowflakeID(req.RecipeID)
	if !ok {
		AbortWithError(c, newValidationError("recipe_id", "invalid_recipe", "invalid recipe_id"))
		return
	}
	anchor, ok := parseDate(req.PeriodAnchor)
	if !ok {
		AbortWithError(c, newValidationError("period_anchor", "invalid_period", "invalid period_anchor"))
		return
	}

	resp, err := s.requestSvc.ApplyForecast(c.Request.Context(), requestdomain.ApplyForecastRequest{
		BranchID:         branchID,
		PeriodType:       req.PeriodType,
		PeriodAnchor:     anchor,
		Scenario:         req.Scenario,
		Mode:             req.Mode,
		RecipeID:         recipeID,
		MaxVariationPct:  req.MaxVariationPct,
		MinConfidencePct: req.MinConfidencePct,
		DryRun:           req.DryRun,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
