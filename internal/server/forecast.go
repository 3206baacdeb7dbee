package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
)

type forecastRequest struct {
	BranchID         string   `json:"branch_id"`
	RecipeID         string   `json:"recipe_id"`
	PeriodType       string   `json:"period_type"`
	PeriodAnchor     string   `json:"period_anchor"`
	Scenario         string   `json:"scenario"`
	MinConfidencePct *float64 `json:"min_confidence_pct,omitempty"`
}

func (s *Server) Forecast(c *gin.Context) {
	var req forecastRequest
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
	anchor, ok := parseOptionalDate(req.PeriodAnchor)
	if !ok {
		AbortWithError(c, newValidationError("period_anchor", "invalid_period", "invalid period_anchor"))
		return
	}

	resp, err := s.forecastSvc.Forecast(c.Request.Context(), forecastdomain.ForecastRequest{
		BranchID:         branchID,
		RecipeID:         recipeID,
		PeriodType:       req.PeriodType,
		PeriodAnchor:     anchor,
		Scenario:         req.Scenario,
		MinConfidencePct: req.MinConfidencePct,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type forecastBatchRequest struct {
	Items []struct {
		BranchID string `json:"branch_id"`
		RecipeID string `json:"recipe_id"`
	} `json:"items"`
	PeriodType       string   `json:"period_type"`
	PeriodAnchor     string   `json:"period_anchor"`
	Scenario         string   `json:"scenario"`
	MinConfidencePct *float64 `json:"min_confidence_pct,omitempty"`
	Persist          bool     `json:"persist"`
}

func (s *Server) ForecastBatch(c *gin.Context) {
	var req forecastBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Items) == 0 {
		AbortWithError(c, newValidationError("items", "invalid_request", "items is required"))
		return
	}

	anchor, ok := parseOptionalDate(req.PeriodAnchor)
	if !ok {
		AbortWithError(c, newValidationError("period_anchor", "invalid_period", "invalid period_anchor"))
		return
	}

	items := make([]forecastdomain.ForecastBatchItem, 0, len(req.Items))
	for _, item := range req.Items {
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
		items = append(items, forecastdomain.ForecastBatchItem{BranchID: branchID, RecipeID: recipeID})
	}

	resp, err := s.forecastSvc.ForecastBatch(c.Request.Context(), forecastdomain.ForecastBatchRequest{
		Items:            items,
		PeriodType:       req.PeriodType,
		PeriodAnchor:     anchor,
		Scenario:         req.Scenario,
		MinConfidencePct: req.MinConfidencePct,
		Persist:          req.Persist,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListForecastRecords(c *gin.Context) {
	var query struct {
		BranchID   string `form:"branch_id"`
		RecipeID   string `form:"recipe_id"`
		PeriodType string `form:"period_type"`
		Scenario   string `form:"scenario"`
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

	resp, err := s.forecastSvc.ListRecords(c.Request.Context(), forecastdomain.ListRecordsRequest{
		BranchID:   branchID,
		RecipeID:   recipeID,
		PeriodType: query.PeriodType,
		Scenario:   query.Scenario,
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type backtestRequest struct {
	BranchID   string `json:"branch_id"`
	RecipeID   string `json:"recipe_id"`
	Scenario   string `json:"scenario"`
	PeriodType string `json:"period_type"`
	Windows    int    `json:"windows"`
	Step       int    `json:"step"`
}

func (s *Server) Backtest(c *gin.Context) {
	var req backtestRequest
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

	resp, err := s.forecastSvc.Backtest(c.Request.Context(), forecastdomain.BacktestRequest{
		BranchID:   branchID,
		RecipeID:   recipeID,
		Scenario:   req.Scenario,
		PeriodType: req.PeriodType,
		Windows:    req.Windows,
		Step:       req.Step,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type insightsRequest struct {
	BranchID            string `json:"branch_id"`
	From                string `json:"from"`
	To                  string `json:"to"`
	TopN                int    `json:"top_n"`
	Offset              int    `json:"offset"`
	IncludePreparations bool   `json:"include_preparations"`
}

func (s *Server) SeasonalInsights(c *gin.Context) {
	var req insightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	branchID, ok := parseOptionalSnowflakeID(req.BranchID)
	if !ok {
		AbortWithError(c, newValidationError("branch_id", "invalid_branch", "invalid branch_id"))
		return
	}
	from, ok := parseOptionalDate(req.From)
	if !ok {
		AbortWithError(c, newValidationError("from", "invalid_date", "invalid from date"))
		return
	}
	to, ok := parseOptionalDate(req.To)
	if !ok {
		AbortWithError(c, newValidationError("to", "invalid_date", "invalid to date"))
		return
	}

	resp, err := s.forecastSvc.SeasonalInsights(c.Request.Context(), forecastdomain.InsightsRequest{
		BranchID:            branchID,
		From:                from,
		To:                  to,
		TopN:                req.TopN,
		Offset:              req.Offset,
		IncludePreparations: req.IncludePreparations,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
