package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
)

func (s *Server) ListBranches(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.mastersSvc.ListBranches(c.Request.Context(), mastersdomain.ListBranchesRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createBranchRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s *Server) CreateBranch(c *gin.Context) {
	var req createBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.mastersSvc.CreateBranch(c.Request.Context(), mastersdomain.CreateBranchRequest{
		Code: strings.TrimSpace(req.Code),
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBranchByID(c *gin.Context) {
	id, ok := parseSnowflakeID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_branch", "invalid branch id"))
		return
	}

	resp, err := s.mastersSvc.GetBranch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRecipes(c *gin.Context) {
	var query struct {
		IncludePreparations bool   `form:"include_preparations"`
		PageToken           string `form:"page_token"`
		PageSize            int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.mastersSvc.ListRecipes(c.Request.Context(), mastersdomain.ListRecipesRequest{
		IncludePreparations: query.IncludePreparations,
		PageToken:           query.PageToken,
		PageSize:            query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createRecipeRequest struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	IsPreparation bool   `json:"is_preparation"`
}

func (s *Server) CreateRecipe(c *gin.Context) {
	var req createRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.mastersSvc.CreateRecipe(c.Request.Context(), mastersdomain.CreateRecipeRequest{
		Code:          strings.TrimSpace(req.Code),
		Name:          strings.TrimSpace(req.Name),
		Unit:          strings.TrimSpace(req.Unit),
		IsPreparation: req.IsPreparation,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRecipeByID(c *gin.Context) {
	id, ok := parseSnowflakeID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_recipe", "invalid recipe id"))
		return
	}

	resp, err := s.mastersSvc.GetRecipe(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type resolveMastersRequest struct {
	Branch string `json:"branch"`
	Recipe string `json:"recipe"`
}

// ResolveMasters runs free text through the branch and recipe match chains.
// Either field may be empty; only the supplied ones resolve.
func (s *Server) ResolveMasters(c *gin.Context) {
	var req resolveMastersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Branch) == "" && strings.TrimSpace(req.Recipe) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	out := gin.H{}
	if strings.TrimSpace(req.Branch) != "" {
		resolution, err := s.mastersSvc.ResolveBranch(c.Request.Context(), req.Branch)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		out["branch"] = resolution
	}
	if strings.TrimSpace(req.Recipe) != "" {
		resolution, err := s.mastersSvc.ResolveRecipe(c.Request.Context(), req.Recipe)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		out["recipe"] = resolution
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}
