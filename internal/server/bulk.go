package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bulkdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/bulkload/domain"
)

type bulkPreviewRequest struct {
	Kind   string                `json:"kind"`
	Source string                `json:"source"`
	Rows   []bulkdomain.InputRow `json:"rows"`
}

func (s *Server) BulkPreview(c *gin.Context) {
	var req bulkPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bulkSvc.Preview(c.Request.Context(), bulkdomain.PreviewRequest{
		Kind:   strings.ToLower(strings.TrimSpace(req.Kind)),
		Source: strings.TrimSpace(req.Source),
		Rows:   req.Rows,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type bulkConfirmRequest struct {
	Ref string `json:"ref"`
}

func (s *Server) BulkConfirm(c *gin.Context) {
	var req bulkConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bulkSvc.Confirm(c.Request.Context(), bulkdomain.ConfirmRequest{
		Ref: strings.TrimSpace(req.Ref),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
