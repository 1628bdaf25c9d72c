package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
)

func (s *Server) CreateTrainer(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.trainerSvc.Create(c.Request.Context(), trainerdomain.CreateTrainerRequest{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTrainers(c *gin.Context) {
	var query struct {
		PageToken  string `form:"page_token"`
		PageSize   int32  `form:"page_size"`
		Name       string `form:"name"`
		ActiveOnly string `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	activeOnly, err := parseOptionalBool(query.ActiveOnly)
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid active_only"))
		return
	}

	resp, err := s.trainerSvc.List(c.Request.Context(), trainerdomain.ListTrainerRequest{
		PageToken:  strings.TrimSpace(query.PageToken),
		PageSize:   query.PageSize,
		Name:       strings.TrimSpace(query.Name),
		ActiveOnly: activeOnly != nil && *activeOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTrainerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.trainerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateTrainer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.trainerSvc.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "active": false}})
}

func isTrainerValidationError(err error) bool {
	switch err {
	case trainerdomain.ErrInvalidName,
		trainerdomain.ErrInvalidEmail,
		trainerdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
