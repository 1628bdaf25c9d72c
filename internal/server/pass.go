package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
)

func (s *Server) CreatePass(c *gin.Context) {
	var req passdomain.CreatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.passSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPasses(c *gin.Context) {
	memberID := strings.TrimSpace(c.Query("member_id"))
	resp, err := s.passSvc.List(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPassByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.passSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPassBalance(c *gin.Context) {
	memberID := strings.TrimSpace(c.Query("member_id"))
	total, err := s.passSvc.TotalAvailableCredits(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"member_id":         memberID,
		"available_credits": total,
	}})
}

func (s *Server) DeductPassCredit(c *gin.Context) {
	var req passdomain.DeductCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.passSvc.DeductCredit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RefundPassCredit(c *gin.Context) {
	var req passdomain.RefundCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.passSvc.RefundCredit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPassUsages(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.passSvc.ListUsages(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isPassValidationError(err error) bool {
	switch err {
	case passdomain.ErrInvalidMember,
		passdomain.ErrInvalidCredits,
		passdomain.ErrInvalidWindow,
		passdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
