package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
)

func (s *Server) CreateMember(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.memberSvc.Create(c.Request.Context(), memberdomain.CreateMemberRequest{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMembers(c *gin.Context) {
	var query struct {
		PageToken   string `form:"page_token"`
		PageSize    int32  `form:"page_size"`
		Name        string `form:"name"`
		Email       string `form:"email"`
		CreatedFrom string `form:"created_from"`
		CreatedTo   string `form:"created_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdFrom, err := parseOptionalTime(query.CreatedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_created_from", "invalid created_from"))
		return
	}

	createdTo, err := parseOptionalTime(query.CreatedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_created_to", "invalid created_to"))
		return
	}

	resp, err := s.memberSvc.List(c.Request.Context(), memberdomain.ListMemberRequest{
		PageToken:   strings.TrimSpace(query.PageToken),
		PageSize:    query.PageSize,
		Name:        strings.TrimSpace(query.Name),
		Email:       strings.TrimSpace(query.Email),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMemberByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.memberSvc.GetByID(c.Request.Context(), memberdomain.GetMemberRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMemberPricingRules(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.pricingSvc.ListMemberRules(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isMemberValidationError(err error) bool {
	switch err {
	case memberdomain.ErrInvalidName,
		memberdomain.ErrInvalidEmail,
		memberdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
