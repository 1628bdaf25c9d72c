package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
)

type resolvePriceRequest struct {
	MemberID     string     `json:"member_id"`
	Email        string     `json:"email"`
	OccurrenceID string     `json:"occurrence_id"`
	At           *time.Time `json:"at"`
}

// ResolvePrice picks the resolution entry point from the request body: a
// member id walks the member chain, an email without one is looked up or
// treated as a walk-in, neither prices the session at its defaults.
func (s *Server) ResolvePrice(c *gin.Context) {
	var req resolvePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	memberID := strings.TrimSpace(req.MemberID)
	email := strings.TrimSpace(req.Email)
	occurrenceID := strings.TrimSpace(req.OccurrenceID)

	var (
		resp *pricingdomain.ResolvedPrice
		err  error
	)
	switch {
	case memberID != "":
		resp, err = s.pricingSvc.Resolve(c.Request.Context(), pricingdomain.ResolveRequest{
			MemberID:     memberID,
			OccurrenceID: occurrenceID,
			At:           req.At,
		})
	case email != "":
		resp, err = s.pricingSvc.ResolveForEmail(c.Request.Context(), pricingdomain.ResolveForEmailRequest{
			Email:        email,
			OccurrenceID: occurrenceID,
			At:           req.At,
		})
	default:
		resp, err = s.pricingSvc.ResolveDefault(c.Request.Context(), pricingdomain.ResolveDefaultRequest{
			OccurrenceID: occurrenceID,
			At:           req.At,
		})
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateOccurrencePrice(c *gin.Context) {
	var req pricingdomain.CreateOccurrencePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.CreateOccurrencePrice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTemplatePrice(c *gin.Context) {
	var req pricingdomain.CreateTemplatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.CreateTemplatePrice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTemplateDefault(c *gin.Context) {
	var req pricingdomain.CreateTemplateDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.CreateTemplateDefault(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTemplateDefaults(c *gin.Context) {
	templateID := strings.TrimSpace(c.Query("template_id"))
	resp, err := s.pricingSvc.ListTemplateDefaults(c.Request.Context(), templateID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetireTemplateDefault(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.pricingSvc.RetireTemplateDefault(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "retired": true}})
}

func (s *Server) CreateServiceDefault(c *gin.Context) {
	var req pricingdomain.CreateServiceDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.CreateServiceDefault(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListServiceDefaults(c *gin.Context) {
	serviceTypeID := strings.TrimSpace(c.Query("service_type_id"))
	resp, err := s.pricingSvc.ListServiceDefaults(c.Request.Context(), serviceTypeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetireServiceDefault(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.pricingSvc.RetireServiceDefault(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "retired": true}})
}

func (s *Server) GenerateDefaultPrices(c *gin.Context) {
	var req pricingdomain.GenerateDefaultPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.pricingSvc.GenerateDefaultPrices(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"created": created}})
}

func isPricingValidationError(err error) bool {
	switch err {
	case pricingdomain.ErrInvalidMember,
		pricingdomain.ErrInvalidOccurrence,
		pricingdomain.ErrInvalidTemplate,
		pricingdomain.ErrInvalidServiceType,
		pricingdomain.ErrInvalidAmount,
		pricingdomain.ErrInvalidCurrency,
		pricingdomain.ErrInvalidWindow,
		pricingdomain.ErrInvalidEmail,
		pricingdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
