package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
)

func (s *Server) CreateServiceType(c *gin.Context) {
	var req struct {
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateServiceType(c.Request.Context(), catalogdomain.CreateServiceTypeRequest{
		Name:            strings.TrimSpace(req.Name),
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListServiceTypes(c *gin.Context) {
	activeOnly, err := parseOptionalBool(c.Query("active_only"))
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid active_only"))
		return
	}

	resp, err := s.catalogSvc.ListServiceTypes(c.Request.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateClassTemplate(c *gin.Context) {
	var req struct {
		ServiceTypeID   string   `json:"service_type_id"`
		TrainerID       string   `json:"trainer_id"`
		Name            string   `json:"name"`
		Weekdays        []string `json:"weekdays"`
		StartTimeLocal  string   `json:"start_time_local"`
		DurationMinutes int      `json:"duration_minutes"`
		Capacity        int      `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateTemplate(c.Request.Context(), catalogdomain.CreateTemplateRequest{
		ServiceTypeID:   strings.TrimSpace(req.ServiceTypeID),
		TrainerID:       strings.TrimSpace(req.TrainerID),
		Name:            strings.TrimSpace(req.Name),
		Weekdays:        req.Weekdays,
		StartTimeLocal:  strings.TrimSpace(req.StartTimeLocal),
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListClassTemplates(c *gin.Context) {
	activeOnly, err := parseOptionalBool(c.Query("active_only"))
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid active_only"))
		return
	}

	resp, err := s.catalogSvc.ListTemplates(c.Request.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClassTemplateByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.GetTemplate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetireClassTemplate(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.catalogSvc.RetireTemplate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "active": false}})
}

func (s *Server) CreateOccurrence(c *gin.Context) {
	var req struct {
		TemplateID string    `json:"template_id"`
		StartsAt   time.Time `json:"starts_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateOccurrence(c.Request.Context(), catalogdomain.CreateOccurrenceRequest{
		TemplateID: strings.TrimSpace(req.TemplateID),
		StartsAt:   req.StartsAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateOccurrences(c *gin.Context) {
	var req struct {
		TemplateID string `json:"template_id"`
		From       string `json:"from"`
		To         string `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseRequiredTime(req.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}

	to, err := parseRequiredTime(req.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	created, err := s.catalogSvc.GenerateOccurrences(c.Request.Context(), catalogdomain.GenerateOccurrencesRequest{
		TemplateID: strings.TrimSpace(req.TemplateID),
		From:       from,
		To:         to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"created": created}})
}

func (s *Server) ListOccurrences(c *gin.Context) {
	from, err := parseRequiredTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}

	to, err := parseRequiredTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.catalogSvc.ListOccurrences(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOccurrenceByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.GetOccurrence(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelOccurrence(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.catalogSvc.CancelOccurrence(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "cancelled": true}})
}

func (s *Server) CreateRegistration(c *gin.Context) {
	var req struct {
		OccurrenceID string `json:"occurrence_id"`
		MemberID     string `json:"member_id"`
		GuestEmail   string `json:"guest_email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.Register(c.Request.Context(), catalogdomain.RegisterRequest{
		OccurrenceID: strings.TrimSpace(req.OccurrenceID),
		MemberID:     strings.TrimSpace(req.MemberID),
		GuestEmail:   strings.TrimSpace(req.GuestEmail),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRegistrationByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.GetRegistration(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckInRegistration(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.CheckIn(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkRegistrationNoShow(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.MarkNoShow(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelRegistration(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.CancelRegistration(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isCatalogValidationError(err error) bool {
	switch err {
	case catalogdomain.ErrInvalidName,
		catalogdomain.ErrInvalidID,
		catalogdomain.ErrInvalidWeekdays,
		catalogdomain.ErrInvalidStartTime,
		catalogdomain.ErrInvalidRange,
		catalogdomain.ErrInvalidEmail,
		catalogdomain.ErrMissingParticipant:
		return true
	default:
		return false
	}
}
