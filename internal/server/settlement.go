package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studiokit/kassza/internal/providers/pdf"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
)

type settlementPeriodRequest struct {
	TrainerID   string `json:"trainer_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// parsePeriod turns the request bounds into inclusive instants. A bare
// date for period_end expands to the last nanosecond of that day, so
// "2024-06-30" keeps the whole final day in the period.
func (r settlementPeriodRequest) parsePeriod() (time.Time, time.Time, error) {
	start, err := parseRequiredTime(r.PeriodStart, false)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("period_start", "invalid_period_start", "invalid period_start")
	}
	end, err := parseRequiredTime(r.PeriodEnd, true)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("period_end", "invalid_period_end", "invalid period_end")
	}
	return start, end, nil
}

func (s *Server) PreviewSettlement(c *gin.Context) {
	var req settlementPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, end, err := req.parsePeriod()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.settlementSvc.Compute(c.Request.Context(), settlementdomain.ComputeRequest{
		TrainerID:   strings.TrimSpace(req.TrainerID),
		PeriodStart: start,
		PeriodEnd:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateSettlement(c *gin.Context) {
	var req settlementPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, end, err := req.parsePeriod()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.settlementSvc.Generate(c.Request.Context(), settlementdomain.GenerateRequest{
		TrainerID:   strings.TrimSpace(req.TrainerID),
		PeriodStart: start,
		PeriodEnd:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSettlements(c *gin.Context) {
	var query struct {
		TrainerID string `form:"trainer_id"`
		Status    string `form:"status"`
		From      string `form:"from"`
		To        string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var status *settlementdomain.SettlementStatus
	if raw := strings.TrimSpace(query.Status); raw != "" {
		parsed := settlementdomain.SettlementStatus(strings.ToLower(raw))
		switch parsed {
		case settlementdomain.SettlementStatusDraft,
			settlementdomain.SettlementStatusFinalized,
			settlementdomain.SettlementStatusPaid:
			status = &parsed
		default:
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
	}

	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}

	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.settlementSvc.List(c.Request.Context(), settlementdomain.ListRequest{
		TrainerID: strings.TrimSpace(query.TrainerID),
		Status:    status,
		From:      from,
		To:        to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSettlementByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.settlementSvc.Detail(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) FinalizeSettlement(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.settlementSvc.Finalize(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkSettlementPaid(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.settlementSvc.MarkPaid(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadSettlementStatement(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	detail, err := s.settlementSvc.Detail(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reader, err := s.pdfProvider.GenerateStatement(c.Request.Context(), statementData(s.cfg.AppName, detail))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=settlement-%s.pdf", detail.Settlement.ID))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func statementData(studioName string, detail *settlementdomain.SettlementDetail) pdf.StatementData {
	settlement := detail.Settlement

	data := pdf.StatementData{
		StudioName:   studioName,
		TrainerName:  settlement.TrainerName,
		PeriodLabel:  settlement.PeriodStart.Format(dateOnlyLayout) + " to " + settlement.PeriodEnd.Format(dateOnlyLayout),
		Status:       string(settlement.Status),
		GeneratedAt:  time.Now().UTC().Format("2006-01-02 15:04 UTC"),
		TotalEntry:   pdf.FormatAmount(settlement.TotalEntryBrutto, settlement.Currency),
		TotalTrainer: pdf.FormatAmount(settlement.TotalTrainerBrutto, settlement.Currency),
	}

	for _, item := range detail.Items {
		data.Items = append(data.Items, pdf.StatementItem{
			Date:       item.StartsAt.Format(dateOnlyLayout),
			ClassName:  item.ClassName,
			MemberName: item.MemberName,
			Status:     string(item.RegistrationStatus),
			EntryFee:   pdf.FormatAmount(item.EntryFeeBrutto, ""),
			TrainerFee: pdf.FormatAmount(item.TrainerFeeBrutto, ""),
		})
	}

	for _, skip := range detail.Skips {
		data.Skips = append(data.Skips, pdf.StatementSkip{
			Date:       skip.StartsAt.Format(dateOnlyLayout),
			ClassName:  skip.ClassName,
			MemberName: skip.MemberName,
			Reason:     skip.Reason,
		})
	}

	return data
}

func isSettlementValidationError(err error) bool {
	switch err {
	case settlementdomain.ErrInvalidTrainer,
		settlementdomain.ErrInvalidPeriod,
		settlementdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
