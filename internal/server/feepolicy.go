package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studiokit/kassza/internal/config"
)

type feePolicyPayload struct {
	NoShowChargePercent     int `json:"no_show_charge_percent"`
	LateCancelChargePercent int `json:"late_cancel_charge_percent"`
}

func (s *Server) GetFeePolicy(c *gin.Context) {
	current := s.feePolicy.Get()
	c.JSON(http.StatusOK, gin.H{"data": feePolicyPayload{
		NoShowChargePercent:     current.NoShowChargePercent,
		LateCancelChargePercent: current.LateCancelChargePercent,
	}})
}

// UpdateFeePolicy swaps the active charge percentages. The change takes
// effect on the next settlement computation; already persisted drafts
// keep their numbers until regenerated.
func (s *Server) UpdateFeePolicy(c *gin.Context) {
	var req feePolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if req.NoShowChargePercent < 0 || req.NoShowChargePercent > 100 {
		AbortWithError(c, newValidationError("no_show_charge_percent", "invalid_percent", "percent must be between 0 and 100"))
		return
	}
	if req.LateCancelChargePercent < 0 || req.LateCancelChargePercent > 100 {
		AbortWithError(c, newValidationError("late_cancel_charge_percent", "invalid_percent", "percent must be between 0 and 100"))
		return
	}

	s.feePolicy.Store(config.FeePolicyConfig{
		NoShowChargePercent:     req.NoShowChargePercent,
		LateCancelChargePercent: req.LateCancelChargePercent,
	})

	c.JSON(http.StatusOK, gin.H{"data": req})
}
