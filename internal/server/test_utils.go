package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type testCleanupRequest struct {
	Prefix string `json:"prefix"`
}

// TestCleanup wipes every row created under a naming prefix. E2E suites
// prefix their members and trainers and call this once per run.
func (s *Server) TestCleanup(c *gin.Context) {
	if s.cfg.Environment == "production" {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req testCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		AbortWithError(c, newValidationError("prefix", "required", "prefix is required"))
		return
	}

	ctx := c.Request.Context()
	like := prefix + "%"

	var memberIDs []int64
	if err := s.db.WithContext(ctx).
		Table("members").
		Select("id").
		Where("name LIKE ?", like).
		Scan(&memberIDs).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	if len(memberIDs) > 0 {
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM pass_usages WHERE pass_id IN (SELECT id FROM passes WHERE member_id IN ?)`, memberIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM passes WHERE member_id IN ?`, memberIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM client_occurrence_prices WHERE member_id IN ?`, memberIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM client_template_prices WHERE member_id IN ?`, memberIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM registrations WHERE member_id IN ?`, memberIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM members WHERE id IN ?`, memberIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
	}

	var trainerIDs []int64
	if err := s.db.WithContext(ctx).
		Table("trainers").
		Select("id").
		Where("name LIKE ?", like).
		Scan(&trainerIDs).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	if len(trainerIDs) > 0 {
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM settlement_items WHERE settlement_id IN (SELECT id FROM settlements WHERE trainer_id IN ?)`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM settlement_skips WHERE settlement_id IN (SELECT id FROM settlements WHERE trainer_id IN ?)`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM settlements WHERE trainer_id IN ?`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM registrations WHERE occurrence_id IN (SELECT id FROM class_occurrences WHERE template_id IN (SELECT id FROM class_templates WHERE trainer_id IN ?))`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM client_occurrence_prices WHERE occurrence_id IN (SELECT id FROM class_occurrences WHERE template_id IN (SELECT id FROM class_templates WHERE trainer_id IN ?))`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM class_occurrences WHERE template_id IN (SELECT id FROM class_templates WHERE trainer_id IN ?)`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM client_template_prices WHERE template_id IN (SELECT id FROM class_templates WHERE trainer_id IN ?)`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM template_default_prices WHERE template_id IN (SELECT id FROM class_templates WHERE trainer_id IN ?)`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM class_templates WHERE trainer_id IN ?`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM trainers WHERE id IN ?`, trainerIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
