// Package option composes reusable gorm query modifiers.
package option

import (
	"fmt"
	"strings"
	"time"

	"github.com/studiokit/kassza/pkg/db/pagination"
	"gorm.io/gorm"
)

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Condition is a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a WHERE clause for the condition. The field name must
// come from code, never from user input.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		operator := cond.Operator
		if operator == "" {
			operator = EQ
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, operator), cond.Value)
	})
}

// QuerySortBy orders results by an allow-listed column.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" {
			return db
		}
		if sort.Allow != nil && !sort.Allow[field] {
			return db
		}
		direction := "asc"
		if sort.Desc {
			direction = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s", field, direction))
	})
}

// ApplyPagination applies the keyset cursor and fetches one extra row so the
// caller can detect whether more pages exist.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		pageSize := page.PageSize
		if pageSize <= 0 {
			pageSize = 50
		}
		if pageSize > 250 {
			pageSize = 250
		}

		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil {
				if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
					db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
						createdAt, createdAt, cursor.ID)
				}
			}
		}

		return db.Limit(pageSize + 1)
	})
}
