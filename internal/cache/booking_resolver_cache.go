package cache

import (
	"strings"
	"time"

	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
)

const (
	defaultOccurrenceTTL = 10 * time.Minute
	defaultTemplateTTL   = 45 * time.Second
)

// BookingResolverCache stores hot-path schedule lookups for booking-time
// price resolution. Only structural rows are cached here; pricing rules are
// always read fresh so a rule change takes effect immediately.
type BookingResolverCache interface {
	GetOccurrence(occurrenceID string) (catalogdomain.ClassOccurrence, bool)
	SetOccurrence(occurrenceID string, occurrence catalogdomain.ClassOccurrence)
	GetTemplate(templateID string) (catalogdomain.ClassTemplate, bool)
	SetTemplate(templateID string, template catalogdomain.ClassTemplate)
	InvalidateTemplate(templateID string)
}

type bookingResolverCache struct {
	occurrences   Cache[string, catalogdomain.ClassOccurrence]
	templates     Cache[string, catalogdomain.ClassTemplate]
	occurrenceTTL time.Duration
	templateTTL   time.Duration
}

// NewBookingResolverCache returns an in-memory cache tuned for booking-time resolution.
func NewBookingResolverCache() BookingResolverCache {
	return &bookingResolverCache{
		occurrences:   NewTTLCache[string, catalogdomain.ClassOccurrence](),
		templates:     NewTTLCache[string, catalogdomain.ClassTemplate](),
		occurrenceTTL: defaultOccurrenceTTL,
		templateTTL:   defaultTemplateTTL,
	}
}

func (c *bookingResolverCache) GetOccurrence(occurrenceID string) (catalogdomain.ClassOccurrence, bool) {
	return c.occurrences.Get(cacheKey(occurrenceID))
}

func (c *bookingResolverCache) SetOccurrence(occurrenceID string, occurrence catalogdomain.ClassOccurrence) {
	if occurrence.ID == 0 {
		return
	}
	c.occurrences.Set(cacheKey(occurrenceID), occurrence, c.occurrenceTTL)
}

func (c *bookingResolverCache) GetTemplate(templateID string) (catalogdomain.ClassTemplate, bool) {
	return c.templates.Get(cacheKey(templateID))
}

func (c *bookingResolverCache) SetTemplate(templateID string, template catalogdomain.ClassTemplate) {
	if template.ID == 0 {
		return
	}
	c.templates.Set(cacheKey(templateID), template, c.templateTTL)
}

func (c *bookingResolverCache) InvalidateTemplate(templateID string) {
	c.templates.Delete(cacheKey(templateID))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
