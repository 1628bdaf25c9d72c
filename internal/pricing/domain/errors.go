package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ErrMissingPricing is the errors.Is target for MissingPricingError.
var ErrMissingPricing = errors.New("missing_pricing")

// MissingPricingError reports that no pricing tier covered a session at the
// requested instant. Batch callers catch it per item and keep going;
// interactive callers surface it as "pricing not configured".
type MissingPricingError struct {
	MemberID     snowflake.ID
	OccurrenceID snowflake.ID
	TemplateID   snowflake.ID
	At           time.Time
}

func (e *MissingPricingError) Error() string {
	return fmt.Sprintf("missing_pricing: member=%s occurrence=%s template=%s at=%s",
		e.MemberID, e.OccurrenceID, e.TemplateID, e.At.UTC().Format(time.RFC3339))
}

func (e *MissingPricingError) Is(target error) bool { return target == ErrMissingPricing }
