// Package feepolicy decides what a registration is worth once its status
// is known. The resolver says what a session costs; the policy says how
// much of that actually lands in a settlement.
package feepolicy

import (
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	"github.com/studiokit/kassza/internal/config"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	"go.uber.org/zap"
)

// Breakdown is the charge a registration earns after the policy applied.
type Breakdown struct {
	EntryFeeBrutto   int64 `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64 `json:"trainer_fee_brutto"`
}

// Policy is the pluggable charging strategy. Eligible gates settlement
// inclusion; Apply scales the resolved price for statuses that charge a
// partial fee.
type Policy interface {
	Eligible(status catalogdomain.RegistrationStatus) bool
	Apply(status catalogdomain.RegistrationStatus, resolved pricingdomain.ResolvedPrice) Breakdown
}

// StandardPolicy reads charge percentages from the hot-reloadable fee
// policy config. Attended sessions always pass the resolved price
// through; no-shows and late cancellations charge the configured share,
// which is zero unless the studio opts in.
type StandardPolicy struct {
	holder *config.FeePolicyConfigHolder
	log    *zap.Logger
}

func NewStandardPolicy(holder *config.FeePolicyConfigHolder, log *zap.Logger) Policy {
	return &StandardPolicy{
		holder: holder,
		log:    log.Named("feepolicy"),
	}
}

func (p *StandardPolicy) Eligible(status catalogdomain.RegistrationStatus) bool {
	return p.chargePercent(status) > 0
}

func (p *StandardPolicy) Apply(status catalogdomain.RegistrationStatus, resolved pricingdomain.ResolvedPrice) Breakdown {
	percent := p.chargePercent(status)
	switch percent {
	case 0:
		return Breakdown{}
	case 100:
		return Breakdown{
			EntryFeeBrutto:   resolved.EntryFeeBrutto,
			TrainerFeeBrutto: resolved.TrainerFeeBrutto,
		}
	}
	return Breakdown{
		EntryFeeBrutto:   scaleFee(resolved.EntryFeeBrutto, percent),
		TrainerFeeBrutto: scaleFee(resolved.TrainerFeeBrutto, percent),
	}
}

func (p *StandardPolicy) chargePercent(status catalogdomain.RegistrationStatus) int {
	cfg := p.holder.Get()
	switch status {
	case catalogdomain.RegistrationStatusAttended:
		return 100
	case catalogdomain.RegistrationStatusNoShow:
		return cfg.NoShowChargePercent
	case catalogdomain.RegistrationStatusCancelled:
		return cfg.LateCancelChargePercent
	case catalogdomain.RegistrationStatusRegistered:
		// Never checked in and never marked, so there is nothing to bill.
		return 0
	default:
		p.log.Warn("unknown registration status treated as zero charge",
			zap.String("status", string(status)),
		)
		return 0
	}
}

// scaleFee charges a whole-percent share of the fee, rounded half up.
// Results never go negative.
func scaleFee(amount int64, percent int) int64 {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return (amount*int64(percent) + 50) / 100
}
