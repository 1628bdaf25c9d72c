// Package guard holds the settlement lifecycle checks. Status moves
// draft -> finalized -> paid and never back; every transition entry
// point runs through these before touching the row.
package guard

import (
	"errors"

	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
)

var (
	ErrSettlementNotDraft     = errors.New("settlement_not_draft")
	ErrSettlementNotFinalized = errors.New("settlement_not_finalized")
)

// EnsureCanRegenerate permits rewriting a settlement's items. Only a
// draft may be regenerated; finalized and paid statements are frozen.
func EnsureCanRegenerate(status settlementdomain.SettlementStatus) error {
	if status != settlementdomain.SettlementStatusDraft {
		return ErrSettlementNotDraft
	}
	return nil
}

func EnsureCanFinalize(status settlementdomain.SettlementStatus) error {
	if status != settlementdomain.SettlementStatusDraft {
		return ErrSettlementNotDraft
	}
	return nil
}

func EnsureCanMarkPaid(status settlementdomain.SettlementStatus) error {
	if status != settlementdomain.SettlementStatusFinalized {
		return ErrSettlementNotFinalized
	}
	return nil
}
