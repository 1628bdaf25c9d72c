package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// ErrPolicyViolation is the errors.Is target for PolicyViolationError.
var ErrPolicyViolation = errors.New("policy_violation")

// Violation reasons carried by PolicyViolationError.
const (
	ViolationNoAvailablePass = "no_available_pass"
	ViolationPassExhausted   = "pass_exhausted"
	ViolationNoRefundable    = "no_refundable_pass"
	ViolationPassFull        = "pass_already_full"
	ViolationRefundConflict  = "refund_conflict"
)

// PolicyViolationError reports a credit operation the ledger refused.
// It is synchronous and never swallowed; interactive callers surface it
// as a conflict.
type PolicyViolationError struct {
	MemberID snowflake.ID
	PassID   snowflake.ID
	Reason   string
}

func (e *PolicyViolationError) Error() string {
	if e.PassID == 0 {
		return fmt.Sprintf("policy_violation: member=%s reason=%s", e.MemberID, e.Reason)
	}
	return fmt.Sprintf("policy_violation: member=%s pass=%s reason=%s", e.MemberID, e.PassID, e.Reason)
}

func (e *PolicyViolationError) Is(target error) bool { return target == ErrPolicyViolation }
