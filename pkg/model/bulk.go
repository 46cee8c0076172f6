package model

import (
	"fmt"
	"strings"
)

// BulkStrategy selects how the bulk decision engine treats a scoped set of
// pending requests.
type BulkStrategy string

const (
	// BulkApproveSafe approves only requests with no conflict against
	// committed reservations and no overlap with sibling pending requests.
	BulkApproveSafe BulkStrategy = "approve_safe"
	// BulkApproveAll approves everything best-effort; requests failing the
	// commit-time guard are counted, not retried.
	BulkApproveAll      BulkStrategy = "approve_all"
	BulkApproveSpecific BulkStrategy = "approve_specific"
	// BulkRejectConflicts rejects requests conflicting by either rule.
	BulkRejectConflicts BulkStrategy = "reject_conflicts"
	BulkRejectAll       BulkStrategy = "reject_all"
	BulkRejectSpecific  BulkStrategy = "reject_specific"
)

func ParseBulkStrategy(raw string) (BulkStrategy, error) {
	s := BulkStrategy(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case BulkApproveSafe, BulkApproveAll, BulkApproveSpecific,
		BulkRejectConflicts, BulkRejectAll, BulkRejectSpecific:
		return s, nil
	}
	return "", fmt.Errorf("unrecognized bulk strategy: %q", raw)
}

// RequiresHall reports whether the strategy only makes sense scoped to a
// named hall.
func (s BulkStrategy) RequiresHall() bool {
	return s == BulkApproveSpecific || s == BulkRejectSpecific
}

// BulkOutcome aggregates per-item results of a bulk run. The run is
// best-effort: items fail or get skipped individually, nothing rolls back.
type BulkOutcome struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
