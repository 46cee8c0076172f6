package model

import (
	"fmt"
	"strings"
)

// Decision is the closed set of actions a human can take on a booking
// request. Free-form inputs (email replies, admin forms) are normalized to a
// Decision exactly once at the boundary via ParseDecision.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionVacate  Decision = "vacate"
	DecisionLeave   Decision = "leave"
)

// decisionSynonyms maps accepted input spellings to their decision. Kept as
// an input-normalization table only; internal code always uses Decision.
var decisionSynonyms = map[string]Decision{
	"approve":  DecisionApprove,
	"approved": DecisionApprove,
	"accept":   DecisionApprove,
	"yes":      DecisionApprove,
	"reject":   DecisionReject,
	"rejected": DecisionReject,
	"decline":  DecisionReject,
	"denied":   DecisionReject,
	"no":       DecisionReject,
	"vacate":   DecisionVacate,
	"release":  DecisionVacate,
	"cancel":   DecisionVacate,
	"leave":    DecisionLeave,
	"keep":     DecisionLeave,
	"done":     DecisionLeave,
}

func ParseDecision(raw string) (Decision, error) {
	d, ok := decisionSynonyms[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unrecognized decision: %q", raw)
	}
	return d, nil
}

// ExpectedStatus returns the request status an action link for this decision
// was issued against. Approve/reject links act on pending requests,
// vacate/leave links on auto-booked ones.
func (d Decision) ExpectedStatus() Status {
	switch d {
	case DecisionApprove, DecisionReject:
		return StatusPending
	case DecisionVacate, DecisionLeave:
		return StatusAutoBooked
	}
	return ""
}

// ResultStatus returns the status a successful decision transitions into.
func (d Decision) ResultStatus() Status {
	switch d {
	case DecisionApprove:
		return StatusApproved
	case DecisionReject:
		return StatusRejected
	case DecisionVacate:
		return StatusVacated
	case DecisionLeave:
		return StatusLeft
	}
	return ""
}
