package main

const (
	outcomeNone            = "None"
	outcomeDisputeDenied   = "Dispute Denied"
	outcomeDisputeClosed   = "Dispute Closed"
	outcomeDisputeApproved = "Dispute Approved"

	labelViolation       = "Yes - Violation"
	labelApprovedDispute = "No - Violation (Dispute Approved)"
)

// Classification is the verdict for one review outcome.
type Classification struct {
	IsViolation bool   `json:"is_violation"`
	Label       string `json:"label"`
}

// classify maps a review outcome to its verdict. Matching is exact and
// case-sensitive. Outcomes outside the four known values count as
// non-violations but keep the violation label; the row label and the totals
// disagree for them.
func classify(outcome string) Classification {
	return Classification{
		IsViolation: isViolation(outcome),
		Label:       reviewLabel(outcome),
	}
}

func isViolation(outcome string) bool {
	switch outcome {
	case outcomeNone, outcomeDisputeDenied, outcomeDisputeClosed:
		return true
	default:
		return false
	}
}

func reviewLabel(outcome string) string {
	if outcome == outcomeDisputeApproved {
		return labelApprovedDispute
	}
	return labelViolation
}

// classifyRecord applies the missing-outcome default before classifying.
func classifyRecord(record Record) Classification {
	return classify(record.Review())
}
