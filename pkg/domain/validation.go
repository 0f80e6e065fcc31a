package domain

import "fmt"

// EntityKind names the class of entity a violation is about, rendered the
// way violation messages spell it.
type EntityKind string

// Violation entity kinds.
const (
	KindExpense    EntityKind = "Expense"
	KindTravelItem EntityKind = "Travel item"
)

// TravelItemRef names one itinerary item by kind and id. A nil ref passed to
// link validation means "unlink".
type TravelItemRef struct {
	Type TravelItemType `json:"type"`
	ID   string         `json:"id"`
}

// Violation reports one failed membership check during link validation.
type Violation struct {
	Code     ErrorCode
	Kind     EntityKind
	EntityID string
	TripID   string
}

// Message renders the violation the way callers present it.
func (v Violation) Message() string {
	return fmt.Sprintf("%s %s not found in trip %s", v.Kind, v.EntityID, v.TripID)
}

// LinkValidation aggregates the outcome of validating one proposed expense
// link. All checks run before the result is built, so a caller sees every
// violation at once rather than one per retry.
type LinkValidation struct {
	code       ErrorCode
	violations []Violation
}

// ValidLink is the successful validation outcome.
func ValidLink() LinkValidation {
	return LinkValidation{}
}

// InvalidLink builds a failed validation with the aggregate code and the
// accumulated violations.
func InvalidLink(code ErrorCode, violations ...Violation) LinkValidation {
	return LinkValidation{code: code, violations: violations}
}

// OK reports whether the link passed every check.
func (v LinkValidation) OK() bool { return len(v.violations) == 0 }

// Code returns the aggregate machine-readable code, empty when OK.
func (v LinkValidation) Code() ErrorCode { return v.code }

// Violations returns a copy of the individual failures.
func (v LinkValidation) Violations() []Violation {
	return append([]Violation(nil), v.violations...)
}

// Messages returns the human-readable violation strings in check order.
func (v LinkValidation) Messages() []string {
	out := make([]string, 0, len(v.violations))
	for _, viol := range v.violations {
		out = append(out, viol.Message())
	}
	return out
}
