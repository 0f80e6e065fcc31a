package core

import "tripcore/pkg/domain"

// ValidateExpenseLink checks that a proposed expense link stays inside the
// trip's boundary: the expense must live in the document's finance section
// and, when an item is given, the item must exist in its itinerary. Both
// checks always run so callers see every violation at once. A nil item means
// unlink, which only requires the expense.
func ValidateExpenseLink(doc *domain.TripDocument, expenseID string, item *domain.TravelItemRef) domain.LinkValidation {
	var violations []domain.Violation

	expenseOK := doc.HasExpense(expenseID)
	if !expenseOK {
		violations = append(violations, domain.Violation{
			Code:     domain.CodeExpenseNotFound,
			Kind:     domain.KindExpense,
			EntityID: expenseID,
			TripID:   doc.ID,
		})
	}
	if item != nil {
		if _, ok := doc.TravelItemName(item.Type, item.ID); !ok {
			violations = append(violations, domain.Violation{
				Code:     domain.CodeTravelItemNotFound,
				Kind:     domain.KindTravelItem,
				EntityID: item.ID,
				TripID:   doc.ID,
			})
		}
	}
	if len(violations) == 0 {
		return domain.ValidLink()
	}

	// A cross-trip expense dominates the aggregate code: the caller almost
	// certainly passed an expense belonging to another trip, and the item
	// outcome is noise next to that.
	code := domain.CodeCrossTripTravelItem
	if !expenseOK {
		code = domain.CodeCrossTripExpense
		if item == nil {
			code = domain.CodeExpenseNotFound
		}
	}
	return domain.InvalidLink(code, violations...)
}
