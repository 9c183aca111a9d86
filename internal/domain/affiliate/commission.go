package affiliate

import (
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CommissionType selects how a commission is derived from a sale
type CommissionType string

const (
	CommissionTypePercentage CommissionType = "PERCENTAGE"
	CommissionTypeFlat       CommissionType = "FLAT"
)

// CommissionRule is the affiliate's commission configuration for a product
type CommissionRule struct {
	Type CommissionType
	Rate decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Calculate returns the commission for a sale total.
// PERCENTAGE takes rate percent of the total, rounded to 2 places.
// FLAT pays the rate but never more than the sale itself.
func (r CommissionRule) Calculate(total decimal.Decimal) (decimal.Decimal, error) {
	if total.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_AMOUNT", "Sale amount cannot be negative")
	}
	if r.Rate.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_RATE", "Commission rate cannot be negative")
	}

	switch r.Type {
	case CommissionTypePercentage:
		if r.Rate.GreaterThan(hundred) {
			return decimal.Zero, shared.NewDomainError("INVALID_RATE", "Commission percentage cannot exceed 100")
		}
		return total.Mul(r.Rate).Div(hundred).Round(2), nil
	case CommissionTypeFlat:
		return decimal.Min(r.Rate, total), nil
	}
	return decimal.Zero, shared.NewDomainError("INVALID_COMMISSION_TYPE", "Unknown commission type")
}
