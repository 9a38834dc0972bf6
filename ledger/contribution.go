package ledger

import "github.com/shopspring/decimal"

// Contribution is the signed amount an entry adds to its account's balance:
//
//	+amount  income
//	-amount  expense, paid
//	 0       expense, unpaid
//	 0       neutral
//
// Every mutation path in the Engine derives its balance delta from this one
// function. Reversal of an entry is always Contribution(...).Neg(), so a
// forward delta followed by its reversal returns the balance to its exact
// prior value with no rounding drift.
func Contribution(direction Direction, amount decimal.Decimal, paid bool) decimal.Decimal {
	switch direction {
	case DirectionIncome:
		return amount
	case DirectionExpense:
		if paid {
			return amount.Neg()
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// EntryContribution is Contribution applied to a stored entry.
func EntryContribution(e Entry) decimal.Decimal {
	return Contribution(e.Direction, e.Amount, e.Paid)
}
