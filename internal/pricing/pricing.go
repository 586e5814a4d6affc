// Package pricing holds the money arithmetic shared by groups and earnings.
// Every percentage division rounds half-up to two decimal places.
package pricing

import (
	"github.com/shopspring/decimal"
)

const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half-up to two decimal places. Inputs are non-negative
// amounts, where decimal.Round's half-away-from-zero equals half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Percent returns amount × rate / 100, rounded.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(rate).Div(hundred))
}

// FillRatio returns current / target. A non-positive target yields zero.
func FillRatio(current, target int) decimal.Decimal {
	if target <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(current)).Div(decimal.NewFromInt(int64(target)))
}

// ProRatedDiscount scales the nominal discount by the fill level. A full
// group keeps the nominal value untouched.
func ProRatedDiscount(nominal decimal.Decimal, current, target int) decimal.Decimal {
	if current >= target {
		return nominal
	}
	if current <= 0 || target <= 0 {
		return decimal.Zero
	}
	effective := RoundMoney(nominal.Mul(decimal.NewFromInt(int64(current))).Div(decimal.NewFromInt(int64(target))))
	if effective.IsNegative() {
		return decimal.Zero
	}
	return effective
}

// MeetsThreshold reports whether current / target >= threshold.
func MeetsThreshold(current, target int, threshold decimal.Decimal) bool {
	return FillRatio(current, target).GreaterThanOrEqual(threshold)
}

// DiscountedAmount is the price charged after a percentage discount.
func DiscountedAmount(amount, discountPercentage decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(hundred.Sub(discountPercentage)).Div(hundred))
}

// Split is the platform/company/agent division of one order amount.
type Split struct {
	OrderAmount        decimal.Decimal
	PlatformCommission decimal.Decimal
	CompanyEarning     decimal.Decimal
	AgentEarning       decimal.Decimal
	CompanyNetEarning  decimal.Decimal
}

// SplitOrder computes the commission split. The agent share is a percentage
// of the whole order amount, not of the company share. Rounding remainders
// land on the company net amount so the three parts always sum to the order.
func SplitOrder(orderAmount, platformRate, agentRate decimal.Decimal, hasAgent bool) Split {
	amount := RoundMoney(orderAmount)
	platform := Percent(amount, platformRate)
	agent := decimal.Zero
	if hasAgent {
		agent = Percent(amount, agentRate)
	}
	company := amount.Sub(platform)
	return Split{
		OrderAmount:        amount,
		PlatformCommission: platform,
		CompanyEarning:     company,
		AgentEarning:       agent,
		CompanyNetEarning:  company.Sub(agent),
	}
}

// Reconciles reports whether the three payable parts add up to the order amount.
func (s Split) Reconciles() bool {
	return s.PlatformCommission.Add(s.AgentEarning).Add(s.CompanyNetEarning).Equal(s.OrderAmount)
}
