package economy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bracket maps a band of 30-day earnings to a commission rate.
// Max is zero for the open top bracket.
type Bracket struct {
	Tier    int             `json:"tier"`
	Min     decimal.Decimal `json:"min_earnings"`
	Max     decimal.Decimal `json:"max_earnings"`
	Rate    int             `json:"commission_rate"`
	Open    bool            `json:"open_ended,omitempty"`
	Display string          `json:"name"`
}

var brackets = []Bracket{
	{Tier: 1, Min: decimal.Zero, Max: decimal.NewFromInt(2_000_000), Rate: 4, Display: "Starter"},
	{Tier: 2, Min: decimal.NewFromInt(2_000_000), Max: decimal.NewFromInt(10_000_000), Rate: 8, Display: "Rising"},
	{Tier: 3, Min: decimal.NewFromInt(10_000_000), Max: decimal.NewFromInt(50_000_000), Rate: 12, Display: "Established"},
	{Tier: 4, Min: decimal.NewFromInt(50_000_000), Max: decimal.NewFromInt(150_000_000), Rate: 16, Display: "Elite"},
	{Tier: 5, Min: decimal.NewFromInt(150_000_000), Open: true, Rate: 20, Display: "Legend"},
}

const (
	// EarningsWindow is the trailing window commission earnings are summed over.
	EarningsWindow = 30 * 24 * time.Hour
	// InactivityPeriod is how long an agent may go without earning before counting as inactive.
	InactivityPeriod = 7 * 24 * time.Hour
	// ConversionFeePercent is charged when stars are converted to coins.
	ConversionFeePercent = 8
	// GiftCharityPercent of every gift goes to the charity wallet.
	GiftCharityPercent = 2
)

// Brackets returns the commission table in ascending order.
func Brackets() []Bracket {
	return append([]Bracket(nil), brackets...)
}

// CommissionRate returns the single bracket earnings fall into. The first bracket is closed
// on both ends, every later one excludes its lower bound. Negative earnings use the first bracket.
func CommissionRate(earnings decimal.Decimal) Bracket {
	for _, b := range brackets {
		if b.Open || earnings.LessThanOrEqual(b.Max) {
			return b
		}
	}
	return brackets[len(brackets)-1]
}

// NextBracket returns the bracket after tier, or nil at the top.
func NextBracket(tier int) *Bracket {
	for i, b := range brackets {
		if b.Tier == tier && i+1 < len(brackets) {
			next := brackets[i+1]
			return &next
		}
	}
	return nil
}

// IsAgentActive reports whether an agent last seen at lastActive still counts as active at now.
func IsAgentActive(lastActive, now time.Time) bool {
	return now.Sub(lastActive) <= InactivityPeriod
}
