package billing

import "github.com/shopspring/decimal"

// OverageCharge is the result of pricing usage beyond the included amount
type OverageCharge struct {
	OverageRequests int64 `json:"overage_requests"`
	Blocks          int64 `json:"blocks"`
	AmountCents     int64 `json:"amount_cents"`
}

// Amount returns the charge as a decimal dollar amount
func (c OverageCharge) Amount() decimal.Decimal {
	return decimal.NewFromInt(c.AmountCents).Div(decimal.NewFromInt(100))
}

// CalculateOverage prices usage beyond the included request count.
// Overage is billed in blocks of OverageBlockSize requests, any partial
// block rounds up. Usage at or under the included amount costs nothing.
func CalculateOverage(usage, included, rateCentsPerBlock int64) OverageCharge {
	over := usage - included
	if over <= 0 {
		return OverageCharge{}
	}

	blocks := over / OverageBlockSize
	if over%OverageBlockSize != 0 {
		blocks++
	}

	return OverageCharge{
		OverageRequests: over,
		Blocks:          blocks,
		AmountCents:     blocks * rateCentsPerBlock,
	}
}
