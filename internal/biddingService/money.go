package bidding

import (
	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 2 // amounts are kept in cents

// collectionRate is the share of the final bid the seller collects on settlement.
var collectionRate = decimal.NewFromFloat(0.25)

// roundAmount normalizes a bid or price to monetaryPrecision
func roundAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(monetaryPrecision).InexactFloat64()
}

// exceeds reports whether amount is strictly greater than current at monetaryPrecision
func exceeds(amount, current float64) bool {
	a := decimal.NewFromFloat(amount).Round(monetaryPrecision)
	c := decimal.NewFromFloat(current).Round(monetaryPrecision)
	return a.GreaterThan(c)
}

// collectionFee returns the collectionRate share of finalBid
func collectionFee(finalBid float64) decimal.Decimal {
	return decimal.NewFromFloat(finalBid).Mul(collectionRate).Round(monetaryPrecision)
}
