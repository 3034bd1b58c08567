package sheets

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func civilDate(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
