package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the trading date format used by the provider and the table.
const DateLayout = "2006-01-02"

// Row is one normalized daily OHLCV record for a symbol.
type Row struct {
	Symbol      string
	TradingDate time.Time
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      int64
}

// RowKey identifies a Row; it is the primary key of the time_series_data table.
type RowKey struct {
	Symbol      string
	TradingDate time.Time
}

func (k RowKey) String() string {
	return fmt.Sprintf("%s@%s", k.Symbol, k.TradingDate.Format(DateLayout))
}

func (r Row) Key() RowKey {
	return RowKey{Symbol: r.Symbol, TradingDate: r.TradingDate}
}

// Anomalies lists cross-field inconsistencies in the row. They are reported, not rejected.
func (r Row) Anomalies() []string {
	var out []string
	if r.Low.GreaterThan(r.High) {
		out = append(out, fmt.Sprintf("low %s is above high %s", r.Low, r.High))
		return out
	}
	if r.Open.LessThan(r.Low) || r.Open.GreaterThan(r.High) {
		out = append(out, fmt.Sprintf("open %s is outside [%s, %s]", r.Open, r.Low, r.High))
	}
	if r.Close.LessThan(r.Low) || r.Close.GreaterThan(r.High) {
		out = append(out, fmt.Sprintf("close %s is outside [%s, %s]", r.Close, r.Low, r.High))
	}
	return out
}
