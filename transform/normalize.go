package transform

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vinayakanadinni99/ETL-Finance/model"
)

// Alpha Vantage TIME_SERIES_DAILY payload keys.
const (
	MetaDataKey   = "Meta Data"
	SymbolKey     = "2. Symbol"
	TimeSeriesKey = "Time Series (Daily)"

	OpenKey   = "1. open"
	HighKey   = "2. high"
	LowKey    = "3. low"
	CloseKey  = "4. close"
	VolumeKey = "5. volume"
)

// NoticeKeys are the fields the provider uses instead of data when it throttles
// or rejects a request, in the order they are checked.
var NoticeKeys = []string{"Note", "Information", "Error Message"}

const previewLength = 200

// Prices are stored as NUMERIC(12, 4): at most 8 integer digits. Scales beyond
// maxPriceScale are rejected before any arithmetic, which would otherwise expand
// the value digit by digit.
const (
	maxPriceIntegerDigits = 8
	maxPriceScale         = 18
)

// NormalizeJSON decodes a raw response body and normalizes it.
func NormalizeJSON(body []byte) ([]model.Row, error) {
	v, err := Decode(body)
	if err != nil {
		return nil, &model.MalformedPayloadError{Preview: preview(string(body)), Err: err}
	}
	return Normalize(v)
}

// Normalize validates an Alpha Vantage daily time series response and flattens it
// into one Row per trading date, in the order the dates appear in the payload.
// It fails on the first problem and never returns partial output.
func Normalize(v Value) ([]model.Row, error) {
	if text, ok := v.Str(); ok {
		parsed, err := Decode([]byte(text))
		if err != nil {
			return nil, &model.MalformedPayloadError{Preview: preview(text), Err: err}
		}
		v = parsed
	}

	if v.Kind() == Object {
		for _, key := range NoticeKeys {
			if notice, ok := v.Lookup(key); ok {
				return nil, &model.UpstreamError{Field: key, Message: verbatim(notice)}
			}
		}
	}

	if v.Kind() != Object {
		return nil, &model.SchemaMismatchError{
			Reason: "alpha vantage response is not a JSON object",
			Type:   v.Kind().String(),
		}
	}

	meta, hasMeta := v.Lookup(MetaDataKey)
	series, hasSeries := v.Lookup(TimeSeriesKey)
	if !hasMeta || !hasSeries {
		return nil, &model.SchemaMismatchError{
			Reason: "alpha vantage response missing expected keys",
			Keys:   v.Keys(),
		}
	}

	symbol, err := extractSymbol(meta)
	if err != nil {
		return nil, err
	}

	if series.Kind() != Object {
		return nil, &model.SchemaMismatchError{
			Reason: fmt.Sprintf("%q is not an object", TimeSeriesKey),
			Type:   series.Kind().String(),
		}
	}

	members := series.Members()
	rows := make([]model.Row, 0, len(members))
	for _, m := range members {
		row, err := toRow(symbol, m.Key, m.Value)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func extractSymbol(meta Value) (string, error) {
	if meta.Kind() != Object {
		return "", &model.SchemaMismatchError{
			Reason: fmt.Sprintf("%q is not an object", MetaDataKey),
			Type:   meta.Kind().String(),
			Detail: "meta data: " + meta.String(),
		}
	}

	raw, ok := meta.Lookup(SymbolKey)
	symbol, isString := raw.Str()
	if !ok || !isString || symbol == "" {
		return "", &model.SchemaMismatchError{
			Reason: "could not find symbol in meta data",
			Detail: "meta data: " + meta.String(),
		}
	}
	return symbol, nil
}

func toRow(symbol, date string, values Value) (model.Row, error) {
	tradingDate, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return model.Row{}, &model.SchemaMismatchError{
			Reason: fmt.Sprintf("invalid trading date %q", date),
			Err:    err,
		}
	}

	if values.Kind() != Object {
		return model.Row{}, &model.SchemaMismatchError{
			Reason: fmt.Sprintf("values for %s are not an object", date),
			Type:   values.Kind().String(),
		}
	}

	row := model.Row{Symbol: symbol, TradingDate: tradingDate}

	prices := []struct {
		key string
		dst *decimal.Decimal
	}{
		{OpenKey, &row.Open},
		{HighKey, &row.High},
		{LowKey, &row.Low},
		{CloseKey, &row.Close},
	}
	for _, p := range prices {
		text, err := field(date, values, p.key)
		if err != nil {
			return model.Row{}, err
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			return model.Row{}, &model.SchemaMismatchError{
				Reason: fmt.Sprintf("parse %q for %s: invalid decimal %q", p.key, date, text),
				Err:    err,
			}
		}
		if err := checkPriceRange(d); err != nil {
			return model.Row{}, &model.SchemaMismatchError{
				Reason: fmt.Sprintf("%q for %s out of range: %s", p.key, date, preview(text)),
				Err:    err,
			}
		}
		if d.IsNegative() {
			return model.Row{}, &model.SchemaMismatchError{
				Reason: fmt.Sprintf("negative %q for %s: %s", p.key, date, text),
			}
		}
		*p.dst = d
	}

	text, err := field(date, values, VolumeKey)
	if err != nil {
		return model.Row{}, err
	}
	volume, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return model.Row{}, &model.SchemaMismatchError{
			Reason: fmt.Sprintf("parse %q for %s: invalid integer %q", VolumeKey, date, text),
			Err:    err,
		}
	}
	if volume < 0 {
		return model.Row{}, &model.SchemaMismatchError{
			Reason: fmt.Sprintf("negative %q for %s: %s", VolumeKey, date, text),
		}
	}
	row.Volume = volume

	return row, nil
}

// checkPriceRange rejects prices that do not fit the price columns. It only looks at
// the exponent and the coefficient's digit count, so it stays cheap for inputs like "1e300000000".
func checkPriceRange(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -maxPriceScale {
		return fmt.Errorf("more than %d decimal places", maxPriceScale)
	}
	if exp > maxPriceIntegerDigits {
		return fmt.Errorf("more than %d integer digits", maxPriceIntegerDigits)
	}

	coefficient := d.Coefficient()
	if coefficient.Sign() == 0 {
		return nil
	}
	digits := int64(len(coefficient.Text(10)))
	if coefficient.Sign() < 0 {
		digits--
	}
	if digits+exp > maxPriceIntegerDigits {
		return fmt.Errorf("more than %d integer digits", maxPriceIntegerDigits)
	}
	return nil
}

// field returns a numeric-looking field, accepting both JSON strings and numbers.
func field(date string, values Value, key string) (string, error) {
	v, ok := values.Lookup(key)
	if !ok {
		return "", &model.SchemaMismatchError{
			Reason: fmt.Sprintf("missing %q for %s", key, date),
			Keys:   values.Keys(),
		}
	}
	switch v.Kind() {
	case String, Number:
		return v.text, nil
	default:
		return "", &model.SchemaMismatchError{
			Reason: fmt.Sprintf("%q for %s is not numeric", key, date),
			Type:   v.Kind().String(),
		}
	}
}

func verbatim(v Value) string {
	if s, ok := v.Str(); ok {
		return s
	}
	return v.String()
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewLength {
		return string(runes[:previewLength])
	}
	return text
}
