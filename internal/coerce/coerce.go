// Package coerce turns spreadsheet cell values into typed numbers and dates.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Spreadsheet serials outside this window are treated as plain numbers.
const (
	minDateSerial = 10000
	maxDateSerial = 100000
)

var (
	numberCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "'", "")

	// Slash and dot forms are read day first, as SAP exports them.
	// Dashed two-digit years are the spreadsheet default date format (mm-dd-yy).
	dateLayouts = []string{
		"2006-01-02",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2.1.2006",
		"2/1/2006",
		"2006/01/02",
		"2006.01.02",
		"2-Jan-2006",
		"2-Jan-06",
		"2 Jan 2006",
		"2 January 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"01-02-06",
		"20060102",
	}
)

// ParseNumber coerces a cell to a decimal. It accepts text, Go numbers and
// decimals; thousands separators and surrounding blanks are ignored, and a
// trailing minus or enclosing parentheses mark a negative value. Anything
// that is empty or not numeric yields an invalid NullDecimal.
func ParseNumber(value any) decimal.NullDecimal {
	switch v := value.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.NullDecimal:
		return v
	case decimal.Decimal:
		return decimal.NewNullDecimal(v)
	case *decimal.Decimal:
		if v == nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(*v)
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v)))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(v))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(v))
	case float32:
		return parseFloat(float64(v))
	case float64:
		return parseFloat(v)
	case string:
		return parseNumberText(v)
	default:
		return parseNumberText(fmt.Sprint(v))
	}
}

func parseFloat(v float64) decimal.NullDecimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func parseNumberText(raw string) decimal.NullDecimal {
	text := numberCleaner.Replace(strings.TrimSpace(raw))
	text = strings.TrimSuffix(text, "%")

	negative := false
	switch {
	case len(text) > 2 && strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")"):
		negative = true
		text = text[1 : len(text)-1]
	case len(text) > 1 && strings.HasSuffix(text, "-"):
		negative = true
		text = text[:len(text)-1]
	}
	if text == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d)
}

// ParseDate coerces a cell to a calendar date at UTC midnight, or nil when
// the value cannot be read as a date. Besides the text layouts above it
// accepts spreadsheet serial numbers.
func ParseDate(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return dateOnly(v)
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		return dateOnly(*v)
	case int:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case float64:
		return fromSerial(v)
	case string:
		return parseDateText(v)
	default:
		return parseDateText(fmt.Sprint(v))
	}
}

func parseDateText(raw string) *time.Time {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	// Eight plain digits read as yyyymmdd; anything else numeric is a serial.
	if len(text) != 8 || strings.ContainsAny(text, ".eE+-") {
		if serial, err := strconv.ParseFloat(text, 64); err == nil {
			return fromSerial(serial)
		}
	}

	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return dateOnly(ts)
		}
	}
	return nil
}

func fromSerial(serial float64) *time.Time {
	if serial < minDateSerial || serial >= maxDateSerial {
		return nil
	}
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return nil
	}
	return dateOnly(ts)
}

func dateOnly(ts time.Time) *time.Time {
	y, m, d := ts.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}
