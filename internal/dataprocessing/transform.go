package dataprocessing

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	apperrors "pricepipe/internal/errors"
)

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"2006.01.02",
	"20060102",
	time.DateTime,
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006.01.02 15:04:05",
	time.RFC3339,
}

// Transformer maps a RawTable onto the canonical schema.
type Transformer struct {
	logger *slog.Logger
}

func NewTransformer(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{logger: logger}
}

// Transform renames columns by position and coerces types. A table that is not
// exactly ColumnCount wide is rejected as a whole. Numeric cells that do not
// parse become null; a date that does not parse fails the transform.
// Row order and row count are preserved.
func (t *Transformer) Transform(raw RawTable) (*CanonicalTable, error) {
	if w := raw.Width(); w != ColumnCount {
		return nil, apperrors.NewSchemaMismatchError(w, ColumnCount)
	}

	out := &CanonicalTable{Records: make([]CanonicalRecord, 0, len(raw.Rows))}
	for i, row := range raw.Rows {
		cell := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}

		date, err := ParseDate(cell(0))
		if err != nil {
			// Row numbers are 1-based and count the header, as in a spreadsheet.
			return nil, apperrors.NewParsingError("parse transaction_date", err).
				WithContext("row", i+2).
				WithContext("value", cell(0))
		}

		out.Records = append(out.Records, CanonicalRecord{
			TransactionDate: date,
			TransactionUnit: cell(1),
			AveragePrice:    ParseNumber(cell(2)),
			TotalVolume:     ParseNumber(cell(3)),
			TotalAmount:     ParseNumber(cell(4)),
			MarketName:      cell(5),
			CorporationName: cell(6),
			ItemName:        cell(7),
			ItemVariety:     cell(8),
			OriginProvince:  cell(9),
			OriginCity:      cell(10),
			Grade:           cell(11),
		})
	}

	t.logger.Info("Table transformed",
		slog.Int("rows", out.Len()),
		slog.Int("missing_numbers", out.MissingNumbers()))
	return out, nil
}

// ParseNumber strips grouping commas and whitespace and parses s. Anything
// that is not a finite decimal yields an invalid NullDecimal.
func ParseNumber(s string) decimal.NullDecimal {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseDate parses a calendar date from a text layout or an Excel serial
// number. The time of day is dropped.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return truncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
