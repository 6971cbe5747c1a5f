package dataprocessing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Columns is the canonical schema, in the export's column order.
var Columns = []string{
	"transaction_date",
	"transaction_unit",
	"average_price",
	"total_volume",
	"total_amount",
	"market_name",
	"corporation_name",
	"item_name",
	"item_variety",
	"origin_province",
	"origin_city",
	"grade",
}

// ColumnCount is the number of columns every export must carry.
const ColumnCount = 12

// RawTable is a sheet as read from disk. Header is kept for diagnostics only;
// its labels are locale specific and columns are addressed by position.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Width returns the widest of the header and the data rows.
func (t RawTable) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// CanonicalRecord is one daily price observation.
// Numeric fields are invalid (null) when the export cell was not a number.
type CanonicalRecord struct {
	TransactionDate time.Time
	TransactionUnit string
	AveragePrice    decimal.NullDecimal
	TotalVolume     decimal.NullDecimal
	TotalAmount     decimal.NullDecimal
	MarketName      string
	CorporationName string
	ItemName        string
	ItemVariety     string
	OriginProvince  string
	OriginCity      string
	Grade           string
}

// Values returns the record as SQL arguments in Columns order.
func (r CanonicalRecord) Values() []any {
	return []any{
		r.TransactionDate.Format(time.DateOnly),
		r.TransactionUnit,
		r.AveragePrice,
		r.TotalVolume,
		r.TotalAmount,
		r.MarketName,
		r.CorporationName,
		r.ItemName,
		r.ItemVariety,
		r.OriginProvince,
		r.OriginCity,
		r.Grade,
	}
}

// CanonicalTable is the transformed export.
type CanonicalTable struct {
	Source  string
	Records []CanonicalRecord
}

func (t *CanonicalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// MissingNumbers counts numeric cells that could not be parsed.
func (t *CanonicalTable) MissingNumbers() int {
	n := 0
	for _, r := range t.Records {
		for _, v := range []decimal.NullDecimal{r.AveragePrice, r.TotalVolume, r.TotalAmount} {
			if !v.Valid {
				n++
			}
		}
	}
	return n
}
