package dataprocessing

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WritePreview renders the first n records of t as a table.
func WritePreview(w io.Writer, t *CanonicalTable, n int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	for i, r := range t.Records {
		if i >= n {
			break
		}
		tw.AppendRow(table.Row{
			r.TransactionDate.Format(time.DateOnly),
			r.TransactionUnit,
			nullString(r.AveragePrice.Valid, r.AveragePrice.Decimal.String()),
			nullString(r.TotalVolume.Valid, r.TotalVolume.Decimal.String()),
			nullString(r.TotalAmount.Valid, r.TotalAmount.Decimal.String()),
			r.MarketName,
			r.CorporationName,
			r.ItemName,
			r.ItemVariety,
			r.OriginProvince,
			r.OriginCity,
			r.Grade,
		})
	}
	if t.Len() > n {
		tw.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "", "", "", fmt.Sprintf("+%d rows", t.Len()-n)})
	}
	tw.Render()
}

func nullString(valid bool, s string) string {
	if !valid {
		return "NULL"
	}
	return s
}
