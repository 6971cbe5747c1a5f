// Package dataprocessing turns a sheet export into the canonical price table.
//
// # Architecture
//
// The package has two steps:
//
// 1. Reader: reads the first worksheet of an .xlsx export into a RawTable of strings
// 2. Transformer: renames the columns by position and coerces dates and numbers
//
// # Usage
//
//	raw, err := dataprocessing.NewReader(logger).ReadTable("output/export.xlsx")
//	if err != nil {
//	    return err
//	}
//	table, err := dataprocessing.NewTransformer(logger).Transform(raw)
//
// # Data Flow
//
//	Excel File → Reader → RawTable → Transformer → CanonicalTable → Loader
//
// # Missing values
//
// Price, volume and amount cells that do not parse after removing thousands
// separators become invalid decimal.NullDecimal values and are stored as NULL.
// A column count other than twelve is a SCHEMA_MISMATCH and nothing is
// transformed.
package dataprocessing
