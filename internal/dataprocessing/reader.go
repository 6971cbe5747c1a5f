package dataprocessing

import (
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "pricepipe/internal/errors"
)

// Reader reads xlsx exports into raw tables.
type Reader struct {
	logger *slog.Logger
}

func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// ReadTable reads the first sheet of an xlsx export. The first row is the
// header; fully blank rows are dropped and short rows are padded to the
// table width. Cells are read unformatted, so dates stored as date cells come
// back as serial numbers and amounts without grouping separators.
func (r *Reader) ReadTable(path string) (RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return RawTable{}, apperrors.NewParsingError("open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return RawTable{}, apperrors.NewParsingError("workbook has no sheets", nil).WithContext("path", path)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return RawTable{}, apperrors.NewParsingError("read sheet", err).
			WithContext("path", path).
			WithContext("sheet", sheet)
	}
	if len(rows) == 0 {
		return RawTable{}, apperrors.NewParsingError("sheet is empty", nil).
			WithContext("path", path).
			WithContext("sheet", sheet)
	}

	table := RawTable{Header: rows[0]}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	width := table.Width()
	for i, row := range table.Rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			table.Rows[i] = padded
		}
	}

	r.logger.Debug("Workbook read",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("columns", width),
		slog.Int("rows", len(table.Rows)))
	return table, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
