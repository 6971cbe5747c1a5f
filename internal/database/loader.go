package database

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"pricepipe/internal/dataprocessing"
	apperrors "pricepipe/internal/errors"
)

// DefaultBatchSize keeps each INSERT well below MySQL's placeholder limit.
const DefaultBatchSize = 500

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Loader appends canonical tables to an existing table. It never creates,
// alters or truncates the target.
type Loader struct {
	provider  ConnectionProvider
	batchSize int
	logger    *slog.Logger
}

func NewLoader(provider ConnectionProvider, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{provider: provider, batchSize: batchSize, logger: logger}
}

// Load inserts every record of table into tableName inside one transaction
// and returns the number of rows inserted. On any error nothing is committed.
func (l *Loader) Load(ctx context.Context, table *dataprocessing.CanonicalTable, tableName string) (int64, error) {
	if !identifierPattern.MatchString(tableName) {
		return 0, apperrors.NewConfigError(fmt.Sprintf("invalid table name %q", tableName), nil)
	}
	if table.Len() == 0 {
		l.logger.WarnContext(ctx, "Nothing to load", slog.String("table", tableName))
		return 0, nil
	}

	conn, err := l.provider.Connect(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			l.logger.WarnContext(ctx, "Failed to release database connection", slog.String("error", err.Error()))
		}
	}()

	tx, err := conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewLoadError("begin transaction", err).WithContext("table", tableName)
	}

	var inserted int64
	for start := 0; start < table.Len(); start += l.batchSize {
		end := min(start+l.batchSize, table.Len())
		batch := table.Records[start:end]

		query, args := insertStatement(tableName, batch)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, apperrors.NewLoadError("insert rows", err).
				WithContext("table", tableName).
				WithContext("first_row", start).
				WithContext("rows", len(batch))
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(len(batch))
		}
		inserted += n

		l.logger.DebugContext(ctx, "Batch inserted",
			slog.String("table", tableName),
			slog.Int("first_row", start),
			slog.Int64("rows", n))
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewLoadError("commit", err).WithContext("table", tableName)
	}

	l.logger.InfoContext(ctx, "Rows loaded",
		slog.String("table", tableName),
		slog.Int64("rows", inserted))
	return inserted, nil
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

func insertStatement(tableName string, records []dataprocessing.CanonicalRecord) (string, []any) {
	cols := make([]string, len(dataprocessing.Columns))
	for i, c := range dataprocessing.Columns {
		cols[i] = quoteIdent(c)
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(tableName))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(cols))
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, r.Values()...)
	}
	return b.String(), args
}
