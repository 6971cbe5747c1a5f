package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/dataprocessing"
	apperrors "pricepipe/internal/errors"
)

const testTable = "drought_impact_crop_price_daily"

const sqliteSchema = `CREATE TABLE drought_impact_crop_price_daily (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_date TEXT NOT NULL,
	transaction_unit TEXT,
	average_price NUMERIC,
	total_volume NUMERIC,
	total_amount NUMERIC,
	market_name TEXT,
	corporation_name TEXT,
	item_name TEXT,
	item_variety TEXT,
	origin_province TEXT,
	origin_city TEXT,
	grade TEXT CHECK (grade <> 'X')
)`

// countingProvider wraps a provider and records connects and releases.
type countingProvider struct {
	inner    ConnectionProvider
	err      error
	connects int
	closes   int
}

func (p *countingProvider) Connect(ctx context.Context) (*Conn, error) {
	p.connects++
	if p.err != nil {
		return nil, p.err
	}
	conn, err := p.inner.Connect(ctx)
	if err != nil {
		return nil, err
	}
	conn.closers = append(conn.closers, func() error {
		p.closes++
		return nil
	})
	return conn, nil
}

func sqliteOptions(t *testing.T, withSchema bool) Options {
	t.Helper()
	opts := Options{Driver: DriverSQLite, Name: filepath.Join(t.TempDir(), "prices.db")}
	if withSchema {
		db, err := sql.Open(DriverSQLite, opts.Name)
		require.NoError(t, err)
		defer db.Close()
		_, err = db.Exec(sqliteSchema)
		require.NoError(t, err)
	}
	return opts
}

func canonicalTable(t *testing.T, grades ...string) *dataprocessing.CanonicalTable {
	t.Helper()
	raw := dataprocessing.RawTable{Header: make([]string, dataprocessing.ColumnCount)}
	for i, g := range grades {
		avg := "12,500"
		if i == 1 {
			avg = "-"
		}
		raw.Rows = append(raw.Rows, []string{
			"2024-06-07", "10kg그물망", avg, "1,200", "15,000,000",
			"서울가락도매", "서울청과", "배추", "고냉지배추", "강원도", "평창군", g,
		})
	}
	table, err := dataprocessing.NewTransformer(nil).Transform(raw)
	require.NoError(t, err)
	return table
}

func countRows(t *testing.T, opts Options) int {
	t.Helper()
	db, err := sql.Open(DriverSQLite, opts.Name)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+testTable).Scan(&n))
	return n
}

func TestLoader_Load(t *testing.T) {
	opts := sqliteOptions(t, true)
	provider := &countingProvider{inner: NewDirectProvider(opts, nil)}
	table := canonicalTable(t, "상", "특", "상", "보통", "특")

	n, err := NewLoader(provider, 2, nil).Load(context.Background(), table, testTable)

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, 1, provider.connects)
	assert.Equal(t, 1, provider.closes)

	db, err := sql.Open(DriverSQLite, opts.Name)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT id, transaction_date, average_price, total_amount, grade FROM " + testTable + " ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var grades []string
	for rows.Next() {
		var (
			id          int
			date, grade string
			avg, amount sql.NullString
		)
		require.NoError(t, rows.Scan(&id, &date, &avg, &amount, &grade))
		assert.Equal(t, len(grades)+1, id, "identity column is assigned by the store")
		assert.Equal(t, "2024-06-07", date)
		assert.Equal(t, "15000000", amount.String)
		if id == 2 {
			assert.False(t, avg.Valid, "unparsable number is stored as NULL")
		} else {
			assert.Equal(t, "12500", avg.String)
		}
		grades = append(grades, grade)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"상", "특", "상", "보통", "특"}, grades)
}

func TestLoader_AppendsToExistingRows(t *testing.T) {
	opts := sqliteOptions(t, true)
	loader := NewLoader(NewDirectProvider(opts, nil), 0, nil)

	_, err := loader.Load(context.Background(), canonicalTable(t, "상"), testTable)
	require.NoError(t, err)
	_, err = loader.Load(context.Background(), canonicalTable(t, "상", "특"), testTable)
	require.NoError(t, err)

	assert.Equal(t, 3, countRows(t, opts))
}

func TestLoader_FailedBatchRollsBack(t *testing.T) {
	opts := sqliteOptions(t, true)
	provider := &countingProvider{inner: NewDirectProvider(opts, nil)}
	table := canonicalTable(t, "상", "특", "X")

	n, err := NewLoader(provider, 2, nil).Load(context.Background(), table, testTable)

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, apperrors.ErrTypeLoad, apperrors.TypeOf(err))
	assert.Equal(t, 0, countRows(t, opts), "first batch is not committed")
	assert.Equal(t, 1, provider.closes)
}

func TestLoader_MissingTable(t *testing.T) {
	opts := sqliteOptions(t, false)
	provider := &countingProvider{inner: NewDirectProvider(opts, nil)}

	_, err := NewLoader(provider, 0, nil).Load(context.Background(), canonicalTable(t, "상"), testTable)

	assert.Equal(t, apperrors.ErrTypeLoad, apperrors.TypeOf(err))
	assert.Equal(t, 1, provider.closes)
}

func TestLoader_ConnectFailure(t *testing.T) {
	provider := &countingProvider{err: apperrors.NewConnectionError("dial bastion", errors.New("connection refused"))}

	_, err := NewLoader(provider, 0, nil).Load(context.Background(), canonicalTable(t, "상"), testTable)

	assert.Equal(t, apperrors.ErrTypeConnection, apperrors.TypeOf(err))
	assert.Equal(t, 1, provider.connects)
	assert.Equal(t, 0, provider.closes)
}

func TestLoader_RejectsBadTableName(t *testing.T) {
	provider := &countingProvider{}

	for _, name := range []string{"", "prices; DROP TABLE x", "prices`", "1prices", "db.prices"} {
		_, err := NewLoader(provider, 0, nil).Load(context.Background(), canonicalTable(t, "상"), name)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig), name)
	}
	assert.Equal(t, 0, provider.connects)
}

func TestLoader_EmptyTableSkipsConnect(t *testing.T) {
	provider := &countingProvider{}

	n, err := NewLoader(provider, 0, nil).Load(context.Background(), &dataprocessing.CanonicalTable{}, testTable)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 0, provider.connects)
}

func TestInsertStatement(t *testing.T) {
	table := canonicalTable(t, "상", "특")

	query, args := insertStatement(testTable, table.Records)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO `drought_impact_crop_price_daily` (`transaction_date`, `transaction_unit`, "))
	assert.Equal(t, 2, strings.Count(query, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	assert.Len(t, args, 2*dataprocessing.ColumnCount)
	assert.Equal(t, "특", args[len(args)-1])
}

func TestOptionsDSN(t *testing.T) {
	mysqlOpts := Options{Driver: DriverMySQL, Host: "db.internal", Port: 3306, User: "loader", Password: "s3cret", Name: "agri"}
	dsn := mysqlOpts.DSN("127.0.0.1:40123")
	assert.True(t, strings.HasPrefix(dsn, "loader:s3cret@tcp(127.0.0.1:40123)/agri?"))
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Equal(t, "db.internal:3306", mysqlOpts.Addr())

	sqliteOpts := Options{Driver: DriverSQLite, Name: "/tmp/prices.db"}
	assert.Equal(t, "/tmp/prices.db", sqliteOpts.DSN("ignored"))
}

func TestNewProvider(t *testing.T) {
	db := Options{Driver: DriverMySQL, Host: "db.internal", Port: 3306}
	tunnel := SSHOptions{Host: "bastion", Port: 22}

	assert.IsType(t, &DirectProvider{}, NewProvider("production", db, tunnel, nil))
	assert.IsType(t, &TunnelProvider{}, NewProvider("local", db, tunnel, nil))
	assert.IsType(t, &TunnelProvider{}, NewProvider("", db, tunnel, nil))
}

func TestDirectProvider_Unreachable(t *testing.T) {
	opts := Options{Driver: DriverMySQL, Host: "127.0.0.1", Port: 1, User: "u", Name: "d", PingTimeout: 2 * time.Second}

	_, err := NewDirectProvider(opts, nil).Connect(context.Background())

	assert.Equal(t, apperrors.ErrTypeConnection, apperrors.TypeOf(err))
}
