package commands

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"pricepipe/internal/config"
	"pricepipe/internal/database"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/files"
)

const priceSchema = `CREATE TABLE drought_impact_crop_price_daily (
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
	grade TEXT
)`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	downloadDir string
	dbPath      string
}

// setupEnv points the CLI at a temp download directory and a SQLite file.
func setupEnv(t *testing.T, withSchema bool) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		downloadDir: filepath.Join(dir, "output"),
		dbPath:      filepath.Join(dir, "prices.db"),
	}
	vars := map[string]string{
		"EXECUTION_ENV":        "local",
		"DB_DRIVER":            "sqlite",
		"DB_NAME":              env.dbPath,
		"CRAWL_DOWNLOAD_DIR":   env.downloadDir,
		"LOG_LEVEL":            "error",
		"LOG_OUTPUT":           "console",
		"OTEL_TRACE_EXPORTER":  "none",
		"OTEL_METRIC_EXPORTER": "none",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
	require.NoError(t, os.MkdirAll(env.downloadDir, 0o755))

	if withSchema {
		db, err := sql.Open("sqlite", env.dbPath)
		require.NoError(t, err)
		defer db.Close()
		_, err = db.Exec(priceSchema)
		require.NoError(t, err)
	}
	return env
}

func (e testEnv) rowCount(t *testing.T) int {
	t.Helper()
	db, err := sql.Open("sqlite", e.dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM drought_impact_crop_price_daily").Scan(&n))
	return n
}

func writeExport(t *testing.T, path string, rows int) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := []interface{}{"거래일자", "거래단위", "평균가격", "총거래물량", "총거래금액", "도매시장", "도매법인", "품목", "품종", "산지-광역시도", "산지-시군구", "등급"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i := 0; i < rows; i++ {
		row := []interface{}{"2024-06-07", "10kg그물망", "12,500", 1200, 15000000, "서울가락도매", "서울청과", "배추", "고냉지배추", "강원도", "평창군", "상"}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTransformCommand(t *testing.T) {
	env := setupEnv(t, false)
	path := filepath.Join(env.downloadDir, "export.xlsx")
	writeExport(t, path, 3)

	out, err := execute(t, "transform", "--file", path, "--rows", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "TRANSACTION")
	assert.Contains(t, out, "고냉지배추")
	assert.Contains(t, out, "+1 ROWS")

	_, statErr := os.Stat(env.dbPath)
	assert.True(t, os.IsNotExist(statErr), "dry run must not touch the database")
}

func TestTransformCommand_NewestExportByDefault(t *testing.T) {
	env := setupEnv(t, false)
	old := filepath.Join(env.downloadDir, "old.xlsx")
	writeExport(t, old, 1)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	writeExport(t, filepath.Join(env.downloadDir, "new.xlsx"), 7)

	out, err := execute(t, "transform", "--rows", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "+6 ROWS")
}

func TestTransformCommand_NoExport(t *testing.T) {
	setupEnv(t, false)

	_, err := execute(t, "transform")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestLoadCommand(t *testing.T) {
	env := setupEnv(t, true)
	path := filepath.Join(env.downloadDir, "export.xlsx")
	writeExport(t, path, 3)

	out, err := execute(t, "load", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 ROWS LOADED")
	assert.Contains(t, out, "DONE")
	assert.Equal(t, 3, env.rowCount(t))

	_, err = execute(t, "load")
	require.NoError(t, err)
	assert.Equal(t, 6, env.rowCount(t), "rows are appended on every run")
}

func TestLoadCommand_Failures(t *testing.T) {
	tests := []struct {
		name     string
		schema   bool
		setup    func(t *testing.T, env testEnv) string
		wantType apperrors.ErrorType
	}{
		{
			name:   "missing table",
			schema: false,
			setup: func(t *testing.T, env testEnv) string {
				path := filepath.Join(env.downloadDir, "export.xlsx")
				writeExport(t, path, 2)
				return path
			},
			wantType: apperrors.ErrTypeLoad,
		},
		{
			name:   "missing file",
			schema: true,
			setup: func(t *testing.T, env testEnv) string {
				return filepath.Join(env.downloadDir, "nope.xlsx")
			},
			wantType: apperrors.ErrTypeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t, tt.schema)
			path := tt.setup(t, env)

			out, err := execute(t, "load", "--file", path)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
			assert.Contains(t, out, "failed")
		})
	}
}

func TestLoadCommand_RunLockHeld(t *testing.T) {
	env := setupEnv(t, true)
	writeExport(t, filepath.Join(env.downloadDir, "export.xlsx"), 1)

	lock, err := files.AcquireRunLock(env.downloadDir)
	require.NoError(t, err)
	defer lock.Release()

	_, err = execute(t, "load")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.Equal(t, 0, env.rowCount(t))
}

func TestInvalidConfigStopsBeforeCommand(t *testing.T) {
	setupEnv(t, false)
	t.Setenv("DB_DRIVER", "oracle")

	_, err := execute(t, "transform")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestDatabaseSettingsOnlyRequiredForLoading(t *testing.T) {
	env := setupEnv(t, false)
	// mysql outside production needs a bastion, none of which is set.
	for k, v := range map[string]string{
		"DB_DRIVER": "mysql", "DB_HOST": "", "DB_USER": "", "DB_NAME": "",
		"SSH_HOST": "", "SSH_USER": "", "SSH_PKEY": "",
	} {
		t.Setenv(k, v)
	}
	path := filepath.Join(env.downloadDir, "export.xlsx")
	writeExport(t, path, 2)

	out, err := execute(t, "transform", "--file", path, "--rows", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "+1 ROWS")

	for _, name := range []string{"load", "run"} {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, name)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig), "got %v", err)
			assert.Contains(t, err.Error(), "SSH.Host")
			assert.Contains(t, err.Error(), "Database.Name")
		})
	}
}

func TestSubcommandsRejectArgs(t *testing.T) {
	setupEnv(t, false)
	for _, name := range []string{"run", "crawl", "transform", "load"} {
		_, err := execute(t, name, "extra")
		assert.Error(t, err, name)
	}
}

func testConfig(env string, driver string) *config.Config {
	return &config.Config{
		Env:      env,
		Database: config.DatabaseConfig{Driver: driver, Host: "db.internal", Port: 3306, User: "loader", Name: "agri", PingTimeout: time.Second},
		SSH:      config.SSHConfig{Host: "bastion", Port: 22, User: "ubuntu", KeyPath: "/keys/id", KnownHosts: "/keys/known_hosts", DialTimeout: time.Second},
		Crawl: config.CrawlConfig{
			URL:                  "https://example.test/sheet",
			DownloadDir:          "/tmp/out",
			ElementTimeout:       30 * time.Second,
			PollInterval:         500 * time.Millisecond,
			PageLoadTimeout:      45 * time.Second,
			DataLoadDelay:        2 * time.Second,
			DownloadTimeout:      90 * time.Second,
			DownloadPollInterval: time.Second,
			CloseDelay:           time.Second,
		},
		Load: config.LoadConfig{Table: "drought_impact_crop_price_daily", BatchSize: 100},
	}
}

func TestLaunchOptions(t *testing.T) {
	prod := launchOptions(testConfig(config.EnvProduction, "mysql"))
	assert.True(t, prod.Headless)
	assert.Equal(t, 1920, prod.WindowWidth)
	assert.Equal(t, "/tmp/out", prod.DownloadDir)
	assert.Equal(t, 45*time.Second, prod.PageLoadTimeout)

	local := launchOptions(testConfig(config.EnvLocal, "mysql"))
	assert.False(t, local.Headless)
	assert.Equal(t, "/tmp/out", local.DownloadDir)
}

func TestCrawlerConfig(t *testing.T) {
	cfg := testConfig(config.EnvLocal, "mysql")

	ccfg, err := crawlerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/sheet", ccfg.URL)
	assert.Equal(t, 30*time.Second, ccfg.Elements.Timeout)
	assert.Equal(t, 45*time.Second, ccfg.PageLoad.Timeout)
	assert.Equal(t, 90*time.Second, ccfg.Download.Timeout)
	assert.Equal(t, time.Second, ccfg.Download.Interval)
	assert.Equal(t, 2*time.Second, ccfg.Delays.DataLoad)
	assert.NoError(t, ccfg.Query.Validate())

	queryFile := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(queryFile, []byte("item: 무\nfilters:\n  - title: 도매시장\n    option: 서울가락도매\n"), 0o644))
	cfg.Crawl.QueryFile = queryFile
	ccfg, err = crawlerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "무", ccfg.Query.Item)

	cfg.Crawl.QueryFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = crawlerConfig(cfg)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestConnectionProvider(t *testing.T) {
	logger := discardLogger()
	tests := []struct {
		env    string
		driver string
		want   interface{}
	}{
		{config.EnvProduction, "mysql", &database.DirectProvider{}},
		{config.EnvLocal, "mysql", &database.TunnelProvider{}},
		{config.EnvLocal, "sqlite", &database.DirectProvider{}},
		{config.EnvProduction, "sqlite", &database.DirectProvider{}},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.driver, func(t *testing.T) {
			assert.IsType(t, tt.want, connectionProvider(testConfig(tt.env, tt.driver), logger))
		})
	}
}

func TestDatabaseOptions(t *testing.T) {
	db, tunnel := databaseOptions(testConfig(config.EnvLocal, "mysql"))
	assert.Equal(t, "db.internal:3306", db.Addr())
	assert.Equal(t, "agri", db.Name)
	assert.Equal(t, "bastion:22", tunnel.Addr())
	assert.Equal(t, "/keys/id", tunnel.KeyPath)
	assert.Equal(t, "/keys/known_hosts", tunnel.KnownHostsPath)
}

func TestMetricsRouter(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pipeline_runs_total 1\n"))
	})

	tests := []struct {
		name    string
		handler http.Handler
		path    string
		code    int
		body    string
	}{
		{"health", metrics, "/healthz", http.StatusOK, "ok"},
		{"metrics", metrics, "/metrics", http.StatusOK, "pipeline_runs_total"},
		{"metrics disabled", nil, "/metrics", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newMetricsRouter(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestMetricsServer(t *testing.T) {
	ctx := context.Background()
	srv, err := startMetricsServer(ctx, "127.0.0.1:0", nil, discardLogger())
	require.NoError(t, err)
	defer srv.Stop(ctx)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
