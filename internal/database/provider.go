package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	apperrors "pricepipe/internal/errors"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Options describes the target database.
type Options struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	// Name is the schema for MySQL and the file path (or DSN) for SQLite.
	Name        string
	PingTimeout time.Duration
}

// DSN returns the driver data source name for a server reachable at addr.
func (o Options) DSN(addr string) string {
	if o.Driver == DriverSQLite {
		return o.Name
	}
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = o.Name
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Addr is the host:port of the database server.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Conn is a live database handle plus whatever must be torn down after it.
type Conn struct {
	DB      *sql.DB
	closers []func() error
}

// Close closes the database first and then the transport under it.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConnectionProvider opens database connections. Callers must Close the
// returned Conn on every path.
type ConnectionProvider interface {
	Connect(ctx context.Context) (*Conn, error)
}

// DirectProvider connects straight to the database host.
type DirectProvider struct {
	opts   Options
	logger *slog.Logger
}

func NewDirectProvider(opts Options, logger *slog.Logger) *DirectProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectProvider{opts: opts, logger: logger}
}

func (p *DirectProvider) Connect(ctx context.Context) (*Conn, error) {
	db, err := open(ctx, p.opts, p.opts.Addr())
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "Connected to database",
		slog.String("driver", p.opts.Driver),
		slog.String("addr", p.opts.Addr()),
		slog.String("database", p.opts.Name))
	return &Conn{DB: db}, nil
}

func open(ctx context.Context, opts Options, addr string) (*sql.DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverMySQL
	}
	db, err := sql.Open(driver, opts.DSN(addr))
	if err != nil {
		return nil, apperrors.NewConnectionError("open database", err).WithContext("driver", driver)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, apperrors.NewConnectionError("ping database", err).
			WithContext("driver", driver).
			WithContext("addr", addr)
	}
	return db, nil
}

// NewProvider picks the connection strategy for env: production hosts reach
// the database directly, everything else goes through the SSH bastion.
func NewProvider(env string, db Options, tunnel SSHOptions, logger *slog.Logger) ConnectionProvider {
	if env == "production" {
		return NewDirectProvider(db, logger)
	}
	return NewTunnelProvider(db, tunnel, logger)
}
