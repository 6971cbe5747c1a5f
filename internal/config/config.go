package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	apperrors "pricepipe/internal/errors"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"

	// DefaultEnvFile is loaded when present and no other file is named.
	DefaultEnvFile = ".env"
)

// Config represents the complete application configuration
type Config struct {
	Env      string         `envconfig:"EXECUTION_ENV" default:"local" validate:"oneof=local production"`
	Database DatabaseConfig `envconfig:"DB"`
	SSH      SSHConfig      `envconfig:"SSH"`
	Crawl    CrawlConfig    `envconfig:"CRAWL"`
	Load     LoadConfig     `envconfig:"LOAD"`
	Logging  LoggingConfig  `envconfig:"LOG"`
	OTel     OTelConfig     `envconfig:"OTEL"`
}

// DatabaseConfig describes the target store. Its connection fields are only
// required by commands that load, see ValidateDatabase.
type DatabaseConfig struct {
	Driver      string        `envconfig:"DRIVER" default:"mysql" validate:"oneof=mysql sqlite"`
	Host        string        `envconfig:"HOST"`
	Port        int           `envconfig:"PORT" default:"3306" validate:"min=1,max=65535"`
	User        string        `envconfig:"USER"`
	Password    string        `envconfig:"PASSWORD"`
	Name        string        `envconfig:"NAME"`
	PingTimeout time.Duration `envconfig:"PING_TIMEOUT" default:"10s" validate:"gt=0"`
}

// SSHConfig describes the bastion used outside production. Host key
// verification is skipped when KnownHosts is empty.
type SSHConfig struct {
	Host          string        `envconfig:"HOST"`
	Port          int           `envconfig:"PORT" default:"22" validate:"min=1,max=65535"`
	User          string        `envconfig:"USER"`
	KeyPath       string        `envconfig:"PKEY"`
	KeyPassphrase string        `envconfig:"PKEY_PASSPHRASE"`
	KnownHosts    string        `envconfig:"KNOWN_HOSTS"`
	DialTimeout   time.Duration `envconfig:"DIAL_TIMEOUT" default:"15s" validate:"gt=0"`
}

// CrawlConfig contains browser and polling settings.
type CrawlConfig struct {
	URL                  string        `envconfig:"URL" default:"https://www.nongnet.or.kr/qlik/sso/single/?appid=551d7860-2a5d-49e5-915e-56517f3da2a3&sheet=d89143e2-368a-4d41-9851-d4f58ce060dc" validate:"url"`
	DownloadDir          string        `envconfig:"DOWNLOAD_DIR"`
	ElementTimeout       time.Duration `envconfig:"ELEMENT_TIMEOUT" default:"30s" validate:"gt=0"`
	PollInterval         time.Duration `envconfig:"POLL_INTERVAL" default:"500ms" validate:"gt=0"`
	PageLoadTimeout      time.Duration `envconfig:"PAGE_LOAD_TIMEOUT" default:"60s" validate:"gt=0"`
	DataLoadDelay        time.Duration `envconfig:"DATA_LOAD_DELAY" default:"15s" validate:"gte=0"`
	DownloadTimeout      time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"60s" validate:"gt=0"`
	DownloadPollInterval time.Duration `envconfig:"DOWNLOAD_POLL_INTERVAL" default:"1s" validate:"gt=0"`
	CloseDelay           time.Duration `envconfig:"CLOSE_DELAY" default:"5s" validate:"gte=0"`
	QueryFile            string        `envconfig:"QUERY_FILE"`
}

// LoadConfig names the destination table.
type LoadConfig struct {
	Table     string `envconfig:"TABLE" default:"drought_impact_crop_price_daily" validate:"required"`
	BatchSize int    `envconfig:"BATCH_SIZE" default:"500" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Output   string `envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `envconfig:"FILE_PATH"`
}

// OTelConfig selects the telemetry exporters.
type OTelConfig struct {
	TraceExporter  string `envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=stdout none"`
	MetricExporter string `envconfig:"METRIC_EXPORTER" default:"prometheus" validate:"oneof=prometheus none"`
}

// IsProduction reports whether the process runs inside the database network.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// NeedsTunnel reports whether database connections go through the bastion.
func (c *Config) NeedsTunnel() bool {
	return !c.IsProduction() && c.Database.Driver == "mysql"
}

// Load reads envFile (or .env when envFile is empty and the file exists)
// into the process environment without overriding variables that are
// already set, then builds and validates the configuration.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return apperrors.NewConfigError("failed to load env file", err).WithContext("path", envFile)
		}
		return nil
	}
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewConfigError("failed to load env file", err).WithContext("path", DefaultEnvFile)
	}
	return nil
}

// resolvePaths fills unset directories from the executable location.
func (c *Config) resolvePaths() error {
	if c.Crawl.DownloadDir != "" && (c.Logging.FilePath != "" || c.Logging.Output == "console") {
		return nil
	}
	paths, err := GetPaths()
	if err != nil {
		return apperrors.NewConfigError("failed to resolve paths", err)
	}
	if c.Crawl.DownloadDir == "" {
		c.Crawl.DownloadDir = paths.OutputDir
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(paths.LogsDir, LogFileName)
	}
	return nil
}

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	validateDB = newDatabaseValidator()
)

func newDatabaseValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(databaseValidation, Config{})
	return v
}

// databaseValidation requires the connection settings, and the bastion
// settings whenever the tunnel is used.
func databaseValidation(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	db := cfg.Database
	if db.Name == "" {
		sl.ReportError(db.Name, "Database.Name", "Name", "required", "")
	}
	if db.Driver == "mysql" {
		if db.Host == "" {
			sl.ReportError(db.Host, "Database.Host", "Host", "required_if", "Driver mysql")
		}
		if db.User == "" {
			sl.ReportError(db.User, "Database.User", "User", "required_if", "Driver mysql")
		}
	}
	if !cfg.NeedsTunnel() {
		return
	}
	if cfg.SSH.Host == "" {
		sl.ReportError(cfg.SSH.Host, "SSH.Host", "Host", "required_for_tunnel", "")
	}
	if cfg.SSH.User == "" {
		sl.ReportError(cfg.SSH.User, "SSH.User", "User", "required_for_tunnel", "")
	}
	if cfg.SSH.KeyPath == "" {
		sl.ReportError(cfg.SSH.KeyPath, "SSH.KeyPath", "KeyPath", "required_for_tunnel", "")
	}
}

// ValidateDatabase checks the settings needed to open a database connection.
// Load leaves them optional.
func (c *Config) ValidateDatabase() error {
	return validationError(validateDB.Struct(c))
}

// validate validates the configuration
func (c *Config) validate() error {
	return validationError(validate.Struct(c))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewConfigError("config validation failed", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return apperrors.NewConfigError("invalid configuration: "+strings.Join(fields, ", "), err).
		WithContext("fields", fields)
}
