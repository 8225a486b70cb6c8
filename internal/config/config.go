package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Menu       MenuConfig       `yaml:"menu"`
	Exports    ExportConfig     `yaml:"exports"`
	Branding   BrandingConfig   `yaml:"branding"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey is one API client. ReadOnly clients may only use GET routes.
type APIClientKey struct {
	Key      string `yaml:"key"`
	Extra    string `yaml:"extra"`
	Name     string `yaml:"name"`
	ReadOnly bool   `yaml:"read_only"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConnections int    `yaml:"max_connections"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MenuConfig struct {
	// SeedFile replaces the built-in seed menu when set.
	SeedFile    string        `yaml:"seed_file"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

type ExportConfig struct {
	Path             string        `yaml:"path"`
	Product          string        `yaml:"product"`
	Scale            float64       `yaml:"scale"`
	RasterPage       string        `yaml:"raster_page"`
	DocumentPage     string        `yaml:"document_page"`
	JPEGQuality      int           `yaml:"jpeg_quality"`
	AssetTimeout     time.Duration `yaml:"asset_timeout"`
	SplitThreshold   int           `yaml:"split_threshold"`
	IncludeBackCover *bool         `yaml:"include_back_cover"`
	PlanFile         string        `yaml:"plan_file"`
	Storage          StorageConfig `yaml:"storage"`
	Print            PrintConfig   `yaml:"print"`
}

// BackCover reports whether plans end with the back cover.
func (e ExportConfig) BackCover() bool {
	return e.IncludeBackCover == nil || *e.IncludeBackCover
}

type StorageConfig struct {
	Driver string   `yaml:"driver"`
	S3     S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Prefix        string `yaml:"prefix"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type PrintConfig struct {
	SpoolDir string   `yaml:"spool_dir"`
	Command  []string `yaml:"command"`
}

type BrandingConfig struct {
	Name        string   `yaml:"name"`
	Subtitle    string   `yaml:"subtitle"`
	Tagline     string   `yaml:"tagline"`
	Phone       string   `yaml:"phone"`
	Handle      string   `yaml:"handle"`
	Address     string   `yaml:"address"`
	LocationURL string   `yaml:"location_url"`
	FeedbackURL string   `yaml:"feedback_url"`
	LogoPath    string   `yaml:"logo_path"`
	LogoURL     string   `yaml:"logo_url"`
	Narrative   []string `yaml:"narrative"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.BotToken != "YOUR_BOT_TOKEN_HERE" && len(t.AdminChatIDs) > 0
}

type GoogleConfig struct {
	GoogleCredentialsFile  string `yaml:"credentials_file"`
	PriceListSpreadsheetID string `yaml:"price_list_spreadsheet_id"`
	PriceListSheet         string `yaml:"price_list_sheet"`
}

type WorkerConfig struct {
	QueueSize     int           `yaml:"queue_size"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	JobTTL        time.Duration `yaml:"job_ttl"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return errors.New("postgres dsn is required")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Exports.Path == "" {
		return errors.New("exports path is required")
	}
	if c.Exports.Scale <= 0 || c.Exports.Scale > 4 {
		return fmt.Errorf("exports scale %.2f out of range (0, 4]", c.Exports.Scale)
	}
	for _, page := range []string{c.Exports.RasterPage, c.Exports.DocumentPage} {
		switch strings.ToUpper(page) {
		case "A4", "A5":
		default:
			return fmt.Errorf("unsupported page size %q", page)
		}
	}
	switch c.Exports.Storage.Driver {
	case "local":
	case "s3":
		if c.Exports.Storage.S3.Bucket == "" {
			return errors.New("s3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Exports.Storage.Driver)
	}

	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api keys are configured")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "livemenu"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Menu.SnapshotTTL == 0 {
		c.Menu.SnapshotTTL = 24 * time.Hour
	}

	// Export defaults
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Exports.Product == "" {
		c.Exports.Product = "LiveBar"
	}
	if c.Exports.Scale == 0 {
		c.Exports.Scale = 2
	}
	if c.Exports.RasterPage == "" {
		c.Exports.RasterPage = "A4"
	}
	if c.Exports.DocumentPage == "" {
		c.Exports.DocumentPage = "A5"
	}
	if c.Exports.JPEGQuality == 0 {
		c.Exports.JPEGQuality = 90
	}
	if c.Exports.AssetTimeout == 0 {
		c.Exports.AssetTimeout = time.Second
	}
	if c.Exports.SplitThreshold == 0 {
		c.Exports.SplitThreshold = 18
	}
	if c.Exports.Storage.Driver == "" {
		c.Exports.Storage.Driver = "local"
	}

	if c.Google.PriceListSheet == "" {
		c.Google.PriceListSheet = "Price List"
	}

	// Worker defaults
	if c.Worker.QueueSize == 0 {
		c.Worker.QueueSize = 32
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 2
	}
	if c.Worker.InitialDelay == 0 {
		c.Worker.InitialDelay = 2 * time.Second
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = time.Minute
	}
	if c.Worker.BackoffFactor == 0 {
		c.Worker.BackoffFactor = 2
	}
	if c.Worker.JobTTL == 0 {
		c.Worker.JobTTL = 72 * time.Hour
	}
}
