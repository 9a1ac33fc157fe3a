package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the core runtime configuration for the service.
// Values are sourced from environment variables (optionally via .env),
// with sensible defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr string `env:"APP_LISTEN_ADDR" envDefault:":8080"`

	// AppURL is the public base URL, used for links in owner notifications.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	DatabaseURL string `env:"APP_DATABASE_URL"`

	// AdminPassword is exchanged for a bearer token on /api/admin/login.
	// AdminPasswordHash, when set, takes precedence and must be a bcrypt hash.
	AdminPassword     string        `env:"APP_ADMIN_PASSWORD"`
	AdminPasswordHash string        `env:"APP_ADMIN_PASSWORD_HASH"`
	JWTSecret         string        `env:"APP_JWT_SECRET"`
	SessionTTL        time.Duration `env:"APP_SESSION_TTL" envDefault:"24h"`
	SessionCleanup    time.Duration `env:"APP_SESSION_CLEANUP_INTERVAL" envDefault:"1h"`

	// CalendarURL is the scheduling link embedded in every full report.
	CalendarURL string `env:"APP_CALENDAR_URL" envDefault:"#"`

	LogLevel  string `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"APP_LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"APP_LOG_FILE"`

	// IntegrationTimeout bounds the whole post-submission fan-out.
	IntegrationTimeout time.Duration `env:"APP_INTEGRATION_TIMEOUT" envDefault:"15s"`

	Mail    MailConfig
	CRM     CRMConfig
	Archive ArchiveConfig
}

// MailConfig configures SMTP delivery. Mail is disabled when Host is empty.
type MailConfig struct {
	Host       string `env:"APP_SMTP_HOST"`
	Port       int    `env:"APP_SMTP_PORT" envDefault:"587"`
	Username   string `env:"APP_SMTP_USERNAME"`
	Password   string `env:"APP_SMTP_PASSWORD"`
	FromEmail  string `env:"APP_FROM_EMAIL" envDefault:"hello@tacticalgrowthlabs.com"`
	FromName   string `env:"APP_FROM_NAME" envDefault:"Tactical Growth Labs"`
	OwnerEmail string `env:"APP_OWNER_NOTIFY_EMAIL"`
}

// CRMConfig configures the LeadConnector (GoHighLevel) sync.
type CRMConfig struct {
	BaseURL         string        `env:"APP_CRM_BASE_URL" envDefault:"https://services.leadconnectorhq.com"`
	APIKey          string        `env:"APP_CRM_API_KEY"`
	LocationID      string        `env:"APP_CRM_LOCATION_ID"`
	PipelineID      string        `env:"APP_CRM_PIPELINE_ID" envDefault:"rqrDtKP2rtXBtqCwd0kt"`
	PipelineStageID string        `env:"APP_CRM_PIPELINE_STAGE_ID" envDefault:"bbd9c31a-ef08-4164-b30c-18b53194fb8a"`
	WebhookURL      string        `env:"APP_CRM_WEBHOOK_URL"`
	Timeout         time.Duration `env:"APP_CRM_TIMEOUT" envDefault:"10s"`
}

// ArchiveConfig selects where rendered reports are archived. With neither
// Dir nor Bucket set, archiving is disabled.
type ArchiveConfig struct {
	Dir       string `env:"APP_ARCHIVE_DIR"`
	Bucket    string `env:"APP_ARCHIVE_S3_BUCKET"`
	Region    string `env:"APP_ARCHIVE_S3_REGION"`
	Endpoint  string `env:"APP_ARCHIVE_S3_ENDPOINT"`
	AccessKey string `env:"APP_ARCHIVE_S3_ACCESS_KEY"`
	SecretKey string `env:"APP_ARCHIVE_S3_SECRET_KEY"`
}

// Load reads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.JWTSecret == "" {
		// Derived secret; set APP_JWT_SECRET in production.
		cfg.JWTSecret = cfg.AdminPassword + cfg.AdminPasswordHash
	}
	return cfg, nil
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != ""
}

// CRMEnabled reports whether the CRM API credentials are present.
func (c *Config) CRMEnabled() bool {
	return c.CRM.APIKey != "" && c.CRM.LocationID != ""
}
