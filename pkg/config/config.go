package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	GCP      GCPConfig
	GCS      GCSConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Render   RenderConfig
	Pricing  PricingConfig
	Features FeatureFlagsConfig

	AuthRateLimit AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FREIGHTLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"FREIGHTLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FREIGHTLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FREIGHTLINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FREIGHTLINK_DB_DSN"`
	Driver string `envconfig:"FREIGHTLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FREIGHTLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"FREIGHTLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FREIGHTLINK_DB_USER"`
	LegacyPassword string `envconfig:"FREIGHTLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"FREIGHTLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"FREIGHTLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FREIGHTLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FREIGHTLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FREIGHTLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FREIGHTLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FREIGHTLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FREIGHTLINK_REDIS_ADDR"`
	Password     string        `envconfig:"FREIGHTLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"FREIGHTLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FREIGHTLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FREIGHTLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FREIGHTLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FREIGHTLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FREIGHTLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FREIGHTLINK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FREIGHTLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FREIGHTLINK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FREIGHTLINK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FREIGHTLINK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FREIGHTLINK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FREIGHTLINK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FREIGHTLINK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FREIGHTLINK_ARGON_KEY_LEN" default:"32"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FREIGHTLINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FREIGHTLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FREIGHTLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"FREIGHTLINK_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry   time.Duration `envconfig:"FREIGHTLINK_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"FREIGHTLINK_GCS_DOWNLOAD_URL_EXPIRY" default:"24h"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"FREIGHTLINK_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"FREIGHTLINK_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
	CMRSubscription    string `envconfig:"FREIGHTLINK_PUBSUB_CMR_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FREIGHTLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FREIGHTLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FREIGHTLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// RenderConfig bounds the document render/merge pipeline.
type RenderConfig struct {
	Timeout      time.Duration `envconfig:"FREIGHTLINK_RENDER_TIMEOUT" default:"30s"`
	LockTTL      time.Duration `envconfig:"FREIGHTLINK_RENDER_LOCK_TTL" default:"2m"`
	MaxPhotoSize int           `envconfig:"FREIGHTLINK_RENDER_MAX_PHOTO_BYTES" default:"5242880"`
}

// PricingConfig controls the default contractor split before any bid
// is accepted.
type PricingConfig struct {
	ContractorShareBP int `envconfig:"FREIGHTLINK_CONTRACTOR_SHARE_BP" default:"8500"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FREIGHTLINK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FREIGHTLINK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FREIGHTLINK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FREIGHTLINK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FREIGHTLINK_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FREIGHTLINK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FREIGHTLINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FREIGHTLINK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
