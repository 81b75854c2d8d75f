package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/yeremiapane/library-seat-app/utils"
)

type Config struct {
	Env     string `envconfig:"APP_ENV" default:"development"`
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`

	// Database
	DBDriver string `envconfig:"DB_DRIVER" default:"mysql"`
	DBDSN    string `envconfig:"DB_DSN"`
	DBHost   string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort   string `envconfig:"DB_PORT" default:"3306"`
	DBUser   string `envconfig:"DB_USER" default:"root"`
	DBPass   string `envconfig:"DB_PASS"`
	DBName   string `envconfig:"DB_NAME" default:"library_seat"`

	// Auth
	JWTSecret          string        `envconfig:"JWT_SECRET"`
	JWTTTL             time.Duration `envconfig:"JWT_TTL" default:"24h"`
	GoogleClientID     string        `envconfig:"GOOGLE_CLIENT_ID"`
	SuperAdminEmail    string        `envconfig:"SUPER_ADMIN_EMAIL"`
	SuperAdminPassword string        `envconfig:"SUPER_ADMIN_PASSWORD"`

	// HTTP
	CORSOrigins   []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	PublicBaseURL string   `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	// Storage
	StorageDriver   string `envconfig:"STORAGE_DRIVER" default:"local"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"public/uploads"`
	OSSEndpoint     string `envconfig:"ALI_OSS_ENDPOINT"`
	OSSAccessKey    string `envconfig:"ALI_OSS_ACCESS_KEY"`
	OSSSecretKey    string `envconfig:"ALI_OSS_SECRET_KEY"`
	OSSBucket       string `envconfig:"ALI_OSS_BUCKET"`
	OSSPublicDomain string `envconfig:"ALI_OSS_PUBLIC_DOMAIN"`

	// Redis
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	RateLimit RateLimitConfig `ignored:"true"`
	Cache     CacheConfig     `ignored:"true"`

	// Messaging
	RabbitMQURL    string `envconfig:"RABBITMQ_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"library.events"`

	// Payments
	MidtransServerKey string `envconfig:"MIDTRANS_SERVER_KEY"`
	MidtransEnv       string `envconfig:"MIDTRANS_ENV" default:"sandbox"`

	// Booking rules
	BookingMaxAdvanceDays int           `envconfig:"BOOKING_MAX_ADVANCE_DAYS" default:"7"`
	BookingMaxHours       int           `envconfig:"BOOKING_MAX_HOURS" default:"12"`
	PaymentPendingTTL     time.Duration `envconfig:"PAYMENT_PENDING_TTL" default:"24h"`

	// Tracing
	ServiceName  string `envconfig:"SERVICE_NAME" default:"library-seat-app"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"60"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`
	AuthCapacity   int           `envconfig:"RATE_LIMIT_AUTH_CAPACITY" default:"5"`
	AuthInterval   time.Duration `envconfig:"RATE_LIMIT_AUTH_INTERVAL" default:"1m"`
}

type CacheConfig struct {
	Enabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	Prefix       string        `envconfig:"CACHE_PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Printf("Warning: .env file not found or error loading: %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := envconfig.Process("", &cfg.RateLimit); err != nil {
		return cfg, err
	}
	if err := envconfig.Process("", &cfg.Cache); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if c.RateLimit.Capacity < 1 {
		c.RateLimit.Capacity = 1
	}
	if c.RateLimit.RefillTokens < 1 {
		c.RateLimit.RefillTokens = 1
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RateLimit.RefillInterval; c.RateLimit.TTL < minTTL {
		c.RateLimit.TTL = minTTL
	}
	if c.BookingMaxAdvanceDays < 0 {
		c.BookingMaxAdvanceDays = 0
	}
	if c.BookingMaxHours <= 0 {
		c.BookingMaxHours = 24
	}
	if os.Getenv("PORT") == "" && c.Port == "" {
		c.Port = "8080"
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
