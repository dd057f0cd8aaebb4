package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	API      APIConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Reminder ReminderConfig
	Broker   BrokerConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type APIConfig struct {
	Key string
}

type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	BaseURL            string
	Currency           string
	Timeout            time.Duration
	SignatureTolerance time.Duration
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

type EmailConfig struct {
	Provider      string // "smtp", "resend", "log"
	From          string
	BusinessName  string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	ResendAPIKey  string
	ResendBaseURL string
	Timeout       time.Duration
}

type ReminderConfig struct {
	Schedule      string
	Concurrency   int
	LockTTL       time.Duration
	Reminder1Days int
	Reminder2Days int
	CancelDays    int
}

type BrokerConfig struct {
	URL      string
	Exchange string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: loadDatabase(),
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Stripe: StripeConfig{
			SecretKey:          viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:      viper.GetString("STRIPE_WEBHOOK_SECRET"),
			BaseURL:            viper.GetString("STRIPE_BASE_URL"),
			Currency:           viper.GetString("STRIPE_CURRENCY"),
			Timeout:            duration("STRIPE_TIMEOUT", 15*time.Second),
			SignatureTolerance: duration("STRIPE_SIGNATURE_TOLERANCE", 5*time.Minute),
			CheckoutSuccessURL: viper.GetString("STRIPE_CHECKOUT_SUCCESS_URL"),
			CheckoutCancelURL:  viper.GetString("STRIPE_CHECKOUT_CANCEL_URL"),
		},
		Email: EmailConfig{
			Provider:      viper.GetString("EMAIL_PROVIDER"),
			From:          viper.GetString("EMAIL_FROM"),
			BusinessName:  viper.GetString("EMAIL_BUSINESS_NAME"),
			SMTPHost:      viper.GetString("SMTP_HOST"),
			SMTPPort:      viper.GetInt("SMTP_PORT"),
			SMTPUser:      viper.GetString("SMTP_USER"),
			SMTPPass:      viper.GetString("SMTP_PASS"),
			ResendAPIKey:  viper.GetString("RESEND_API_KEY"),
			ResendBaseURL: viper.GetString("RESEND_BASE_URL"),
			Timeout:       duration("EMAIL_TIMEOUT", 10*time.Second),
		},
		Reminder: ReminderConfig{
			Schedule:      viper.GetString("REMINDER_SCHEDULE"),
			Concurrency:   viper.GetInt("REMINDER_CONCURRENCY"),
			LockTTL:       duration("REMINDER_LOCK_TTL", 30*time.Minute),
			Reminder1Days: viper.GetInt("REMINDER_1_DAYS"),
			Reminder2Days: viper.GetInt("REMINDER_2_DAYS"),
			CancelDays:    viper.GetInt("REMINDER_CANCEL_DAYS"),
		},
		Broker: BrokerConfig{
			URL:      viper.GetString("AMQP_URL"),
			Exchange: viper.GetString("AMQP_EXCHANGE"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Stripe.SecretKey == "" {
		log.Println("WARNING: STRIPE_SECRET_KEY is not set")
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database settings, for schema bootstrap.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()
	setDefaults()
	db := loadDatabase()
	return &db, nil
}

func setDefaults() {
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("STRIPE_CURRENCY", "eur")
	viper.SetDefault("STRIPE_CHECKOUT_SUCCESS_URL", "https://example.com/booking/success?session_id={CHECKOUT_SESSION_ID}")
	viper.SetDefault("STRIPE_CHECKOUT_CANCEL_URL", "https://example.com/booking/canceled")
	viper.SetDefault("EMAIL_PROVIDER", "log")
	viper.SetDefault("EMAIL_FROM", "bookings@example.com")
	viper.SetDefault("EMAIL_BUSINESS_NAME", "Studio")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	viper.SetDefault("REMINDER_SCHEDULE", "0 0 9 * * *")
	viper.SetDefault("REMINDER_CONCURRENCY", 4)
	viper.SetDefault("REMINDER_1_DAYS", 2)
	viper.SetDefault("REMINDER_2_DAYS", 4)
	viper.SetDefault("REMINDER_CANCEL_DAYS", 6)
	viper.SetDefault("AMQP_EXCHANGE", "payments")
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:    viper.GetString("DB_HOST"),
		Port:    viper.GetString("DB_PORT"),
		Name:    viper.GetString("DB_NAME"),
		User:    viper.GetString("DB_USER"),
		Pass:    viper.GetString("DB_PASS"),
		Charset: viper.GetString("DB_CHARSET"),
	}
}

func duration(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=UTC"
}
