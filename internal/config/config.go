package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"parking-ticket-backend/internal/expiry"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Mail     MailConfig     `yaml:"mail"`
	APNs     APNsConfig     `yaml:"apns"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AWSConfig holds S3 configuration for ticket images
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// MailConfig holds SMTP configuration.
// An empty DefaultSender is reported per send, not at startup.
type MailConfig struct {
	Server        string `yaml:"server"`
	Port          int    `yaml:"port"`
	UseTLS        bool   `yaml:"use_tls"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	DefaultSender string `yaml:"default_sender"`
}

// APNsConfig holds push gateway credentials. Push is disabled when no key is set.
type APNsConfig struct {
	KeyPath         string `yaml:"key_path"`
	KeyID           string `yaml:"key_id"`
	TeamID          string `yaml:"team_id"`
	CertificatePath string `yaml:"certificate_path"`
	CertificatePass string `yaml:"certificate_password"`
	Topic           string `yaml:"topic"`
	Production      bool   `yaml:"production"`
}

// SweepConfig holds expiry sweep scheduling
type SweepConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	MisfireGrace   time.Duration `yaml:"misfire_grace"`
	ChannelTimeout time.Duration `yaml:"channel_timeout"`
	DisplayZone    string        `yaml:"display_zone"`
	RunOnStartup   bool          `yaml:"run_on_startup"`
}

// RedisConfig enables the cross-replica sweep lock when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockKey  string        `yaml:"lock_key"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// RabbitMQConfig enables ticket event publishing when URL is set
type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// Default returns the configuration used when a field is left unset
func Default() Config {
	return Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 5000},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "user", Password: "password", DBName: "parkingdb", SSLMode: "disable"},
		JWT:      JWTConfig{Secret: "secret-key", TTL: 24 * time.Hour},
		Log:      LogConfig{Level: "info"},
		Mail:     MailConfig{Server: "smtp.poczta.onet.pl", Port: 587, UseTLS: true},
		Sweep: SweepConfig{
			Enabled:        true,
			Interval:       3 * time.Minute,
			MisfireGrace:   30 * time.Second,
			ChannelTimeout: 30 * time.Second,
			DisplayZone:    "Europe/Warsaw",
			RunOnStartup:   true,
		},
		Redis:    RedisConfig{LockKey: "parking:sweep:lock", LockTTL: 5 * time.Minute},
		RabbitMQ: RabbitMQConfig{Queue: "ticket.expired"},
	}
}

// Load reads configuration from a YAML file on top of the defaults,
// then applies environment overrides (including a .env file if present).
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.JWT.Secret, "JWT_SECRET_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")

	setString(&c.Mail.Server, "MAIL_SERVER")
	setInt(&c.Mail.Port, "MAIL_PORT")
	setBool(&c.Mail.UseTLS, "MAIL_USE_TLS")
	setString(&c.Mail.Username, "MAIL_USERNAME")
	setString(&c.Mail.Password, "MAIL_PASSWORD")
	setString(&c.Mail.DefaultSender, "MAIL_DEFAULT_SENDER")

	setString(&c.APNs.KeyPath, "APNS_KEY_PATH")
	setString(&c.APNs.KeyID, "APNS_KEY_ID")
	setString(&c.APNs.TeamID, "APNS_TEAM_ID")
	setString(&c.APNs.Topic, "APNS_TOPIC")

	setString(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.AWS.S3Bucket, "S3_BUCKET")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.RabbitMQ.URL, "RABBITMQ_URL")
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive, got %s", c.Sweep.Interval)
	}
	if c.Sweep.MisfireGrace < 0 {
		return fmt.Errorf("sweep.misfire_grace must not be negative, got %s", c.Sweep.MisfireGrace)
	}
	if c.Sweep.ChannelTimeout <= 0 {
		return fmt.Errorf("sweep.channel_timeout must be positive, got %s", c.Sweep.ChannelTimeout)
	}
	if _, err := expiry.LoadZone(c.Sweep.DisplayZone); err != nil {
		return fmt.Errorf("sweep.display_zone: %w", err)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}
