package config

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/validate"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
	Version     string   `mapstructure:"version"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type RemoteConfig struct {
	BaseURL string        `mapstructure:"baseURL"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	PrivateKeyPath string        `mapstructure:"privateKeyPath"`
	PublicKeyPath  string        `mapstructure:"publicKeyPath"`
	TTL            time.Duration `mapstructure:"ttl"`
}

type RatesConfig struct {
	Car        float64 `mapstructure:"car"`
	Motorcycle float64 `mapstructure:"motorcycle"`
}

type ParkingConfig struct {
	Timezone string      `mapstructure:"timezone"`
	Rates    RatesConfig `mapstructure:"rates"`
}

type ValidationConfig struct {
	PlateMinLength   int     `mapstructure:"plateMinLength"`
	PlateMaxLength   int     `mapstructure:"plateMaxLength"`
	AmountCeiling    float64 `mapstructure:"amountCeiling"`
	InvoiceMinLength int     `mapstructure:"invoiceMinLength"`
	RequireTime      bool    `mapstructure:"requireTime"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Parking    ParkingConfig    `mapstructure:"parking"`
	Validation ValidationConfig `mapstructure:"validation"`
	Admin      AdminConfig      `mapstructure:"admin"`

	JWTPrivateKey *rsa.PrivateKey `mapstructure:"-"`
	JWTPublicKey  *rsa.PublicKey  `mapstructure:"-"`
	Location      *time.Location  `mapstructure:"-"`
}

var envBindings = map[string]string{
	"server.port":                 "PORT",
	"server.corsOrigins":          "CORS_ALLOWED_ORIGINS",
	"server.version":              "APP_VERSION",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"store.backend":               "STORE_BACKEND",
	"database.url":                "DB_CONNECTION_STRING",
	"redis.address":               "REDIS_ADDRESS",
	"redis.password":              "REDIS_PASSWORD",
	"rabbitmq.url":                "RABBITMQ_URL",
	"rabbitmq.queue":              "SESSION_QUEUE_NAME",
	"remote.baseURL":              "VEHICLE_SERVICE_URL",
	"remote.token":                "VEHICLE_SERVICE_TOKEN",
	"remote.timeout":              "VEHICLE_SERVICE_TIMEOUT",
	"jwt.privateKeyPath":          "PRIVATE_KEY_PATH",
	"jwt.publicKeyPath":           "PUBLIC_KEY_PATH",
	"jwt.ttl":                     "JWT_TTL",
	"parking.timezone":            "PARKING_TIMEZONE",
	"parking.rates.car":           "RATE_CAR",
	"parking.rates.motorcycle":    "RATE_MOTORCYCLE",
	"validation.plateMinLength":   "PLATE_MIN_LENGTH",
	"validation.plateMaxLength":   "PLATE_MAX_LENGTH",
	"validation.amountCeiling":    "AMOUNT_CEILING",
	"validation.invoiceMinLength": "INVOICE_MIN_LENGTH",
	"validation.requireTime":      "REQUIRE_ENTRY_TIME",
	"admin.username":              "ADMIN_USERNAME",
	"admin.email":                 "ADMIN_EMAIL",
	"admin.password":              "ADMIN_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	rules := validate.DefaultRules()
	rates := domain.DefaultRates()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.corsOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.version", "unknown")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("rabbitmq.queue", "parking.sessions")
	v.SetDefault("remote.timeout", "10s")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("parking.timezone", "America/Bogota")
	v.SetDefault("parking.rates.car", rates.Rate(domain.VehicleCar))
	v.SetDefault("parking.rates.motorcycle", rates.Rate(domain.VehicleMotorcycle))
	v.SetDefault("validation.plateMinLength", rules.PlateMinLength)
	v.SetDefault("validation.plateMaxLength", rules.PlateMaxLength)
	v.SetDefault("validation.amountCeiling", rules.AmountCeiling)
	v.SetDefault("validation.invoiceMinLength", rules.InvoiceMinLength)
	v.SetDefault("validation.requireTime", rules.RequireTime)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.email", "admin@parksys.local")
}

// Load reads ./config.yaml or ./config/config.yaml when present, a .env
// file when present, then environment variables, in increasing priority.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return load(v)
}

// LoadFile reads configuration from an explicit YAML file plus environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url (DB_CONNECTION_STRING) is required for the postgres backend")
		}
	case BackendRemote:
		if c.Remote.BaseURL == "" {
			return errors.New("remote.baseURL (VEHICLE_SERVICE_URL) is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	loc, err := time.LoadLocation(c.Parking.Timezone)
	if err != nil {
		return fmt.Errorf("parking.timezone: %w", err)
	}
	c.Location = loc

	return c.loadKeys()
}

func (c *Config) loadKeys() error {
	if c.JWT.PrivateKeyPath == "" {
		// No key material configured: sign with a per-process key.
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
		c.JWTPrivateKey = key
		c.JWTPublicKey = &key.PublicKey
		return nil
	}

	privateKey, err := loadPrivateKey(c.JWT.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("load private key: %w", err)
	}
	c.JWTPrivateKey = privateKey
	c.JWTPublicKey = &privateKey.PublicKey

	if c.JWT.PublicKeyPath != "" {
		publicKey, err := loadPublicKey(c.JWT.PublicKeyPath)
		if err != nil {
			return fmt.Errorf("load public key: %w", err)
		}
		c.JWTPublicKey = publicKey
	}
	return nil
}

func (c *Config) Rates() domain.RateTable {
	return domain.RateTable{
		domain.VehicleCar:        c.Parking.Rates.Car,
		domain.VehicleMotorcycle: c.Parking.Rates.Motorcycle,
	}
}

func (c *Config) Rules() validate.Rules {
	return validate.Rules{
		PlateMinLength:   c.Validation.PlateMinLength,
		PlateMaxLength:   c.Validation.PlateMaxLength,
		AmountCeiling:    c.Validation.AmountCeiling,
		InvoiceMinLength: c.Validation.InvoiceMinLength,
		RequireTime:      c.Validation.RequireTime,
	}
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(keyData)
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(keyData)
}
