package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

// Config is read from an optional YAML file named by STOREFRONT_CONFIG; environment
// variables override the file.
type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	CartServiceURL  string        `yaml:"cart_service_url"`
	ProductService  string        `yaml:"product_service_url"`
	DiscountService string        `yaml:"discount_service_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ClientTimeout   time.Duration `yaml:"client_timeout"`

	// Token is used when a request carries no bearer token of its own.
	Token     string `yaml:"token"`
	SessionID string `yaml:"session_id"`
	UserID    string `yaml:"user_id"`

	Store         string `yaml:"store"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDBName   string `yaml:"mongo_db_name"`

	UseCatalog  bool   `yaml:"use_catalog"`
	CatalogPath string `yaml:"catalog_path"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	KafkaGroupID string   `yaml:"kafka_group_id"`

	LogLevel string `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:        "8090",
		CartServiceURL:  "http://localhost:8080",
		ProductService:  "http://localhost:8081",
		DiscountService: "http://localhost:8082",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ClientTimeout:   5 * time.Second,
		Store:           StoreMemory,
		RedisAddr:       "localhost:6379",
		MongoURI:        "mongodb://localhost:27017",
		MongoDBName:     "storefront",
		CatalogPath:     "./catalog.db",
		KafkaTopic:      "checkout-outbox",
		KafkaGroupID:    "storefront-consumer",
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults, the optional file and the environment.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.CartServiceURL = getEnv("CART_SERVICE_URL", c.CartServiceURL)
	c.ProductService = getEnv("PRODUCT_SERVICE_URL", c.ProductService)
	c.DiscountService = getEnv("DISCOUNT_SERVICE_URL", c.DiscountService)
	c.Token = getEnv("STOREFRONT_TOKEN", c.Token)
	c.SessionID = getEnv("SESSION_ID", c.SessionID)
	c.UserID = getEnv("USER_ID", c.UserID)
	c.Store = getEnv("STORE_BACKEND", c.Store)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDBName = getEnv("MONGO_DB_NAME", c.MongoDBName)
	c.CatalogPath = getEnv("CATALOG_PATH", c.CatalogPath)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
	c.KafkaGroupID = getEnv("KAFKA_GROUP_ID", c.KafkaGroupID)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.KafkaBrokers = splitList(brokers)
	}

	var err error
	if c.UseCatalog, err = getBool("USE_CATALOG", c.UseCatalog); err != nil {
		return err
	}
	if c.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	if c.ClientTimeout, err = getDuration("CLIENT_TIMEOUT", c.ClientTimeout); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis, StoreMongo:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}
	if c.RequestTimeout <= 0 || c.ShutdownTimeout <= 0 || c.ClientTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
