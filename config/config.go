package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go-gin-reservation-ledger/internal/model"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"

	QueueDriverRedis  = "redis"
	QueueDriverMemory = "memory"

	AdminSourceConfig   = "config"
	AdminSourcePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Store    StoreConfig
	Queue    QueueConfig
	Ledger   LedgerConfig
	Auth     AuthConfig
	AMQP     AMQPConfig
	Event    model.EventCatalog
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StoreConfig 選擇預約資料的儲存實作
type StoreConfig struct {
	Driver string
}

// QueueConfig 變更事件佇列設定
type QueueConfig struct {
	Driver           string
	ConsumerID       string
	BufferSize       int
	ClaimMinIdleTime time.Duration
	MaxRetryCount    int
	ReadBlockTime    time.Duration
}

// LedgerConfig 樂觀鎖重試設定
type LedgerConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	AdminSource     string
	AdminIdentities []string
}

// AMQPConfig URL 為空時不送出付款結果事件
type AMQPConfig struct {
	URL   string
	Queue string
}

var AppConfig *Config

// LoadConfig 先讀取 .env (若存在)，再從環境變數組出設定
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	event, err := GetEventCatalog(getEnv("EVENT_CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}
	redisConfig, err := GetRedisConfig()
	if err != nil {
		return nil, err
	}
	queueConfig, err := GetQueueConfig()
	if err != nil {
		return nil, err
	}
	ledgerConfig, err := GetLedgerConfig()
	if err != nil {
		return nil, err
	}

	AppConfig = &Config{
		Server:   GetServerConfig(),
		Database: GetDatabaseConfig(),
		Redis:    redisConfig,
		Store:    StoreConfig{Driver: getEnv("STORE_DRIVER", StoreDriverPostgres)},
		Queue:    queueConfig,
		Ledger:   ledgerConfig,
		Auth:     GetAuthConfig(),
		AMQP: AMQPConfig{
			URL:   getEnv("RABBITMQ_URL", ""),
			Queue: getEnv("RABBITMQ_DECISION_QUEUE", "reservation.decisions"),
		},
		Event: event,
	}

	if err := AppConfig.Validate(); err != nil {
		return nil, err
	}

	return AppConfig, nil
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // 測試 DB 用 5433 port
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // 測試 Redis 用 6380 port
		Password: "",
		DB:       1,
	}

	return &Config{
		Server:   ServerConfig{Port: "8080", GinMode: "test"},
		Database: *testConfig,
		Redis:    testRedisConfig,
		Store:    StoreConfig{Driver: StoreDriverMemory},
		Queue: QueueConfig{
			Driver:           QueueDriverMemory,
			BufferSize:       100,
			ClaimMinIdleTime: time.Second,
			MaxRetryCount:    3,
			ReadBlockTime:    100 * time.Millisecond,
		},
		Ledger: LedgerConfig{MaxAttempts: 5, RetryBackoff: time.Millisecond},
		Auth: AuthConfig{
			JWTSecret:       "test-secret",
			AdminSource:     AdminSourceConfig,
			AdminIdentities: []string{"admin@test.com"},
		},
		Event: model.DefaultEventCatalog(),
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Queue.Driver {
	case QueueDriverRedis, QueueDriverMemory:
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}
	switch c.Auth.AdminSource {
	case AdminSourceConfig, AdminSourcePostgres:
	default:
		return fmt.Errorf("unknown ADMIN_SOURCE %q", c.Auth.AdminSource)
	}
	if c.Auth.AdminSource == AdminSourcePostgres && c.Store.Driver != StoreDriverPostgres {
		return fmt.Errorf("ADMIN_SOURCE=postgres requires STORE_DRIVER=postgres")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	return c.Event.Validate()
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnv("APP_PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() (RedisConfig, error) {
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}, nil
}

func GetQueueConfig() (QueueConfig, error) {
	bufferSize, err := getEnvInt("QUEUE_BUFFER_SIZE", 1024)
	if err != nil {
		return QueueConfig{}, err
	}
	maxRetry, err := getEnvInt("QUEUE_MAX_RETRY", 5)
	if err != nil {
		return QueueConfig{}, err
	}
	claimIdle, err := getEnvDuration("QUEUE_CLAIM_MIN_IDLE", 5*time.Second)
	if err != nil {
		return QueueConfig{}, err
	}
	block, err := getEnvDuration("QUEUE_READ_BLOCK", 2*time.Second)
	if err != nil {
		return QueueConfig{}, err
	}
	return QueueConfig{
		Driver:           getEnv("QUEUE_DRIVER", QueueDriverRedis),
		ConsumerID:       getEnv("QUEUE_CONSUMER_ID", ""),
		BufferSize:       bufferSize,
		ClaimMinIdleTime: claimIdle,
		MaxRetryCount:    maxRetry,
		ReadBlockTime:    block,
	}, nil
}

func GetLedgerConfig() (LedgerConfig, error) {
	attempts, err := getEnvInt("LEDGER_MAX_ATTEMPTS", 5)
	if err != nil {
		return LedgerConfig{}, err
	}
	backoff, err := getEnvDuration("LEDGER_RETRY_BACKOFF", 5*time.Millisecond)
	if err != nil {
		return LedgerConfig{}, err
	}
	return LedgerConfig{MaxAttempts: attempts, RetryBackoff: backoff}, nil
}

func GetAuthConfig() AuthConfig {
	var admins []string
	for _, identity := range strings.Split(getEnv("ADMIN_IDENTITIES", ""), ",") {
		if identity = strings.TrimSpace(identity); identity != "" {
			admins = append(admins, strings.ToLower(identity))
		}
	}
	return AuthConfig{
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AdminSource:     getEnv("ADMIN_SOURCE", AdminSourceConfig),
		AdminIdentities: admins,
	}
}

// eventFile 活動設定檔格式
type eventFile struct {
	Title     string `yaml:"title"`
	Subtitle  string `yaml:"subtitle"`
	Venue     string `yaml:"venue"`
	Address   string `yaml:"address"`
	StartsAt  string `yaml:"starts_at"`
	UnitPrice string `yaml:"unit_price"`
	Classes   []struct {
		Name     string `yaml:"name"`
		MinUnits int    `yaml:"min_units"`
		MaxUnits int    `yaml:"max_units"`
	} `yaml:"classes"`
}

// GetEventCatalog path 為空時使用預設活動；檔案中未填的欄位沿用預設值
func GetEventCatalog(path string) (model.EventCatalog, error) {
	catalog := model.DefaultEventCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.EventCatalog{}, fmt.Errorf("read event config: %w", err)
	}
	return parseEventCatalog(data, catalog)
}

func parseEventCatalog(data []byte, catalog model.EventCatalog) (model.EventCatalog, error) {
	var file eventFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return model.EventCatalog{}, fmt.Errorf("parse event config: %w", err)
	}

	if file.Title != "" {
		catalog.Title = file.Title
	}
	if file.Subtitle != "" {
		catalog.Subtitle = file.Subtitle
	}
	if file.Venue != "" {
		catalog.Venue = file.Venue
	}
	if file.Address != "" {
		catalog.Address = file.Address
	}
	if file.StartsAt != "" {
		catalog.StartsAt = file.StartsAt
	}
	if file.UnitPrice != "" {
		price, err := decimal.NewFromString(file.UnitPrice)
		if err != nil {
			return model.EventCatalog{}, fmt.Errorf("invalid unit_price %q: %w", file.UnitPrice, err)
		}
		catalog.UnitPrice = price
	}
	if len(file.Classes) > 0 {
		catalog.Classes = make([]model.ReservationClass, 0, len(file.Classes))
		for _, class := range file.Classes {
			maxUnits := class.MaxUnits
			if maxUnits == 0 {
				maxUnits = model.DefaultMaxUnits
			}
			catalog.Classes = append(catalog.Classes, model.ReservationClass{
				Name:     class.Name,
				MinUnits: class.MinUnits,
				MaxUnits: maxUnits,
			})
		}
	}

	return catalog, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, value)
	}
	return d, nil
}
