package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Printful  PrintfulConfig  `mapstructure:"printful"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sync      SyncConfig      `mapstructure:"sync"`
	SizeGuide SizeGuideConfig `mapstructure:"size_guide"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig. An empty Host disables redis; the sync lock and size-guide
// cache then fall back to in-process implementations.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MinIOConfig. An empty Endpoint disables the image mirror.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PrintfulConfig 供应商API配置
type PrintfulConfig struct {
	APIURL            string        `mapstructure:"api_url"`
	Token             string        `mapstructure:"token"`
	StoreID           string        `mapstructure:"store_id"`
	PageSize          int           `mapstructure:"page_size"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	MaxPages          int           `mapstructure:"max_pages"`
	PageDelay         time.Duration `mapstructure:"page_delay"`
	ProductDelay      time.Duration `mapstructure:"product_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// StorageConfig 本地图片存储
type StorageConfig struct {
	Root            string        `mapstructure:"root"`
	DefaultImage    string        `mapstructure:"default_image"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

type SyncConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	// Timeout bounds one run. Zero means unbounded.
	Timeout time.Duration `mapstructure:"timeout"`
	// 定时同步间隔，0 表示关闭
	CatalogInterval time.Duration `mapstructure:"catalog_interval"`
	StockInterval   time.Duration `mapstructure:"stock_interval"`
}

type SizeGuideConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// NotifyConfig 飞书群机器人通知. An empty WebhookURL disables notifications.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
	// OnlyFailures suppresses cards for clean runs.
	OnlyFailures bool `mapstructure:"only_failures"`
}

func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3500)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 10*time.Minute)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("minio.bucket", "ecommerce-uploads")

	v.SetDefault("jwt.issuer", "ecommerce-api")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("printful.api_url", "https://api.printful.com")
	v.SetDefault("printful.page_size", 20)
	v.SetDefault("printful.max_retries", 3)
	v.SetDefault("printful.retry_backoff", time.Second)
	v.SetDefault("printful.max_pages", 500)
	v.SetDefault("printful.page_delay", 250*time.Millisecond)
	v.SetDefault("printful.product_delay", 300*time.Millisecond)
	v.SetDefault("printful.requests_per_second", 2)
	v.SetDefault("printful.timeout", 30*time.Second)

	v.SetDefault("storage.root", ".")
	v.SetDefault("storage.default_image", "uploads/default.jpg")
	v.SetDefault("storage.download_timeout", 30*time.Second)

	v.SetDefault("sync.lock_ttl", time.Hour)
	v.SetDefault("sync.timeout", 0)
	v.SetDefault("sync.catalog_interval", 0)
	v.SetDefault("sync.stock_interval", 0)

	v.SetDefault("size_guide.cache_ttl", 24*time.Hour)
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// MinIO
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "MINIO_BUCKET")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Printful
	v.BindEnv("printful.api_url", "PRINTFUL_API_URL")
	v.BindEnv("printful.token", "PRINTFUL_API_TOKEN")
	v.BindEnv("printful.store_id", "PRINTFUL_STORE_ID")

	// Storage
	v.BindEnv("storage.root", "UPLOAD_ROOT")

	// Sync
	v.BindEnv("sync.catalog_interval", "SYNC_CATALOG_INTERVAL")
	v.BindEnv("sync.stock_interval", "SYNC_STOCK_INTERVAL")

	// Notify
	v.BindEnv("notify.webhook_url", "NOTIFY_WEBHOOK_URL")
	v.BindEnv("notify.secret", "NOTIFY_SECRET")
}
