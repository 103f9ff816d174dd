package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	CDN      CDNConfig
	Offload  OffloadConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled         bool
	RedisURL        string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	StateTTLSeconds int
	IndexTTLSeconds int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Provider and Environment scope the remote key namespace so multiple
	// sites can share a bucket without collisions.
	Provider    string
	Environment string
	KeyPrefix   string
	// BaseURL is the public root objects are served from (CDN domain).
	BaseURL string
}

type CDNConfig struct {
	Enabled           bool
	FlushDelaySeconds int
}

type OffloadConfig struct {
	UploadDir             string
	BatchSize             int
	RemoveLocal           bool
	RetryBaseDelaySeconds int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "offload")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_STATE_TTL_SECONDS", 300)
		viper.SetDefault("CACHE_INDEX_TTL_SECONDS", 900)
		viper.SetDefault("S3_ENDPOINT", "")
		viper.SetDefault("S3_ACCESS_KEY", "")
		viper.SetDefault("S3_SECRET_KEY", "")
		viper.SetDefault("S3_BUCKET", "")
		viper.SetDefault("S3_REGION", "us-east-1")
		viper.SetDefault("S3_USE_SSL", true)
		viper.SetDefault("S3_PROVIDER", "s3")
		viper.SetDefault("S3_ENVIRONMENT", "production")
		viper.SetDefault("S3_KEY_PREFIX", "media")
		viper.SetDefault("S3_BASE_URL", "")
		viper.SetDefault("CDN_ENABLED", false)
		viper.SetDefault("CDN_FLUSH_DELAY_SECONDS", 10)
		viper.SetDefault("OFFLOAD_UPLOAD_DIR", "./data/uploads")
		viper.SetDefault("OFFLOAD_BATCH_SIZE", 25)
		viper.SetDefault("OFFLOAD_REMOVE_LOCAL", false)
		viper.SetDefault("OFFLOAD_RETRY_BASE_DELAY_SECONDS", 2)

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure the upload directory exists
		ensureDir(viper.GetString("OFFLOAD_UPLOAD_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:         viper.GetBool("CACHE_ENABLED"),
				RedisURL:        viper.GetString("REDIS_URL"),
				RedisHost:       viper.GetString("REDIS_HOST"),
				RedisPort:       viper.GetString("REDIS_PORT"),
				RedisPassword:   viper.GetString("REDIS_PASSWORD"),
				RedisDB:         viper.GetInt("REDIS_DB"),
				StateTTLSeconds: viper.GetInt("CACHE_STATE_TTL_SECONDS"),
				IndexTTLSeconds: viper.GetInt("CACHE_INDEX_TTL_SECONDS"),
			},
			Storage: StorageConfig{
				Endpoint:    viper.GetString("S3_ENDPOINT"),
				AccessKey:   viper.GetString("S3_ACCESS_KEY"),
				SecretKey:   viper.GetString("S3_SECRET_KEY"),
				Bucket:      viper.GetString("S3_BUCKET"),
				Region:      viper.GetString("S3_REGION"),
				UseSSL:      viper.GetBool("S3_USE_SSL"),
				Provider:    viper.GetString("S3_PROVIDER"),
				Environment: viper.GetString("S3_ENVIRONMENT"),
				KeyPrefix:   viper.GetString("S3_KEY_PREFIX"),
				BaseURL:     viper.GetString("S3_BASE_URL"),
			},
			CDN: CDNConfig{
				Enabled:           viper.GetBool("CDN_ENABLED"),
				FlushDelaySeconds: viper.GetInt("CDN_FLUSH_DELAY_SECONDS"),
			},
			Offload: OffloadConfig{
				UploadDir:             viper.GetString("OFFLOAD_UPLOAD_DIR"),
				BatchSize:             viper.GetInt("OFFLOAD_BATCH_SIZE"),
				RemoveLocal:           viper.GetBool("OFFLOAD_REMOVE_LOCAL"),
				RetryBaseDelaySeconds: viper.GetInt("OFFLOAD_RETRY_BASE_DELAY_SECONDS"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
