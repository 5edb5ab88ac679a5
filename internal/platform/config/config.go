package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"

	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"

	ExecutionServiceDocker = "docker"
	ExecutionServiceLocal  = "local"
)

type Config struct {
	APIPort     string
	MetricsPort string
	JWTKey      []byte
	JWTExp      time.Duration

	StorageBackend string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSslMode      string
	DBConnStr      string

	QueueBackend          string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	GradingQueueName      string
	GradingLockPrefix     string
	GradingLockTTLSeconds int

	ExecutionServiceType string
	DockerBinary         string
	DockerImageName      string
	DockerMemoryLimit    string
	DockerCPUs           float64
	DockerStartupGraceMs int

	JudgeMaxExecutionTimeMs    int
	JudgeWorkers               int
	JudgeQueueSize             int
	JudgeEnqueueTimeoutMs      int
	JudgeDefaultLanguage       string
	JudgeRejectUnknownLanguage bool

	LogLevel  string
	LogFormat string

	SeedDemoData bool
}

var AppConfig *Config

// Load reads the environment (and an optional .env file) into AppConfig.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:     getEnv("API_PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		JWTKey:      []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:      time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendPostgres)),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "user"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "contest_judge"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),

		QueueBackend:          strings.ToLower(getEnv("QUEUE_BACKEND", QueueBackendMemory)),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		GradingQueueName:      getEnv("GRADING_QUEUE_NAME", "grading_queue"),
		GradingLockPrefix:     getEnv("GRADING_LOCK_PREFIX", "grading_lock:"),
		GradingLockTTLSeconds: getEnvAsInt("GRADING_LOCK_TTL_SECONDS", 300),

		ExecutionServiceType: strings.ToLower(getEnv("EXECUTION_SERVICE_TYPE", ExecutionServiceDocker)),
		DockerBinary:         getEnv("DOCKER_BINARY", "docker"),
		DockerImageName:      getEnv("DOCKER_IMAGE_NAME", "shodh/code-executor"),
		DockerMemoryLimit:    getEnv("DOCKER_MEMORY_LIMIT", "256m"),
		DockerCPUs:           getEnvAsFloat("DOCKER_CPUS", 0.5),
		DockerStartupGraceMs: getEnvAsInt("DOCKER_STARTUP_GRACE_MS", 2000),

		JudgeMaxExecutionTimeMs:    getEnvAsInt("JUDGE_MAX_EXECUTION_TIME_MS", 5000),
		JudgeWorkers:               getEnvAsInt("JUDGE_WORKERS", 4),
		JudgeQueueSize:             getEnvAsInt("JUDGE_QUEUE_SIZE", 64),
		JudgeEnqueueTimeoutMs:      getEnvAsInt("JUDGE_ENQUEUE_TIMEOUT_MS", 2000),
		JudgeDefaultLanguage:       strings.ToLower(getEnv("JUDGE_DEFAULT_LANGUAGE", "java")),
		JudgeRejectUnknownLanguage: getEnvAsBool("JUDGE_REJECT_UNKNOWN_LANGUAGE", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SeedDemoData: getEnvAsBool("SEED_DEMO_DATA", false),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	AppConfig = cfg
	return cfg
}

// Validate checks enum values and numeric bounds.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageBackendPostgres, StorageBackendMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return fmt.Errorf("unsupported QUEUE_BACKEND %q", c.QueueBackend)
	}
	switch c.ExecutionServiceType {
	case ExecutionServiceDocker, ExecutionServiceLocal:
	default:
		return fmt.Errorf("unsupported EXECUTION_SERVICE_TYPE %q", c.ExecutionServiceType)
	}
	if c.JudgeWorkers <= 0 {
		return fmt.Errorf("JUDGE_WORKERS must be positive, got %d", c.JudgeWorkers)
	}
	if c.JudgeQueueSize < 0 {
		return fmt.Errorf("JUDGE_QUEUE_SIZE must not be negative, got %d", c.JudgeQueueSize)
	}
	if c.JudgeMaxExecutionTimeMs <= 0 {
		return fmt.Errorf("JUDGE_MAX_EXECUTION_TIME_MS must be positive, got %d", c.JudgeMaxExecutionTimeMs)
	}
	if c.DockerCPUs <= 0 {
		return fmt.Errorf("DOCKER_CPUS must be positive, got %v", c.DockerCPUs)
	}
	if c.GradingLockTTLSeconds <= 0 {
		return fmt.Errorf("GRADING_LOCK_TTL_SECONDS must be positive, got %d", c.GradingLockTTLSeconds)
	}
	return nil
}

func (c *Config) MaxExecutionTime() time.Duration {
	return time.Duration(c.JudgeMaxExecutionTimeMs) * time.Millisecond
}

func (c *Config) EnqueueTimeout() time.Duration {
	return time.Duration(c.JudgeEnqueueTimeoutMs) * time.Millisecond
}

func (c *Config) DockerStartupGrace() time.Duration {
	return time.Duration(c.DockerStartupGraceMs) * time.Millisecond
}

func (c *Config) GradingLockTTL() time.Duration {
	return time.Duration(c.GradingLockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
