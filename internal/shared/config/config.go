package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBatchMaxWorkers = 50
	defaultBatchRetention  = 24 * time.Hour
	defaultSessionTTL      = 6 * time.Hour
)

// Config holds application configuration.
type Config struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	CORSAllowOrigin []string      `yaml:"corsAllowOrigins"`
	DatabaseURL     string        `yaml:"databaseUrl"`
	ObjectStoreType string        `yaml:"objectStore"`
	LocalStoreDir   string        `yaml:"localStoreDir"`
	AWSRegion       string        `yaml:"awsRegion"`
	S3Bucket        string        `yaml:"s3Bucket"`
	S3Prefix        string        `yaml:"s3Prefix"`
	LLMProvider     string        `yaml:"llmProvider"`
	LLMModel        string        `yaml:"llmModel"`
	OpenAIAPIKey    string        `yaml:"-"`
	OpenAIBaseURL   string        `yaml:"openaiBaseUrl"`
	BatchMaxWorkers int           `yaml:"batchMaxWorkers"`
	BatchRetention  time.Duration `yaml:"batchRetention"`
	SessionStore    string        `yaml:"sessionStore"`
	RedisURL        string        `yaml:"redisUrl"`
	SessionTTL      time.Duration `yaml:"sessionTtl"`
}

// Load reads configuration from .env files, an optional YAML file and
// environment variables, in increasing order of precedence.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("JB_CONFIG")); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = merge(cfg, fileCfg)
		}
	}
	cfg.applyEnv()

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	return cfg
}

func defaults() Config {
	return Config{
		Port:            "8080",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		ObjectStoreType: "local",
		LocalStoreDir:   "./data",
		LLMProvider:     "openai",
		LLMModel:        "gpt-4o-mini",
		OpenAIBaseURL:   "https://api.openai.com/v1",
		BatchMaxWorkers: defaultBatchMaxWorkers,
		BatchRetention:  defaultBatchRetention,
		SessionStore:    "memory",
		SessionTTL:      defaultSessionTTL,
	}
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = normalizeEnv(getEnv("ENV", c.Env))
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.CORSAllowOrigin = splitAndTrim(v)
	}
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.ObjectStoreType = normalizeStoreType(getEnv("OBJECT_STORE", c.ObjectStoreType))
	c.LocalStoreDir = getEnv("LOCAL_STORE_DIR", c.LocalStoreDir)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.S3Bucket = getEnv("S3_BUCKET", c.S3Bucket)
	c.S3Prefix = getEnv("S3_PREFIX", c.S3Prefix)
	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.BatchMaxWorkers = getEnvInt("BATCH_MAX_WORKERS", c.BatchMaxWorkers)
	c.BatchRetention = getEnvDuration("BATCH_RETENTION", c.BatchRetention)
	c.SessionStore = normalizeSessionStore(getEnv("SESSION_STORE", c.SessionStore))
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)

	if c.BatchMaxWorkers <= 0 {
		c.BatchMaxWorkers = defaultBatchMaxWorkers
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int %q", key, raw)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: %s invalid duration %q", key, raw)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeSessionStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	default:
		return "memory"
	}
}
