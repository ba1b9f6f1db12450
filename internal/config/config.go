package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "TARIFFMANAGER_"

type Config struct {
	LogLevel  string
	LogFormat string
	HTTPAddr  string

	DBDriver    string
	DBDSN       string
	AutoMigrate bool
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3Prefix    string

	LLMProvider      string
	GeminiAPIKey     string
	GeminiModel      string
	OpenAIAPIKey     string
	OpenAIModel      string
	LLMMaxRetries    int
	LLMInitialDelay  time.Duration
	LLMCallsPerMin   int
	Grounded         bool
	TopNCountries    int
	IndustriesFile   string
	IndustriesJSON   string
	SourcesDir       string
	RevalidateURL    string
	RevalidateSecret string

	CronSchedule     string
	AlertWebhookURL  string
	AlertWebhookType string
	SendGridAPIKey   string
	NotifyFrom       string
	NotifyTo         []string
}

// Load reads a .env file when one exists and then builds the Config from the
// environment. A missing .env file is not an error.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	return Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),

		DBDriver:    getEnv("DB_DRIVER", "memory"),
		DBDSN:       getEnv("DB_DSN", ""),
		AutoMigrate: getBool("AUTO_MIGRATE", false),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Prefix:    getEnv("S3_PREFIX", "tariff-reports"),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMMaxRetries:    getInt("LLM_MAX_RETRIES", 3),
		LLMInitialDelay:  time.Duration(getInt("LLM_INITIAL_DELAY_MS", 1000)) * time.Millisecond,
		LLMCallsPerMin:   getInt("LLM_CALLS_PER_MINUTE", 0),
		Grounded:         getBool("GROUNDED", true),
		TopNCountries:    getInt("TOP_N_COUNTRIES", 10),
		IndustriesFile:   getEnv("INDUSTRIES_FILE", ""),
		IndustriesJSON:   getEnv("INDUSTRIES_JSON", ""),
		SourcesDir:       getEnv("SOURCES_DIR", ""),
		RevalidateURL:    getEnv("REVALIDATE_URL", ""),
		RevalidateSecret: getEnv("REVALIDATE_SECRET", ""),

		CronSchedule:     getEnv("CRON_SCHEDULE", "@every 24h"),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
		AlertWebhookType: getEnv("ALERT_WEBHOOK_TYPE", ""),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		NotifyFrom:       getEnv("NOTIFY_FROM", ""),
		NotifyTo:         splitList(getEnv("NOTIFY_TO", "")),
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
