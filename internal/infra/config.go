package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string

	ChatProvider     string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAIImageModel string
	OpenAIImageSize  string
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiModel      string
	GeminiImageModel string
	ImageProvider    string

	LiblibHost          string
	LiblibAccessKey     string
	LiblibSecretKey     string
	LiblibT2ITemplate   string
	LiblibI2ITemplate   string
	ImageJobPoll        time.Duration
	ImageJobTimeout     time.Duration
	ImageRequestTimeout time.Duration
	ImageRetryMax       int
	ImageRetryBaseDelay time.Duration

	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	MinioPublicBaseURL string
	StoragePath        string
	StorageBaseURL     string

	ThemesFile string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		ChatProvider:     strings.ToLower(getEnv("CHAT_PROVIDER", "openai")),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://aihubmix.com/v1"),
		OpenAIChatModel:  getEnv("OPENAI_CHAT_MODEL", "gpt-4o"),
		OpenAIImageModel: getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAIImageSize:  getEnv("OPENAI_IMAGE_SIZE", "768x768"),
		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image-preview"),
		ImageProvider:    strings.ToLower(getEnv("IMAGE_PROVIDER", "openai")),

		LiblibHost:          getEnv("LIBLIB_API_HOST", "https://api.liblbai.cloud"),
		LiblibAccessKey:     strings.TrimSpace(os.Getenv("LIBLIB_ACCESS_KEY")),
		LiblibSecretKey:     strings.TrimSpace(os.Getenv("LIBLIB_SECRET_KEY")),
		LiblibT2ITemplate:   strings.TrimSpace(os.Getenv("LIBLIB_T2I_TEMPLATE_UUID")),
		LiblibI2ITemplate:   strings.TrimSpace(os.Getenv("LIBLIB_I2I_TEMPLATE_UUID")),
		ImageJobPoll:        time.Millisecond * time.Duration(getEnvInt("IMAGE_JOB_POLL_INTERVAL_MS", 2000)),
		ImageJobTimeout:     time.Millisecond * time.Duration(getEnvInt("IMAGE_JOB_TIMEOUT_MS", 60000)),
		ImageRequestTimeout: time.Second * time.Duration(getEnvInt("IMAGE_REQUEST_TIMEOUT_SECONDS", 60)),
		ImageRetryMax:       getEnvInt("IMAGE_RETRY_MAX", 3),
		ImageRetryBaseDelay: time.Millisecond * time.Duration(getEnvInt("IMAGE_RETRY_BASE_DELAY_MS", 1000)),

		MinioEndpoint:      strings.TrimSpace(os.Getenv("MINIO_ENDPOINT")),
		MinioAccessKey:     strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY")),
		MinioSecretKey:     strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY")),
		MinioBucket:        getEnv("MINIO_BUCKET", "boardgen"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", true),
		MinioPublicBaseURL: strings.TrimRight(os.Getenv("MINIO_PUBLIC_BASE_URL"), "/"),
		StoragePath:        strings.TrimSpace(os.Getenv("STORAGE_PATH")),
		StorageBaseURL:     strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),

		ThemesFile: strings.TrimSpace(os.Getenv("THEMES_FILE")),
	}
	return cfg, nil
}

// MinioEnabled reports whether durable object storage is configured.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
