package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ChatConfig configures the benefits chatbot server.
type ChatConfig struct {
	GeminiAPIKey       string
	ChatModel          string
	EmbeddingModel     string
	JWTSecret          string
	TokenTTL           time.Duration
	ServerPort         string
	ServicesDir        string
	SessionBackend     string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	SessionTTL         time.Duration
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
}

// ExtractorConfig configures the form extraction service.
type ExtractorConfig struct {
	GeminiAPIKey       string
	ChatModel          string
	OCRProvider        string
	DocumentAIProject  string
	DocumentAILocation string
	DocumentAIProc     string
	ExtractionTimeout  time.Duration
	ServerPort         string
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
}

const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"

	OCRProviderDocumentAI = "documentai"
	OCRProviderPDFText    = "pdftext"
)

// ErrMissingSetting is wrapped by every fail-fast configuration error.
var ErrMissingSetting = errors.New("required setting is not set")

func newViper() *viper.Viper {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("GEMINI_CHAT_MODEL", "gemini-1.5-flash-latest")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	return v
}

// LoadChat reads the chatbot configuration from the environment (and .env).
func LoadChat() (*ChatConfig, error) {
	v := newViper()
	v.SetDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("HTTP_PORT", "8000")
	v.SetDefault("SERVICES_DIR", "phase2_data")
	v.SetDefault("SESSION_BACKEND", SessionBackendSQLite)
	v.SetDefault("DATABASE_URL", "medchat.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", "24h")
	return chatFromViper(v)
}

func chatFromViper(v *viper.Viper) (*ChatConfig, error) {
	cfg := &ChatConfig{
		GeminiAPIKey:       v.GetString("GEMINI_API_KEY"),
		ChatModel:          v.GetString("GEMINI_CHAT_MODEL"),
		EmbeddingModel:     v.GetString("GEMINI_EMBEDDING_MODEL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		TokenTTL:           v.GetDuration("JWT_TTL"),
		ServerPort:         v.GetString("HTTP_PORT"),
		ServicesDir:        v.GetString("SERVICES_DIR"),
		SessionBackend:     strings.ToLower(v.GetString("SESSION_BACKEND")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		SessionTTL:         v.GetDuration("SESSION_TTL"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY: %w", ErrMissingSetting)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET: %w", ErrMissingSetting)
	}
	switch cfg.SessionBackend {
	case SessionBackendSQLite, SessionBackendRedis:
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
	return cfg, nil
}

// LoadExtractor reads the form extractor configuration.
func LoadExtractor() (*ExtractorConfig, error) {
	v := newViper()
	v.SetDefault("OCR_PROVIDER", OCRProviderDocumentAI)
	v.SetDefault("DOCUMENTAI_LOCATION", "eu")
	v.SetDefault("EXTRACTION_TIMEOUT", "30s")
	v.SetDefault("EXTRACTOR_HTTP_PORT", "8010")
	v.SetDefault("MAX_UPLOAD_MB", 10)
	return extractorFromViper(v)
}

func extractorFromViper(v *viper.Viper) (*ExtractorConfig, error) {
	cfg := &ExtractorConfig{
		GeminiAPIKey:       v.GetString("GEMINI_API_KEY"),
		ChatModel:          v.GetString("GEMINI_CHAT_MODEL"),
		OCRProvider:        strings.ToLower(v.GetString("OCR_PROVIDER")),
		DocumentAIProject:  v.GetString("DOCUMENTAI_PROJECT_ID"),
		DocumentAILocation: v.GetString("DOCUMENTAI_LOCATION"),
		DocumentAIProc:     v.GetString("DOCUMENTAI_PROCESSOR_ID"),
		ExtractionTimeout:  v.GetDuration("EXTRACTION_TIMEOUT"),
		ServerPort:         v.GetString("EXTRACTOR_HTTP_PORT"),
		MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_MB") << 20,
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY: %w", ErrMissingSetting)
	}
	switch cfg.OCRProvider {
	case OCRProviderDocumentAI:
		if cfg.DocumentAIProject == "" {
			return nil, fmt.Errorf("DOCUMENTAI_PROJECT_ID: %w", ErrMissingSetting)
		}
		if cfg.DocumentAIProc == "" {
			return nil, fmt.Errorf("DOCUMENTAI_PROCESSOR_ID: %w", ErrMissingSetting)
		}
	case OCRProviderPDFText:
	default:
		return nil, fmt.Errorf("unknown OCR_PROVIDER %q", cfg.OCRProvider)
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = 30 * time.Second
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
