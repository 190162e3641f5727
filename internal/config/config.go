// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
)

// Extraction providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Telemetry exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlphttp"
	ExporterOTLPGRPC = "otlpgrpc"
)

// Exchange rate defaults. EXCHANGE_API_URL=none disables conversion.
const (
	DefaultExchangeAPIURL  = "https://api.frankfurter.app"
	DefaultExchangeRateTTL = 12 * time.Hour
	ExchangeDisabled       = "none"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL           string
	JWTSecret             string
	HTTPAddr              string
	LogLevel              string
	LogFormat             string
	ExtractionProvider    string
	GeminiAPIKey          string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	TranscriptionLanguage string
	KafkaBrokers          []string
	KafkaTopic            string
	OTelExporter          string
	OTelEndpoint          string
	RolesFile             string
	ExchangeAPIURL        string
	ExchangeRateTTL       time.Duration

	PolicyVersion       string
	DateFallback        string
	KeywordMatch        string
	ExtractionRetries   int
	DefaultCurrency     string
	RequireCounterparty bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		HTTPAddr:              envOr("HTTP_ADDR", ":8080"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		LogFormat:             envOr("LOG_FORMAT", "console"),
		ExtractionProvider:    strings.ToLower(envOr("EXTRACTION_PROVIDER", ProviderGemini)),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:           os.Getenv("OPENAI_MODEL"),
		TranscriptionLanguage: envOr("TRANSCRIPTION_LANGUAGE", "it"),
		KafkaTopic:            envOr("KAFKA_TOPIC", "ledger.records"),
		OTelExporter:          strings.ToLower(envOr("OTEL_EXPORTER", ExporterNone)),
		OTelEndpoint:          os.Getenv("OTEL_ENDPOINT"),
		RolesFile:             os.Getenv("ROLES_FILE"),
		ExchangeAPIURL:        envOr("EXCHANGE_API_URL", DefaultExchangeAPIURL),
		ExchangeRateTTL:       DefaultExchangeRateTTL,

		PolicyVersion:       envOr("POLICY_VERSION", normalize.DefaultPolicyVersion),
		DateFallback:        strings.ToLower(envOr("DATE_FALLBACK", string(normalize.DateFallbackLenient))),
		KeywordMatch:        strings.ToLower(envOr("KEYWORD_MATCH", string(normalize.KeywordMatchWord))),
		ExtractionRetries:   normalize.DefaultExtractionRetries,
		DefaultCurrency:     strings.ToUpper(envOr("DEFAULT_CURRENCY", "EUR")),
		RequireCounterparty: os.Getenv("REQUIRE_COUNTERPARTY") == "true",
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for broker := range strings.SplitSeq(brokers, ",") {
			broker = strings.TrimSpace(broker)
			if broker == "" {
				continue
			}
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
		}
	}

	var errs []string
	if retries := os.Getenv("EXTRACTION_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil || n < 0 {
			errs = append(errs, "EXTRACTION_RETRIES must be a non-negative integer")
		} else {
			cfg.ExtractionRetries = n
		}
	}

	if ttl := os.Getenv("EXCHANGE_RATE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			errs = append(errs, "EXCHANGE_RATE_TTL must be a positive duration such as 12h")
		} else {
			cfg.ExchangeRateTTL = d
		}
	}

	// Validate required configuration.
	if err := cfg.validate(errs); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// validate checks that all required configuration is present.
func (c *Config) validate(errs []string) error {
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	switch c.ExtractionProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, "GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, "OPENAI_API_KEY is required for the openai provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("EXTRACTION_PROVIDER must be %q or %q", ProviderGemini, ProviderOpenAI))
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, "LOG_FORMAT must be console or json")
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLPHTTP, ExporterOTLPGRPC:
		if c.OTelEndpoint == "" {
			errs = append(errs, "OTEL_ENDPOINT is required for OTLP exporters")
		}
	default:
		errs = append(errs, "OTEL_EXPORTER must be one of none, stdout, otlphttp, otlpgrpc")
	}

	switch normalize.DateFallback(c.DateFallback) {
	case normalize.DateFallbackLenient, normalize.DateFallbackStrict:
	default:
		errs = append(errs, "DATE_FALLBACK must be lenient or strict")
	}

	switch normalize.KeywordMatch(c.KeywordMatch) {
	case normalize.KeywordMatchWord, normalize.KeywordMatchSubstring:
	default:
		errs = append(errs, "KEYWORD_MATCH must be word or substring")
	}

	if len(c.DefaultCurrency) != 3 {
		errs = append(errs, "DEFAULT_CURRENCY must be a three-letter ISO code")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Policy returns the versioned engine policy described by the configuration.
func (c *Config) Policy() normalize.Policy {
	return normalize.Policy{
		Version:             c.PolicyVersion,
		DateFallback:        normalize.DateFallback(c.DateFallback),
		KeywordMatch:        normalize.KeywordMatch(c.KeywordMatch),
		ExtractionRetries:   c.ExtractionRetries,
		DefaultCurrency:     c.DefaultCurrency,
		RequireCounterparty: c.RequireCounterparty,
	}.WithDefaults()
}

// KafkaEnabled reports whether record events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ExchangeEnabled reports whether stats fold foreign currencies using live rates.
func (c *Config) ExchangeEnabled() bool {
	return c.ExchangeAPIURL != "" && !strings.EqualFold(c.ExchangeAPIURL, ExchangeDisabled)
}
