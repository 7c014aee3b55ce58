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
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	TokenModeMock = "mock"
	TokenModeJWT  = "jwt"

	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"
)

type Config struct {
	AppPort     string
	AppMode     string
	LogMode     string
	CORSOrigins []string

	OTPStore    string
	OTPTTL      time.Duration
	OTPHashCost int

	UserStore  string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	TokenMode    string
	JWTSecret    string
	JWTExpiryMin int

	LLMProvider    string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMTimeout     time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		AppMode:     getEnv("APP_MODE", "debug"),
		LogMode:     getEnv("LOG_MODE", "development"),
		CORSOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		OTPStore:    getEnv("OTP_STORE", StoreMemory),
		OTPTTL:      getEnvAsDuration("OTP_TTL", 0),
		OTPHashCost: getEnvAsInt("OTP_HASH_COST", 10),

		UserStore:  getEnv("USER_STORE", StoreMemory),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "sentinal_assist"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		TokenMode:    getEnv("TOKEN_MODE", TokenModeMock),
		JWTSecret:    getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin: getEnvAsInt("JWT_EXPIRY_MIN", 60),

		LLMProvider:    getEnv("LLM_PROVIDER", ProviderOpenAI),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
	}
}

// Validate reports the first setting that cannot be used to wire the app.
func (c *Config) Validate() error {
	switch c.OTPStore {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("invalid OTP_STORE %q", c.OTPStore)
	}
	switch c.UserStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("invalid USER_STORE %q", c.UserStore)
	}
	switch c.TokenMode {
	case TokenModeMock:
	case TokenModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when TOKEN_MODE=jwt")
		}
	default:
		return fmt.Errorf("invalid TOKEN_MODE %q", c.TokenMode)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderEcho:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.OTPTTL < 0 {
		return fmt.Errorf("OTP_TTL must not be negative")
	}
	return nil
}

// DSN builds the Postgres connection string for pgx.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
