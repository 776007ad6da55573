package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers    []string
	KafkaGroupID    string
	RawRecordsTopic string
	ProfilesTopic   string
	AuditTopic      string

	// Pseudonyms
	PseudonymSecret       string
	PseudonymRotationDays int
	PseudonymIterations   int
	PseudonymCacheSize    int

	// AuditHashSecret keys subject hashes in logs and audit records.
	// Falls back to PseudonymSecret when empty.
	AuditHashSecret string

	// Embedding service
	EmbeddingURL          string
	EmbeddingModel        string
	EmbeddingDim          int
	EmbeddingTimeout      time.Duration
	EmbeddingTokenURL     string
	EmbeddingClientID     string
	EmbeddingClientSecret string

	// Feature extraction policy
	DefaultAgeGroup  string
	DefaultTrimester int
	VocabularyPath   string
	DLPRulesPath     string

	// Cohort operators
	BatchWorkers       int
	KAnonymityK        int
	MaxGeneralization  int
	DPEpsilon          float64
	ProfileCacheTTL    time.Duration
	ComplianceMinScore float64
	QualityMinScore    float64
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8095"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "synaptica"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "synaptica123"),
		PostgresDB:       getEnv("POSTGRES_DB", "synaptica"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "anonymization-service"),
		RawRecordsTopic: getEnv("RAW_RECORDS_TOPIC", "raw-subject-records"),
		ProfilesTopic:   getEnv("PROFILES_TOPIC", "anonymized-profiles"),
		AuditTopic:      getEnv("AUDIT_TOPIC", "privacy-audit"),

		PseudonymSecret:       getEnv("PSEUDONYM_SECRET", ""),
		PseudonymRotationDays: getIntEnv("PSEUDONYM_ROTATION_DAYS", 90),
		PseudonymIterations:   getIntEnv("PSEUDONYM_ITERATIONS", 100000),
		PseudonymCacheSize:    getIntEnv("PSEUDONYM_CACHE_SIZE", 10000),

		AuditHashSecret: getEnv("AUDIT_HASH_SECRET", ""),

		EmbeddingURL:          getEnv("EMBEDDING_URL", ""),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL", "clinical-embed-768"),
		EmbeddingDim:          getIntEnv("EMBEDDING_DIM", 768),
		EmbeddingTimeout:      getDuration("EMBEDDING_TIMEOUT", 5*time.Second),
		EmbeddingTokenURL:     getEnv("EMBEDDING_TOKEN_URL", ""),
		EmbeddingClientID:     getEnv("EMBEDDING_CLIENT_ID", ""),
		EmbeddingClientSecret: getEnv("EMBEDDING_CLIENT_SECRET", ""),

		DefaultAgeGroup:  getEnv("DEFAULT_AGE_GROUP", "YOUNG_ADULT"),
		DefaultTrimester: getIntEnv("DEFAULT_TRIMESTER", 1),
		VocabularyPath:   getEnv("VOCABULARY_PATH", ""),
		DLPRulesPath:     getEnv("DLP_RULES_PATH", ""),

		BatchWorkers:       getIntEnv("BATCH_WORKERS", 8),
		KAnonymityK:        getIntEnv("K_ANONYMITY_K", 5),
		MaxGeneralization:  getIntEnv("MAX_GENERALIZATION_DEPTH", 4),
		DPEpsilon:          getFloatEnv("DP_EPSILON", 1.0),
		ProfileCacheTTL:    getDuration("PROFILE_CACHE_TTL", 24*time.Hour),
		ComplianceMinScore: getFloatEnv("COMPLIANCE_MIN_SCORE", 0.9),
		QualityMinScore:    getFloatEnv("QUALITY_MIN_SCORE", 0.8),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
