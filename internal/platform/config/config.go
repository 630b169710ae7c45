// Package config builds runtime configuration from environment variables so
// main stays lean. Decision thresholds default to the legally mandated values
// but remain overridable for staging experiments.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures server, storage, and decision-pipeline configuration.
type Config struct {
	Addr          string
	PostgresDSN   string
	RedisAddr     string
	KafkaBrokers  []string
	AuditTopic    string
	ExtractorURL  string
	JWTSigningKey string
	LogLevel      string

	Thresholds Thresholds
}

// Thresholds are the fixed numeric constants exposed at the boundary.
// Defaults are normative; overrides exist for calibration environments only.
type Thresholds struct {
	// PlausibilityFloor is the minimum confidence for a candidate to be
	// reported as a match at all.
	PlausibilityFloor float64
	// ReviewLow and ReviewHigh bound the mandatory human-review band:
	// ReviewLow <= confidence < ReviewHigh requires review.
	ReviewLow  float64
	ReviewHigh float64
	// DecisionThreshold converts a confidence into a predicted label for
	// bias auditing.
	DecisionThreshold float64
	// BiasVarianceLimit is the maximum allowed per-axis accuracy spread.
	BiasVarianceLimit float64
	// TargetFPR is the default false-positive-rate target for threshold
	// tuning.
	TargetFPR float64
	// RetentionHorizon is how long open cases retain biometric data.
	RetentionHorizon time.Duration
	// SearchSLA is the end-to-end search bound; SearchWarnAfter is when a
	// warning is logged, never a hard failure.
	SearchSLA       time.Duration
	SearchWarnAfter time.Duration
}

// DefaultThresholds returns the normative decision constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PlausibilityFloor: 0.50,
		ReviewLow:         0.90,
		ReviewHigh:        0.98,
		DecisionThreshold: 0.98,
		BiasVarianceLimit: 0.02,
		TargetFPR:         0.005,
		RetentionHorizon:  5 * 365 * 24 * time.Hour,
		SearchSLA:         30 * time.Second,
		SearchWarnAfter:   25 * time.Second,
	}
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("SURASMART_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("SURASMART_POSTGRES_DSN"),
		RedisAddr:     os.Getenv("SURASMART_REDIS_ADDR"),
		AuditTopic:    envOr("SURASMART_AUDIT_TOPIC", "surasmart.audit"),
		ExtractorURL:  envOr("SURASMART_EXTRACTOR_URL", "http://localhost:9090"),
		JWTSigningKey: envOr("SURASMART_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		LogLevel:      envOr("SURASMART_LOG_LEVEL", "info"),
		Thresholds:    DefaultThresholds(),
	}
	if brokers := os.Getenv("SURASMART_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.Thresholds.PlausibilityFloor = envFloat("SURASMART_PLAUSIBILITY_FLOOR", cfg.Thresholds.PlausibilityFloor)
	cfg.Thresholds.ReviewLow = envFloat("SURASMART_REVIEW_LOW", cfg.Thresholds.ReviewLow)
	cfg.Thresholds.ReviewHigh = envFloat("SURASMART_REVIEW_HIGH", cfg.Thresholds.ReviewHigh)
	cfg.Thresholds.DecisionThreshold = envFloat("SURASMART_DECISION_THRESHOLD", cfg.Thresholds.DecisionThreshold)
	cfg.Thresholds.BiasVarianceLimit = envFloat("SURASMART_BIAS_VARIANCE_LIMIT", cfg.Thresholds.BiasVarianceLimit)
	cfg.Thresholds.TargetFPR = envFloat("SURASMART_TARGET_FPR", cfg.Thresholds.TargetFPR)

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
