package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/example/shelter-matching/internal/matcher"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr       string
	RedisPassword   string
	ShelterCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	Weights                matcher.Weights
	MatchWorkers           int
	MatchParallelThreshold int

	NotifyWebhookURL string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:               ":8080",
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           10 * time.Second,
		IdleTimeout:            120 * time.Second,
		ShutdownTimeout:        15 * time.Second,
		ShelterCacheTTL:        30 * time.Second,
		KafkaTopic:             "shelter-match-runs",
		Weights:                matcher.DefaultWeights(),
		MatchWorkers:           runtime.GOMAXPROCS(0),
		MatchParallelThreshold: 64,
		LogLevel:               "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.ShelterCacheTTL, "SHELTER_CACHE_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	w := &cfg.Weights
	setFloatFromEnv(&w.GenderPolicy, "MATCH_WEIGHT_GENDER_POLICY", &errs)
	setFloatFromEnv(&w.StayLength, "MATCH_WEIGHT_STAY_LENGTH", &errs)
	setFloatFromEnv(&w.Location, "MATCH_WEIGHT_LOCATION", &errs)
	setFloatFromEnv(&w.Pets, "MATCH_WEIGHT_PETS", &errs)
	setFloatFromEnv(&w.Security, "MATCH_WEIGHT_SECURITY", &errs)
	setFloatFromEnv(&w.Curfew, "MATCH_WEIGHT_CURFEW", &errs)
	setFloatFromEnv(&w.CommunalLiving, "MATCH_WEIGHT_COMMUNAL_LIVING", &errs)
	setFloatFromEnv(&w.Smoking, "MATCH_WEIGHT_SMOKING", &errs)
	setFloatFromEnv(&w.NearKm, "MATCH_NEAR_KM", &errs)
	setFloatFromEnv(&w.CutoffKm, "MATCH_CUTOFF_KM", &errs)
	setIntFromEnv(&cfg.MatchWorkers, "MATCH_WORKERS", &errs)
	setIntFromEnv(&cfg.MatchParallelThreshold, "MATCH_PARALLEL_THRESHOLD", &errs)

	cfg.NotifyWebhookURL = strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL"))

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MatchWorkers <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_WORKERS must be > 0"))
	}
	if w.NearKm < 0 || w.CutoffKm <= w.NearKm {
		errs = append(errs, fmt.Errorf("MATCH_CUTOFF_KM must be greater than MATCH_NEAR_KM"))
	}

	return cfg, errors.Join(errs...)
}

// MatcherConfig turns the loaded settings into a matcher configuration.
func (c ServerConfig) MatcherConfig() matcher.Config {
	mc := matcher.DefaultConfig(c.Weights)
	mc.Workers = c.MatchWorkers
	mc.ParallelThreshold = c.MatchParallelThreshold
	return mc
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
