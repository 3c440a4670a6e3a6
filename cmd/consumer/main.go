package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/shelter-matching/internal/logging"
	"github.com/example/shelter-matching/internal/models"
)

var (
	runsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_match_runs_consumed_total",
		Help: "Total match run events consumed",
	})
	runsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_match_runs_invalid_total",
		Help: "Total match run events that could not be decoded",
	})
	statsUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_shelter_stats_updates_total",
		Help: "Total per-shelter stat updates written to redis",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(runsConsumed, runsInvalid, statsUpdates, redisErrors)
}

func main() {
	_ = godotenv.Load()

	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	logger := logging.NewLogger("shelter-consumer", os.Getenv("LOG_LEVEL"))

	brokers := splitBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := envOr("KAFKA_TOPIC", "shelter-match-runs")
	group := envOr("KAFKA_GROUP", "shelter-match-stats")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")

	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	radapter := &redisAdapter{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second
		runsConsumed.Inc()

		ev, err := decodeRun(m.Value)
		if err != nil {
			runsInvalid.Inc()
			logger.Warn("invalid match run", "offset", m.Offset, "error", err)
			continue
		}

		n, err := recordRun(ctx, radapter, ev, 3, 200*time.Millisecond)
		statsUpdates.Add(float64(n))
		if err != nil {
			redisErrors.Inc()
			logger.Error("shelter stats update failed", "run_id", ev.RunID, "error", err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitBrokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeRun(b []byte) (models.MatchEvent, error) {
	var ev models.MatchEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, err
	}
	if ev.RunID == "" {
		return ev, errors.New("match run without runId")
	}
	return ev, nil
}

// RedisUpdater is the subset of redis operations the consumer writes with.
type RedisUpdater interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) error
	HSet(ctx context.Context, key string, values map[string]interface{}) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	return r.c.HIncrBy(ctx, key, field, incr).Err()
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

func statsKey(shelterID string) string { return "shelter:stats:" + shelterID }

// recordRun bumps the match counter of every shelter in the run and returns how
// many counters were bumped. The counter and the last-match fields are retried
// separately so a failed HSet never increments the counter twice. A shelter
// that still fails after all attempts is skipped so one bad key does not hold
// back the rest of the run.
func recordRun(ctx context.Context, rc RedisUpdater, ev models.MatchEvent, attempts int, delay time.Duration) (int, error) {
	var (
		updated int
		errs    []error
	)
	at := ev.At.UTC().Format(time.RFC3339)
	for _, m := range ev.Matches {
		key := statsKey(m.ShelterID)
		if err := withRetry(ctx, attempts, delay, func() error {
			return rc.HIncrBy(ctx, key, "matches", 1)
		}); err != nil {
			errs = append(errs, fmt.Errorf("%s matches: %w", key, err))
			continue
		}
		updated++
		if err := withRetry(ctx, attempts, delay, func() error {
			return rc.HSet(ctx, key, map[string]interface{}{"last_matched_at": at, "last_percentage": m.PercentageMatch})
		}); err != nil {
			errs = append(errs, fmt.Errorf("%s last match: %w", key, err))
		}
	}
	return updated, errors.Join(errs...)
}

func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
