package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	speakauth "github.com/speaksim/speakauth"
	"github.com/speaksim/speakauth/httpapi"
	"github.com/speaksim/speakauth/metrics/export/prometheus"
)

func main() {
	var (
		listenAddr = flag.String("listen", envOr("SPEAKAUTH_LISTEN", ":8080"), "HTTP listen address")
		redisAddr  = flag.String("redis-addr", "", "redis address; REDIS_ADDR env is used when empty")
		envFile    = flag.String("env-file", ".env", "env file to load; missing file is not an error")
	)
	flag.Parse()

	_ = godotenv.Load(*envFile)

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	addr := *redisAddr
	if addr == "" {
		addr = envOr("REDIS_ADDR", "localhost:6379")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer func() { _ = client.Close() }()

	cfg := configFromEnv()

	builder := speakauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true)

	if os.Getenv("SPEAKAUTH_AUDIT_LOG") == "stdout" {
		builder = builder.WithAuditSink(speakauth.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.StartSweeper(ctx)

	api := httpapi.NewAPI(engine, logger, httpapi.Config{
		AllowedOrigins: splitEnvList("SPEAKAUTH_ALLOWED_ORIGINS"),
	})

	mux := http.NewServeMux()
	mux.Handle("/", api.Router())
	mux.Handle("/metrics", prometheus.NewPrometheusExporter(engine).Handler())

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", *listenAddr), zap.String("redis", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}

func configFromEnv() speakauth.Config {
	cfg := speakauth.DefaultConfig()

	if d, err := time.ParseDuration(os.Getenv("SPEAKAUTH_SESSION_LIFETIME")); err == nil && d > 0 {
		cfg.Session.SessionLifetime = d
	}
	if mode := os.Getenv("SPEAKAUTH_TOKEN_MODE"); mode != "" {
		cfg.Token.Mode = mode
	}
	if key := os.Getenv("SPEAKAUTH_SIGNING_KEY"); key != "" {
		cfg.Token.SigningKey = []byte(key)
	}
	if os.Getenv("SPEAKAUTH_REQUIRE_VERIFIED_LOGIN") == "true" {
		cfg.EmailVerification.RequireForLogin = true
	}
	if os.Getenv("SPEAKAUTH_RATE_LIMITS") == "off" {
		cfg.RateLimit.Enabled = false
	}
	if os.Getenv("SPEAKAUTH_AUDIT_LOG") != "" {
		cfg.Audit.Enabled = true
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
