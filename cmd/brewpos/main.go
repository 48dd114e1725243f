package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brewpos/internal/config"
	"brewpos/internal/http/handlers"
	"brewpos/internal/idempotency"
	applog "brewpos/internal/log"
	"brewpos/internal/metrics"
	"brewpos/internal/netcheck"
	"brewpos/internal/repos"
	"brewpos/internal/services"
)

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Optional file logging
	var out io.Writer = os.Stdout
	if cfg.App.LogFile != "" {
		f, err := os.OpenFile(cfg.App.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[warn] could not open log file %s: %v\n", cfg.App.LogFile, err)
		} else {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	logger := applog.New(applog.Options{
		Service: "brewpos",
		Level:   applog.ParseLevel(cfg.App.LogLevel),
		Output:  out,
		Console: cfg.App.LogFormat == "console",
	})
	logger.Info("server.config", cfg.Fields())

	if err := run(cfg, logger); err != nil {
		logger.Error("server.exit", err, nil)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *applog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repos.OpenDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DB.Seed {
		if err := repos.Seed(ctx, db); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	// Commit claims: Redis when configured, in-process otherwise.
	var claims idempotency.Store = idempotency.NewMemoryStore()
	if cfg.Redis.URL != "" {
		rs, err := idempotency.NewRedisStore(ctx, cfg.Redis.URL, cfg.Redis.DialTimeout)
		if err != nil {
			logger.Warn("redis.unavailable", err, map[string]any{"fallback": "memory"})
		} else {
			defer rs.Close()
			claims = rs
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	deps := handlers.NewDeps(db, handlers.Options{
		Config:  cfg,
		Log:     logger,
		Metrics: checkoutMetrics,
		Claims:  claims,
		Network: netcheck.NewProber(cfg.Checkout.ProbeURL, cfg.Checkout.ProbeTimeout),
		Timer:   services.ClockTimer{Cash: cfg.Checkout.CashStageDelay, Other: cfg.Checkout.StageDelay},
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(logger),
		// Global body size guard
		BodyLimit: 1 << 20,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(applog.AccessLog(logger))
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
	}))

	confirmLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|confirm"
		},
		LimitReached: func(c *fiber.Ctx) error {
			logger.FromRequest(c).Security("rate.confirm.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": fiber.Map{
				"code":      "RATE_LIMITED",
				"message":   "too many payment attempts, retry soon",
				"retryable": true,
			}})
		},
	})
	handlers.Register(app, deps, confirmLimiter)

	// Health, metrics & 404
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": fiber.Map{"code": "NOT_FOUND", "message": "route not found"}})
	})

	go func() {
		<-ctx.Done()
		logger.Info("server.shutdown", nil)
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	logger.Info("server.start", map[string]any{"port": cfg.App.Port})
	return app.Listen(":" + cfg.App.Port)
}
