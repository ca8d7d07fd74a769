package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kelvins/geocoder"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-acquisition/internal/acquisition"
	httpapi "github.com/i474232898/weather-acquisition/internal/api/http"
	"github.com/i474232898/weather-acquisition/internal/cache"
	"github.com/i474232898/weather-acquisition/internal/config"
	"github.com/i474232898/weather-acquisition/internal/connectivity"
	"github.com/i474232898/weather-acquisition/internal/location"
	"github.com/i474232898/weather-acquisition/internal/notify"
	"github.com/i474232898/weather-acquisition/internal/scheduler"
	"github.com/i474232898/weather-acquisition/internal/store"
	"github.com/i474232898/weather-acquisition/internal/weather"
	"github.com/i474232898/weather-acquisition/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Key-value store: SQLite when a path is configured, in-memory otherwise.
	var kv store.KV
	if cfg.StorePath != "" {
		sqliteStore, err := store.NewSQLite(cfg.StorePath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer sqliteStore.Close()
		kv = sqliteStore
	} else {
		kv = store.NewMemoryStore(cfg.StoreMaxAge)
	}
	gateway := cache.NewGateway(kv)

	settings := cfg.Settings
	if saved, ok := gateway.LoadSettings(ctx); ok {
		settings = saved
	}

	// Weather client with resilience (rate limit + backoff + circuit breaker).
	opts := []providers.Option{providers.WithBaseURL(cfg.OpenWeatherBaseURL)}
	if cfg.ProviderRPS > 0 {
		opts = append(opts, providers.WithLimiter(rate.NewLimiter(rate.Limit(cfg.ProviderRPS), 1)))
	}
	client := providers.NewOpenWeatherClient(httpClient, cfg.OpenWeatherAPIKey, opts...)

	// Device location: fixed coordinates first, then the geocoded home address.
	var resolvers location.Chain
	if cfg.HomeCoordinates != nil {
		resolvers = append(resolvers, location.NewStaticResolver(cfg.HomeCoordinates))
	}
	if !cfg.Home.Empty() {
		resolvers = append(resolvers, location.NewGeocodingResolver(cfg.GeocoderAPIKey, geocoder.Address{
			City:    cfg.Home.City,
			State:   cfg.Home.State,
			Country: cfg.Home.Country,
		}))
	}

	probeURL := cfg.ConnectivityProbeURL
	if probeURL == "" {
		probeURL = client.BaseURL()
	}
	monitor := connectivity.NewMonitor(connectivity.HTTPProbe{
		Client: &http.Client{Timeout: 5 * time.Second},
		URL:    probeURL,
	})
	monitor.Status(ctx)

	acq := acquisition.New(acquisition.Config{
		Client:       client,
		Resolver:     resolvers,
		Cache:        gateway,
		Connectivity: monitor,
		Normalizer:   weather.Normalizer{Interpolate: cfg.HourlyInterpolate},
		Settings:     settings,
	})
	unwatch := acq.Watch(ctx)
	defer unwatch()

	// Optional MQTT publisher for terminal snapshots.
	if cfg.MQTTBroker != "" {
		mqttClient, err := notify.Connect(notify.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
		})
		if err != nil {
			log.Printf("WARN: MQTT disabled: %v", err)
		} else {
			publisher := notify.NewPublisher(mqttClient, cfg.MQTTTopic)
			defer publisher.Close()
			updates, unsubscribe := acq.Subscribe(16)
			defer unsubscribe()
			go publisher.Run(ctx, updates)
		}
	}

	go initialLoad(ctx, acq, cfg.DefaultCity)

	// Scheduler that polls connectivity and periodically refreshes the forecast.
	sched := scheduler.New(acq, monitor, cfg.FetchInterval, cfg.ConnectivityPollInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-acquisition",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"service":      "weather-acquisition",
			"connectivity": monitor.Current(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, acq, monitor)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("INFO: fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("ERROR: error during shutdown: %v", err)
	}
}

func initialLoad(ctx context.Context, acq *acquisition.Acquirer, city string) {
	var (
		snap acquisition.Snapshot
		err  error
	)
	if city != "" {
		snap, err = acq.Search(ctx, city)
	} else {
		snap, err = acq.Load(ctx)
	}
	if err != nil {
		log.Printf("WARN: initial load: %v", err)
		return
	}
	log.Printf("INFO: initial load finished %s (stale=%t)", snap.State, snap.Stale)
}
