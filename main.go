package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"canteen-cloud/internal/analytics/application"
	apihttp "canteen-cloud/internal/api/http"
	"canteen-cloud/internal/auth"
	"canteen-cloud/internal/eventing"
	"canteen-cloud/internal/ingest"
	ingesthttp "canteen-cloud/internal/ingest/interfaces/http"
	ingestmqtt "canteen-cloud/internal/ingest/mqtt"
	"canteen-cloud/internal/live"
	masterdatarepo "canteen-cloud/internal/masterdata/infrastructure/postgres"
	"canteen-cloud/internal/observability/metrics"
	"canteen-cloud/internal/reports"
	"canteen-cloud/internal/telemetry/application/events"
	telemetrypostgres "canteen-cloud/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	locationRepo := masterdatarepo.NewLocationRepository(db)
	counterRepo := masterdatarepo.NewCounterRepository(db)
	recordStore := telemetrypostgres.NewRecordStore(db)

	bus := eventing.NewInMemoryBus()

	broker := live.NewSSEBroker()
	liveConsumer, err := live.NewRecordedConsumer(recordStore, broker, logger)
	if err != nil {
		logger.Fatalf("live consumer error: %v", err)
	}
	bus.Subscribe(eventing.EventTypeOf[events.TelemetryRecorded](), liveConsumer.Handle)

	resolver, err := ingest.NewOwnerResolver(counterRepo, locationRepo, cfg.DefaultLocationID, logger)
	if err != nil {
		logger.Fatalf("owner resolver error: %v", err)
	}
	processor, err := ingest.NewProcessor(resolver, recordStore, bus, ingest.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("processor error: %v", err)
	}

	if cfg.MQTTBrokerURL != "" {
		subscriber, err := ingestmqtt.NewSubscriber(ingestmqtt.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
		}, processor, logger)
		if err != nil {
			logger.Fatalf("mqtt subscriber error: %v", err)
		}
		if err := subscriber.Start(context.Background()); err != nil {
			logger.Fatalf("mqtt connect error: %v", err)
		}
		defer subscriber.Stop()
	} else {
		logger.Printf("MQTT_BROKER_URL not set, mqtt ingestion disabled")
	}

	engine, err := application.NewEngine(recordStore, locationRepo, application.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("analytics engine error: %v", err)
	}

	reportsCfg, err := reports.LoadConfig()
	if err != nil {
		logger.Fatalf("reports config error: %v", err)
	}
	var sender reports.Sender
	if reportsCfg.WebhookURL != "" {
		sender = reports.NewWebhookSender(reportsCfg.WebhookURL)
	}
	driver, err := reports.NewDriver(engine, locationRepo, sender, application.SystemClock{}, logger,
		reports.PDFFormatter{}, reports.XLSXFormatter{})
	if err != nil {
		logger.Fatalf("reports driver error: %v", err)
	}
	go reports.NewScheduler(driver, reportsCfg, logger).Start(context.Background())

	queueStatusHandler, err := ingesthttp.NewQueueStatusHandler(resolver, recordStore, bus, ingest.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("queue status handler error: %v", err)
	}

	checker := auth.NewLocationChecker(locationRepo)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/ingest/queue-status", queueStatusHandler)
	mux.Handle("/api/v1/analytics/occupancy-trend", apihttp.NewOccupancyTrendHandler(engine, checker))
	mux.Handle("/api/v1/analytics/congestion-trend", apihttp.NewCongestionTrendHandler(engine, checker))
	mux.Handle("/api/v1/analytics/total-served", apihttp.NewTotalServedHandler(engine, checker))
	mux.Handle("/api/v1/analytics/footfall", apihttp.NewFootfallHandler(engine, checker))
	mux.Handle("/api/v1/analytics/peak-hours", apihttp.NewPeakHoursHandler(engine, checker))
	mux.Handle("/api/v1/analytics/dwell-distribution", apihttp.NewDwellDistributionHandler(engine, checker))
	mux.Handle("/api/v1/exports/occupancy-trend.csv", apihttp.NewExportTrendCSVHandler(engine, checker))
	mux.Handle("/api/v1/live/stream", live.NewStreamHandler(broker))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	DefaultLocationID string
	MQTTBrokerURL     string
	MQTTClientID      string
	MQTTTopic         string
	MQTTUsername      string
	MQTTPassword      string
	JWTSecret         string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		DefaultLocationID: getenvDefault("DEFAULT_LOCATION_ID", ""),
		MQTTBrokerURL:     getenvDefault("MQTT_BROKER_URL", ""),
		MQTTClientID:      getenvDefault("MQTT_CLIENT_ID", "canteen-cloud"),
		MQTTTopic:         getenvDefault("MQTT_TOPIC", ""),
		MQTTUsername:      getenvDefault("MQTT_USERNAME", ""),
		MQTTPassword:      getenvDefault("MQTT_PASSWORD", ""),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
