package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
	healthcheck "github.com/marcopolo2323/tienda-celular/internal/health"
	"github.com/marcopolo2323/tienda-celular/internal/messaging/kafka"
	outboxworker "github.com/marcopolo2323/tienda-celular/internal/service/outbox"
	"github.com/marcopolo2323/tienda-celular/internal/service/rest"
	"github.com/marcopolo2323/tienda-celular/internal/service/sales"
	"github.com/marcopolo2323/tienda-celular/internal/storage/memory"
	"github.com/marcopolo2323/tienda-celular/internal/storage/postgres"
	"github.com/marcopolo2323/tienda-celular/internal/version"
)

// Config описывает минимальные настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	PostgresDSN string
}

// DefaultConfig возвращает базовые адреса API и HTTP-метрик.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}
}

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	var (
		catalogRepo domain.CatalogRepository
		saleRepo    domain.SaleRepository
		outboxRepo  domain.OutboxRepository
		pgStore     *postgres.Store
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return err
		}
		pgStore = store
		catalogRepo = postgres.NewCatalogRepository(store)
		saleRepo = postgres.NewSaleRepository(store)
		outboxRepo = postgres.NewOutboxRepository(store)
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
		logger.Info("postgres storage initialized")
	} else {
		memCatalog := memory.NewCatalogRepository()
		seedDemoCatalog(memCatalog, logger)
		catalogRepo = memCatalog
		saleRepo = memory.NewSaleRepository(memCatalog)
		outboxRepo = memory.NewOutboxRepository()
		logger.Info("in-memory storage initialized")
	}

	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker("outbox", outboxRepo, 5*time.Minute))

	// Инициализация Kafka producer (опционально)
	var kafkaProducer *kafka.Producer
	var engine *sales.Engine

	engineLogger := log.WithField("component", "sales")
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")
			engine = sales.NewEngineWithKafka(catalogRepo, saleRepo, outboxRepo, kafkaProducer, engineLogger)
		}
	}
	if engine == nil {
		engine = sales.NewEngine(catalogRepo, saleRepo, outboxRepo, engineLogger)
	}

	// Outbox worker публикует события в Kafka, когда брокер настроен.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicSaleEvents)
		dlqPublisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outboxworker.NewWorker(outboxRepo, publisher,
			outboxworker.WithLogger(log.WithField("component", "outbox-worker")),
			outboxworker.WithDLQPublisher(dlqPublisher),
		)
		go worker.Run(workerCtx)
	}

	policy := domain.NewPolicy()
	handler := rest.NewHandler(engine, catalogRepo, policy, log.WithField("component", "rest"))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.Middleware(handler.Routes()),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	shutdown := func() {
		stopWorker()
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)

		if kafkaProducer != nil {
			if err := kafkaProducer.Close(); err != nil {
				logger.WithError(err).Warn("failed to close kafka producer")
			} else {
				logger.Info("kafka producer closed")
			}
		}
		if pgStore != nil {
			if err := pgStore.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres store")
			}
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdown()
		return ctx.Err()
	case err := <-errCh:
		shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// seedDemoCatalog наполняет in-memory каталог демонстрационными товарами.
// NOTE: in-memory режим предназначен для разработки и демо;
// в production каталог живёт в PostgreSQL.
func seedDemoCatalog(catalog interface{ Put(p domain.Product) error }, logger *log.Entry) {
	seed := []domain.Product{
		{Kind: domain.KindPhone, ID: 1, Name: "Samsung Galaxy A55", PriceMinor: 129_990, Stock: 12, Code: "356938035643809"},
		{Kind: domain.KindPhone, ID: 2, Name: "Xiaomi Redmi Note 13", PriceMinor: 89_990, Stock: 7, Code: "490154203237518"},
		{Kind: domain.KindPhone, ID: 3, Name: "iPhone 15", PriceMinor: 349_990, Stock: 3, Code: "353915102643001"},
		{Kind: domain.KindAccessory, ID: 1, Name: "Funda transparente", PriceMinor: 2_990, Stock: 40, Code: "ACC-FUN-001"},
		{Kind: domain.KindAccessory, ID: 2, Name: "Cargador USB-C 30W", PriceMinor: 5_990, Stock: 8, Code: "ACC-CAR-030"},
		{Kind: domain.KindTVPlan, ID: 1, Name: "Plan TV Basico", PriceMinor: 9_990},
		{Kind: domain.KindTVPlan, ID: 2, Name: "Plan TV Full HD", PriceMinor: 19_990},
	}
	for _, p := range seed {
		if err := catalog.Put(p); err != nil {
			logger.WithError(err).WithField("product", p.Name).Warn("failed to seed demo product")
		}
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
