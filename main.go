package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appInventory "github.com/Zhima-Mochi/minishop-store/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/minishop-store/internal/application/order"
	"github.com/Zhima-Mochi/minishop-store/internal/config"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/broker"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/memory"
	mongostore "github.com/Zhima-Mochi/minishop-store/internal/infrastructure/mongo"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/outbox"
	redisstore "github.com/Zhima-Mochi/minishop-store/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/seed"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-store/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-store/internal/presentation/worker"
)

// productStore is the catalog together with its stock ledger.
type productStore interface {
	catalog.Repository
	inventory.Ledger
}

// stores groups the backends selected by configuration.
type stores struct {
	products  productStore
	orders    domainOrder.Repository
	customers customer.Registry
	carts     cart.Store

	closers []func(context.Context) error
}

func main() {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, baseLogger)
	stop()
	if err != nil {
		baseLogger.Error("startup_failed", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
	_ = baseLogger.Sync()
}

// run wires the service and serves until ctx is cancelled. Startup failures
// are returned after every resource opened so far has been released.
func run(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)
	logger := zaplogger.Wrap(systemLogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counters, histograms := prometrics.Standard(prometrics.New(registry, "", ""))
	tel := telemetry.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer st.close(logger)

	if cfg.SeedFile != "" {
		data, err := seed.Load(cfg.SeedFile)
		if err == nil {
			err = seed.Apply(ctx, data, st.products, st.customers)
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", cfg.SeedFile, err)
		}
		systemLogger.Info("seed_applied",
			zap.String("file", cfg.SeedFile),
			zap.Int("products", len(data.Products)),
			zap.Int("customers", len(data.Customers)),
		)
	}

	// In-memory event bus; handlers run inside an event span with a scoped logger.
	bus := outbox.NewBus(logger, outbox.WithMiddleware(workerpresentation.EventMiddleware(logger, tel)))

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open event sink %q: %w", cfg.EventSink, err)
	}
	if sink != nil {
		broker.NewRelay(sink, bus, tel).Start()
		systemLogger.Info("event_relay_enabled", zap.String("sink", sink.Name()))
	}

	lowStock := appInventory.NewCheckLowStockUseCase(st.products, bus, cfg.LowStockThreshold, tel)
	appInventory.NewWorker(bus, lowStock, tel).Start()

	orderService := appOrder.NewService(appOrder.Dependencies{
		Orders:    st.orders,
		Catalog:   st.products,
		Ledger:    st.products,
		Carts:     st.carts,
		Customers: st.customers,
		IDs:       id.NewUUIDGenerator(),
		Publisher: bus,
		Telemetry: tel,
	})

	bus.Start(ctx)

	handler := httppresentation.NewHandler(orderService, st.products, st.carts, tel)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store_backend", cfg.StoreBackend),
			zap.String("cart_backend", cfg.CartBackend),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	bus.Stop(shutdownCtx)
	if sink != nil {
		if err := sink.Close(); err != nil {
			systemLogger.Warn("event_sink_close_error", zap.Error(err))
		}
	}
	return nil
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	st := &stores{}

	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		st.products = client.Products()
		st.orders = client.Orders()
		st.customers = client.Customers()
		st.closers = append(st.closers, client.Close)
	default:
		st.products = memory.NewProductStore()
		st.orders = memory.NewOrderRepository()
		st.customers = memory.NewCustomerDirectory()
	}

	switch cfg.CartBackend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			st.close(observability.NopLogger())
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			st.close(observability.NopLogger())
			return nil, fmt.Errorf("redis: ping: %w", err)
		}
		st.carts = redisstore.NewCartStore(client, cfg.CartTTL)
		st.closers = append(st.closers, func(context.Context) error { return client.Close() })
	default:
		st.carts = memory.NewCartStore()
	}

	return st, nil
}

func (s *stores) close(logger observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warn("store_close_error", observability.F("error", err))
		}
	}
}

func openSink(ctx context.Context, cfg config.Config) (broker.Sink, error) {
	switch cfg.EventSink {
	case config.SinkAMQP:
		s, err := broker.DialAMQP(ctx, cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkKafka:
		return broker.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.SinkNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", broker.ErrUnknownSink, cfg.EventSink)
	}
}
