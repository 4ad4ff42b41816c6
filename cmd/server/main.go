package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/blockverse/internal/api"
	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/observability"
	"github.com/annel0/blockverse/internal/service"
	"github.com/annel0/blockverse/internal/storage"
)

// closers закрываются в обратном порядке при остановке
type closers []func() error

func (c *closers) add(name string, fn func() error) {
	*c = append(*c, func() error {
		if err := fn(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logging.Error("❌ Ошибка остановки: %v", err)
		}
	}
}

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $BLOCKVERSE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := initLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🧱 Запуск Blockverse %s", api.Version)

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		_ = logging.GetLoggerManager().CloseAll()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func initLogging(cfg config.LoggingConfig) error {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logging.GetLoggerManager().Configure(level, cfg.ToFile, os.Stdout)

	logger, err := logging.GetLoggerManager().GetLogger(cfg.Component)
	if err != nil {
		return err
	}
	logging.SetDefaultLogger(logger)
	return nil
}

func run(cfg *config.Config) error {
	ctx := context.Background()
	var cl closers
	defer cl.closeAll()

	nodeID := uuid.NewString()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.Init(ctx, observability.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     api.Version,
			NodeID:      nodeID,
			Endpoint:    cfg.Telemetry.Endpoint,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			logging.Warn("⚠️  OpenTelemetry недоступна: %v", err)
		} else {
			cl.add("telemetry", func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return shutdown(ctx)
			})
			logging.Info("📈 OpenTelemetry: %s", cfg.Telemetry.Endpoint)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === ХРАНИЛИЩЕ ===
	store, raw, err := openStore(cfg.Storage, &cl)
	if err != nil {
		return err
	}

	catalog, err := openCatalog(cfg.Catalog)
	if err != nil {
		return err
	}
	cl.add("catalog", catalog.Close)

	schemCache, err := openCache(cfg.Cache, raw, nodeID, &cl)
	if err != nil {
		return err
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	cl.add("eventbus", bus.Close)
	busLog, err := eventbus.StartLoggingListener(bus)
	if err != nil {
		return fmt.Errorf("logging listener: %w", err)
	}
	cl.add("eventbus log", func() error { busLog.Unsubscribe(); return nil })
	if _, err := eventbus.NewMetricsExporter(bus, reg); err != nil {
		return fmt.Errorf("eventbus metrics: %w", err)
	}

	// === СЕРВИС СХЕМАТИК ===
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("service metrics: %w", err)
	}
	schematics, err := service.New(service.Options{
		Store:   store,
		Catalog: catalog,
		Cache:   schemCache,
		Bus:     bus,
		Metrics: metrics,
		Source:  nodeID,
		MaxDim:  cfg.Server.MaxVolumeDim,
	})
	if err != nil {
		return err
	}
	// Закрывается раньше хранилища: несохранённые схематики пишутся при остановке
	cl.add("schematics", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return schematics.Close(ctx)
	})

	// === ПОЛЬЗОВАТЕЛИ ===
	users, err := openUsers(cfg.Catalog, catalog)
	if err != nil {
		return err
	}
	cl.add("users", users.Close)
	if err := auth.EnsureAdmin(users, cfg.Auth.AdminUser, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("создание администратора: %w", err)
	}
	if cfg.Auth.AdminPassword == "" {
		logging.Warn("⚠️  auth.admin_password не задан, администратор не создан")
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenDuration())
	if err != nil {
		return err
	}

	// === WEBHOOKS ===
	webhooks := api.NewOutboundWebhookManager(nodeID, cfg.Logging.Component)
	cl.add("webhooks", func() error { webhooks.Close(); return nil })
	sub, err := webhooks.Forward(ctx, bus)
	if err != nil {
		return fmt.Errorf("webhooks: %w", err)
	}
	cl.add("webhooks subscription", func() error { sub.Unsubscribe(); return nil })

	// === REST API ===
	rs, err := api.NewRestServer(api.Config{
		ServiceName:   cfg.Telemetry.ServiceName,
		Authenticator: auth.NewAuthenticator(users, tokens),
		Schematics:    schematics,
		Webhooks:      webhooks,
		Registry:      reg,
	})
	if err != nil {
		return err
	}

	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	integration := api.NewServerIntegration(restAddr, rs)
	if err := integration.Start(); err != nil {
		return fmt.Errorf("запуск REST API: %w", err)
	}
	cl.add("rest", func() error { return integration.Stop(context.Background()) })

	metricsSrv := startMetricsServer(cfg.Server, reg)
	if metricsSrv != nil {
		cl.add("metrics", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(ctx)
		})
	}

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case err, ok := <-integration.Errors():
		if ok && err != nil {
			return fmt.Errorf("REST API: %w", err)
		}
	}
	return nil
}

func openStore(cfg config.StorageConfig, cl *closers) (storage.SchematicStore, storage.RawStore, error) {
	switch cfg.Backend {
	case "file":
		fs, err := storage.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		cl.add("file store", fs.Close)
		return fs, fs, nil
	case "badger":
	default:
		logging.Info("💾 Хранилище схематик: память")
		s := storage.NewMemoryStore()
		return s, s, nil
	}

	bs, err := storage.NewBadgerStore(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	cl.add("badger", bs.Close)

	// Периодическая сборка мусора value log
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := bs.RunGC(); err != nil {
					logging.GetStorageLogger().Debug("BadgerDB GC: %v", err)
				}
			}
		}
	}()
	cl.add("badger gc", func() error { close(stop); return nil })

	logging.Info("💾 Хранилище схематик: BadgerDB %s", cfg.Path)
	return bs, bs, nil
}

func openCatalog(cfg config.CatalogConfig) (storage.Catalog, error) {
	switch cfg.Backend {
	case "maria":
		return storage.NewMariaCatalog(cfg.DSN)
	case "mongo":
		return storage.NewMongoCatalog(storage.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.Database,
			Collection: "schematics",
		})
	default:
		return storage.NewMemoryCatalog(), nil
	}
}

// openUsers выбирает хранилище пользователей рядом с каталогом
func openUsers(cfg config.CatalogConfig, catalog storage.Catalog) (auth.UserRepository, error) {
	switch cfg.Backend {
	case "maria":
		if mc, ok := catalog.(*storage.MariaCatalog); ok {
			return auth.NewMariaUserRepoFromDB(mc.DB())
		}
		return auth.NewMariaUserRepo(cfg.DSN)
	case "mongo":
		if mc, ok := catalog.(*storage.MongoCatalog); ok {
			return auth.NewMongoUserRepoFromDB(mc.Database())
		}
		return auth.NewMongoUserRepo(auth.MongoConfig{URI: cfg.MongoURI, Database: cfg.Database})
	default:
		return auth.NewMemoryUserRepo(), nil
	}
}

func openCache(cfg config.CacheConfig, raw storage.RawStore, nodeID string, cl *closers) (cache.CacheRepo, error) {
	cold := storage.Cold(raw)
	if !cfg.Enabled {
		return cache.NewMemoryCache(cache.CacheConfig{DefaultTTL: cfg.TTLDuration()}, cold, nil), nil
	}

	var invalidator cache.CacheInvalidator
	if cfg.NATSURL != "" {
		inv, err := cache.NewNATSInvalidator(&cache.InvalidatorConfig{NATSURL: cfg.NATSURL}, nodeID)
		if err != nil {
			return nil, err
		}
		cl.add("cache invalidator", inv.Close)
		invalidator = inv
	}

	rc, err := cache.NewRedisCache(&cache.CacheConfig{
		RedisURL:      cfg.Addr,
		RedisPassword: cfg.Password,
		RedisDB:       cfg.DB,
		DefaultTTL:    cfg.TTLDuration(),
	}, cold, invalidator)
	if err != nil {
		return nil, err
	}
	cl.add("redis", rc.Close)
	return rc, nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.Backend == "jetstream" {
		return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	}
	return eventbus.NewMemoryBus(1024), nil
}

// startMetricsServer поднимает отдельный порт для Prometheus, если он отличается от REST
func startMetricsServer(cfg config.ServerConfig, reg *prometheus.Registry) *http.Server {
	if cfg.GetMetricsPort() == cfg.GetRESTPort() {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.GetMetricsPort()),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()
	logging.Info("📊 Prometheus метрики: http://localhost%s/metrics", srv.Addr)
	return srv
}
