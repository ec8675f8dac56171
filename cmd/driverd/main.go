package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ontrack-driver/internal/auth"
	"ontrack-driver/internal/config"
	"ontrack-driver/internal/events"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/http/handlers"
	"ontrack-driver/internal/http/pprofserver"
	"ontrack-driver/internal/http/router"
	"ontrack-driver/internal/logx"
	"ontrack-driver/internal/metrics"
	"ontrack-driver/internal/notify"
	"ontrack-driver/internal/queue"
	"ontrack-driver/internal/storage"
	"ontrack-driver/internal/workflow"
)

func openStore(ctx context.Context, cfg config.Storage) (storage.Store, func(), error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemory(), func() {}, nil
	case "sqlite":
		s, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		r, err := storage.NewRedis(ctx, cfg.RedisAddr, "driver")
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := logx.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if id, err := auth.FromToken(cfg.API.Token); err != nil {
		logger.Warn("driver token not parseable", logx.Err(err))
	} else {
		logger = logger.With(logx.String("driver_id", id.DriverID))
	}

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage open error: %v", err)
	}
	defer closeStore()

	retries := metrics.NewGatewayRetriesTotal()
	notifTotal := metrics.NewNotificationsTotal()
	queueDepth := metrics.NewOfflineQueueDepth()
	replayDrops := metrics.NewReplayDropsTotal()
	transitions := metrics.NewTransitionsTotal()
	prometheus.MustRegister(retries, notifTotal, queueDepth, replayDrops, transitions)

	client := orders.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
	gw := orders.NewRetryingGateway(client, logger, retries, orders.RetryConfig{
		MaxAttempts: cfg.Gateway.MaxAttempts,
		BaseDelay:   cfg.Gateway.BaseDelay,
		MaxDelay:    cfg.Gateway.MaxDelay,
	})

	bus := events.NewBus()
	bus.SubscribeOrderNotification(func(events.OrderNotification) { notifTotal.Inc() })
	conn := notify.NewConnectivityTracker(bus)
	q := queue.New(store, cfg.Storage.QueueKey)
	replayer := queue.NewReplayer(q, gw, logger, replayDrops)

	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if items, err := q.Items(ctx); err == nil {
					queueDepth.Set(float64(len(items)))
				}
			}
		}
	}()

	confirmer := workflow.AutoConfirm(cfg.Workflow.AutoConfirm)
	engine := workflow.NewEngine(gw, confirmer, conn, q, bus, logger, workflow.EngineConfig{
		SettleDelay: cfg.Workflow.SettleDelay,
		PingAccept:  cfg.Workflow.PingAcceptEnable,
	})
	recorder := workflow.NewRecorder(gw, confirmer, bus, logger)
	controller := workflow.NewController(engine, recorder, replayer, bus, logger, cfg.API.Token)

	socket := notify.NewSocket(cfg.Notify.SocketURL, cfg.API.Token, bus, logger)
	go func() {
		if err := socket.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("socket stopped", logx.Err(err))
		}
	}()

	consumer, err := notify.NewKafkaConsumer(
		cfg.Notify.KafkaBrokers, cfg.Notify.KafkaGroupID, cfg.Notify.KafkaTopic, bus, logger)
	if err != nil {
		log.Fatalf("kafka consumer error: %v", err)
	}
	if consumer != nil {
		defer func() { _ = consumer.Close() }()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("kafka consumer stopped", logx.Err(err))
			}
		}()
	}

	h := handlers.New(logger, controller, q)
	h.Transitions = transitions
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.New(h, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.PprofAddr != "" {
		pprofSrv := &http.Server{
			Addr:              cfg.PprofAddr,
			Handler:           pprofserver.Handler(pprofserver.Config{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("pprof listening", logx.String("addr", cfg.PprofAddr))
			if err := pprofSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("pprof listen error", logx.Err(err))
			}
		}()
		defer func() { _ = pprofSrv.Close() }()
	}

	go func() {
		logger.Info("driverd listening", logx.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down driverd")

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown error", logx.Err(err))
	}
	_ = logger.Sync()
}
