package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"fx-confluence/config"
	"fx-confluence/internal/api"
	"fx-confluence/internal/confluence"
	"fx-confluence/internal/errtrack"
	"fx-confluence/internal/gateway"
	"fx-confluence/internal/logger"
	"fx-confluence/internal/metrics"
	"fx-confluence/internal/model"
	"fx-confluence/internal/notification"
	"fx-confluence/internal/signald"
	kafkastore "fx-confluence/internal/store/kafka"
	redisstore "fx-confluence/internal/store/redis"
	sqlitestore "fx-confluence/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[signald] config: %v", err)
	}
	logger.Init("signald", logger.ParseLevel(cfg.LogLevel))

	engCfg := confluence.DefaultConfig()
	if cfg.EngineConfig != "" {
		engCfg, err = confluence.LoadConfigFile(cfg.EngineConfig)
		if err != nil {
			log.Fatalf("[signald] engine config: %v", err)
		}
		log.Printf("[signald] engine config loaded from %s", cfg.EngineConfig)
	}
	engine, err := confluence.NewEngine(engCfg)
	if err != nil {
		log.Fatalf("[signald] engine: %v", err)
	}

	intervals := cfg.ParseIntervals()
	if len(intervals) == 0 {
		log.Fatalf("[signald] no valid intervals in %q", cfg.Intervals)
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Storage ----
	bars, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[signald] sqlite: %v", err)
	}
	defer bars.Close()

	var publishers model.Publishers
	pub, err := redisstore.New(redisstore.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		ResultTTL: cfg.ResultTTL,
	})
	if err != nil {
		log.Printf("[signald] WARNING: redis unavailable (%v), results will not be cached in Redis", err)
	} else {
		defer pub.Close()
		pub.Breaker().OnStateChange = prom.ObserveBreaker
		publishers = append(publishers, pub)
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafkastore.NewPublisher(kafkastore.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			log.Fatalf("[signald] kafka: %v", err)
		}
		defer kp.Close()
		kp.Breaker().OnStateChange = prom.ObserveBreaker
		publishers = append(publishers, kp)
	}
	var publisher model.ResultPublisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	var reporter signald.ErrorReporter
	if cfg.SentryDSN != "" {
		tracker, err := errtrack.New(errtrack.Options{DSN: cfg.SentryDSN, Environment: cfg.Env})
		if err != nil {
			log.Fatalf("[signald] sentry: %v", err)
		}
		defer tracker.Flush(2 * time.Second)
		reporter = tracker
	}

	// ---- Delivery ----
	hub := gateway.NewHub()
	hub.AllowOrigins(cfg.WSOrigins)
	if len(cfg.WSOrigins) == 0 {
		log.Println("[signald] WS_ALLOWED_ORIGINS unset, websocket accepts any origin")
	}
	hub.OnClients = func(n int) { prom.WSClients.Set(float64(n)) }

	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}

	svc, err := signald.New(
		signald.Options{Intervals: intervals, Period: cfg.EvalPeriod, MarketHoursGate: cfg.MarketHours},
		signald.Deps{
			Engine:      engine,
			Bars:        bars,
			Publisher:   publisher,
			Broadcaster: hub,
			Notifier:    notifiers,
			Metrics:     prom,
			Health:      health,
			Errors:      reporter,
		},
	)
	if err != nil {
		log.Fatalf("[signald] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *goredis.Client
	if pub != nil {
		rdb = pub.Client()
	}
	if rdb != nil {
		health.CheckRedis(ctx, rdb)
	}
	health.CheckSQLite(ctx, bars.DB())
	health.StartLivenessChecker(ctx, rdb, bars.DB(), 10*time.Second)

	apiSrv := api.NewServer(cfg.APIAddr, api.NewHandler(svc, hub))
	apiSrv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[signald] shutdown signal received")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Printf("[signald] run: %v", err)
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := apiSrv.Stop(shutCtx); err != nil {
		log.Printf("[signald] %v", err)
	}
	hub.Close()
	metricsSrv.Stop(shutCtx)
	log.Println("[signald] shutdown complete")
}
