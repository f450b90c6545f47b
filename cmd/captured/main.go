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
	_ "time/tzdata"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"meter-capture-agent/config"
	"meter-capture-agent/internal/api"
	"meter-capture-agent/internal/auth"
	"meter-capture-agent/internal/capture"
	"meter-capture-agent/internal/connectivity"
	"meter-capture-agent/internal/db"
	"meter-capture-agent/internal/delivery"
	"meter-capture-agent/internal/discovery"
	"meter-capture-agent/internal/draft"
	"meter-capture-agent/internal/identity"
	"meter-capture-agent/internal/ledger"
	"meter-capture-agent/internal/notification"
	"meter-capture-agent/internal/outbox"
	"meter-capture-agent/internal/settings"
	"meter-capture-agent/internal/store"
	"meter-capture-agent/internal/users"
)

func main() {
	configFlag := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	config.LoadEnv()

	// Load configuration
	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) && *configFlag == "" {
		log.Printf("no configuration at %s, using defaults", configPath)
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	config.SetupLogger(cfg.Log)
	log.Printf("configuration loaded (%s)", configPath)

	loc := cfg.Capture.Location()

	// Durable store, falling back to memory for this run if it cannot be used.
	var durable store.Storage
	if gormDB, err := db.Init(&cfg.Database); err != nil {
		log.Errorf("failed to initialize database: %v", err)
	} else {
		durable = store.NewGormStorage(gormDB)
	}
	kv := store.NewKV(store.Select(durable))
	log.WithField("durable", kv.Durable()).Println("key/value store ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notifications: the UI feed, the log and, when configured, web push.
	feed := notification.NewFeed(cfg.Capture.FeedSize)
	notifiers := notification.Multi{feed, notification.LogNotifier{}}

	subscriptions := notification.NewSubscriptions(kv)
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, subscriptions, webpushOptions)
		pool.Start(ctx)
		notifiers = append(notifiers, pool)
	} else {
		log.Println("VAPID keys are not configured; web push is disabled")
	}

	scoper := identity.NewScoper(kv)
	settingsSvc := settings.NewService(kv, cfg.Defaults, notifiers)
	settingsSvc.Ensure()

	queue := outbox.NewQueue(kv, scoper)
	sentLog := ledger.New(kv, scoper, loc)
	sender := delivery.NewWebhookSender(cfg.Capture.SendTimeout)
	observer := connectivity.NewObserver(notification.NewThrottle(notifiers, cfg.Capture.NotifyThrottle))
	pump := delivery.NewPump(queue, sentLog, sender, settingsSvc, notifiers, cfg.Capture.SyncDelay)

	captureSvc := capture.NewService(capture.Deps{
		KV:           kv,
		Scoper:       scoper,
		Queue:        queue,
		Ledger:       sentLog,
		Drafts:       draft.NewCache(kv, scoper),
		Sender:       sender,
		Settings:     settingsSvc,
		Connectivity: observer,
		Notifier:     notifiers,
		Timezone:     cfg.Capture.Timezone,
	})
	directory := users.NewDirectory(kv, settingsSvc, scoper, cfg.Discovery.Timeout)
	authClient := auth.NewClient(settingsSvc, scoper, notifiers, cfg.Defaults.AuthWebhook, cfg.Capture.Timezone, cfg.Discovery.Timeout).WithDirectory(directory)

	// Background startup work; neither ever drains the outbox.
	go discovery.NewService(cfg.Discovery, kv, settingsSvc).Run(ctx)
	go connectivity.NewProber(cfg.Connectivity.ProbeURL, cfg.Connectivity.Interval, cfg.Connectivity.Timeout, observer).Run(ctx)

	router := api.NewRouter(api.Deps{
		Capture:       captureSvc,
		Queue:         queue,
		Ledger:        sentLog,
		Pump:          pump,
		Scoper:        scoper,
		Auth:          authClient,
		Settings:      settingsSvc,
		Observer:      observer,
		Feed:          feed,
		Subscriptions: subscriptions,
		WebPush:       webpushOptions,
		Location:      loc,
	}, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		log.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Shutdown signal received, stopping services...")

	if n := queue.Count(); n > 0 {
		log.WithField("namespace", queue.Namespace().String()).Warnf("%d submission(s) are still in the outbox and were not sent", n)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server Shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}
