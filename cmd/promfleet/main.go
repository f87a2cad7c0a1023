package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/api"
	"github.com/promfleet/promfleet/internal/config"
	"github.com/promfleet/promfleet/internal/database"
	"github.com/promfleet/promfleet/internal/notify"
	"github.com/promfleet/promfleet/internal/registry"
	"github.com/promfleet/promfleet/internal/rules"
	"github.com/promfleet/promfleet/internal/signalbus"
	"github.com/promfleet/promfleet/internal/writer"
)

func main() {
	log.Info().Msg("Starting promfleet api server")

	// .env for local development; absence is normal in production
	_ = godotenv.Load()

	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()
	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	applyLogLevel(cfg.Logging.Level)

	db, err := database.New(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	store := registry.NewPgStore(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	bus := signalbus.New(signalbus.NewRedisStore(rdb))

	var queue writer.ReloadQueue
	if cfg.Prometheus.NATSAddr != "" {
		natsQueue, err := writer.NewNATSQueue(cfg.Prometheus.NATSAddr, cfg.Prometheus.ReloadSubject)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect reload queue")
		}
		defer natsQueue.Close()
		queue = natsQueue
	} else {
		queue = writer.HTTPQueue{}
	}
	w := writer.New(queue, store.ListShards)

	mode := os.FileMode(cfg.Prometheus.FileMode)
	jobs := map[signalbus.Kind]writer.Job{
		signalbus.KindConfig: {Path: cfg.Prometheus.ConfigPath, Mode: mode, Render: api.RenderConfig(store)},
		signalbus.KindRules:  {Path: cfg.Prometheus.RulesPath, Mode: mode, Render: api.RenderRules(store, cfg.Site.URL)},
		signalbus.KindURLs:   {Path: cfg.Prometheus.URLsPath, Mode: mode, Render: api.RenderURLs(store)},
	}
	for kind, job := range jobs {
		job := job
		bus.Register(kind, func(ctx context.Context) error {
			return w.Write(ctx, job, true)
		})
	}

	checker := rules.NewChecker(cfg.Prometheus.Promtool, parseDuration(cfg.Prometheus.PromtoolTimeout, 30*time.Second))
	checker.Verify()
	svc := registry.NewService(store, bus, checker, cfg.Site.URL)

	notifiers := notify.NewRegistry()
	notifiers.Register("email", notify.NewEmail(cfg.Notify.SMTP))
	notifiers.Register("slack", notify.Slack{})
	notifiers.Register("webhook", notify.Webhook{})
	notifiers.Register("pagerduty", notify.NewPagerDuty(cfg.Notify.PagerDuty))
	notifiers.Register("alertmanager", notify.Alertmanager{})
	if cfg.Notify.Telegram.BotToken != "" {
		telegram, err := notify.NewTelegram(cfg.Notify.Telegram.BotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize telegram notifier")
		}
		notifiers.Register("telegram", telegram)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := notify.NewDispatcher(notifiers, store,
		cfg.Notify.QueueSize, cfg.Notify.MaxAttempts, parseDuration(cfg.Notify.Backoff, 5*time.Second))
	dispatcher.Start(ctx, cfg.Notify.Workers)

	alertRouter := notify.NewRouter(store, cfg.Site.URL, cfg.Notify.Blacklist)

	// catch flags queued by other processes or left over from a crash
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bus.Sweep(ctx)
			}
		}
	}()

	if *configFile != "" {
		go func() {
			err := config.Watch(ctx, *configFile, func(next *config.Config) {
				applyLogLevel(next.Logging.Level)
			})
			if err != nil {
				log.Error().Err(err).Msg("config watch stopped")
			}
		}()
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	if _, err := api.NewApi(store, svc, bus, w, jobs, alertRouter, dispatcher,
		api.NewRedisWebhookCache(rdb), cfg.Server.Token, cfg.Site.URL, router); err != nil {
		log.Fatal().Err(err).Msg("bind api failed")
	}

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start promfleet api server failed")
	}
}

func applyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
