package main

import (
	"flag"
	"os"
	"time"

	"github.com/fox-gonic/fox"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/config"
	"github.com/promfleet/promfleet/internal/database"
	"github.com/promfleet/promfleet/internal/proxy"
	"github.com/promfleet/promfleet/internal/registry"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	log.Info().Msg("Starting promfleet proxy server")

	_ = godotenv.Load()

	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()
	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.New(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	store := registry.NewPgStore(db)

	timeout := 30 * time.Second
	if v, err := time.ParseDuration(cfg.Proxy.Timeout); err == nil {
		timeout = v
	}
	p := proxy.New(store, cfg.Proxy.Workers, timeout)

	router := fox.New()
	proxy.NewApi(p, router)

	log.Info().Msgf("Starting proxy on %s", cfg.Proxy.BindAddr)
	if err := router.Run(cfg.Proxy.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start promfleet proxy failed")
	}
}
