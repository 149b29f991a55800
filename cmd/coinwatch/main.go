package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"coinwatch/aggregator"
	"coinwatch/app"
	"coinwatch/catalog"
	"coinwatch/config"
	"coinwatch/exchange"
	"coinwatch/exchange/binance"
	"coinwatch/exchange/coinbase"
	"coinwatch/favorites"
	"coinwatch/httpapi"
	"coinwatch/subscription"
	"coinwatch/types"
)

func main() {
	configPath := flag.String("config", "yamls/config.yaml", "Path to config file")
	flag.Parse()

	// .env is optional; it only overrides environment-sourced settings.
	if err := godotenv.Load(); err == nil {
		log.Info().Msg(".env loaded")
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	symbols := types.NewSymbolMap(cfg.Catalog.QuoteAsset, cfg.Catalog.ProductQuote)
	catalogSvc := catalog.NewService(cfg.Binance.APIBaseURL, cfg.Catalog.QuoteAsset, symbols)

	dialer := exchange.WSDialer{}
	binanceClient := binance.NewClient(cfg.Binance.WSBaseURL, dialer)
	coinbaseClient := coinbase.NewClient(cfg.Coinbase.WSURL, dialer)

	manager := subscription.NewManager(binanceClient, coinbaseClient, symbols, cfg.Subscription.Debounce)
	store := aggregator.NewStore(symbols)
	reconciler := aggregator.NewReconciler(store)

	var favStore favorites.Store
	switch cfg.Favorites.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Favorites.RedisAddr})
		favStore = favorites.NewRedisStore(client, cfg.Favorites.RedisKey)
		log.Info().Str("addr", cfg.Favorites.RedisAddr).Msg("using redis favorites store")
	default:
		favStore = favorites.NewMemoryStore(nil)
	}

	a := app.New(app.Options{
		Store:           store,
		Reconciler:      reconciler,
		Symbols:         symbols,
		Catalog:         catalogSvc,
		Manager:         manager,
		Binance:         binanceClient,
		Coinbase:        coinbaseClient,
		FavoritesStore:  favStore,
		RefreshSchedule: cfg.Catalog.RefreshSchedule,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := a.Start(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to start aggregator")
	}
	cancel()

	server := httpapi.NewServer(cfg.HTTP.Addr, a)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh
	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	a.Shutdown()
}
