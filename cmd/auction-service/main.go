package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"auction-ledger-service/internal/adapters/broadcaster"
	"auction-ledger-service/internal/adapters/db"
	"auction-ledger-service/internal/adapters/redis"
	"auction-ledger-service/internal/adapters/scheduler"
	"auction-ledger-service/internal/adapters/ws"
	"auction-ledger-service/internal/app"
	"auction-ledger-service/internal/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Auction Ledger Service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database connection, schema included
	dbConn, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	bidRepo := repoFactory.GetBidRepository()
	transferRepo := repoFactory.GetTransferRepository()

	log.Info().Msg("Database repositories initialized")

	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(ctx, redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	defer redisBroadcaster.Close()
	log.Info().Msg("Redis broadcaster initialized")

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionRepo,
		Broadcaster: redisBroadcaster,
		Logger:      log.Logger,
	})
	bidService := app.NewBidService(app.BidServiceParams{
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		Broadcaster: redisBroadcaster,
		Logger:      log.Logger,
	})
	settlementService := app.NewSettlementService(app.SettlementServiceParams{
		AuctionRepo:  auctionRepo,
		TransferRepo: transferRepo,
		Broadcaster:  redisBroadcaster,
		Logger:       log.Logger,
	})

	log.Info().Msg("Business services initialized")

	auctionScheduler := scheduler.NewAuctionScheduler(scheduler.AuctionSchedulerParams{
		RedisClient:    redisClient,
		AuctionService: auctionService,
		Broadcaster:    redisBroadcaster,
		PollInterval:   cfg.Scheduler.PollInterval,
		BatchSize:      cfg.Scheduler.BatchSize,
		Logger:         log.Logger,
	})
	auctionService.SetScheduler(auctionScheduler)

	wsServer, err := ws.NewServer(ws.ServerParams{
		Config:            cfg,
		AuctionService:    auctionService,
		BidService:        bidService,
		SettlementService: settlementService,
		Broadcaster:       redisBroadcaster,
		Logger:            log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize WebSocket server")
	}

	log.Info().Msg("WebSocket server initialized")

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		auctionScheduler.Start()
		log.Info().Msg("Auction scheduler started")
		<-groupCtx.Done()
		auctionScheduler.Stop()
		log.Info().Msg("Auction scheduler stopped")
		return nil
	})

	group.Go(func() error {
		return wsServer.Start()
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info().Msg("Starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return wsServer.Stop(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		return
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
