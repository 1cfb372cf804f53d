package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creaturequest/pvp-server/internal/arena"
	"github.com/creaturequest/pvp-server/internal/config"
	"github.com/creaturequest/pvp-server/internal/matchmaking"
	"github.com/creaturequest/pvp-server/internal/notify"
	"github.com/creaturequest/pvp-server/internal/repository"
	"github.com/creaturequest/pvp-server/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting PvP server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	// Notifications
	var notifier arena.Notifier = notify.Nop{}
	var hub *notify.Hub
	if cfg.Server.WebSocket.Enabled {
		hub = notify.NewHub(logger)
		go hub.Run(ctx)
		notifier = hub
	}

	m := cfg.Matchmaking
	service := arena.NewService(store, arena.Options{
		Policy: matchmaking.Policy{
			InitialRatingRange: m.InitialRatingRange,
			MaxRatingRange:     m.MaxRatingRange,
			RatingStep:         m.RatingStep,
			InitialPowerRange:  m.InitialPowerRange,
			PowerStep:          m.PowerStep,
			MaxWait:            m.MaxWait,
		},
		EstimatedWait: m.EstimatedWait,
		TurnClock:     cfg.Battle.TurnClock,
		Notifier:      notifier,
	}, logger)
	logger.Info("arena service initialized",
		zap.Int("initial_rating_range", m.InitialRatingRange),
		zap.Duration("max_wait", m.MaxWait),
	)

	var sweeper *arena.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper, err = arena.NewSweeper(service, arena.SweeperConfig{
			Interval:    cfg.Sweeper.Interval,
			StaleAfter:  cfg.Queue.StaleAfter,
			TurnTimeout: cfg.Battle.TurnTimeout,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create sweeper", zap.Error(err))
		}
		sweeper.Start()
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
			server.IdentityInterceptor(),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	server.RegisterArenaServer(grpcServer, server.NewArenaServer(service, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket server
	var httpServer *http.Server
	if hub != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Server.WebSocket.Path, hub)
		httpServer = &http.Server{
			Addr:              cfg.Server.WebSocket.Address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("starting WebSocket server",
				zap.String("address", cfg.Server.WebSocket.Address),
				zap.String("path", cfg.Server.WebSocket.Path),
			)
			if wsErr := httpServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
				logger.Error("WebSocket server error", zap.Error(wsErr))
			}
		}()
	}

	logger.Info("PvP server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("database_driver", cfg.Database.Driver),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			logger.Warn("sweeper shutdown failed", zap.Error(err))
		}
	}
	if httpServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("WebSocket server shutdown failed", zap.Error(err))
		}
		done()
	}
	cancel()

	grpcServer.GracefulStop()

	logger.Info("PvP server stopped")
}

// openStore selects the persistence backend
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.Store, error) {
	if cfg.Driver != config.DriverPostgres {
		logger.Warn("using in-memory store; state is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	db, err := repository.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	stats := db.Stats()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)
	return repository.NewPostgresStore(db), nil
}

// initLogger builds a console or JSON logger; unknown levels fall back to info
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
