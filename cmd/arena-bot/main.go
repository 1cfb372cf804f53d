package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creaturequest/pvp-server/internal/bot"
	"github.com/creaturequest/pvp-server/internal/notify"
	"github.com/creaturequest/pvp-server/internal/server"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	addr       = flag.String("addr", "localhost:50051", "gRPC address of the PvP server")
	playerID   = flag.String("player", "", "player id to act as")
	wsURL      = flag.String("ws", "", "notification endpoint, e.g. ws://localhost:8080/ws (optional)")
	poll       = flag.Duration("poll", 500*time.Millisecond, "queue and turn polling interval")
	loadoutArg = flag.String("loadout", "", "path to a JSON JoinQueue request (default: generated)")
	rounds     = flag.Int("rounds", 1, "number of battles to play")
	verbose    = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	level := zapcore.InfoLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *playerID == "" {
		logger.Fatal("-player is required")
	}

	loadout, err := readLoadout(*loadoutArg, *playerID)
	if err != nil {
		logger.Fatal("failed to read loadout", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Fatal("failed to create gRPC client", zap.Error(err))
	}
	defer conn.Close()

	if *wsURL != "" {
		go watch(ctx, *wsURL, *playerID, logger)
	}

	b := bot.New(server.NewArenaClient(conn), *playerID, *poll, logger)
	for i := 0; i < *rounds; i++ {
		battleID, err := b.Join(ctx, loadout)
		if err != nil {
			logger.Fatal("failed to find a match", zap.Error(err))
		}
		out, err := b.Play(ctx, battleID)
		if err != nil {
			logger.Fatal("battle failed", zap.String("battle_id", battleID), zap.Error(err))
		}
		logger.Info("round complete",
			zap.Int("round", i+1),
			zap.String("battle_id", out.BattleID),
			zap.Bool("won", out.Won),
			zap.Bool("draw", out.Draw),
			zap.Int("rating_change", out.RatingChange),
		)
	}
}

func readLoadout(path, player string) (map[string]any, error) {
	if path == "" {
		return defaultLoadout(player), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var loadout map[string]any
	if err := json.Unmarshal(data, &loadout); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return loadout, nil
}

func defaultLoadout(player string) map[string]any {
	creatures := make([]any, 0, 5)
	for i := 0; i < 5; i++ {
		form := i % 3
		creatures = append(creatures, map[string]any{
			"id":          fmt.Sprintf("%s-c%d", player, i+1),
			"speciesName": fmt.Sprintf("Sparring Golem %d", i+1),
			"form":        form,
			"rarity":      "common",
			"stats":       map[string]any{"energy": 10, "strength": 12, "magic": 8, "stamina": 10, "speed": 10},
			"battleStats": map[string]any{
				"physicalAttack":  18 + 4*form,
				"magicalAttack":   10,
				"physicalDefense": 10 + 2*form,
				"magicalDefense":  8,
				"maxHealth":       50 + 10*form,
			},
		})
	}
	return map[string]any{
		"creatures": creatures,
		"tools":     []any{map[string]any{"id": player + "-t1", "name": "Field Kit", "toolType": "stamina"}},
	}
}

// watch logs every notification pushed to the player until ctx ends.
func watch(ctx context.Context, endpoint, player string, logger *zap.Logger) {
	u, err := url.Parse(endpoint)
	if err != nil {
		logger.Warn("invalid notification endpoint", zap.Error(err))
		return
	}
	q := u.Query()
	q.Set("player_id", player)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logger.Warn("failed to connect to notifications", zap.String("url", u.String()), zap.Error(err))
		return
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg notify.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				logger.Warn("notification stream closed", zap.Error(err))
			}
			return
		}
		logger.Info("notification",
			zap.String("type", string(msg.Type)),
			zap.String("battle_id", msg.BattleID),
			zap.Any("data", msg.Data),
		)
	}
}
