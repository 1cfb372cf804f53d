package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/creaturequest/pvp-server/internal/arena"
	"github.com/creaturequest/pvp-server/internal/config"
	"github.com/creaturequest/pvp-server/internal/notify"
	"github.com/creaturequest/pvp-server/internal/repository"
	"github.com/creaturequest/pvp-server/internal/server"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

// databaseURLEnv points the suite at a PostgreSQL instance instead of the
// in-memory store.
const databaseURLEnv = "PVP_TEST_DATABASE_URL"

type arenaEnv struct {
	client  *server.ArenaClient
	service *arena.Service
	hub     *notify.Hub
	ws      *httptest.Server
}

func newArenaEnv(t testing.TB) *arenaEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := openStore(ctx, t, logger)

	hub := notify.NewHub(zap.NewNop())
	go hub.Run(ctx)
	ws := httptest.NewServer(hub)
	t.Cleanup(ws.Close)

	service := arena.NewService(store, arena.Options{
		Directory: arena.StaticDirectory{"alice": "Alice", "bob": "Bob"},
		Notifier:  hub,
	}, logger)

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
		server.RecoveryInterceptor(logger),
		server.LoggingInterceptor(logger),
		server.IdentityInterceptor(),
	)))
	server.RegisterArenaServer(grpcServer, server.NewArenaServer(service, logger))
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &arenaEnv{client: server.NewArenaClient(conn), service: service, hub: hub, ws: ws}
}

func openStore(ctx context.Context, t testing.TB, logger *zap.Logger) repository.Store {
	t.Helper()
	url := os.Getenv(databaseURLEnv)
	if url == "" {
		return repository.NewMemoryStore()
	}

	db, err := repository.NewDB(ctx, config.DatabaseConfig{URL: url, MaxConns: 4}, logger)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `TRUNCATE pvp_battles, pvp_ratings, pvp_battle_history, pvp_queue`)
	require.NoError(t, err)

	store := repository.NewPostgresStore(db)
	t.Cleanup(store.Close)
	return store
}

func (e *arenaEnv) call(t testing.TB, player, method string, fields map[string]any) map[string]any {
	t.Helper()
	out, err := e.callErr(player, method, fields)
	require.NoError(t, err, "%s %s", player, method)
	return out
}

func (e *arenaEnv) callErr(player, method string, fields map[string]any) (map[string]any, error) {
	ctx := metadata.AppendToOutgoingContext(context.Background(), server.PlayerIDHeader, player)
	return e.client.Call(ctx, method, fields)
}

func (e *arenaEnv) connect(t testing.TB, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ws.URL, "http") + "/ws?player_id=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return e.hub.Connections(player) > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

// nextOf reads frames until one of the wanted type arrives.
func nextOf(t testing.TB, conn *websocket.Conn, want notify.EventType) notify.Message {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg notify.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == want {
			return msg
		}
	}
}

func creature(id string, form int) map[string]any {
	return map[string]any{
		"id":          id,
		"speciesName": "Species " + id,
		"form":        form,
		"rarity":      "common",
		"stats":       map[string]any{"energy": 10, "strength": 10, "magic": 5, "stamina": 10, "speed": 10},
		"battleStats": map[string]any{
			"physicalAttack":  20,
			"magicalAttack":   10,
			"physicalDefense": 10,
			"magicalDefense":  5,
			"maxHealth":       50,
		},
	}
}

func joinRequest(creatures ...map[string]any) map[string]any {
	list := make([]any, 0, len(creatures))
	for _, c := range creatures {
		list = append(list, c)
	}
	return map[string]any{"creatures": list}
}

func action(fields ...string) map[string]any {
	a := map[string]any{"type": fields[0]}
	for i := 1; i+1 < len(fields); i += 2 {
		a[fields[i]] = fields[i+1]
	}
	return a
}
