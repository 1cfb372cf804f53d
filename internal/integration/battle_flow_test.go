package integration

import (
	"testing"

	"github.com/creaturequest/pvp-server/internal/notify"
	"github.com/creaturequest/pvp-server/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// matchPlayers queues alice, then bob, and returns the battle id. Bob moves first.
func matchPlayers(t *testing.T, env *arenaEnv, alice, bob map[string]any) string {
	t.Helper()
	res := env.call(t, "alice", server.ArenaJoinQueueMethod, alice)
	require.Equal(t, "queued", res["status"])
	res = env.call(t, "bob", server.ArenaJoinQueueMethod, bob)
	require.Equal(t, "matched", res["status"])
	id, _ := res["battleId"].(string)
	require.NotEmpty(t, id)
	return id
}

func submit(t *testing.T, env *arenaEnv, player, battleID string, a map[string]any) map[string]any {
	t.Helper()
	return env.call(t, player, server.ArenaSubmitActionMethod, map[string]any{"battleId": battleID, "action": a})
}

// TestMatchmakingSplitsTurns verifies a match notifies both players and
// exactly one of them holds the first turn.
func TestMatchmakingSplitsTurns(t *testing.T) {
	env := newArenaEnv(t)
	aliceWS := env.connect(t, "alice")
	bobWS := env.connect(t, "bob")

	battleID := matchPlayers(t, env, joinRequest(creature("a1", 0)), joinRequest(creature("b1", 0)))

	msg := nextOf(t, aliceWS, notify.EventMatchFound)
	assert.Equal(t, battleID, msg.BattleID)
	assert.Equal(t, "bob", msg.Data.(map[string]any)["opponent_id"])
	msg = nextOf(t, bobWS, notify.EventMatchFound)
	assert.Equal(t, "alice", msg.Data.(map[string]any)["opponent_id"])

	alice := env.call(t, "alice", server.ArenaGetBattleMethod, map[string]any{"battleId": battleID})
	bob := env.call(t, "bob", server.ArenaGetBattleMethod, map[string]any{"battleId": battleID})
	assert.Equal(t, false, alice["isPlayer1"])
	assert.Equal(t, true, bob["isPlayer1"])
	assert.Equal(t, false, alice["isYourTurn"])
	assert.Equal(t, true, bob["isYourTurn"])

	st := env.call(t, "alice", server.ArenaQueueStatusMethod, nil)
	assert.Equal(t, "matched", st["status"])
}

// TestBattleRunsToCompletion exhausts alice's only creature and checks the
// outcome, the notifications and the recorded ratings.
func TestBattleRunsToCompletion(t *testing.T) {
	env := newArenaEnv(t)
	aliceWS := env.connect(t, "alice")
	battleID := matchPlayers(t, env, joinRequest(creature("a1", 0)), joinRequest(creature("b1", 0)))

	submit(t, env, "bob", battleID, action("deploy", "creatureId", "b1"))
	submit(t, env, "bob", battleID, action("endTurn"))
	submit(t, env, "alice", battleID, action("deploy", "creatureId", "a1"))
	out := submit(t, env, "alice", battleID, action("endTurn"))
	assert.Equal(t, false, out["isYourTurn"])

	for i := 0; i < 3; i++ {
		out = submit(t, env, "bob", battleID, action("attack", "attackerId", "b1", "targetId", "a1"))
		assert.Equal(t, "active", out["status"])
		assert.EqualValues(t, 15, out["result"].(map[string]any)["damage"])
	}

	out = submit(t, env, "bob", battleID, action("attack", "attackerId", "b1", "targetId", "a1"))
	assert.Equal(t, "completed", out["status"])
	assert.Equal(t, true, out["isWinner"])
	assert.EqualValues(t, 16, out["ratingChange"])

	msg := nextOf(t, aliceWS, notify.EventBattleCompleted)
	assert.Equal(t, battleID, msg.BattleID)
	assert.Equal(t, "bob", msg.Data.(map[string]any)["winner_id"])

	_, err := env.callErr("bob", server.ArenaSubmitActionMethod, map[string]any{"battleId": battleID, "action": action("endTurn")})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	bob := env.call(t, "bob", server.ArenaGetStatsMethod, nil)
	alice := env.call(t, "alice", server.ArenaGetStatsMethod, nil)
	assert.EqualValues(t, 1016, bob["rating"])
	assert.EqualValues(t, 984, alice["rating"])
	for _, stats := range []map[string]any{alice, bob} {
		recent := stats["recentBattles"].([]any)
		require.Len(t, recent, 1)
		assert.NotZero(t, recent[0].(map[string]any)["ratingChange"])
	}

	lb := env.call(t, "", server.ArenaGetLeaderboardMethod, map[string]any{"filter": "week"})
	players := lb["players"].([]any)
	require.Len(t, players, 2)
	assert.Equal(t, "Bob", players[0].(map[string]any)["name"])
	assert.Equal(t, "Gold", players[0].(map[string]any)["rankTitle"])
}

// TestSpellsAndTools verifies area spells hit every opposing creature and
// single-use items are consumed.
func TestSpellsAndTools(t *testing.T) {
	env := newArenaEnv(t)

	bobReq := joinRequest(creature("b1", 0))
	bobReq["tools"] = []any{map[string]any{"id": "t1", "name": "Buckler", "toolType": "armor", "toolEffect": "Shield"}}
	bobReq["spells"] = []any{map[string]any{"id": "s1", "name": "Quake", "spellType": "energy"}}
	battleID := matchPlayers(t, env, joinRequest(creature("a1", 0), creature("a2", 0)), bobReq)

	submit(t, env, "bob", battleID, action("deploy", "creatureId", "b1"))
	submit(t, env, "bob", battleID, action("endTurn"))
	submit(t, env, "alice", battleID, action("deploy", "creatureId", "a1"))
	submit(t, env, "alice", battleID, action("deploy", "creatureId", "a2"))
	submit(t, env, "alice", battleID, action("endTurn"))

	out := submit(t, env, "bob", battleID, action("useSpell", "spellId", "s1", "casterId", "b1"))
	res := out["result"].(map[string]any)
	assert.Equal(t, "SPELL_CAST", res["event"])
	assert.EqualValues(t, 15, res["aoeDamage"])

	out = submit(t, env, "bob", battleID, action("useTool", "toolId", "t1", "targetId", "b1"))
	assert.Equal(t, "TOOL_USED", out["result"].(map[string]any)["event"])

	state := out["updatedState"].(map[string]any)
	p1 := state["player1"].(map[string]any)
	assert.Empty(t, p1["tools"])
	assert.Empty(t, p1["spells"])
	assert.EqualValues(t, 7, p1["energy"])

	field := state["player2"].(map[string]any)["field"].([]any)
	require.Len(t, field, 2)
	for _, c := range field {
		assert.EqualValues(t, 35, c.(map[string]any)["currentHealth"])
	}

	_, err := env.callErr("bob", server.ArenaSubmitActionMethod, map[string]any{
		"battleId": battleID,
		"action":   action("useSpell", "spellId", "s1", "casterId", "b1"),
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
