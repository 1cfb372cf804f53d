package arena

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creaturequest/pvp-server/internal/apperr"
	"github.com/creaturequest/pvp-server/internal/battle"
	"github.com/creaturequest/pvp-server/internal/repository"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu        sync.Mutex
	matches   []string
	updates   []battle.Result
	completed []string
}

func (n *recordingNotifier) MatchFound(battleID, playerID, opponentID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matches = append(n.matches, playerID+"->"+opponentID)
}

func (n *recordingNotifier) BattleUpdated(battleID string, playerIDs []string, res battle.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, res)
}

func (n *recordingNotifier) BattleCompleted(battleID string, playerIDs []string, winnerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, winnerID)
}

type fixture struct {
	svc      *Service
	store    *repository.MemoryStore
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(testStart)
	notifier := &recordingNotifier{}
	var seq atomic.Int64
	svc := NewService(store, Options{
		Directory: StaticDirectory{"alice": "Alice", "bob": "Bob"},
		Notifier:  notifier,
		Now:       clock.Now,
		NewID:     func() string { return fmt.Sprintf("battle-%d", seq.Add(1)) },
	}, zaptest.NewLogger(t))
	return &fixture{svc: svc, store: store, clock: clock, notifier: notifier}
}

func creature(id string) battle.Creature {
	return battle.Creature{
		ID:          id,
		SpeciesName: "Species " + id,
		Stats:       battle.Stats{Energy: 10, Strength: 10, Magic: 5, Stamina: 10, Speed: 10},
		BattleStats: battle.BattleStats{
			PhysicalAttack:  20,
			MagicalAttack:   10,
			PhysicalDefense: 10,
			MagicalDefense:  5,
			MaxHealth:       50,
		},
	}
}

func loadout(ids ...string) Loadout {
	l := Loadout{}
	for _, id := range ids {
		l.Creatures = append(l.Creatures, creature(id))
	}
	return l
}

// startBattle queues alice, then matches bob against her. Bob acts first.
func (f *fixture) startBattle(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.JoinQueue(ctx, "alice", loadout("a1"))
	require.NoError(t, err)
	require.Equal(t, JoinQueued, res.Status)

	res, err = f.svc.JoinQueue(ctx, "bob", loadout("b1"))
	require.NoError(t, err)
	require.Equal(t, JoinMatched, res.Status)
	return res.BattleID
}

func (f *fixture) act(t *testing.T, playerID, battleID string, a battle.Action) ActionOutcome {
	t.Helper()
	out, err := f.svc.SubmitAction(context.Background(), playerID, battleID, a)
	require.NoError(t, err)
	return out
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error kind for %v", err)
}

// TestJoinQueueMatchesWaitingPlayer verifies the second player is matched
// with the first and both are notified.
func TestJoinQueueMatchesWaitingPlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.JoinQueue(ctx, "alice", loadout("a1", "a2"))
	require.NoError(t, err)
	assert.Equal(t, JoinQueued, res.Status)
	assert.Equal(t, 30, res.EstimatedWaitSeconds)

	res, err = f.svc.JoinQueue(ctx, "bob", loadout("b1", "b2"))
	require.NoError(t, err)
	assert.Equal(t, JoinMatched, res.Status)
	assert.Equal(t, "alice", res.OpponentID)
	assert.Equal(t, "Alice", res.OpponentName)
	assert.Equal(t, repository.DefaultRating, res.OpponentRating)

	queue, err := f.store.ListQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	view, err := f.svc.GetBattle(ctx, "bob", res.BattleID)
	require.NoError(t, err)
	assert.True(t, view.IsPlayer1)
	assert.True(t, view.IsYourTurn)
	assert.Equal(t, 1, view.TurnNumber)
	assert.Equal(t, "Bob", view.State.Player1.Name)
	assert.Len(t, view.State.Player1.Hand, 2)

	assert.ElementsMatch(t, []string{"bob->alice", "alice->bob"}, f.notifier.matches)
}

// TestJoinQueueValidation verifies requests are rejected before touching the queue.
func TestJoinQueueValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.JoinQueue(ctx, "", loadout("a1"))
	requireKind(t, err, apperr.KindNotAuthenticated)

	_, err = f.svc.JoinQueue(ctx, "alice", Loadout{})
	requireKind(t, err, apperr.KindInvalidAction)

	cases := []struct {
		name   string
		mutate func(*Loadout)
	}{
		{"no health", func(l *Loadout) { l.Creatures[0].BattleStats.MaxHealth = 0 }},
		{"negative energy", func(l *Loadout) { l.Creatures[0].Stats.Energy = -500 }},
		{"negative combination level", func(l *Loadout) { l.Creatures[0].CombinationLevel = -10 }},
		{"duplicate creature", func(l *Loadout) { l.Creatures[1].ID = l.Creatures[0].ID }},
		{"duplicate tool", func(l *Loadout) {
			l.Tools = []battle.Tool{{ID: "t1", Effect: battle.ToolShield}, {ID: "t1", Effect: battle.ToolSurge}}
		}},
		{"duplicate spell", func(l *Loadout) {
			l.Spells = []battle.Spell{{ID: "s1", Effect: battle.SpellAOE}, {ID: "s1", Effect: battle.SpellAOE}}
		}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			l := loadout("n1", "n2")
			tt.mutate(&l)
			_, err := f.svc.JoinQueue(ctx, "alice", l)
			requireKind(t, err, apperr.KindInvalidAction)
		})
	}

	queue, err := f.store.ListQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

// TestJoinQueueSkipsSharedCreatureIDs verifies players whose decks share a
// creature id are never put in the same battle.
func TestJoinQueueSkipsSharedCreatureIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.JoinQueue(ctx, "alice", loadout("x"))
	require.NoError(t, err)
	require.Equal(t, JoinQueued, res.Status)

	res, err = f.svc.JoinQueue(ctx, "bob", loadout("x"))
	require.NoError(t, err)
	assert.Equal(t, JoinQueued, res.Status)

	queue, err := f.store.ListQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	res, err = f.svc.JoinQueue(ctx, "carol", loadout("c1"))
	require.NoError(t, err)
	assert.Equal(t, JoinMatched, res.Status)
}

// TestJoinQueueRejectsPlayerInBattle verifies a player cannot queue while a battle is active.
func TestJoinQueueRejectsPlayerInBattle(t *testing.T) {
	f := newFixture(t)
	f.startBattle(t)

	_, err := f.svc.JoinQueue(context.Background(), "alice", loadout("a9"))
	requireKind(t, err, apperr.KindRuleViolation)
}

// TestJoinQueueReplacesOwnEntry verifies re-joining does not match a player with themselves.
func TestJoinQueueReplacesOwnEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.svc.JoinQueue(ctx, "alice", loadout("a1"))
		require.NoError(t, err)
		assert.Equal(t, JoinQueued, res.Status)
	}
	queue, err := f.store.ListQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

// TestQueueStatusAndCancel verifies the idle, waiting and matched states.
func TestQueueStatusAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.QueueStatus(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, QueueIdle, st.Status)

	_, err = f.svc.JoinQueue(ctx, "alice", loadout("a1"))
	require.NoError(t, err)
	f.clock.Advance(12 * time.Second)

	st, err = f.svc.QueueStatus(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, QueueWaiting, st.Status)
	assert.Equal(t, 12, st.WaitSeconds)

	require.NoError(t, f.svc.CancelQueue(ctx, "alice"))
	require.NoError(t, f.svc.CancelQueue(ctx, "alice"))
	st, err = f.svc.QueueStatus(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, QueueIdle, st.Status)

	id := f.startBattle(t)
	st, err = f.svc.QueueStatus(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, QueueMatched, st.Status)
	assert.Equal(t, id, st.BattleID)

	_, err = f.svc.QueueStatus(ctx, "")
	requireKind(t, err, apperr.KindNotAuthenticated)
}

// TestFullBattleSettlesRatings plays a battle to completion and checks the
// rating, counters, history and notifications it leaves behind.
func TestFullBattleSettlesRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startBattle(t)

	f.act(t, "bob", id, battle.Deploy{CreatureID: "b1"})
	f.act(t, "bob", id, battle.EndTurn{})
	f.act(t, "alice", id, battle.Deploy{CreatureID: "a1"})
	out := f.act(t, "alice", id, battle.EndTurn{})
	assert.False(t, out.IsYourTurn)
	assert.Equal(t, 2, out.Result.Turn)

	for i := 0; i < 3; i++ {
		out = f.act(t, "bob", id, battle.Attack{AttackerID: "b1", TargetID: "a1"})
		assert.Equal(t, 15, out.Result.Damage)
		assert.Equal(t, battle.StatusActive, out.Status)
	}
	f.clock.Advance(90 * time.Second)
	out = f.act(t, "bob", id, battle.Attack{AttackerID: "b1", TargetID: "a1"})

	assert.Equal(t, battle.StatusCompleted, out.Status)
	assert.True(t, out.Result.TargetDefeated)
	assert.True(t, out.IsWinner)
	assert.False(t, out.IsDraw)
	assert.Equal(t, 16, out.RatingChange)
	assert.Equal(t, "bob", out.State.WinnerID)
	assert.Equal(t, 3, out.State.Player1.Energy)

	bob, err := f.svc.GetStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1016, bob.Record.Rating)
	assert.Equal(t, 1, bob.Record.Wins)
	assert.Equal(t, 1, bob.Record.WinStreak)
	assert.Equal(t, 1, bob.Record.BestWinStreak)
	assert.Equal(t, 60, bob.Record.DamageDealt)
	assert.Equal(t, 1, bob.Rank)
	assert.Equal(t, "Gold", bob.RankTitle)
	assert.InDelta(t, 1.0, bob.WinRate, 1e-9)
	require.Len(t, bob.RecentBattles, 1)
	assert.Equal(t, "alice", bob.RecentBattles[0].OpponentID)
	assert.Equal(t, "Alice", bob.RecentBattles[0].OpponentName)
	assert.True(t, bob.RecentBattles[0].Won)
	assert.Equal(t, 90*time.Second, bob.RecentBattles[0].Duration)

	alice, err := f.svc.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 984, alice.Record.Rating)
	assert.Equal(t, 1, alice.Record.Losses)
	assert.Equal(t, 60, alice.Record.DamageTaken)
	assert.Equal(t, 2, alice.Rank)
	assert.Equal(t, "Silver", alice.RankTitle)
	require.Len(t, alice.RecentBattles, 1)
	assert.Equal(t, -16, alice.RecentBattles[0].RatingChange)
	assert.False(t, alice.RecentBattles[0].IsPlayer1)

	view, err := f.svc.GetBattle(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, battle.StatusCompleted, view.Status)
	assert.False(t, view.IsYourTurn)
	assert.Zero(t, view.TimeRemaining)
	assert.Equal(t, 1016, view.Opponent.Rating)

	assert.Equal(t, []string{"bob"}, f.notifier.completed)
	assert.Len(t, f.notifier.updates, 8)

	_, err = f.svc.SubmitAction(ctx, "bob", id, battle.EndTurn{})
	requireKind(t, err, apperr.KindRuleViolation)

	st, err := f.svc.QueueStatus(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, QueueIdle, st.Status)
}

// TestSubmitActionRejectionsLeaveStateUnchanged verifies failed actions are not persisted.
func TestSubmitActionRejectionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startBattle(t)

	before, err := f.store.LoadBattle(ctx, id)
	require.NoError(t, err)

	_, err = f.svc.SubmitAction(ctx, "alice", id, battle.EndTurn{})
	requireKind(t, err, apperr.KindRuleViolation)
	assert.Equal(t, "Not your turn", apperr.Reason(err))

	_, err = f.svc.SubmitAction(ctx, "bob", id, battle.Unknown{Name: "dance"})
	requireKind(t, err, apperr.KindInvalidAction)

	_, err = f.svc.SubmitAction(ctx, "bob", id, battle.Deploy{CreatureID: "a1"})
	requireKind(t, err, apperr.KindRuleViolation)

	_, err = f.svc.SubmitAction(ctx, "mallory", id, battle.EndTurn{})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.SubmitAction(ctx, "bob", "missing", battle.EndTurn{})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.SubmitAction(ctx, "alice", id, nil)
	requireKind(t, err, apperr.KindRuleViolation)
	assert.Equal(t, "Not your turn", apperr.Reason(err))

	_, err = f.svc.SubmitAction(ctx, "bob", id, nil)
	requireKind(t, err, apperr.KindInvalidAction)

	after, err := f.store.LoadBattle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.State, after.State)
	assert.Empty(t, f.notifier.updates)
}

// TestGetBattle verifies access control and the turn clock.
func TestGetBattle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startBattle(t)

	f.clock.Advance(20 * time.Second)
	view, err := f.svc.GetBattle(ctx, "alice", id)
	require.NoError(t, err)
	assert.False(t, view.IsPlayer1)
	assert.False(t, view.IsYourTurn)
	assert.Equal(t, "bob", view.Opponent.ID)
	assert.Equal(t, "Bob", view.Opponent.Name)
	assert.Equal(t, 40*time.Second, view.TimeRemaining)

	f.clock.Advance(5 * time.Minute)
	view, err = f.svc.GetBattle(ctx, "alice", id)
	require.NoError(t, err)
	assert.Zero(t, view.TimeRemaining)

	_, err = f.svc.GetBattle(ctx, "mallory", id)
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.GetBattle(ctx, "alice", "missing")
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.GetBattle(ctx, "", id)
	requireKind(t, err, apperr.KindNotAuthenticated)
}

// TestForfeitUsesReducedK verifies forfeits settle with the forfeit K-factor.
func TestForfeitUsesReducedK(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startBattle(t)

	out, err := f.svc.Forfeit(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, battle.StatusCompleted, out.Status)
	assert.Equal(t, battle.EventForfeited, out.Result.Event)
	assert.False(t, out.IsWinner)
	assert.Equal(t, -8, out.RatingChange)

	bob, err := f.svc.GetStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1008, bob.Record.Rating)
	require.Len(t, bob.RecentBattles, 1)
	assert.True(t, bob.RecentBattles[0].Forfeited)

	_, err = f.svc.Forfeit(ctx, "bob", id)
	requireKind(t, err, apperr.KindRuleViolation)
	_, err = f.svc.Forfeit(ctx, "mallory", id)
	requireKind(t, err, apperr.KindNotFound)
}

// TestLoserRatingFloorIsRecorded verifies the recorded change is the one
// actually applied when the loser's rating hits zero.
func TestLoserRatingFloorIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveRating(ctx, &repository.RatingRecord{PlayerID: "alice", Rating: 0}))
	require.NoError(t, f.store.SaveRating(ctx, &repository.RatingRecord{PlayerID: "bob", Rating: 10}))
	id := f.startBattle(t)

	out, err := f.svc.Forfeit(ctx, "alice", id)
	require.NoError(t, err)
	assert.Zero(t, out.RatingChange)

	alice, err := f.svc.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, alice.Record.Rating)
	require.Len(t, alice.RecentBattles, 1)
	assert.Zero(t, alice.RecentBattles[0].RatingChange)

	bob, err := f.svc.GetStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 18, bob.Record.Rating)
	require.Len(t, bob.RecentBattles, 1)
	assert.Equal(t, 8, bob.RecentBattles[0].RatingChange)
}

// lockOrderStore records the order rating rows are loaded inside transactions.
type lockOrderStore struct {
	repository.Store
	mu    sync.Mutex
	loads []string
}

func (s *lockOrderStore) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.RunInTx(ctx, func(tx repository.Tx) error {
		return fn(&lockOrderTx{Tx: tx, store: s})
	})
}

func (s *lockOrderStore) reset() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	loads := s.loads
	s.loads = nil
	return loads
}

type lockOrderTx struct {
	repository.Tx
	store *lockOrderStore
}

func (tx *lockOrderTx) LoadRating(ctx context.Context, playerID string) (*repository.RatingRecord, error) {
	tx.store.mu.Lock()
	tx.store.loads = append(tx.store.loads, playerID)
	tx.store.mu.Unlock()
	return tx.Tx.LoadRating(ctx, playerID)
}

// TestSettleLocksRatingsInIDOrder verifies rating rows are taken in player id
// order regardless of which side each player is on.
func TestSettleLocksRatingsInIDOrder(t *testing.T) {
	store := &lockOrderStore{Store: repository.NewMemoryStore()}
	svc := NewService(store, Options{}, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := svc.JoinQueue(ctx, "alice", loadout("a1"))
	require.NoError(t, err)
	res, err := svc.JoinQueue(ctx, "bob", loadout("b1"))
	require.NoError(t, err)
	require.Equal(t, JoinMatched, res.Status)

	view, err := svc.GetBattle(ctx, "bob", res.BattleID)
	require.NoError(t, err)
	require.True(t, view.IsPlayer1)

	store.reset()
	_, err = svc.Forfeit(ctx, "bob", res.BattleID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, store.reset())
}

// TestForfeitIdle verifies idle battles are forfeited by the player to move.
func TestForfeitIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startBattle(t)

	f.clock.Advance(time.Minute)
	ids, err := f.svc.ForfeitIdle(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, ids)

	f.clock.Advance(2 * time.Minute)
	ids, err = f.svc.ForfeitIdle(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	view, err := f.svc.GetBattle(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, battle.StatusCompleted, view.Status)
	assert.Equal(t, "bob", view.State.ForfeitedBy)
	assert.Equal(t, "alice", view.State.WinnerID)

	ids, err = f.svc.ForfeitIdle(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TestEvictStaleQueue verifies only old entries are dropped.
func TestEvictStaleQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.JoinQueue(ctx, "alice", loadout("a1"))
	require.NoError(t, err)
	f.clock.Advance(8 * time.Minute)

	strong := loadout("c1")
	strong.Creatures[0].Rarity = "legendary"
	strong.Creatures[0].Form = 3
	strong.Creatures[0].Stats = battle.Stats{Energy: 100, Strength: 100, Magic: 100, Stamina: 100, Speed: 100}
	res, err := f.svc.JoinQueue(ctx, "carol", strong)
	require.NoError(t, err)
	require.Equal(t, JoinQueued, res.Status)

	f.clock.Advance(3 * time.Minute)
	n, err := f.svc.EvictStaleQueue(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	queue, err := f.store.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "carol", queue[0].PlayerID)
}

// TestConcurrentEndTurnIsSerialized verifies only one of many racing actions
// for the same turn is applied.
func TestConcurrentEndTurnIsSerialized(t *testing.T) {
	f := newFixture(t)
	id := f.startBattle(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.SubmitAction(context.Background(), "bob", id, battle.EndTurn{}); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	view, err := f.svc.GetBattle(context.Background(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.State.ActivePlayer)
	assert.Equal(t, 0, f.svc.locks.size())
}

// TestLeaderboard verifies ordering, paging and the activity filter.
func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := []repository.RatingRecord{
		{PlayerID: "alice", Rating: 1300, Wins: 6, Losses: 2, LastBattleAt: testStart.AddDate(0, 0, -2)},
		{PlayerID: "bob", Rating: 1300, Wins: 4, LastBattleAt: testStart.AddDate(0, 0, -20)},
		{PlayerID: "carol", Rating: 2400, Wins: 1, LastBattleAt: testStart.AddDate(0, 0, -60)},
		{PlayerID: "dave", Rating: 700, Losses: 3, LastBattleAt: testStart},
	}
	for i := range seed {
		require.NoError(t, f.store.SaveRating(ctx, &seed[i]))
	}

	lb, err := f.svc.GetLeaderboard(ctx, 1, 2, FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 4, lb.TotalPlayers)
	assert.Equal(t, 2, lb.TotalPages)
	require.Len(t, lb.Players, 2)
	assert.Equal(t, "carol", lb.Players[0].PlayerID)
	assert.Equal(t, "Grandmaster", lb.Players[0].RankTitle)
	assert.Equal(t, "#FF4500", lb.Players[0].RankColor)
	assert.Equal(t, "alice", lb.Players[1].PlayerID)
	assert.Equal(t, "Alice", lb.Players[1].Name)
	assert.InDelta(t, 0.75, lb.Players[1].WinRate, 1e-9)

	lb, err = f.svc.GetLeaderboard(ctx, 2, 2, FilterAll)
	require.NoError(t, err)
	require.Len(t, lb.Players, 2)
	assert.Equal(t, 3, lb.Players[0].Rank)
	assert.Equal(t, "bob", lb.Players[0].PlayerID)
	assert.Equal(t, "dave", lb.Players[1].PlayerID)
	assert.Equal(t, "Bronze", lb.Players[1].RankTitle)

	lb, err = f.svc.GetLeaderboard(ctx, 1, 20, FilterWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, lb.TotalPlayers)

	lb, err = f.svc.GetLeaderboard(ctx, 1, 20, FilterMonth)
	require.NoError(t, err)
	assert.Equal(t, 3, lb.TotalPlayers)

	lb, err = f.svc.GetLeaderboard(ctx, 0, 1000, FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 1, lb.CurrentPage)
	assert.Equal(t, 100, lb.PerPage)
	assert.Equal(t, 1, lb.TotalPages)

	lb, err = f.svc.GetLeaderboard(ctx, 1, 0, FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 20, lb.PerPage)
}

// TestParseTimeFilter verifies accepted filter names.
func TestParseTimeFilter(t *testing.T) {
	for in, want := range map[string]TimeFilter{"": FilterAll, "all": FilterAll, "week": FilterWeek, "month": FilterMonth} {
		got, err := ParseTimeFilter(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTimeFilter("year")
	requireKind(t, err, apperr.KindInvalidAction)
}

// TestGetStatsNewPlayer verifies a first lookup creates a default record.
func TestGetStatsNewPlayer(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.GetStats(context.Background(), "newbie")
	require.NoError(t, err)
	assert.Equal(t, repository.DefaultRating, st.Record.Rating)
	assert.Equal(t, 1, st.Rank)
	assert.Equal(t, "Gold", st.RankTitle)
	assert.Zero(t, st.WinRate)
	assert.Empty(t, st.RecentBattles)
}
