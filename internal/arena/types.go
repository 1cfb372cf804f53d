package arena

import (
	"context"
	"fmt"
	"time"

	"github.com/creaturequest/pvp-server/internal/apperr"
	"github.com/creaturequest/pvp-server/internal/battle"
	"github.com/creaturequest/pvp-server/internal/repository"
)

// Notifier receives battle events once they are committed.
type Notifier interface {
	MatchFound(battleID, playerID, opponentID string)
	BattleUpdated(battleID string, playerIDs []string, res battle.Result)
	BattleCompleted(battleID string, playerIDs []string, winnerID string)
}

// Directory resolves display names for players.
type Directory interface {
	DisplayName(ctx context.Context, playerID string) string
}

// StaticDirectory is a fixed name table. Unknown players are shown as "Player <id>".
type StaticDirectory map[string]string

func (d StaticDirectory) DisplayName(_ context.Context, playerID string) string {
	if name, ok := d[playerID]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Player %s", playerID)
}

// Loadout is what a player submits when joining the queue.
type Loadout struct {
	Creatures []battle.Creature
	Tools     []battle.Tool
	Spells    []battle.Spell
}

// JoinStatus is the outcome of JoinQueue.
type JoinStatus string

const (
	JoinMatched JoinStatus = "matched"
	JoinQueued  JoinStatus = "queued"
)

// JoinResult describes either the battle that was created or the queued state.
type JoinResult struct {
	Status               JoinStatus
	BattleID             string
	OpponentID           string
	OpponentName         string
	OpponentRating       int
	EstimatedWaitSeconds int
}

// QueueState is what QueueStatus reports.
type QueueState string

const (
	QueueIdle    QueueState = "idle"
	QueueWaiting QueueState = "in_queue"
	QueueMatched QueueState = "matched"
)

// QueueStatusResult is the result of QueueStatus.
type QueueStatusResult struct {
	Status      QueueState
	WaitSeconds int
	BattleID    string
}

// Opponent is the other side of a battle as seen by a player.
type Opponent struct {
	ID     string
	Name   string
	Rating int
}

// BattleView is a battle as seen by one participant.
type BattleView struct {
	BattleID      string
	Status        battle.Status
	State         *battle.Battle
	IsPlayer1     bool
	IsYourTurn    bool
	TurnNumber    int
	Opponent      Opponent
	TimeRemaining time.Duration
}

// ActionOutcome is the result of SubmitAction and Forfeit.
type ActionOutcome struct {
	Status     battle.Status
	Result     battle.Result
	State      *battle.Battle
	IsYourTurn bool
	// Set once the battle is completed.
	IsWinner     bool
	IsDraw       bool
	RatingChange int
}

// RecentBattle is one row of a player's battle history.
type RecentBattle struct {
	BattleID     string
	OpponentID   string
	OpponentName string
	IsPlayer1    bool
	Won          bool
	Draw         bool
	RatingChange int
	TotalTurns   int
	Duration     time.Duration
	Forfeited    bool
	CompletedAt  time.Time
}

// Stats is a player's rating record with history and rank.
type Stats struct {
	Record        repository.RatingRecord
	Rank          int
	RankTitle     string
	RankColor     string
	WinRate       float64
	RecentBattles []RecentBattle
}

// TimeFilter restricts the leaderboard to recently active players.
type TimeFilter string

const (
	FilterAll   TimeFilter = "all"
	FilterWeek  TimeFilter = "week"
	FilterMonth TimeFilter = "month"
)

// ParseTimeFilter accepts all, week and month; empty means all.
func ParseTimeFilter(s string) (TimeFilter, error) {
	switch TimeFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterWeek, FilterMonth:
		return TimeFilter(s), nil
	}
	return "", apperr.InvalidAction("Unknown leaderboard filter: %s", s)
}

func (f TimeFilter) since(now time.Time) time.Time {
	switch f {
	case FilterWeek:
		return now.AddDate(0, 0, -7)
	case FilterMonth:
		return now.AddDate(0, 0, -30)
	}
	return time.Time{}
}

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Rank      int
	PlayerID  string
	Name      string
	Rating    int
	Wins      int
	Losses    int
	Draws     int
	WinRate   float64
	RankTitle string
	RankColor string
}

// Leaderboard is one page of ranked players.
type Leaderboard struct {
	Players      []LeaderboardEntry
	CurrentPage  int
	PerPage      int
	TotalPages   int
	TotalPlayers int
}

func winRate(r *repository.RatingRecord) float64 {
	total := r.TotalBattles()
	if total == 0 {
		return 0
	}
	return float64(r.Wins) / float64(total)
}
