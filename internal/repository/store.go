package repository

import (
	"context"
	"errors"
	"time"

	"github.com/creaturequest/pvp-server/internal/battle"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// DefaultRating is assigned to players on first access.
const DefaultRating = 1000

// BattleRecord is a persisted battle: indexing columns plus the encoded snapshot.
type BattleRecord struct {
	ID           string
	Player1ID    string
	Player2ID    string
	Status       battle.Status
	WinnerID     string
	State        []byte
	CreatedAt    time.Time
	LastActionAt time.Time
}

// RatingRecord is a player's rating and career counters.
type RatingRecord struct {
	PlayerID      string
	Rating        int
	Wins          int
	Losses        int
	Draws         int
	WinStreak     int
	BestWinStreak int
	DamageDealt   int
	DamageTaken   int
	LastBattleAt  time.Time
}

// TotalBattles is the number of completed battles.
func (r *RatingRecord) TotalBattles() int {
	return r.Wins + r.Losses + r.Draws
}

// HistoryRecord is written once per completed battle.
type HistoryRecord struct {
	BattleID            string
	Player1ID           string
	Player2ID           string
	WinnerID            string
	Player1RatingChange int
	Player2RatingChange int
	TotalTurns          int
	Duration            time.Duration
	Forfeited           bool
	CompletedAt         time.Time
}

// QueueEntry is a pending matchmaking request.
type QueueEntry struct {
	PlayerID   string
	Rating     int
	DeckPower  int
	EnqueuedAt time.Time
	Creatures  []battle.Creature
	Tools      []battle.Tool
	Spells     []battle.Spell
}

// LeaderboardQuery selects a page of ratings.
type LeaderboardQuery struct {
	// ActiveSince limits the result to players whose last battle is at or after it; zero means all.
	ActiveSince time.Time
	Offset      int
	Limit       int
}

// BattleStore persists battles.
type BattleStore interface {
	LoadBattle(ctx context.Context, id string) (*BattleRecord, error)
	// LockBattle loads a battle and holds it for the rest of the transaction.
	LockBattle(ctx context.Context, id string) (*BattleRecord, error)
	SaveBattle(ctx context.Context, rec *BattleRecord) error
	ActiveBattleFor(ctx context.Context, playerID string) (*BattleRecord, error)
	// IdleBattles lists active battles with no action since before.
	IdleBattles(ctx context.Context, before time.Time) ([]string, error)
}

// RatingStore persists rating records.
type RatingStore interface {
	// LoadRating returns the player's record, creating it with DefaultRating on first access.
	LoadRating(ctx context.Context, playerID string) (*RatingRecord, error)
	SaveRating(ctx context.Context, rec *RatingRecord) error
	CountRatingsAbove(ctx context.Context, rating int) (int, error)
	ListRatings(ctx context.Context, q LeaderboardQuery) ([]RatingRecord, int, error)
}

// HistoryStore persists completed battle summaries.
type HistoryStore interface {
	AppendHistory(ctx context.Context, rec *HistoryRecord) error
	RecentHistory(ctx context.Context, playerID string, limit int) ([]HistoryRecord, error)
}

// QueueStore persists matchmaking entries.
type QueueStore interface {
	LoadQueueEntry(ctx context.Context, playerID string) (*QueueEntry, error)
	SaveQueueEntry(ctx context.Context, entry *QueueEntry) error
	// DeleteQueueEntry removes the entry if present.
	DeleteQueueEntry(ctx context.Context, playerID string) error
	ListQueue(ctx context.Context) ([]QueueEntry, error)
	DeleteQueueBefore(ctx context.Context, before time.Time) (int, error)
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	BattleStore
	RatingStore
	HistoryStore
	QueueStore
	// LockQueue serializes queue mutations until the transaction ends.
	LockQueue(ctx context.Context) error
}

// Store is the persistence boundary of the arena.
type Store interface {
	BattleStore
	RatingStore
	HistoryStore
	QueueStore
	// RunInTx runs fn in a transaction; returning an error rolls everything back.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
