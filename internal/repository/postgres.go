package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creaturequest/pvp-server/internal/battle"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// queueLockKey identifies the advisory lock guarding the matchmaking queue.
const queueLockKey int64 = 0x5076_5051

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists everything in PostgreSQL.
type PostgresStore struct {
	pgStore
	db *DB
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*pgTx)(nil)
)

// NewPostgresStore creates a store over an open database.
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{pgStore: pgStore{q: db.Pool}, db: db}
}

// RunInTx implements Store.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{pgStore{q: tx, inTx: true}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.db.Close()
}

type pgTx struct {
	pgStore
}

func (t *pgTx) LockQueue(ctx context.Context) error {
	if _, err := t.q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", queueLockKey); err != nil {
		return fmt.Errorf("failed to lock queue: %w", err)
	}
	return nil
}

type pgStore struct {
	q    querier
	inTx bool
}

const battleColumns = `id, player1_id, player2_id, status, COALESCE(winner_id, ''), state, created_at, last_action_at`

func scanBattle(row pgx.Row) (*BattleRecord, error) {
	var (
		rec    BattleRecord
		status string
	)
	err := row.Scan(&rec.ID, &rec.Player1ID, &rec.Player2ID, &status, &rec.WinnerID, &rec.State, &rec.CreatedAt, &rec.LastActionAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan battle: %w", err)
	}
	rec.Status = battle.Status(status)
	return &rec, nil
}

func (s *pgStore) LoadBattle(ctx context.Context, id string) (*BattleRecord, error) {
	return scanBattle(s.q.QueryRow(ctx, `SELECT `+battleColumns+` FROM pvp_battles WHERE id = $1`, id))
}

func (s *pgStore) LockBattle(ctx context.Context, id string) (*BattleRecord, error) {
	sql := `SELECT ` + battleColumns + ` FROM pvp_battles WHERE id = $1`
	if s.inTx {
		sql += ` FOR UPDATE`
	}
	return scanBattle(s.q.QueryRow(ctx, sql, id))
}

func (s *pgStore) SaveBattle(ctx context.Context, rec *BattleRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO pvp_battles (id, player1_id, player2_id, status, winner_id, state, created_at, last_action_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			winner_id = EXCLUDED.winner_id,
			state = EXCLUDED.state,
			last_action_at = EXCLUDED.last_action_at`,
		rec.ID, rec.Player1ID, rec.Player2ID, string(rec.Status), rec.WinnerID, rec.State, rec.CreatedAt, rec.LastActionAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save battle %s: %w", rec.ID, err)
	}
	return nil
}

func (s *pgStore) ActiveBattleFor(ctx context.Context, playerID string) (*BattleRecord, error) {
	return scanBattle(s.q.QueryRow(ctx, `
		SELECT `+battleColumns+` FROM pvp_battles
		WHERE status = 'active' AND (player1_id = $1 OR player2_id = $1)
		ORDER BY created_at DESC LIMIT 1`, playerID))
}

func (s *pgStore) IdleBattles(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id FROM pvp_battles
		WHERE status = 'active' AND last_action_at < $1
		ORDER BY id`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle battles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read idle battles: %w", err)
	}
	return ids, nil
}

const ratingColumns = `player_id, rating, wins, losses, draws, win_streak, best_win_streak, damage_dealt, damage_taken, last_battle_at`

func scanRating(row pgx.Row) (*RatingRecord, error) {
	var (
		rec  RatingRecord
		last *time.Time
	)
	err := row.Scan(&rec.PlayerID, &rec.Rating, &rec.Wins, &rec.Losses, &rec.Draws,
		&rec.WinStreak, &rec.BestWinStreak, &rec.DamageDealt, &rec.DamageTaken, &last)
	if err != nil {
		return nil, err
	}
	if last != nil {
		rec.LastBattleAt = *last
	}
	return &rec, nil
}

func (s *pgStore) LoadRating(ctx context.Context, playerID string) (*RatingRecord, error) {
	if _, err := s.q.Exec(ctx, `
		INSERT INTO pvp_ratings (player_id, rating) VALUES ($1, $2)
		ON CONFLICT (player_id) DO NOTHING`, playerID, DefaultRating); err != nil {
		return nil, fmt.Errorf("failed to create rating for %s: %w", playerID, err)
	}
	sql := `SELECT ` + ratingColumns + ` FROM pvp_ratings WHERE player_id = $1`
	if s.inTx {
		sql += ` FOR UPDATE`
	}
	rec, err := scanRating(s.q.QueryRow(ctx, sql, playerID))
	if err != nil {
		return nil, fmt.Errorf("failed to load rating for %s: %w", playerID, err)
	}
	return rec, nil
}

func (s *pgStore) SaveRating(ctx context.Context, rec *RatingRecord) error {
	var last *time.Time
	if !rec.LastBattleAt.IsZero() {
		last = &rec.LastBattleAt
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO pvp_ratings (`+ratingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (player_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			win_streak = EXCLUDED.win_streak,
			best_win_streak = EXCLUDED.best_win_streak,
			damage_dealt = EXCLUDED.damage_dealt,
			damage_taken = EXCLUDED.damage_taken,
			last_battle_at = EXCLUDED.last_battle_at`,
		rec.PlayerID, rec.Rating, rec.Wins, rec.Losses, rec.Draws,
		rec.WinStreak, rec.BestWinStreak, rec.DamageDealt, rec.DamageTaken, last,
	)
	if err != nil {
		return fmt.Errorf("failed to save rating for %s: %w", rec.PlayerID, err)
	}
	return nil
}

func (s *pgStore) CountRatingsAbove(ctx context.Context, rating int) (int, error) {
	var n int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM pvp_ratings WHERE rating > $1`, rating).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return n, nil
}

func (s *pgStore) ListRatings(ctx context.Context, q LeaderboardQuery) ([]RatingRecord, int, error) {
	var since *time.Time
	if !q.ActiveSince.IsZero() {
		since = &q.ActiveSince
	}
	const filter = `WHERE ($1::timestamptz IS NULL OR last_battle_at >= $1)`

	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM pvp_ratings `+filter, since).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leaderboard: %w", err)
	}

	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+ratingColumns+` FROM pvp_ratings `+filter+`
		ORDER BY rating DESC, wins DESC, player_id
		LIMIT $2 OFFSET $3`, since, limit, max(q.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []RatingRecord
	for rows.Next() {
		rec, err := scanRating(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	return out, total, nil
}

func (s *pgStore) AppendHistory(ctx context.Context, rec *HistoryRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO pvp_battle_history (battle_id, player1_id, player2_id, winner_id,
			player1_rating_change, player2_rating_change, total_turns, duration_ms, forfeited, completed_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)`,
		rec.BattleID, rec.Player1ID, rec.Player2ID, rec.WinnerID,
		rec.Player1RatingChange, rec.Player2RatingChange, rec.TotalTurns,
		rec.Duration.Milliseconds(), rec.Forfeited, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", rec.BattleID, err)
	}
	return nil
}

func (s *pgStore) RecentHistory(ctx context.Context, playerID string, limit int) ([]HistoryRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT battle_id, player1_id, player2_id, COALESCE(winner_id, ''),
			player1_rating_change, player2_rating_change, total_turns, duration_ms, forfeited, completed_at
		FROM pvp_battle_history
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			h  HistoryRecord
			ms int64
		)
		if err := rows.Scan(&h.BattleID, &h.Player1ID, &h.Player2ID, &h.WinnerID,
			&h.Player1RatingChange, &h.Player2RatingChange, &h.TotalTurns, &ms, &h.Forfeited, &h.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return out, nil
}

// queueLoadout is the JSON column holding a queued player's selections.
type queueLoadout struct {
	Creatures []battle.Creature `json:"creatures"`
	Tools     []battle.Tool     `json:"tools"`
	Spells    []battle.Spell    `json:"spells"`
}

const queueColumns = `player_id, rating, deck_power, enqueued_at, loadout`

func scanQueueEntry(row pgx.Row) (*QueueEntry, error) {
	var (
		e   QueueEntry
		raw []byte
	)
	if err := row.Scan(&e.PlayerID, &e.Rating, &e.DeckPower, &e.EnqueuedAt, &raw); err != nil {
		return nil, err
	}
	var l queueLoadout
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("failed to decode loadout for %s: %w", e.PlayerID, err)
	}
	e.Creatures, e.Tools, e.Spells = l.Creatures, l.Tools, l.Spells
	return &e, nil
}

func (s *pgStore) LoadQueueEntry(ctx context.Context, playerID string) (*QueueEntry, error) {
	e, err := scanQueueEntry(s.q.QueryRow(ctx, `SELECT `+queueColumns+` FROM pvp_queue WHERE player_id = $1`, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entry for %s: %w", playerID, err)
	}
	return e, nil
}

func (s *pgStore) SaveQueueEntry(ctx context.Context, e *QueueEntry) error {
	raw, err := json.Marshal(queueLoadout{Creatures: e.Creatures, Tools: e.Tools, Spells: e.Spells})
	if err != nil {
		return fmt.Errorf("failed to encode loadout for %s: %w", e.PlayerID, err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO pvp_queue (`+queueColumns+`) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			deck_power = EXCLUDED.deck_power,
			enqueued_at = EXCLUDED.enqueued_at,
			loadout = EXCLUDED.loadout`,
		e.PlayerID, e.Rating, e.DeckPower, e.EnqueuedAt, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to save queue entry for %s: %w", e.PlayerID, err)
	}
	return nil
}

func (s *pgStore) DeleteQueueEntry(ctx context.Context, playerID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM pvp_queue WHERE player_id = $1`, playerID); err != nil {
		return fmt.Errorf("failed to delete queue entry for %s: %w", playerID, err)
	}
	return nil
}

func (s *pgStore) ListQueue(ctx context.Context) ([]QueueEntry, error) {
	rows, err := s.q.Query(ctx, `SELECT `+queueColumns+` FROM pvp_queue ORDER BY enqueued_at, player_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var out []QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	return out, nil
}

func (s *pgStore) DeleteQueueBefore(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM pvp_queue WHERE enqueued_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to evict queue entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
