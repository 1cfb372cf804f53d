package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/creaturequest/pvp-server/internal/battle"
)

// MemoryStore keeps everything in process memory. Transactions are
// serialized and run against a copy that replaces the live data on commit.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memoryTx)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

// RunInTx implements Store.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memoryTx{memoryData: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() {}

func (s *MemoryStore) LoadBattle(ctx context.Context, id string) (*BattleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LoadBattle(ctx, id)
}

func (s *MemoryStore) LockBattle(ctx context.Context, id string) (*BattleRecord, error) {
	return s.LoadBattle(ctx, id)
}

func (s *MemoryStore) SaveBattle(ctx context.Context, rec *BattleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SaveBattle(ctx, rec)
}

func (s *MemoryStore) ActiveBattleFor(ctx context.Context, playerID string) (*BattleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ActiveBattleFor(ctx, playerID)
}

func (s *MemoryStore) IdleBattles(ctx context.Context, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.IdleBattles(ctx, before)
}

func (s *MemoryStore) LoadRating(ctx context.Context, playerID string) (*RatingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LoadRating(ctx, playerID)
}

func (s *MemoryStore) SaveRating(ctx context.Context, rec *RatingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SaveRating(ctx, rec)
}

func (s *MemoryStore) CountRatingsAbove(ctx context.Context, rating int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.CountRatingsAbove(ctx, rating)
}

func (s *MemoryStore) ListRatings(ctx context.Context, q LeaderboardQuery) ([]RatingRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListRatings(ctx, q)
}

func (s *MemoryStore) AppendHistory(ctx context.Context, rec *HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AppendHistory(ctx, rec)
}

func (s *MemoryStore) RecentHistory(ctx context.Context, playerID string, limit int) ([]HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.RecentHistory(ctx, playerID, limit)
}

func (s *MemoryStore) LoadQueueEntry(ctx context.Context, playerID string) (*QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LoadQueueEntry(ctx, playerID)
}

func (s *MemoryStore) SaveQueueEntry(ctx context.Context, entry *QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SaveQueueEntry(ctx, entry)
}

func (s *MemoryStore) DeleteQueueEntry(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DeleteQueueEntry(ctx, playerID)
}

func (s *MemoryStore) ListQueue(ctx context.Context) ([]QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListQueue(ctx)
}

func (s *MemoryStore) DeleteQueueBefore(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DeleteQueueBefore(ctx, before)
}

type memoryTx struct {
	*memoryData
}

// LockQueue is a no-op: memory transactions are already exclusive.
func (tx *memoryTx) LockQueue(ctx context.Context) error { return nil }

type memoryData struct {
	battles map[string]BattleRecord
	ratings map[string]RatingRecord
	history []HistoryRecord
	queue   map[string]QueueEntry
}

func newMemoryData() *memoryData {
	return &memoryData{
		battles: make(map[string]BattleRecord),
		ratings: make(map[string]RatingRecord),
		queue:   make(map[string]QueueEntry),
	}
}

// clone copies the maps; stored values are never mutated in place.
func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		battles: make(map[string]BattleRecord, len(d.battles)),
		ratings: make(map[string]RatingRecord, len(d.ratings)),
		history: append([]HistoryRecord(nil), d.history...),
		queue:   make(map[string]QueueEntry, len(d.queue)),
	}
	for k, v := range d.battles {
		c.battles[k] = v
	}
	for k, v := range d.ratings {
		c.ratings[k] = v
	}
	for k, v := range d.queue {
		c.queue[k] = v
	}
	return c
}

func (d *memoryData) LoadBattle(_ context.Context, id string) (*BattleRecord, error) {
	rec, ok := d.battles[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.State = append([]byte(nil), rec.State...)
	return &rec, nil
}

func (d *memoryData) LockBattle(ctx context.Context, id string) (*BattleRecord, error) {
	return d.LoadBattle(ctx, id)
}

func (d *memoryData) SaveBattle(_ context.Context, rec *BattleRecord) error {
	stored := *rec
	stored.State = append([]byte(nil), rec.State...)
	d.battles[rec.ID] = stored
	return nil
}

func (d *memoryData) ActiveBattleFor(_ context.Context, playerID string) (*BattleRecord, error) {
	var found *BattleRecord
	for _, rec := range d.battles {
		if rec.Status != battle.StatusActive || (rec.Player1ID != playerID && rec.Player2ID != playerID) {
			continue
		}
		if found == nil || rec.CreatedAt.After(found.CreatedAt) {
			r := rec
			found = &r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	found.State = append([]byte(nil), found.State...)
	return found, nil
}

func (d *memoryData) IdleBattles(_ context.Context, before time.Time) ([]string, error) {
	var ids []string
	for _, rec := range d.battles {
		if rec.Status == battle.StatusActive && rec.LastActionAt.Before(before) {
			ids = append(ids, rec.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *memoryData) LoadRating(_ context.Context, playerID string) (*RatingRecord, error) {
	rec, ok := d.ratings[playerID]
	if !ok {
		rec = RatingRecord{PlayerID: playerID, Rating: DefaultRating}
		d.ratings[playerID] = rec
	}
	return &rec, nil
}

func (d *memoryData) SaveRating(_ context.Context, rec *RatingRecord) error {
	d.ratings[rec.PlayerID] = *rec
	return nil
}

func (d *memoryData) CountRatingsAbove(_ context.Context, rating int) (int, error) {
	n := 0
	for _, rec := range d.ratings {
		if rec.Rating > rating {
			n++
		}
	}
	return n, nil
}

func (d *memoryData) ListRatings(_ context.Context, q LeaderboardQuery) ([]RatingRecord, int, error) {
	all := make([]RatingRecord, 0, len(d.ratings))
	for _, rec := range d.ratings {
		if !q.ActiveSince.IsZero() && rec.LastBattleAt.Before(q.ActiveSince) {
			continue
		}
		all = append(all, rec)
	}
	SortLeaderboard(all)

	total := len(all)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return append([]RatingRecord(nil), all[start:end]...), total, nil
}

// SortLeaderboard orders by rating, then wins, then player id.
func SortLeaderboard(recs []RatingRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.PlayerID < b.PlayerID
	})
}

func (d *memoryData) AppendHistory(_ context.Context, rec *HistoryRecord) error {
	d.history = append(d.history, *rec)
	return nil
}

func (d *memoryData) RecentHistory(_ context.Context, playerID string, limit int) ([]HistoryRecord, error) {
	var out []HistoryRecord
	for i := len(d.history) - 1; i >= 0; i-- {
		h := d.history[i]
		if h.Player1ID != playerID && h.Player2ID != playerID {
			continue
		}
		out = append(out, h)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (d *memoryData) LoadQueueEntry(_ context.Context, playerID string) (*QueueEntry, error) {
	e, ok := d.queue[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (d *memoryData) SaveQueueEntry(_ context.Context, entry *QueueEntry) error {
	d.queue[entry.PlayerID] = *entry
	return nil
}

func (d *memoryData) DeleteQueueEntry(_ context.Context, playerID string) error {
	delete(d.queue, playerID)
	return nil
}

func (d *memoryData) ListQueue(_ context.Context) ([]QueueEntry, error) {
	out := make([]QueueEntry, 0, len(d.queue))
	for _, e := range d.queue {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}

func (d *memoryData) DeleteQueueBefore(_ context.Context, before time.Time) (int, error) {
	n := 0
	for id, e := range d.queue {
		if e.EnqueuedAt.Before(before) {
			delete(d.queue, id)
			n++
		}
	}
	return n, nil
}
