// Package arena runs PvP sessions: matchmaking, battle actions, completion
// bookkeeping, stats and housekeeping.
package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creaturequest/pvp-server/internal/apperr"
	"github.com/creaturequest/pvp-server/internal/battle"
	"github.com/creaturequest/pvp-server/internal/deck"
	"github.com/creaturequest/pvp-server/internal/matchmaking"
	"github.com/creaturequest/pvp-server/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Policy        matchmaking.Policy
	EstimatedWait time.Duration
	TurnClock     time.Duration
	Directory     Directory
	Notifier      Notifier
	Now           func() time.Time
	NewID         func() string
}

// Service is the battle session orchestrator.
type Service struct {
	store         repository.Store
	matcher       *matchmaking.Matcher
	directory     Directory
	notifier      Notifier
	locks         *keyedMutex
	now           func() time.Time
	newID         func() string
	estimatedWait time.Duration
	turnClock     time.Duration
	logger        *zap.Logger
}

// NewService creates an orchestrator over store.
func NewService(store repository.Store, opts Options, logger *zap.Logger) *Service {
	if opts.Policy == (matchmaking.Policy{}) {
		opts.Policy = matchmaking.DefaultPolicy()
	}
	if opts.EstimatedWait <= 0 {
		opts.EstimatedWait = 30 * time.Second
	}
	if opts.TurnClock <= 0 {
		opts.TurnClock = 60 * time.Second
	}
	if opts.Directory == nil {
		opts.Directory = StaticDirectory{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		store:         store,
		matcher:       matchmaking.NewMatcher(opts.Policy),
		directory:     opts.Directory,
		notifier:      opts.Notifier,
		locks:         newKeyedMutex(),
		now:           opts.Now,
		newID:         opts.NewID,
		estimatedWait: opts.EstimatedWait,
		turnClock:     opts.TurnClock,
		logger:        logger,
	}
}

// JoinQueue matches the player against the queue or enqueues them.
func (s *Service) JoinQueue(ctx context.Context, playerID string, loadout Loadout) (JoinResult, error) {
	if playerID == "" {
		return JoinResult{}, apperr.NotAuthenticated("Not logged in")
	}
	if len(loadout.Creatures) == 0 {
		return JoinResult{}, apperr.InvalidAction("At least one creature is required")
	}
	mine := battle.Loadout{ID: playerID, Creatures: loadout.Creatures, Tools: loadout.Tools, Spells: loadout.Spells}
	if err := mine.Validate(); err != nil {
		return JoinResult{}, apperr.Wrap(apperr.KindInvalidAction, err, err.Error())
	}

	power := deck.Power(loadout.Creatures)
	now := s.now()
	name := s.directory.DisplayName(ctx, playerID)

	var (
		result JoinResult
		b      *battle.Battle
	)
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockQueue(ctx); err != nil {
			return err
		}
		if active, err := tx.ActiveBattleFor(ctx, playerID); err == nil {
			return apperr.RuleViolation("Already in battle %s", active.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := tx.DeleteQueueEntry(ctx, playerID); err != nil {
			return err
		}

		rec, err := tx.LoadRating(ctx, playerID)
		if err != nil {
			return err
		}
		entries, err := tx.ListQueue(ctx)
		if err != nil {
			return err
		}

		pool := make([]matchmaking.Candidate, 0, len(entries))
		byPlayer := make(map[string]repository.QueueEntry, len(entries))
		for _, e := range entries {
			// creature ids must stay unique within a battle
			if mine.SharesCreature(battle.Loadout{Creatures: e.Creatures}) {
				continue
			}
			pool = append(pool, matchmaking.Candidate{
				PlayerID:   e.PlayerID,
				Rating:     e.Rating,
				DeckPower:  e.DeckPower,
				EnqueuedAt: e.EnqueuedAt,
			})
			byPlayer[e.PlayerID] = e
		}

		req := matchmaking.Request{PlayerID: playerID, Rating: rec.Rating, DeckPower: power}
		cand, ok := s.matcher.FindMatch(req, pool, now)
		if !ok {
			result = JoinResult{Status: JoinQueued, EstimatedWaitSeconds: int(s.estimatedWait.Seconds())}
			return tx.SaveQueueEntry(ctx, &repository.QueueEntry{
				PlayerID:   playerID,
				Rating:     rec.Rating,
				DeckPower:  power,
				EnqueuedAt: now,
				Creatures:  loadout.Creatures,
				Tools:      loadout.Tools,
				Spells:     loadout.Spells,
			})
		}

		opp := byPlayer[cand.PlayerID]
		if err := tx.DeleteQueueEntry(ctx, opp.PlayerID); err != nil {
			return err
		}
		oppName := s.directory.DisplayName(ctx, opp.PlayerID)

		b = battle.NewBattle(s.newID(),
			battle.Loadout{ID: playerID, Name: name, Creatures: mine.Creatures, Tools: mine.Tools, Spells: mine.Spells},
			battle.Loadout{ID: opp.PlayerID, Name: oppName, Creatures: opp.Creatures, Tools: opp.Tools, Spells: opp.Spells},
			now,
		)
		if err := s.saveBattle(ctx, tx, b); err != nil {
			return err
		}
		result = JoinResult{
			Status:         JoinMatched,
			BattleID:       b.ID,
			OpponentID:     opp.PlayerID,
			OpponentName:   oppName,
			OpponentRating: opp.Rating,
		}
		return nil
	})
	if err != nil {
		return JoinResult{}, s.fail(err, "failed to join queue", zap.String("player_id", playerID))
	}

	if result.Status == JoinMatched {
		s.logger.Info("match found",
			zap.String("battle_id", b.ID),
			zap.String("player1", b.Player1.ID),
			zap.String("player2", b.Player2.ID),
		)
		s.notifier.MatchFound(b.ID, b.Player1.ID, b.Player2.ID)
		s.notifier.MatchFound(b.ID, b.Player2.ID, b.Player1.ID)
	} else {
		s.logger.Debug("player queued", zap.String("player_id", playerID), zap.Int("deck_power", power))
	}
	return result, nil
}

// QueueStatus reports whether the player is waiting, in a battle or idle.
func (s *Service) QueueStatus(ctx context.Context, playerID string) (QueueStatusResult, error) {
	if playerID == "" {
		return QueueStatusResult{}, apperr.NotAuthenticated("Not logged in")
	}
	entry, err := s.store.LoadQueueEntry(ctx, playerID)
	switch {
	case err == nil:
		wait := max(0, s.now().Sub(entry.EnqueuedAt))
		return QueueStatusResult{Status: QueueWaiting, WaitSeconds: int(wait.Seconds())}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return QueueStatusResult{}, s.fail(err, "failed to load queue entry", zap.String("player_id", playerID))
	}

	active, err := s.store.ActiveBattleFor(ctx, playerID)
	switch {
	case err == nil:
		return QueueStatusResult{Status: QueueMatched, BattleID: active.ID}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return QueueStatusResult{}, s.fail(err, "failed to look up active battle", zap.String("player_id", playerID))
	}
	return QueueStatusResult{Status: QueueIdle}, nil
}

// CancelQueue removes the player's queue entry if there is one.
func (s *Service) CancelQueue(ctx context.Context, playerID string) error {
	if playerID == "" {
		return apperr.NotAuthenticated("Not logged in")
	}
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockQueue(ctx); err != nil {
			return err
		}
		return tx.DeleteQueueEntry(ctx, playerID)
	})
	if err != nil {
		return s.fail(err, "failed to cancel queue", zap.String("player_id", playerID))
	}
	return nil
}

// EvictStaleQueue drops queue entries that have waited longer than staleAfter.
func (s *Service) EvictStaleQueue(ctx context.Context, staleAfter time.Duration) (int, error) {
	var n int
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockQueue(ctx); err != nil {
			return err
		}
		var err error
		n, err = tx.DeleteQueueBefore(ctx, s.now().Add(-staleAfter))
		return err
	})
	if err != nil {
		return 0, s.fail(err, "failed to evict stale queue entries")
	}
	if n > 0 {
		s.logger.Info("evicted stale queue entries", zap.Int("count", n), zap.Duration("stale_after", staleAfter))
	}
	return n, nil
}

func (s *Service) saveBattle(ctx context.Context, tx repository.Tx, b *battle.Battle) error {
	data, err := battle.Encode(b)
	if err != nil {
		return fmt.Errorf("failed to encode battle %s: %w", b.ID, err)
	}
	return tx.SaveBattle(ctx, &repository.BattleRecord{
		ID:           b.ID,
		Player1ID:    b.Player1.ID,
		Player2ID:    b.Player2.ID,
		Status:       b.Status,
		WinnerID:     b.WinnerID,
		State:        data,
		CreatedAt:    b.CreatedAt,
		LastActionAt: b.LastActionAt,
	})
}

// fail passes classified errors through and turns everything else into an
// internal error, logging it.
func (s *Service) fail(err error, msg string, fields ...zap.Field) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error(msg, append(fields, zap.Error(err))...)
	return apperr.Internal(err, "%s", msg)
}

type nopNotifier struct{}

func (nopNotifier) MatchFound(string, string, string) {}
func (nopNotifier) BattleUpdated(string, []string, battle.Result) {}
func (nopNotifier) BattleCompleted(string, []string, string) {}
