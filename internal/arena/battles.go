package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creaturequest/pvp-server/internal/apperr"
	"github.com/creaturequest/pvp-server/internal/battle"
	"github.com/creaturequest/pvp-server/internal/rating"
	"github.com/creaturequest/pvp-server/internal/repository"
	"go.uber.org/zap"
)

var errBattleNotFound = apperr.NotFound("Battle not found")

// GetBattle returns the battle as seen by playerID.
func (s *Service) GetBattle(ctx context.Context, playerID, battleID string) (BattleView, error) {
	if playerID == "" {
		return BattleView{}, apperr.NotAuthenticated("Not logged in")
	}
	rec, err := s.store.LoadBattle(ctx, battleID)
	if err != nil {
		return BattleView{}, s.notFoundOr(err, battleID)
	}
	b, err := decodeFor(rec, playerID)
	if err != nil {
		return BattleView{}, s.fail(err, "failed to load battle", zap.String("battle_id", battleID))
	}

	opp, _ := b.Opponent(playerID)
	oppRating, err := s.store.LoadRating(ctx, opp.ID)
	if err != nil {
		return BattleView{}, s.fail(err, "failed to load opponent rating", zap.String("battle_id", battleID))
	}

	view := BattleView{
		BattleID:   b.ID,
		Status:     b.Status,
		State:      b,
		IsPlayer1:  b.Player1.ID == playerID,
		IsYourTurn: b.Status == battle.StatusActive && b.ActivePlayer == playerID,
		TurnNumber: b.Turn,
		Opponent:   Opponent{ID: opp.ID, Name: opp.Name, Rating: oppRating.Rating},
	}
	if b.Status == battle.StatusActive {
		view.TimeRemaining = max(0, s.turnClock-s.now().Sub(b.LastActionAt))
	}
	return view, nil
}

// SubmitAction applies one action for playerID. When the action ends the
// battle, ratings, counters and history are updated in the same transaction.
func (s *Service) SubmitAction(ctx context.Context, playerID, battleID string, action battle.Action) (ActionOutcome, error) {
	if playerID == "" {
		return ActionOutcome{}, apperr.NotAuthenticated("Not logged in")
	}
	if action == nil {
		action = battle.Unknown{}
	}
	return s.mutate(ctx, battleID, "failed to submit action", func(tx repository.Tx, m *battle.Machine) (mutation, error) {
		b := m.Battle()
		if !b.Involves(playerID) {
			return mutation{}, errBattleNotFound
		}
		res, err := m.ProcessAction(playerID, action)
		if err != nil {
			return mutation{}, err
		}
		mu := mutation{viewer: playerID, result: res}
		if ended, winner := m.CheckEnd(); ended {
			m.Complete(winner)
			mu.k = rating.DefaultK
		}
		return mu, nil
	})
}

// Forfeit ends the battle with the opponent of playerID as winner, using the
// reduced forfeit K-factor.
func (s *Service) Forfeit(ctx context.Context, playerID, battleID string) (ActionOutcome, error) {
	if playerID == "" {
		return ActionOutcome{}, apperr.NotAuthenticated("Not logged in")
	}
	return s.mutate(ctx, battleID, "failed to forfeit", func(tx repository.Tx, m *battle.Machine) (mutation, error) {
		if !m.Battle().Involves(playerID) {
			return mutation{}, errBattleNotFound
		}
		res, err := m.Forfeit(playerID)
		if err != nil {
			return mutation{}, err
		}
		return mutation{viewer: playerID, result: res, k: rating.ForfeitK}, nil
	})
}

// ForfeitIdle forfeits, on behalf of the active player, every battle with no
// action for longer than timeout. It returns the ids of forfeited battles.
func (s *Service) ForfeitIdle(ctx context.Context, timeout time.Duration) ([]string, error) {
	cutoff := s.now().Add(-timeout)
	ids, err := s.store.IdleBattles(ctx, cutoff)
	if err != nil {
		return nil, s.fail(err, "failed to list idle battles")
	}

	var forfeited []string
	for _, id := range ids {
		_, err := s.mutate(ctx, id, "failed to forfeit idle battle", func(tx repository.Tx, m *battle.Machine) (mutation, error) {
			b := m.Battle()
			if b.Status != battle.StatusActive || !b.LastActionAt.Before(cutoff) {
				return mutation{}, errSkip
			}
			active := b.ActivePlayer
			res, err := m.Forfeit(active)
			if err != nil {
				return mutation{}, err
			}
			return mutation{viewer: active, result: res, k: rating.ForfeitK}, nil
		})
		switch {
		case errors.Is(err, errSkip):
			continue
		case err != nil:
			return forfeited, err
		}
		s.logger.Info("forfeited idle battle", zap.String("battle_id", id), zap.Duration("timeout", timeout))
		forfeited = append(forfeited, id)
	}
	return forfeited, nil
}

var errSkip = errors.New("skip")

// mutation is what a battle step reports back to mutate.
type mutation struct {
	viewer string
	result battle.Result
	// k is the K-factor for rating changes when the step completed the battle.
	k int
}

type stepFunc func(tx repository.Tx, m *battle.Machine) (mutation, error)

// mutate serializes work on one battle: lock, load, apply, persist and, on
// completion, settle ratings and history. Nothing is written if any step fails.
func (s *Service) mutate(ctx context.Context, battleID, failMsg string, step stepFunc) (ActionOutcome, error) {
	unlock := s.locks.Lock(battleID)
	defer unlock()

	var (
		b       *battle.Battle
		mu      mutation
		changes map[string]int
	)
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		rec, err := tx.LockBattle(ctx, battleID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errBattleNotFound
			}
			return err
		}
		if b, err = battle.Decode(rec.State); err != nil {
			return fmt.Errorf("failed to decode battle %s: %w", battleID, err)
		}
		m := battle.NewMachine(b, s.now())
		if mu, err = step(tx, m); err != nil {
			return err
		}
		if err := s.saveBattle(ctx, tx, b); err != nil {
			return err
		}
		if b.Status == battle.StatusCompleted {
			if changes, err = s.settle(ctx, tx, b, mu.k); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errSkip) {
		return ActionOutcome{}, err
	}
	if err != nil {
		return ActionOutcome{}, s.fail(err, failMsg, zap.String("battle_id", battleID))
	}

	players := []string{b.Player1.ID, b.Player2.ID}
	s.notifier.BattleUpdated(b.ID, players, mu.result)

	out := ActionOutcome{
		Status:     b.Status,
		Result:     mu.result,
		State:      b,
		IsYourTurn: b.Status == battle.StatusActive && b.ActivePlayer == mu.viewer,
	}
	if b.Status == battle.StatusCompleted {
		out.IsDraw = b.IsDraw()
		out.IsWinner = b.WinnerID == mu.viewer
		out.RatingChange = changes[mu.viewer]
		s.notifier.BattleCompleted(b.ID, players, b.WinnerID)
		s.logger.Info("battle completed",
			zap.String("battle_id", b.ID),
			zap.String("winner_id", b.WinnerID),
			zap.Int("turns", b.Turn),
			zap.String("forfeited_by", b.ForfeitedBy),
		)
	}
	return out, nil
}

// settle applies rating deltas, counters and history for a completed battle.
func (s *Service) settle(ctx context.Context, tx repository.Tx, b *battle.Battle, k int) (map[string]int, error) {
	if k <= 0 {
		k = rating.DefaultK
	}
	now := s.now()

	// rows are locked in id order so concurrent settlements cannot deadlock
	ids := []string{b.Player1.ID, b.Player2.ID}
	if ids[1] < ids[0] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	recs := make(map[string]*repository.RatingRecord, len(ids))
	changes := make(map[string]int, len(ids))
	for _, id := range ids {
		r, err := tx.LoadRating(ctx, id)
		if err != nil {
			return nil, err
		}
		recs[id] = r
		changes[id] = 0
	}

	if b.IsDraw() {
		for _, r := range recs {
			r.Draws++
			r.WinStreak = 0
		}
	} else {
		winner := recs[b.WinnerID]
		loserID := b.Player1.ID
		if loserID == b.WinnerID {
			loserID = b.Player2.ID
		}
		loser := recs[loserID]

		dw, dl := rating.Deltas(winner.Rating, loser.Rating, k)
		before := loser.Rating
		winner.Rating += dw
		loser.Rating = max(0, loser.Rating+dl)
		changes[winner.PlayerID], changes[loser.PlayerID] = dw, loser.Rating-before

		winner.Wins++
		winner.WinStreak++
		winner.BestWinStreak = max(winner.BestWinStreak, winner.WinStreak)
		loser.Losses++
		loser.WinStreak = 0
	}

	for _, p := range []*battle.PlayerState{b.Player1, b.Player2} {
		r := recs[p.ID]
		r.DamageDealt += p.DamageDealt
		r.DamageTaken += p.DamageTaken
		r.LastBattleAt = now
		if err := tx.SaveRating(ctx, r); err != nil {
			return nil, err
		}
	}

	if err := tx.AppendHistory(ctx, &repository.HistoryRecord{
		BattleID:            b.ID,
		Player1ID:           b.Player1.ID,
		Player2ID:           b.Player2.ID,
		WinnerID:            b.WinnerID,
		Player1RatingChange: changes[b.Player1.ID],
		Player2RatingChange: changes[b.Player2.ID],
		TotalTurns:          b.Turn,
		Duration:            now.Sub(b.CreatedAt),
		Forfeited:           b.ForfeitedBy != "",
		CompletedAt:         now,
	}); err != nil {
		return nil, err
	}
	return changes, nil
}

func decodeFor(rec *repository.BattleRecord, playerID string) (*battle.Battle, error) {
	if rec.Player1ID != playerID && rec.Player2ID != playerID {
		return nil, errBattleNotFound
	}
	b, err := battle.Decode(rec.State)
	if err != nil {
		return nil, fmt.Errorf("failed to decode battle %s: %w", rec.ID, err)
	}
	return b, nil
}

func (s *Service) notFoundOr(err error, battleID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errBattleNotFound
	}
	return s.fail(err, "failed to load battle", zap.String("battle_id", battleID))
}
