// Package bot plays battles through the Arena gRPC API with a simple
// greedy strategy. It is used for smoke tests and local load.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/creaturequest/pvp-server/internal/battle"
	"github.com/creaturequest/pvp-server/internal/server"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Caller is the part of server.ArenaClient the bot needs.
type Caller interface {
	Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (map[string]any, error)
}

// Outcome is how a played battle ended for the bot.
type Outcome struct {
	BattleID     string
	Won          bool
	Draw         bool
	RatingChange int
	Actions      int
}

// Bot is one automated player.
type Bot struct {
	caller   Caller
	playerID string
	poll     time.Duration
	// maxActions bounds a single battle.
	maxActions int
	logger     *zap.Logger
}

// New creates a bot acting as playerID.
func New(caller Caller, playerID string, poll time.Duration, logger *zap.Logger) *Bot {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &Bot{caller: caller, playerID: playerID, poll: poll, maxActions: 1000, logger: logger.With(zap.String("player_id", playerID))}
}

func (b *Bot) call(ctx context.Context, method string, fields map[string]any) (map[string]any, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, server.PlayerIDHeader, b.playerID)
	return b.caller.Call(ctx, method, fields)
}

// Join enters the queue and waits until a battle is created.
func (b *Bot) Join(ctx context.Context, loadout map[string]any) (string, error) {
	res, err := b.call(ctx, server.ArenaJoinQueueMethod, loadout)
	if err != nil {
		return "", fmt.Errorf("failed to join queue: %w", err)
	}
	if id, _ := res["battleId"].(string); id != "" {
		b.logger.Info("matched on join", zap.String("battle_id", id))
		return id, nil
	}

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		st, err := b.call(ctx, server.ArenaQueueStatusMethod, nil)
		if err != nil {
			return "", fmt.Errorf("failed to poll queue: %w", err)
		}
		switch st["status"] {
		case "matched":
			id, _ := st["battleId"].(string)
			b.logger.Info("matched", zap.String("battle_id", id))
			return id, nil
		case "idle":
			return "", fmt.Errorf("queue entry was evicted")
		}
	}
}

// Play takes turns until the battle completes.
func (b *Bot) Play(ctx context.Context, battleID string) (Outcome, error) {
	out := Outcome{BattleID: battleID}
	for out.Actions < b.maxActions {
		view, err := b.call(ctx, server.ArenaGetBattleMethod, map[string]any{"battleId": battleID})
		if err != nil {
			return out, fmt.Errorf("failed to load battle: %w", err)
		}
		state, err := decodeState(view["fullState"])
		if err != nil {
			return out, err
		}
		if state.Status == battle.StatusCompleted {
			out.Won = state.WinnerID == b.playerID
			out.Draw = state.IsDraw()
			return out, nil
		}
		if view["isYourTurn"] != true {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(b.poll):
			}
			continue
		}

		action := NextAction(state, b.playerID)
		res, err := b.submit(ctx, battleID, action)
		if status.Code(err) == codes.FailedPrecondition && action["type"] != string(battle.ActionEndTurn) {
			b.logger.Debug("action rejected, ending turn", zap.Any("action", action), zap.Error(err))
			res, err = b.submit(ctx, battleID, map[string]any{"type": string(battle.ActionEndTurn)})
		}
		if err != nil {
			return out, fmt.Errorf("failed to submit action: %w", err)
		}
		out.Actions++

		if res["status"] == string(battle.StatusCompleted) {
			out.Won, _ = res["isWinner"].(bool)
			out.Draw, _ = res["isDraw"].(bool)
			if rc, ok := res["ratingChange"].(float64); ok {
				out.RatingChange = int(rc)
			}
			b.logger.Info("battle finished",
				zap.String("battle_id", battleID),
				zap.Bool("won", out.Won),
				zap.Int("rating_change", out.RatingChange),
				zap.Int("actions", out.Actions),
			)
			return out, nil
		}
	}
	return out, fmt.Errorf("battle %s did not finish within %d actions", battleID, b.maxActions)
}

func (b *Bot) submit(ctx context.Context, battleID string, action map[string]any) (map[string]any, error) {
	return b.call(ctx, server.ArenaSubmitActionMethod, map[string]any{"battleId": battleID, "action": action})
}

func decodeState(v any) (*battle.Battle, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to read battle state: %w", err)
	}
	var b battle.Battle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to read battle state: %w", err)
	}
	if b.Player1 == nil || b.Player2 == nil {
		return nil, fmt.Errorf("battle state is missing players")
	}
	return &b, nil
}

// NextAction picks the bot's move: attack the weakest enemy with the
// strongest attacker, else deploy the cheapest affordable creature, else end
// the turn.
func NextAction(b *battle.Battle, playerID string) map[string]any {
	me, ok := b.Player(playerID)
	if !ok {
		return map[string]any{"type": string(battle.ActionEndTurn)}
	}
	opp, _ := b.Opponent(playerID)

	if me.Energy >= battle.AttackCost && len(me.Field) > 0 && len(opp.Field) > 0 {
		target := opp.Field[0]
		for _, c := range opp.Field[1:] {
			if c.CurrentHealth < target.CurrentHealth {
				target = c
			}
		}
		attacker := me.Field[0]
		for _, c := range me.Field[1:] {
			if battle.Damage(c, target) > battle.Damage(attacker, target) {
				attacker = c
			}
		}
		return map[string]any{"type": string(battle.ActionAttack), "attackerId": attacker.ID, "targetId": target.ID}
	}

	if len(me.Field) < battle.MaxFieldSize {
		hand := append([]*battle.Creature(nil), me.Hand...)
		sort.SliceStable(hand, func(i, j int) bool { return hand[i].DeployCost() < hand[j].DeployCost() })
		for _, c := range hand {
			if c.DeployCost() <= me.Energy {
				return map[string]any{"type": string(battle.ActionDeploy), "creatureId": c.ID}
			}
		}
	}
	return map[string]any{"type": string(battle.ActionEndTurn)}
}
