package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/creaturequest/pvp-server/internal/arena"
	"github.com/creaturequest/pvp-server/internal/battle"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeStruct fills v, a JSON-tagged request type, from a Struct message.
func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

// encodeStruct converts a JSON-tagged response type into a Struct message.
func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to convert response: %w", err)
	}
	return out, nil
}

type toolPayload struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Effect     battle.ToolEffect `json:"effect"`
	ToolType   string            `json:"toolType"`
	ToolEffect string            `json:"toolEffect"`
}

type spellPayload struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Effect      battle.SpellEffect `json:"effect"`
	SpellType   string             `json:"spellType"`
	SpellEffect string             `json:"spellEffect"`
}

type joinQueueRequest struct {
	Creatures []battle.Creature `json:"creatures"`
	Tools     []toolPayload     `json:"tools"`
	Spells    []spellPayload    `json:"spells"`
}

// loadout resolves roster tool and spell descriptions into battle effects.
// An explicit effect wins over the roster type strings.
func (r joinQueueRequest) loadout() arena.Loadout {
	l := arena.Loadout{Creatures: r.Creatures}
	for _, t := range r.Tools {
		effect := t.Effect
		if effect == "" {
			effect = battle.ParseToolEffect(t.ToolType, t.ToolEffect)
		}
		l.Tools = append(l.Tools, battle.Tool{ID: t.ID, Name: t.Name, Effect: effect})
	}
	for _, s := range r.Spells {
		effect := s.Effect
		if effect == "" {
			effect = battle.ParseSpellEffect(s.SpellType, s.SpellEffect)
		}
		l.Spells = append(l.Spells, battle.Spell{ID: s.ID, Name: s.Name, Effect: effect})
	}
	return l
}

type joinQueueResponse struct {
	Status               arena.JoinStatus `json:"status"`
	BattleID             string           `json:"battleId,omitempty"`
	OpponentID           string           `json:"opponentId,omitempty"`
	OpponentName         string           `json:"opponentName,omitempty"`
	OpponentRating       int              `json:"opponentRating,omitempty"`
	EstimatedWaitSeconds int              `json:"estimatedWaitSeconds,omitempty"`
}

type queueStatusResponse struct {
	Status      arena.QueueState `json:"status"`
	WaitSeconds int              `json:"waitSeconds"`
	BattleID    string           `json:"battleId,omitempty"`
}

type battleRequest struct {
	BattleID string `json:"battleId"`
}

type opponentInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

type battleResponse struct {
	BattleID             string         `json:"battleId"`
	Status               battle.Status  `json:"status"`
	FullState            *battle.Battle `json:"fullState"`
	IsPlayer1            bool           `json:"isPlayer1"`
	IsYourTurn           bool           `json:"isYourTurn"`
	TurnNumber           int            `json:"turnNumber"`
	OpponentInfo         opponentInfo   `json:"opponentInfo"`
	TimeRemainingSeconds int            `json:"timeRemainingSeconds"`
}

func newBattleResponse(v arena.BattleView) battleResponse {
	return battleResponse{
		BattleID:             v.BattleID,
		Status:               v.Status,
		FullState:            v.State,
		IsPlayer1:            v.IsPlayer1,
		IsYourTurn:           v.IsYourTurn,
		TurnNumber:           v.TurnNumber,
		OpponentInfo:         opponentInfo(v.Opponent),
		TimeRemainingSeconds: int(v.TimeRemaining / time.Second),
	}
}

type actionResponse struct {
	Status       battle.Status  `json:"status"`
	Result       battle.Result  `json:"result"`
	UpdatedState *battle.Battle `json:"updatedState"`
	IsYourTurn   bool           `json:"isYourTurn"`
	IsWinner     *bool          `json:"isWinner,omitempty"`
	IsDraw       *bool          `json:"isDraw,omitempty"`
	RatingChange *int           `json:"ratingChange,omitempty"`
}

func newActionResponse(o arena.ActionOutcome) actionResponse {
	resp := actionResponse{
		Status:       o.Status,
		Result:       o.Result,
		UpdatedState: o.State,
		IsYourTurn:   o.IsYourTurn,
	}
	if o.Status == battle.StatusCompleted {
		resp.IsWinner = &o.IsWinner
		resp.IsDraw = &o.IsDraw
		resp.RatingChange = &o.RatingChange
	}
	return resp
}

type recentBattle struct {
	BattleID        string    `json:"battleId"`
	OpponentID      string    `json:"opponentId"`
	OpponentName    string    `json:"opponentName"`
	IsPlayer1       bool      `json:"isPlayer1"`
	Won             bool      `json:"won"`
	Draw            bool      `json:"draw"`
	RatingChange    int       `json:"ratingChange"`
	TotalTurns      int       `json:"totalTurns"`
	DurationSeconds int       `json:"durationSeconds"`
	Forfeited       bool      `json:"forfeited"`
	CompletedAt     time.Time `json:"completedAt"`
}

type statsResponse struct {
	PlayerID      string         `json:"playerId"`
	Rating        int            `json:"rating"`
	Wins          int            `json:"wins"`
	Losses        int            `json:"losses"`
	Draws         int            `json:"draws"`
	TotalBattles  int            `json:"totalBattles"`
	WinStreak     int            `json:"winStreak"`
	BestWinStreak int            `json:"bestWinStreak"`
	DamageDealt   int            `json:"damageDealt"`
	DamageTaken   int            `json:"damageTaken"`
	WinRate       float64        `json:"winRate"`
	Rank          int            `json:"rank"`
	RankTitle     string         `json:"rankTitle"`
	RankColor     string         `json:"rankColor"`
	RecentBattles []recentBattle `json:"recentBattles"`
}

func newStatsResponse(s arena.Stats) statsResponse {
	r := s.Record
	resp := statsResponse{
		PlayerID:      r.PlayerID,
		Rating:        r.Rating,
		Wins:          r.Wins,
		Losses:        r.Losses,
		Draws:         r.Draws,
		TotalBattles:  r.TotalBattles(),
		WinStreak:     r.WinStreak,
		BestWinStreak: r.BestWinStreak,
		DamageDealt:   r.DamageDealt,
		DamageTaken:   r.DamageTaken,
		WinRate:       s.WinRate,
		Rank:          s.Rank,
		RankTitle:     s.RankTitle,
		RankColor:     s.RankColor,
		RecentBattles: make([]recentBattle, 0, len(s.RecentBattles)),
	}
	for _, b := range s.RecentBattles {
		resp.RecentBattles = append(resp.RecentBattles, recentBattle{
			BattleID:        b.BattleID,
			OpponentID:      b.OpponentID,
			OpponentName:    b.OpponentName,
			IsPlayer1:       b.IsPlayer1,
			Won:             b.Won,
			Draw:            b.Draw,
			RatingChange:    b.RatingChange,
			TotalTurns:      b.TotalTurns,
			DurationSeconds: int(b.Duration / time.Second),
			Forfeited:       b.Forfeited,
			CompletedAt:     b.CompletedAt,
		})
	}
	return resp
}

type leaderboardRequest struct {
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
	Filter  string `json:"filter"`
}

type leaderboardEntry struct {
	Rank      int     `json:"rank"`
	PlayerID  string  `json:"playerId"`
	Name      string  `json:"name"`
	Rating    int     `json:"rating"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Draws     int     `json:"draws"`
	WinRate   float64 `json:"winRate"`
	RankTitle string  `json:"rankTitle"`
	RankColor string  `json:"rankColor"`
}

type leaderboardResponse struct {
	Players      []leaderboardEntry `json:"players"`
	CurrentPage  int                `json:"currentPage"`
	PerPage      int                `json:"perPage"`
	TotalPages   int                `json:"totalPages"`
	TotalPlayers int                `json:"totalPlayers"`
}

func newLeaderboardResponse(lb arena.Leaderboard) leaderboardResponse {
	resp := leaderboardResponse{
		Players:      make([]leaderboardEntry, 0, len(lb.Players)),
		CurrentPage:  lb.CurrentPage,
		PerPage:      lb.PerPage,
		TotalPages:   lb.TotalPages,
		TotalPlayers: lb.TotalPlayers,
	}
	for _, p := range lb.Players {
		resp.Players = append(resp.Players, leaderboardEntry(p))
	}
	return resp
}
