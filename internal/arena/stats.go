package arena

import (
	"context"

	"github.com/creaturequest/pvp-server/internal/apperr"
	"github.com/creaturequest/pvp-server/internal/rating"
	"github.com/creaturequest/pvp-server/internal/repository"
	"go.uber.org/zap"
)

const (
	recentBattles  = 10
	defaultPerPage = 20
	maxPerPage     = 100
)

// GetStats returns the player's record, rank and last battles. Players
// without a record get one at the default rating.
func (s *Service) GetStats(ctx context.Context, playerID string) (Stats, error) {
	if playerID == "" {
		return Stats{}, apperr.NotAuthenticated("Not logged in")
	}
	rec, err := s.store.LoadRating(ctx, playerID)
	if err != nil {
		return Stats{}, s.fail(err, "failed to load rating", zap.String("player_id", playerID))
	}
	above, err := s.store.CountRatingsAbove(ctx, rec.Rating)
	if err != nil {
		return Stats{}, s.fail(err, "failed to rank player", zap.String("player_id", playerID))
	}
	history, err := s.store.RecentHistory(ctx, playerID, recentBattles)
	if err != nil {
		return Stats{}, s.fail(err, "failed to load history", zap.String("player_id", playerID))
	}

	recent := make([]RecentBattle, 0, len(history))
	for _, h := range history {
		isP1 := h.Player1ID == playerID
		rb := RecentBattle{
			BattleID:    h.BattleID,
			IsPlayer1:   isP1,
			Won:         h.WinnerID == playerID,
			Draw:        h.WinnerID == "",
			TotalTurns:  h.TotalTurns,
			Duration:    h.Duration,
			Forfeited:   h.Forfeited,
			CompletedAt: h.CompletedAt,
		}
		if isP1 {
			rb.OpponentID, rb.RatingChange = h.Player2ID, h.Player1RatingChange
		} else {
			rb.OpponentID, rb.RatingChange = h.Player1ID, h.Player2RatingChange
		}
		rb.OpponentName = s.directory.DisplayName(ctx, rb.OpponentID)
		recent = append(recent, rb)
	}

	return Stats{
		Record:        *rec,
		Rank:          above + 1,
		RankTitle:     rating.RankTitle(rec.Rating),
		RankColor:     rating.RankColor(rec.Rating),
		WinRate:       winRate(rec),
		RecentBattles: recent,
	}, nil
}

// GetLeaderboard returns one page of players ordered by rating, then wins.
func (s *Service) GetLeaderboard(ctx context.Context, page, perPage int, filter TimeFilter) (Leaderboard, error) {
	page = max(page, 1)
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	offset := (page - 1) * perPage
	recs, total, err := s.store.ListRatings(ctx, repository.LeaderboardQuery{
		ActiveSince: filter.since(s.now()),
		Offset:      offset,
		Limit:       perPage,
	})
	if err != nil {
		return Leaderboard{}, s.fail(err, "failed to list ratings", zap.String("filter", string(filter)))
	}

	players := make([]LeaderboardEntry, 0, len(recs))
	for i := range recs {
		r := &recs[i]
		players = append(players, LeaderboardEntry{
			Rank:      offset + i + 1,
			PlayerID:  r.PlayerID,
			Name:      s.directory.DisplayName(ctx, r.PlayerID),
			Rating:    r.Rating,
			Wins:      r.Wins,
			Losses:    r.Losses,
			Draws:     r.Draws,
			WinRate:   winRate(r),
			RankTitle: rating.RankTitle(r.Rating),
			RankColor: rating.RankColor(r.Rating),
		})
	}

	return Leaderboard{
		Players:      players,
		CurrentPage:  page,
		PerPage:      perPage,
		TotalPages:   (total + perPage - 1) / perPage,
		TotalPlayers: total,
	}, nil
}
