// Package server exposes the arena over gRPC.
package server

import (
	"context"

	"github.com/creaturequest/pvp-server/internal/apperr"
	"github.com/creaturequest/pvp-server/internal/arena"
	"github.com/creaturequest/pvp-server/internal/battle"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// arenaServer implements ArenaServer over an arena.Service.
type arenaServer struct {
	UnimplementedArenaServer

	service *arena.Service
	logger  *zap.Logger
}

// NewArenaServer creates the gRPC front end of the arena.
func NewArenaServer(service *arena.Service, logger *zap.Logger) ArenaServer {
	return &arenaServer{service: service, logger: logger}
}

// JoinQueue enters the caller into matchmaking
func (s *arenaServer) JoinQueue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req joinQueueRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.service.JoinQueue(ctx, PlayerIDFromContext(ctx), req.loadout())
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(joinQueueResponse{
		Status:               res.Status,
		BattleID:             res.BattleID,
		OpponentID:           res.OpponentID,
		OpponentName:         res.OpponentName,
		OpponentRating:       res.OpponentRating,
		EstimatedWaitSeconds: res.EstimatedWaitSeconds,
	})
}

// QueueStatus reports the caller's matchmaking state
func (s *arenaServer) QueueStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.service.QueueStatus(ctx, PlayerIDFromContext(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(queueStatusResponse{
		Status:      res.Status,
		WaitSeconds: res.WaitSeconds,
		BattleID:    res.BattleID,
	})
}

// CancelQueue leaves matchmaking
func (s *arenaServer) CancelQueue(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.service.CancelQueue(ctx, PlayerIDFromContext(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{"success": true})
}

// GetBattle returns the caller's view of a battle
func (s *arenaServer) GetBattle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req battleRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	view, err := s.service.GetBattle(ctx, PlayerIDFromContext(ctx), req.BattleID)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(newBattleResponse(view))
}

// SubmitAction applies one battle action for the caller
func (s *arenaServer) SubmitAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req battleRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var action battle.Action
	if v := in.GetFields()["action"].GetStructValue(); v != nil {
		action = battle.ParseAction(v.AsMap())
	}

	playerID := PlayerIDFromContext(ctx)
	out, err := s.service.SubmitAction(ctx, playerID, req.BattleID, action)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug("action applied",
		zap.String("battle_id", req.BattleID),
		zap.String("player_id", playerID),
		zap.String("event", string(out.Result.Event)),
	)
	return respond(newActionResponse(out))
}

// Forfeit concedes a battle
func (s *arenaServer) Forfeit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req battleRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := s.service.Forfeit(ctx, PlayerIDFromContext(ctx), req.BattleID)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(newActionResponse(out))
}

// GetStats returns the caller's rating record
func (s *arenaServer) GetStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.service.GetStats(ctx, PlayerIDFromContext(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(newStatsResponse(st))
}

// GetLeaderboard returns a page of ranked players. It needs no identity.
func (s *arenaServer) GetLeaderboard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req leaderboardRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	filter, err := arena.ParseTimeFilter(req.Filter)
	if err != nil {
		return nil, toStatus(err)
	}
	lb, err := s.service.GetLeaderboard(ctx, req.Page, req.PerPage, filter)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(newLeaderboardResponse(lb))
}

func respond(v any) (*structpb.Struct, error) {
	out, err := encodeStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps arena errors to gRPC status codes.
func toStatus(err error) error {
	var code codes.Code
	switch apperr.KindOf(err) {
	case apperr.KindNotAuthenticated:
		code = codes.Unauthenticated
	case apperr.KindNotFound:
		code = codes.NotFound
	case apperr.KindInvalidAction:
		code = codes.InvalidArgument
	case apperr.KindRuleViolation:
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}
	return status.Error(code, apperr.Reason(err))
}
