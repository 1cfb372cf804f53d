package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ArenaServiceName is the fully qualified gRPC service name.
const ArenaServiceName = "pvp.v1.Arena"

const (
	ArenaJoinQueueMethod      = "/pvp.v1.Arena/JoinQueue"
	ArenaQueueStatusMethod    = "/pvp.v1.Arena/QueueStatus"
	ArenaCancelQueueMethod    = "/pvp.v1.Arena/CancelQueue"
	ArenaGetBattleMethod      = "/pvp.v1.Arena/GetBattle"
	ArenaSubmitActionMethod   = "/pvp.v1.Arena/SubmitAction"
	ArenaForfeitMethod        = "/pvp.v1.Arena/Forfeit"
	ArenaGetStatsMethod       = "/pvp.v1.Arena/GetStats"
	ArenaGetLeaderboardMethod = "/pvp.v1.Arena/GetLeaderboard"
)

// ArenaServer is the server API for the Arena service. Messages are
// google.protobuf.Struct values.
type ArenaServer interface {
	JoinQueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueueStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelQueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBattle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Forfeit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLeaderboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedArenaServer can be embedded to satisfy ArenaServer.
type UnimplementedArenaServer struct{}

func (UnimplementedArenaServer) JoinQueue(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method JoinQueue not implemented")
}

func (UnimplementedArenaServer) QueueStatus(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method QueueStatus not implemented")
}

func (UnimplementedArenaServer) CancelQueue(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelQueue not implemented")
}

func (UnimplementedArenaServer) GetBattle(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBattle not implemented")
}

func (UnimplementedArenaServer) SubmitAction(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitAction not implemented")
}

func (UnimplementedArenaServer) Forfeit(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Forfeit not implemented")
}

func (UnimplementedArenaServer) GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStats not implemented")
}

func (UnimplementedArenaServer) GetLeaderboard(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLeaderboard not implemented")
}

// RegisterArenaServer registers srv on s.
func RegisterArenaServer(s grpc.ServiceRegistrar, srv ArenaServer) {
	s.RegisterService(&ArenaServiceDesc, srv)
}

type arenaMethod func(ArenaServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func arenaHandler(fullMethod string, call arenaMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ArenaServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ArenaServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ArenaServiceDesc is the grpc.ServiceDesc for the Arena service.
var ArenaServiceDesc = grpc.ServiceDesc{
	ServiceName: ArenaServiceName,
	HandlerType: (*ArenaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "JoinQueue", Handler: arenaHandler(ArenaJoinQueueMethod, ArenaServer.JoinQueue)},
		{MethodName: "QueueStatus", Handler: arenaHandler(ArenaQueueStatusMethod, ArenaServer.QueueStatus)},
		{MethodName: "CancelQueue", Handler: arenaHandler(ArenaCancelQueueMethod, ArenaServer.CancelQueue)},
		{MethodName: "GetBattle", Handler: arenaHandler(ArenaGetBattleMethod, ArenaServer.GetBattle)},
		{MethodName: "SubmitAction", Handler: arenaHandler(ArenaSubmitActionMethod, ArenaServer.SubmitAction)},
		{MethodName: "Forfeit", Handler: arenaHandler(ArenaForfeitMethod, ArenaServer.Forfeit)},
		{MethodName: "GetStats", Handler: arenaHandler(ArenaGetStatsMethod, ArenaServer.GetStats)},
		{MethodName: "GetLeaderboard", Handler: arenaHandler(ArenaGetLeaderboardMethod, ArenaServer.GetLeaderboard)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pvp/v1/arena.proto",
}

// ArenaClient is the client API for the Arena service.
type ArenaClient struct {
	cc grpc.ClientConnInterface
}

// NewArenaClient wraps a connection.
func NewArenaClient(cc grpc.ClientConnInterface) *ArenaClient {
	return &ArenaClient{cc: cc}
}

// Call invokes method with a request built from fields.
func (c *ArenaClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
