package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/reversus/reversus-server/internal/game"
	"github.com/reversus/reversus-server/internal/table"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "reversus.v1.Authority"

// Metadata keys carrying the caller's identity. The player id in an intent
// body is always overwritten with the one from metadata.
const (
	MetadataGameID     = "x-reversus-game"
	MetadataPlayerID   = "x-reversus-player"
	MetadataPlayerName = "x-reversus-name"
)

const (
	methodSubmit      = "/" + ServiceName + "/Submit"
	methodSnapshot    = "/" + ServiceName + "/Snapshot"
	methodWatch       = "/" + ServiceName + "/Watch"
	methodCreateTable = "/" + ServiceName + "/CreateTable"
	methodJoinTable   = "/" + ServiceName + "/JoinTable"
	methodStartTable  = "/" + ServiceName + "/StartTable"
	methodListTables  = "/" + ServiceName + "/ListTables"
)

// authorityService is the handler side of ServiceDesc. Every message is a
// google.protobuf.Struct carrying the JSON shape of the engine types.
type authorityService interface {
	Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Snapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Watch(req *structpb.Struct, stream grpc.ServerStream) error
	CreateTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	JoinTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	StartTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTables(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv authorityService, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(authorityService), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(authorityService), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(authorityService).Watch(in, stream)
}

// ServiceDesc describes the authority service. It is written by hand so the
// transport needs no generated code.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*authorityService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unaryHandler(methodSubmit, authorityService.Submit)},
		{MethodName: "Snapshot", Handler: unaryHandler(methodSnapshot, authorityService.Snapshot)},
		{MethodName: "CreateTable", Handler: unaryHandler(methodCreateTable, authorityService.CreateTable)},
		{MethodName: "JoinTable", Handler: unaryHandler(methodJoinTable, authorityService.JoinTable)},
		{MethodName: "StartTable", Handler: unaryHandler(methodStartTable, authorityService.StartTable)},
		{MethodName: "ListTables", Handler: unaryHandler(methodListTables, authorityService.ListTables)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "reversus/v1/authority.proto",
}

// GameHost resolves game ids to their authority.
type GameHost interface {
	Authority(gameID string) (*game.LocalAuthority, error)
}

// AuthorityServer exposes hosted games over gRPC.
type AuthorityServer struct {
	games  GameHost
	tables *table.Manager
	logger *zap.Logger
}

// NewAuthorityServer creates the service. tables may be nil, in which case
// the table methods answer Unimplemented.
func NewAuthorityServer(games GameHost, tables *table.Manager, logger *zap.Logger) *AuthorityServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorityServer{games: games, tables: tables, logger: logger}
}

// Register adds the service to a gRPC server.
func (s *AuthorityServer) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&ServiceDesc, s)
}

type identity struct {
	gameID     string
	playerID   string
	playerName string
}

func identityFromContext(ctx context.Context) identity {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(key string) string {
		if values := md.Get(key); len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
		return ""
	}
	id := identity{
		gameID:     first(MetadataGameID),
		playerID:   first(MetadataPlayerID),
		playerName: first(MetadataPlayerName),
	}
	if id.playerName == "" {
		id.playerName = id.playerID
	}
	return id
}

// seat resolves the caller to a seat-bound authority.
func (s *AuthorityServer) seat(ctx context.Context) (game.Authority, identity, error) {
	id := identityFromContext(ctx)
	if id.gameID == "" || id.playerID == "" {
		return nil, id, status.Errorf(codes.InvalidArgument, "%s and %s metadata are required", MetadataGameID, MetadataPlayerID)
	}
	auth, err := s.games.Authority(id.gameID)
	if err != nil {
		return nil, id, toStatus(err)
	}
	if !auth.HasPlayer(id.playerID) {
		return nil, id, status.Errorf(codes.PermissionDenied, "player %s is not seated in game %s", id.playerID, id.gameID)
	}
	return auth.Seat(id.playerID), id, nil
}

// toStatus maps engine and table errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, game.ErrGameNotFound), errors.Is(err, table.ErrTableNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrInvalidIntent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, game.ErrNotPermitted), errors.Is(err, table.ErrNotHost):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, table.ErrTableStarted),
		errors.Is(err, table.ErrTableFull),
		errors.Is(err, table.ErrAlreadySeated),
		errors.Is(err, table.ErrNotSeated):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, game.ErrAuthorityStopped):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// toStruct converts a JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert %T: %w", v, err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
