package server

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/reversus/reversus-server/internal/table"
)

type tableRequest struct {
	TableID string `json:"tableId"`
	Name    string `json:"name"`
	IsHuman *bool  `json:"isHuman"`
}

type tableList struct {
	Tables []table.Snapshot `json:"tables"`
}

func (s *AuthorityServer) lobby(ctx context.Context, req *structpb.Struct) (tableRequest, table.Seat, error) {
	var body tableRequest
	if s.tables == nil {
		return body, table.Seat{}, status.Error(codes.Unimplemented, "tables are disabled")
	}
	if err := fromStruct(req, &body); err != nil {
		return body, table.Seat{}, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	id := identityFromContext(ctx)
	if id.playerID == "" {
		return body, table.Seat{}, status.Errorf(codes.InvalidArgument, "%s metadata is required", MetadataPlayerID)
	}
	seat := table.Seat{PlayerID: id.playerID, Name: id.playerName, IsHuman: true}
	if body.IsHuman != nil {
		seat.IsHuman = *body.IsHuman
	}
	return body, seat, nil
}

func tableReply(t *table.Table) (*structpb.Struct, error) {
	out, err := toStruct(t.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// CreateTable opens a table hosted by the caller.
func (s *AuthorityServer) CreateTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	body, seat, err := s.lobby(ctx, req)
	if err != nil {
		return nil, err
	}
	t := s.tables.CreateTable(strings.TrimSpace(body.Name), seat)
	s.logger.Info("table created over grpc",
		zap.String("table_id", t.ID),
		zap.String("host", seat.PlayerID),
		zap.String("remote", extractHostFromContext(ctx)),
	)
	return tableReply(t)
}

// JoinTable seats the caller at a waiting table.
func (s *AuthorityServer) JoinTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	body, seat, err := s.lobby(ctx, req)
	if err != nil {
		return nil, err
	}
	if body.TableID == "" {
		return nil, status.Error(codes.InvalidArgument, "tableId is required")
	}
	t, err := s.tables.JoinTable(body.TableID, seat)
	if err != nil {
		return nil, toStatus(err)
	}
	return tableReply(t)
}

// StartTable turns a table into a running game. Only the host may do it.
func (s *AuthorityServer) StartTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	body, seat, err := s.lobby(ctx, req)
	if err != nil {
		return nil, err
	}
	if body.TableID == "" {
		return nil, status.Error(codes.InvalidArgument, "tableId is required")
	}
	// The game must outlive this call, so it is not bound to ctx.
	if _, err := s.tables.StartTable(context.WithoutCancel(ctx), body.TableID, seat.PlayerID); err != nil {
		return nil, toStatus(err)
	}
	t, err := s.tables.GetTable(body.TableID)
	if err != nil {
		return nil, toStatus(err)
	}
	return tableReply(t)
}

// ListTables returns every known table, oldest first.
func (s *AuthorityServer) ListTables(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.tables == nil {
		return nil, status.Error(codes.Unimplemented, "tables are disabled")
	}
	out, err := toStruct(tableList{Tables: s.tables.Tables()})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
