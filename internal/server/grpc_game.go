package server

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/reversus/reversus-server/internal/game"
)

// Submit forwards an intent from the calling seat. Rule violations are
// answered with accepted=false rather than an error status.
func (s *AuthorityServer) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	seat, id, err := s.seat(ctx)
	if err != nil {
		return nil, err
	}

	var intent game.Intent
	if err := fromStruct(req, &intent); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid intent: %v", err)
	}
	intent.PlayerID = id.playerID

	s.logger.Debug("submit",
		zap.String("game_id", id.gameID),
		zap.String("player_id", id.playerID),
		zap.String("action", string(intent.Action)),
		zap.String("card_id", intent.CardID),
		zap.String("remote", extractHostFromContext(ctx)),
	)

	result, err := seat.Submit(ctx, intent)
	if err != nil {
		return nil, toStatus(err)
	}
	if !result.Accepted {
		s.logger.Info("intent rejected",
			zap.String("game_id", id.gameID),
			zap.String("player_id", id.playerID),
			zap.String("reason", result.Reason),
		)
	}
	out, err := toStruct(result)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Snapshot returns the game as seen by the calling seat.
func (s *AuthorityServer) Snapshot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	seat, _, err := s.seat(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := seat.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(snap)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Watch streams redacted snapshots to the calling seat until it hangs up.
func (s *AuthorityServer) Watch(_ *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	seat, id, err := s.seat(ctx)
	if err != nil {
		return err
	}
	updates, err := seat.Subscribe(ctx)
	if err != nil {
		return toStatus(err)
	}

	s.logger.Info("watch started",
		zap.String("game_id", id.gameID),
		zap.String("player_id", id.playerID),
		zap.String("remote", extractHostFromContext(ctx)),
	)
	defer s.logger.Info("watch ended",
		zap.String("game_id", id.gameID),
		zap.String("player_id", id.playerID),
	)

	for snap := range updates {
		msg, err := toStruct(snap)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}
