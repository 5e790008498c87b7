package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/reversus/reversus-server/internal/game"
	"github.com/reversus/reversus-server/internal/table"
)

// RemoteAuthority is a game.Authority reached over gRPC. It is bound to one
// seat of one game.
type RemoteAuthority struct {
	conn     grpc.ClientConnInterface
	gameID   string
	playerID string
}

var _ game.Authority = (*RemoteAuthority)(nil)

// NewRemoteAuthority binds conn to a seat.
func NewRemoteAuthority(conn grpc.ClientConnInterface, gameID, playerID string) *RemoteAuthority {
	return &RemoteAuthority{conn: conn, gameID: gameID, playerID: playerID}
}

func (r *RemoteAuthority) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		MetadataGameID, r.gameID,
		MetadataPlayerID, r.playerID,
	)
}

// Submit implements game.Authority.
func (r *RemoteAuthority) Submit(ctx context.Context, intent game.Intent) (game.Result, error) {
	intent.PlayerID = r.playerID
	in, err := toStruct(intent)
	if err != nil {
		return game.Result{}, err
	}
	out := new(structpb.Struct)
	if err := r.conn.Invoke(r.outgoing(ctx), methodSubmit, in, out); err != nil {
		return game.Result{}, fromStatus(err)
	}
	var result game.Result
	if err := fromStruct(out, &result); err != nil {
		return game.Result{}, err
	}
	return result, nil
}

// Snapshot implements game.Authority.
func (r *RemoteAuthority) Snapshot(ctx context.Context) (*game.Snapshot, error) {
	out := new(structpb.Struct)
	if err := r.conn.Invoke(r.outgoing(ctx), methodSnapshot, &structpb.Struct{}, out); err != nil {
		return nil, fromStatus(err)
	}
	snap := new(game.Snapshot)
	if err := fromStruct(out, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Subscribe implements game.Authority. The first snapshot is read before
// returning so that identity errors surface here. Slow readers only see the
// latest snapshot; the channel closes when the stream ends.
func (r *RemoteAuthority) Subscribe(ctx context.Context) (<-chan *game.Snapshot, error) {
	stream, err := r.conn.NewStream(r.outgoing(ctx), &ServiceDesc.Streams[0], methodWatch)
	if err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fromStatus(err)
	}

	recv := func() (*game.Snapshot, error) {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			return nil, err
		}
		snap := new(game.Snapshot)
		if err := fromStruct(msg, snap); err != nil {
			return nil, err
		}
		return snap, nil
	}

	first, err := recv()
	if err != nil {
		return nil, fromStatus(err)
	}
	ch := make(chan *game.Snapshot, 1)
	ch <- first
	go func() {
		defer close(ch)
		for {
			snap, err := recv()
			if err != nil {
				return
			}
			select {
			case ch <- snap:
				continue
			default:
			}
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// fromStatus maps gRPC codes back onto engine errors so callers can use
// errors.Is the same way for local and remote authorities.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Canceled:
		return fmt.Errorf("%s: %w", st.Message(), context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), context.DeadlineExceeded)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), game.ErrGameNotFound)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), game.ErrInvalidIntent)
	case codes.PermissionDenied:
		return fmt.Errorf("%s: %w", st.Message(), game.ErrNotPermitted)
	}
	return err
}

// LobbyClient drives the table methods for one player.
type LobbyClient struct {
	conn       grpc.ClientConnInterface
	playerID   string
	playerName string
}

// NewLobbyClient creates a lobby client acting as playerID.
func NewLobbyClient(conn grpc.ClientConnInterface, playerID, playerName string) *LobbyClient {
	return &LobbyClient{conn: conn, playerID: playerID, playerName: playerName}
}

func (l *LobbyClient) call(ctx context.Context, method string, body tableRequest, out any) error {
	ctx = metadata.AppendToOutgoingContext(ctx,
		MetadataPlayerID, l.playerID,
		MetadataPlayerName, l.playerName,
	)
	in, err := toStruct(body)
	if err != nil {
		return err
	}
	reply := new(structpb.Struct)
	if err := l.conn.Invoke(ctx, method, in, reply); err != nil {
		return err
	}
	return fromStruct(reply, out)
}

// CreateTable opens a table hosted by this player.
func (l *LobbyClient) CreateTable(ctx context.Context, name string) (table.Snapshot, error) {
	var snap table.Snapshot
	err := l.call(ctx, methodCreateTable, tableRequest{Name: name}, &snap)
	return snap, err
}

// JoinTable takes a seat at tableID.
func (l *LobbyClient) JoinTable(ctx context.Context, tableID string) (table.Snapshot, error) {
	var snap table.Snapshot
	err := l.call(ctx, methodJoinTable, tableRequest{TableID: tableID}, &snap)
	return snap, err
}

// StartTable starts the game at tableID. The returned snapshot's id is the
// game id to pass to NewRemoteAuthority.
func (l *LobbyClient) StartTable(ctx context.Context, tableID string) (table.Snapshot, error) {
	var snap table.Snapshot
	err := l.call(ctx, methodStartTable, tableRequest{TableID: tableID}, &snap)
	return snap, err
}

// ListTables lists every table on the server.
func (l *LobbyClient) ListTables(ctx context.Context) ([]table.Snapshot, error) {
	var list tableList
	if err := l.call(ctx, methodListTables, tableRequest{}, &list); err != nil {
		return nil, err
	}
	return list.Tables, nil
}
