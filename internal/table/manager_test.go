package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus/reversus-server/internal/game"
)

type recordingStarter struct {
	gameID string
	seats  []game.Seat
	err    error
}

func (r *recordingStarter) StartGame(_ context.Context, gameID string, seats []game.Seat) (*game.LocalAuthority, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.gameID, r.seats = gameID, seats
	return nil, nil
}

func TestTableSeating(t *testing.T) {
	m := NewManager(&recordingStarter{}, 3, zaptest.NewLogger(t))
	tbl := m.CreateTable("", Seat{PlayerID: "alice", Name: "Alice", IsHuman: true})
	assert.Equal(t, "Alice's table", tbl.Name)
	assert.True(t, tbl.IsHost("alice"))

	_, err := m.JoinTable(tbl.ID, Seat{PlayerID: "bob", Name: "Bob"})
	require.NoError(t, err)
	_, err = m.JoinTable(tbl.ID, Seat{PlayerID: "bob", Name: "Bob"})
	assert.ErrorIs(t, err, ErrAlreadySeated)
	_, err = m.JoinTable(tbl.ID, Seat{PlayerID: "carol", Name: "Carol"})
	require.NoError(t, err)
	_, err = m.JoinTable(tbl.ID, Seat{PlayerID: "dave", Name: "Dave"})
	assert.ErrorIs(t, err, ErrTableFull)
	_, err = m.JoinTable("nope", Seat{PlayerID: "dave"})
	assert.ErrorIs(t, err, ErrTableNotFound)

	require.NoError(t, tbl.RemovePlayer("carol"))
	assert.ErrorIs(t, tbl.RemovePlayer("carol"), ErrNotSeated)

	snap := tbl.Snapshot()
	assert.Equal(t, "WAITING", snap.State)
	assert.Equal(t, []Seat{{PlayerID: "alice", Name: "Alice", IsHuman: true}, {PlayerID: "bob", Name: "Bob"}}, snap.Seats)
}

func TestStartTable(t *testing.T) {
	starter := &recordingStarter{}
	m := NewManager(starter, 6, zaptest.NewLogger(t))
	tbl := m.CreateTable("duel", Seat{PlayerID: "alice", Name: "Alice"})
	_, err := m.JoinTable(tbl.ID, Seat{PlayerID: "bob", Name: "Bob"})
	require.NoError(t, err)

	_, err = m.StartTable(context.Background(), tbl.ID, "bob")
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = m.StartTable(context.Background(), tbl.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, tbl.ID, starter.gameID, "the table id becomes the game id")
	assert.Equal(t, []game.Seat{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}}, starter.seats)
	assert.Equal(t, StateDueling, tbl.GetState())
	assert.NotNil(t, tbl.Snapshot().StartTime)

	_, err = m.StartTable(context.Background(), tbl.ID, "alice")
	assert.ErrorIs(t, err, ErrTableStarted)
	_, err = m.JoinTable(tbl.ID, Seat{PlayerID: "carol"})
	assert.ErrorIs(t, err, ErrTableStarted)
}

func TestStartTableFailureKeepsWaiting(t *testing.T) {
	m := NewManager(&recordingStarter{err: errors.New("boom")}, 6, zaptest.NewLogger(t))
	tbl := m.CreateTable("solo", Seat{PlayerID: "alice"})

	_, err := m.StartTable(context.Background(), tbl.ID, "alice")
	assert.Error(t, err)
	assert.Equal(t, StateWaiting, tbl.GetState())
}

func TestHandleNotificationFinishesTable(t *testing.T) {
	m := NewManager(&recordingStarter{}, 6, zaptest.NewLogger(t))
	tbl := m.CreateTable("duel", Seat{PlayerID: "alice"})
	other := m.CreateTable("other", Seat{PlayerID: "carol"})
	assert.Equal(t, 2, m.ActiveCount())

	m.HandleNotification(game.GameNotification{Type: game.NotificationStateChanged, GameID: tbl.ID})
	assert.Equal(t, StateWaiting, tbl.GetState())

	m.HandleNotification(game.GameNotification{Type: game.NotificationGameOver, GameID: tbl.ID, PlayerID: "alice"})
	snap := tbl.Snapshot()
	assert.Equal(t, "FINISHED", snap.State)
	assert.Equal(t, "alice", snap.Winner)
	assert.NotNil(t, snap.EndTime)
	assert.Equal(t, 1, m.ActiveCount())

	require.Len(t, m.Tables(), 2)

	m.RemoveTable(other.ID)
	assert.Len(t, m.Tables(), 1)
}

func TestStartTableWithEngine(t *testing.T) {
	engine := game.NewEngine(zaptest.NewLogger(t), game.EngineOptions{})
	t.Cleanup(engine.Close)
	m := NewManager(engine, 6, zaptest.NewLogger(t))
	tbl := m.CreateTable("live", Seat{PlayerID: "alice", Name: "Alice", IsHuman: true})
	_, err := m.JoinTable(tbl.ID, Seat{PlayerID: "bob", Name: "Bob"})
	require.NoError(t, err)

	auth, err := m.StartTable(context.Background(), tbl.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, tbl.ID, auth.GameID())
	assert.Equal(t, []string{tbl.ID}, engine.GameIDs())
}
