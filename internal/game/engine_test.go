package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus/reversus-server/internal/game/rules"
)

type fakeArchiver struct {
	records chan MatchRecord
}

func (f *fakeArchiver) SaveMatch(_ context.Context, record MatchRecord) error {
	f.records <- record
	return nil
}

func newTestEngine(t *testing.T, dir string, archiver Archiver) *Engine {
	t.Helper()
	settings := DefaultSettings()
	engine := NewEngine(zaptest.NewLogger(t), EngineOptions{
		Options: Options{
			Settings: &settings,
			Terminal: PassLimit{Limit: 1},
		},
		Recorder: NewReplayRecorder(zaptest.NewLogger(t), dir),
		Archiver: archiver,
	})
	t.Cleanup(engine.Close)
	return engine
}

func TestEngineStartGame(t *testing.T) {
	engine := newTestEngine(t, t.TempDir(), nil)
	ctx := context.Background()

	_, err := engine.StartGame(ctx, "table-2", seats("alice", "bob"))
	require.NoError(t, err)
	_, err = engine.StartGame(ctx, "table-1", seats("carol", "dave"))
	require.NoError(t, err)
	_, err = engine.StartGame(ctx, "table-1", seats("carol", "dave"))
	assert.Error(t, err, "duplicate game id")
	_, err = engine.StartGame(ctx, "table-3", seats("solo"))
	assert.Error(t, err)

	assert.Equal(t, []string{"table-1", "table-2"}, engine.GameIDs())

	snap, err := engine.Snapshot(ctx, "table-2", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", snap.Viewer)
	assert.Nil(t, snap.Players["alice"].Hand)

	_, err = engine.Snapshot(ctx, "nowhere", "")
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = engine.Submit(ctx, "nowhere", Intent{Action: ActionEndTurn, PlayerID: "alice"})
	assert.ErrorIs(t, err, ErrGameNotFound)

	engine.CleanupGame("table-1")
	assert.Equal(t, []string{"table-2"}, engine.GameIDs())
}

func TestEngineFieldEffects(t *testing.T) {
	engine := newTestEngine(t, t.TempDir(), nil)
	ctx := context.Background()
	_, err := engine.StartGame(ctx, "g", seats("alice", "bob"))
	require.NoError(t, err)

	res, err := engine.AssignFieldEffect(ctx, "g", "alice", "Sorte Grande")
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	res, err = engine.RemoveFieldEffect(ctx, "g", "alice")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Snapshot.ActiveFieldEffects)
}

func TestEngineArchivesFinishedGame(t *testing.T) {
	dir := t.TempDir()
	archiver := &fakeArchiver{records: make(chan MatchRecord, 1)}
	engine := newTestEngine(t, dir, archiver)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[string]int{}
	engine.SetNotificationHandler(func(n GameNotification) {
		mu.Lock()
		defer mu.Unlock()
		seen[n.Type]++
	})

	auth, err := engine.StartGame(ctx, "final", seats("alice", "bob"))
	require.NoError(t, err)

	var cardID string
	auth.Inspect(func(s *State) { cardID = firstValueCard(s, "alice").ID })
	res, err := engine.Submit(ctx, "final", Intent{Action: ActionPlayCard, PlayerID: "alice", CardID: cardID})
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Reason)

	res, err = engine.Submit(ctx, "final", Intent{Action: ActionEndTurn, PlayerID: "alice"})
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Reason)
	assert.Equal(t, rules.PhaseGameOver, res.Snapshot.Phase)

	var record MatchRecord
	select {
	case record = <-archiver.records:
	case <-time.After(5 * time.Second):
		t.Fatal("match was not archived")
	}
	assert.Equal(t, "final", record.GameID)
	assert.Equal(t, "alice", record.Winner)
	assert.Equal(t, []string{"alice", "bob"}, record.Players)
	assert.Equal(t, 1, record.Stats.ValuePlays["alice"])
	require.NotNil(t, record.Final)
	assert.Empty(t, record.Final.Viewer)

	replay, err := LoadReplayFromFile(dir, "final")
	require.NoError(t, err)
	assert.Equal(t, 3, replay.Size(), "opening frame plus two accepted intents")
	assert.Equal(t, rules.PhaseGameOver, replay.Latest().Phase)

	res, err = engine.Submit(ctx, "final", Intent{Action: ActionEndTurn, PlayerID: "bob"})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, ErrGameOver.Error(), res.Reason)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[NotificationGameOver] == 1 && seen[NotificationStateChanged] >= 2
	}, time.Second, 10*time.Millisecond)
}
