package game

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus/reversus-server/internal/game/rules"
)

func recordGame(t *testing.T, turns int) (*State, *Replay) {
	t.Helper()
	s := newTestState(t, nil)
	replay := NewReplay(s.GameID)
	require.True(t, replay.Append(s.Snapshot("")))
	for i := 0; i < turns; i++ {
		finishTurn(t, s)
		require.True(t, replay.Append(s.Snapshot("")))
	}
	return s, replay
}

func TestReplayNavigation(t *testing.T) {
	_, replay := recordGame(t, 3)
	require.Equal(t, 4, replay.Size())

	assert.Nil(t, replay.Previous(), "nothing before the start")
	first := replay.Next()
	second := replay.Next()
	assert.Equal(t, replay.FrameAt(0), first)
	assert.Greater(t, second.Version, first.Version)
	assert.Equal(t, second, replay.Previous())

	assert.Equal(t, replay.Latest(), replay.Skip(100), "skip is clamped")
	assert.Equal(t, first, replay.Skip(-100))
	assert.Nil(t, replay.FrameAt(4))

	replay.Start()
	for i := 0; i < 4; i++ {
		require.NotNil(t, replay.Next())
	}
	assert.Nil(t, replay.Next())
}

func TestReplayDropsOutOfOrderFrames(t *testing.T) {
	s, replay := recordGame(t, 1)
	assert.False(t, replay.Append(replay.FrameAt(0)))
	assert.False(t, replay.Append(s.Snapshot("")), "same version")
	assert.Equal(t, 2, replay.Size())
}

func TestReplaySaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	_, replay := recordGame(t, 2)
	require.NoError(t, replay.SaveToFile(dir))

	loaded, err := LoadReplayFromFile(dir, replay.GameID)
	require.NoError(t, err)
	require.Equal(t, replay.Size(), loaded.Size())
	for i := 0; i < replay.Size(); i++ {
		assert.Equal(t, replay.FrameAt(i).Checksum, loaded.FrameAt(i).Checksum)
		assert.Equal(t, replay.FrameAt(i).CurrentPlayer, loaded.FrameAt(i).CurrentPlayer)
	}

	_, err = LoadReplayFromFile(dir, "missing")
	assert.Error(t, err)
}

func TestReplayLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.replay"), []byte("not gzip"), 0o644))
	_, err := LoadReplayFromFile(dir, "broken")
	assert.Error(t, err)
}

func TestReplayRecorder(t *testing.T) {
	dir := t.TempDir()
	rec := NewReplayRecorder(zaptest.NewLogger(t), dir)
	s := newTestState(t, nil)

	rec.Record(s)
	_, ok := rec.Replay(s.GameID)
	assert.False(t, ok, "nothing is recorded before StartRecording")

	rec.StartRecording(s.GameID)
	assert.True(t, rec.IsRecording(s.GameID))
	rec.Record(s)
	finishTurn(t, s)
	rec.Record(s)

	replay, ok := rec.Replay(s.GameID)
	require.True(t, ok)
	assert.Equal(t, 2, replay.Size())
	assert.Empty(t, replay.Latest().Viewer, "replays keep the full view")

	require.NoError(t, rec.Save(s.GameID))
	assert.False(t, rec.IsRecording(s.GameID))
	assert.Error(t, rec.Save(s.GameID))

	loaded, err := rec.Load(s.GameID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Size())

	rec.StartRecording("other")
	rec.Discard("other")
	assert.False(t, rec.IsRecording("other"))
}

func TestChecksumIsDeterministic(t *testing.T) {
	s := newTestState(t, nil, "alice", "bob", "carol")
	a := s.Snapshot("")
	b := s.Snapshot("")
	assert.Equal(t, a.Checksum, b.Checksum, "map order and time do not matter")
	assert.True(t, a.VerifyChecksum())

	redacted := s.Snapshot("bob")
	assert.NotEqual(t, a.Checksum, redacted.Checksum)
	assert.True(t, redacted.VerifyChecksum())

	finishTurn(t, s)
	assert.NotEqual(t, a.Checksum, s.Snapshot("").Checksum)

	a.Players["alice"] = PlayerView{ID: "alice"}
	assert.False(t, a.VerifyChecksum())
	assert.False(t, (&Snapshot{}).VerifyChecksum())
}

func TestReplayMatchRecord(t *testing.T) {
	_, unfinished := recordGame(t, 1)
	_, ok := unfinished.MatchRecord(time.Now())
	assert.False(t, ok)

	s := newTestState(t, func(o *Options) { o.Terminal = PassLimit{Limit: 1} })
	replay := NewReplay(s.GameID)
	require.True(t, replay.Append(s.Snapshot("")))
	finishTurn(t, s)
	require.Equal(t, rules.PhaseGameOver, s.Phase)
	require.True(t, replay.Append(s.Snapshot("")))

	finishedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record, ok := replay.MatchRecord(finishedAt)
	require.True(t, ok)
	assert.Equal(t, s.GameID, record.GameID)
	assert.Equal(t, s.Winner, record.Winner)
	assert.Equal(t, []string{"alice", "bob"}, record.Players)
	assert.Equal(t, finishedAt, record.FinishedAt)
	assert.Equal(t, record.Turns, record.Stats.Turns)
	assert.Same(t, replay.Latest(), record.Final)
}
