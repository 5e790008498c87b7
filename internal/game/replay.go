package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/game/watchers"
)

const replayFormatVersion = 1

// Replay is the ordered list of full snapshots taken after each accepted
// state change of one game.
type Replay struct {
	GameID string
	Frames []*Snapshot
	cursor int
	mu     sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(gameID string) *Replay {
	return &Replay{GameID: gameID, Frames: make([]*Snapshot, 0)}
}

// Append records a frame. Frames that do not advance the version are dropped.
func (r *Replay) Append(snap *Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.Frames); n > 0 && snap.Version <= r.Frames[n-1].Version {
		return false
	}
	r.Frames = append(r.Frames, snap)
	return true
}

// Start rewinds playback.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = 0
}

// Next returns the frame under the cursor and advances it, or nil at the end.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor >= len(r.Frames) {
		return nil
	}
	snap := r.Frames[r.cursor]
	r.cursor++
	return snap
}

// Previous steps the cursor back and returns that frame, or nil at the start.
func (r *Replay) Previous() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor == 0 {
		return nil
	}
	r.cursor--
	return r.Frames[r.cursor]
}

// Skip moves the cursor by count frames, clamped to the recording.
func (r *Replay) Skip(count int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Frames) == 0 {
		return nil
	}
	r.cursor = min(max(r.cursor+count, 0), len(r.Frames)-1)
	return r.Frames[r.cursor]
}

// Size returns the number of frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Frames)
}

// FrameAt returns frame i or nil.
func (r *Replay) FrameAt(i int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.Frames) {
		return nil
	}
	return r.Frames[i]
}

// Latest returns the last recorded frame or nil.
func (r *Replay) Latest() *Snapshot {
	return r.FrameAt(r.Size() - 1)
}

// MatchRecord rebuilds the archive record of a finished game from its last
// frame. Per-player play counts are not part of the frames, so only the turn
// count of Stats is filled. ok is false when the game did not finish.
func (r *Replay) MatchRecord(finishedAt time.Time) (record MatchRecord, ok bool) {
	last := r.Latest()
	if last == nil || last.Phase != rules.PhaseGameOver {
		return MatchRecord{}, false
	}
	return MatchRecord{
		GameID:     r.GameID,
		Winner:     last.Winner,
		Players:    append([]string(nil), last.PlayerIDsInGame...),
		Turns:      last.TurnNumber,
		Stats:      watchers.MatchStats{Turns: last.TurnNumber},
		Final:      last,
		FinishedAt: finishedAt,
	}, true
}

type replayHeader struct {
	GameID     string
	SavedAt    time.Time
	Version    int
	FrameCount int
}

func replayPath(directory, gameID string) string {
	return filepath.Join(directory, gameID+".replay")
}

// SaveToFile writes the replay as a gzip-compressed gob stream: a header
// followed by every frame.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(replayPath(directory, r.GameID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	enc := gob.NewEncoder(zw)
	header := replayHeader{
		GameID:     r.GameID,
		SavedAt:    time.Now().UTC(),
		Version:    replayFormatVersion,
		FrameCount: len(r.Frames),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i, frame := range r.Frames {
		if err := enc.Encode(frame); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	return zw.Close()
}

// LoadReplayFromFile reads a replay written by SaveToFile. Every frame must
// pass its checksum.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if header.Version != replayFormatVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}

	replay := NewReplay(header.GameID)
	for i := 0; i < header.FrameCount; i++ {
		var frame Snapshot
		if err := dec.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		if !frame.VerifyChecksum() {
			return nil, fmt.Errorf("frame %d: %w", i, ErrStaleSnapshot)
		}
		replay.Frames = append(replay.Frames, &frame)
	}
	return replay, nil
}

// ReplayRecorder keeps one in-memory replay per recorded game.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	saveDir string
}

// NewReplayRecorder creates a recorder saving into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		saveDir: saveDir,
	}
}

// StartRecording begins a new replay for gameID, discarding any previous one.
func (rr *ReplayRecorder) StartRecording(gameID string) {
	rr.mu.Lock()
	rr.replays[gameID] = NewReplay(gameID)
	rr.mu.Unlock()

	rr.logger.Info("started replay recording", zap.String("game_id", gameID))
}

// IsRecording reports whether gameID is being recorded.
func (rr *ReplayRecorder) IsRecording(gameID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	_, ok := rr.replays[gameID]
	return ok
}

// Record appends the full view of the state to the game's replay.
func (rr *ReplayRecorder) Record(s *State) {
	rr.RecordSnapshot(s.Snapshot(""))
}

// RecordSnapshot appends a snapshot to its game's replay, if recording.
func (rr *ReplayRecorder) RecordSnapshot(snap *Snapshot) {
	rr.mu.RLock()
	replay := rr.replays[snap.GameID]
	rr.mu.RUnlock()
	if replay == nil {
		return
	}
	if replay.Append(snap) {
		rr.logger.Debug("recorded replay frame",
			zap.String("game_id", snap.GameID),
			zap.Uint64("version", snap.Version),
			zap.Int("frames", replay.Size()),
		)
	}
}

// Replay returns the in-memory replay of a game.
func (rr *ReplayRecorder) Replay(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[gameID]
	return replay, ok
}

// Save writes the replay to disk and stops recording the game.
func (rr *ReplayRecorder) Save(gameID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[gameID]
	delete(rr.replays, gameID)
	rr.mu.Unlock()
	if !ok {
		return fmt.Errorf("no replay for game %s", gameID)
	}

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("saved replay",
		zap.String("game_id", gameID),
		zap.Int("frames", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// Load reads a saved replay.
func (rr *ReplayRecorder) Load(gameID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, gameID)
}

// Discard drops a replay without saving it.
func (rr *ReplayRecorder) Discard(gameID string) {
	rr.mu.Lock()
	delete(rr.replays, gameID)
	rr.mu.Unlock()
}
