package table

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game"
)

// State represents the lifecycle of a table.
type State int

const (
	StateWaiting State = iota
	StateDueling
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateDueling:
		return "DUELING"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableStarted  = errors.New("table already started")
	ErrTableFull     = errors.New("table is full")
	ErrAlreadySeated = errors.New("player already seated")
	ErrNotSeated     = errors.New("player not seated")
	ErrNotHost       = errors.New("only the host can do that")
)

// Seat is a player waiting at a table.
type Seat struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	IsHuman  bool   `json:"isHuman"`
}

// Snapshot captures a consistent view of a table.
type Snapshot struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	HostID     string     `json:"hostId"`
	State      string     `json:"state"`
	Seats      []Seat     `json:"seats"`
	MaxSeats   int        `json:"maxSeats"`
	Winner     string     `json:"winner,omitempty"`
	CreateTime time.Time  `json:"createTime"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	EndTime    *time.Time `json:"endTime,omitempty"`
}

// Table gathers players before a game starts. Its id becomes the game id.
type Table struct {
	ID         string
	Name       string
	HostID     string
	State      State
	Seats      []Seat
	MaxSeats   int
	Winner     string
	CreateTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time
	mu         sync.RWMutex
}

// NewTable creates a waiting table with the host in the first seat.
func NewTable(name string, host Seat, maxSeats int) *Table {
	t := &Table{
		ID:         uuid.New().String(),
		Name:       name,
		HostID:     host.PlayerID,
		State:      StateWaiting,
		MaxSeats:   maxSeats,
		CreateTime: time.Now(),
	}
	t.Seats = append(t.Seats, host)
	return t
}

// AddPlayer seats a player.
func (t *Table) AddPlayer(seat Seat) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != StateWaiting {
		return ErrTableStarted
	}
	for _, s := range t.Seats {
		if s.PlayerID == seat.PlayerID {
			return ErrAlreadySeated
		}
	}
	if len(t.Seats) >= t.MaxSeats {
		return ErrTableFull
	}
	t.Seats = append(t.Seats, seat)
	return nil
}

// RemovePlayer frees a seat before the game starts.
func (t *Table) RemovePlayer(playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != StateWaiting {
		return ErrTableStarted
	}
	for i, s := range t.Seats {
		if s.PlayerID == playerID {
			t.Seats = append(t.Seats[:i], t.Seats[i+1:]...)
			return nil
		}
	}
	return ErrNotSeated
}

// IsHost checks if the given player controls the table.
func (t *Table) IsHost(playerID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.HostID == playerID
}

// GetState returns the current table state.
func (t *Table) GetState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

func (t *Table) setState(state State) {
	now := time.Now()
	t.State = state
	switch state {
	case StateDueling:
		if t.StartTime == nil {
			t.StartTime = &now
		}
	case StateFinished:
		t.EndTime = &now
	}
}

// Snapshot returns a consistent copy of the table.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Snapshot{
		ID:         t.ID,
		Name:       t.Name,
		HostID:     t.HostID,
		State:      t.State.String(),
		Seats:      append([]Seat(nil), t.Seats...),
		MaxSeats:   t.MaxSeats,
		Winner:     t.Winner,
		CreateTime: t.CreateTime,
		StartTime:  cloneTime(t.StartTime),
		EndTime:    cloneTime(t.EndTime),
	}
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

// GameStarter launches the game behind a table.
type GameStarter interface {
	StartGame(ctx context.Context, gameID string, seats []game.Seat) (*game.LocalAuthority, error)
}

// Manager manages tables.
type Manager struct {
	tables   map[string]*Table
	mu       sync.RWMutex
	logger   *zap.Logger
	starter  GameStarter
	maxSeats int
}

// NewManager creates a table manager. maxSeats is usually the board's path
// count.
func NewManager(starter GameStarter, maxSeats int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tables:   make(map[string]*Table),
		logger:   logger,
		starter:  starter,
		maxSeats: maxSeats,
	}
}

// CreateTable opens a new table hosted by host.
func (m *Manager) CreateTable(name string, host Seat) *Table {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("%s's table", host.Name)
	}
	t := NewTable(name, host, m.maxSeats)
	m.tables[t.ID] = t

	m.logger.Info("table created",
		zap.String("table_id", t.ID),
		zap.String("name", name),
		zap.String("host", host.PlayerID),
	)
	return t
}

// GetTable retrieves a table by id.
func (m *Manager) GetTable(tableID string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", tableID, ErrTableNotFound)
	}
	return t, nil
}

// JoinTable seats a player at a waiting table.
func (m *Manager) JoinTable(tableID string, seat Seat) (*Table, error) {
	t, err := m.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	if err := t.AddPlayer(seat); err != nil {
		return nil, err
	}
	m.logger.Debug("player joined table", zap.String("table_id", tableID), zap.String("player_id", seat.PlayerID))
	return t, nil
}

// StartTable starts the game behind a table. Only the host may start it.
func (m *Manager) StartTable(ctx context.Context, tableID, playerID string) (*game.LocalAuthority, error) {
	t, err := m.GetTable(tableID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.HostID != playerID {
		t.mu.Unlock()
		return nil, ErrNotHost
	}
	if t.State != StateWaiting {
		t.mu.Unlock()
		return nil, ErrTableStarted
	}
	seats := make([]game.Seat, 0, len(t.Seats))
	for _, s := range t.Seats {
		seats = append(seats, game.Seat{ID: s.PlayerID, Name: s.Name, IsHuman: s.IsHuman})
	}
	auth, err := m.starter.StartGame(ctx, t.ID, seats)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.setState(StateDueling)
	t.mu.Unlock()

	m.logger.Info("table started", zap.String("table_id", tableID), zap.Int("players", len(seats)))
	return auth, nil
}

// HandleNotification marks tables finished when their game ends. It is meant
// to be installed as the engine's notification handler.
func (m *Manager) HandleNotification(n game.GameNotification) {
	if n.Type != game.NotificationGameOver {
		return
	}
	t, err := m.GetTable(n.GameID)
	if err != nil {
		return
	}
	t.mu.Lock()
	t.Winner = n.PlayerID
	t.setState(StateFinished)
	t.mu.Unlock()
	m.logger.Info("table finished", zap.String("table_id", n.GameID), zap.String("winner", n.PlayerID))
}

// RemoveTable removes a table.
func (m *Manager) RemoveTable(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tables, tableID)
	m.logger.Info("table removed", zap.String("table_id", tableID))
}

// Tables returns snapshots of all tables, oldest first.
func (m *Manager) Tables() []Snapshot {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime.Before(out[j].CreateTime) })
	return out
}

// ActiveCount returns the number of tables not yet finished.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, t := range m.tables {
		if t.GetState() != StateFinished {
			count++
		}
	}
	return count
}
