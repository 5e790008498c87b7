package game

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/config"
	"github.com/reversus/reversus-server/internal/game/catalog"
	"github.com/reversus/reversus-server/internal/game/effects"
	"github.com/reversus/reversus-server/internal/game/rules"
	"github.com/reversus/reversus-server/internal/game/targeting"
	"github.com/reversus/reversus-server/internal/game/watchers"
)

// LogType separates engine messages from player speech.
type LogType string

const (
	LogSystem   LogType = "system"
	LogDialogue LogType = "dialogue"
)

// LogEntry is one line of the game log.
type LogEntry struct {
	Type      LogType `json:"type"`
	Message   string  `json:"message"`
	Speaker   string  `json:"speaker,omitempty"`
	SpeakerID string  `json:"speakerId,omitempty"`
}

// FieldEffect is a passive modifier attached to one player.
type FieldEffect struct {
	Name      string           `json:"name"`
	Polarity  catalog.Polarity `json:"type"`
	Category  catalog.Category `json:"category"`
	Amount    int              `json:"amount"`
	AppliesTo string           `json:"appliesTo"`
}

// Path is one lane of the board.
type Path struct {
	ID int `json:"id"`
}

// Player is a seat in the game.
type Player struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	IsHuman                 bool              `json:"isHuman"`
	Hand                    []*catalog.Card   `json:"hand"`
	PathID                  int               `json:"pathId"`
	Score                   int               `json:"score"`
	Position                int               `json:"position"`
	IsEliminated            bool              `json:"isEliminated"`
	PlayedValueCardThisTurn bool              `json:"playedValueCardThisTurn"`
	TargetPathForPula       *int              `json:"targetPathForPula,omitempty"`
	Modifiers               effects.Modifiers `json:"modifiers"`
}

// count returns how many cards of kind the player holds.
func (p *Player) count(kind catalog.Kind) int {
	n := 0
	for _, c := range p.Hand {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (p *Player) card(cardID string) (*catalog.Card, int) {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return c, i
		}
	}
	return nil, -1
}

// Seat describes a player joining a game.
type Seat struct {
	ID      string
	Name    string
	IsHuman bool
}

// Settings are the numeric rules of a game.
type Settings struct {
	PathCount      int
	PathLength     int
	ValueHandSize  int
	EffectHandSize int
	ScoreDelta     int
	MoveDelta      int
	LogCapacity    int
	LockTurns      int
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		PathCount:      6,
		PathLength:     10,
		ValueHandSize:  2,
		EffectHandSize: 2,
		ScoreDelta:     2,
		MoveDelta:      1,
		LogCapacity:    50,
	}
}

// SettingsFromConfig converts the game section of the server configuration.
func SettingsFromConfig(cfg config.GameConfig) Settings {
	return Settings{
		PathCount:      cfg.PathCount,
		PathLength:     cfg.PathLength,
		ValueHandSize:  cfg.ValueHandSize,
		EffectHandSize: cfg.EffectHandSize,
		ScoreDelta:     cfg.ScoreDelta,
		MoveDelta:      cfg.MoveDelta,
		LogCapacity:    cfg.LogCapacity,
		LockTurns:      cfg.LockTurns,
	}
}

// Options configures NewState. Zero values select defaults.
type Options struct {
	Catalog  *catalog.Catalog
	Settings *Settings
	Terminal TerminalCondition
	RNG      *rand.Rand
	Logger   *zap.Logger
}

// State is the aggregate root of one game. Only the authority mutates it.
type State struct {
	GameID             string
	Players            map[string]*Player
	PlayerIDsInGame    []string
	CurrentPlayer      string
	Decks              map[catalog.Kind][]*catalog.Card
	Discards           map[catalog.Kind][]*catalog.Card
	BoardPaths         []Path
	ActiveFieldEffects []FieldEffect
	Log                []LogEntry
	ConsecutivePasses  int
	Phase              rules.Phase
	Winner             string
	Version            uint64

	catalog     *catalog.Catalog
	settings    Settings
	terminal    TerminalCondition
	rng         *rand.Rand
	logger      *zap.Logger
	turns       *rules.TurnManager
	bus         *rules.EventBus
	watchers    *rules.WatcherRegistry
	cardsPlayed *watchers.CardsPlayedWatcher
	stats       *watchers.MatchStatsWatcher
	targets     *targeting.TargetValidator
}

// NewState seats the players, builds and shuffles both decks, deals the
// opening hands and starts the first player's turn.
func NewState(gameID string, seats []Seat, opts Options) (*State, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, fmt.Errorf("game id is required")
	}
	if len(seats) < 2 {
		return nil, fmt.Errorf("at least 2 players required, got %d", len(seats))
	}

	settings := DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	if settings.PathCount < len(seats) {
		return nil, fmt.Errorf("%d players need at least %d paths, board has %d", len(seats), len(seats), settings.PathCount)
	}
	if settings.LogCapacity < 1 {
		settings.LogCapacity = DefaultSettings().LogCapacity
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	terminal := opts.Terminal
	if terminal == nil {
		terminal = NoTerminal{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &State{
		GameID:   gameID,
		Players:  make(map[string]*Player, len(seats)),
		Decks:    make(map[catalog.Kind][]*catalog.Card, len(catalog.Kinds)),
		Discards: make(map[catalog.Kind][]*catalog.Card, len(catalog.Kinds)),
		Phase:    rules.PhasePlaying,
		catalog:  cat,
		settings: settings,
		terminal: terminal,
		rng:      opts.RNG,
		logger:   logger.With(zap.String("game_id", gameID)),
		bus:      rules.NewEventBus(),
		watchers: rules.NewWatcherRegistry(),
	}

	for i, seat := range seats {
		id := strings.TrimSpace(seat.ID)
		if id == "" {
			return nil, fmt.Errorf("seat %d has no player id", i)
		}
		if _, dup := s.Players[id]; dup {
			return nil, fmt.Errorf("duplicate player id %q", id)
		}
		name := seat.Name
		if name == "" {
			name = id
		}
		s.Players[id] = &Player{
			ID:        id,
			Name:      name,
			IsHuman:   seat.IsHuman,
			Hand:      make([]*catalog.Card, 0, settings.ValueHandSize+settings.EffectHandSize),
			PathID:    i,
			Modifiers: effects.NewModifiers(),
		}
		s.PlayerIDsInGame = append(s.PlayerIDsInGame, id)
	}
	for i := 0; i < settings.PathCount; i++ {
		s.BoardPaths = append(s.BoardPaths, Path{ID: i})
	}
	for _, kind := range catalog.Kinds {
		s.Decks[kind] = catalog.Shuffle(s.rng, cat.BuildDeck(kind))
		s.Discards[kind] = make([]*catalog.Card, 0)
	}

	s.cardsPlayed = watchers.NewCardsPlayedWatcher()
	s.stats = watchers.NewMatchStatsWatcher()
	s.watchers.AddWatcher(s.cardsPlayed)
	s.watchers.AddWatcher(s.stats)
	s.watchers.Attach(s.bus)
	s.targets = targeting.NewTargetValidator(s)
	s.turns = rules.NewTurnManager(s.PlayerIDsInGame)

	s.systemLog("Game started with %d players.", len(seats))
	s.publish(rules.NewEvent(rules.EventGameStarted, "", "", ""))
	for _, id := range s.PlayerIDsInGame {
		s.refillHand(s.Players[id])
	}
	s.beginTurn(s.turns.ActivePlayer())
	s.logger.Info("game started",
		zap.Int("players", len(seats)),
		zap.Int("paths", settings.PathCount),
	)
	return s, nil
}

// Events exposes the game's event bus for collaborators that want to react
// to rule events.
func (s *State) Events() *rules.EventBus {
	return s.bus
}

// Settings returns the numeric rules of the game.
func (s *State) Settings() Settings {
	return s.settings
}

// Catalog returns the card configuration of the game.
func (s *State) Catalog() *catalog.Catalog {
	return s.catalog
}

// TurnNumber returns the current turn number (1-based).
func (s *State) TurnNumber() int {
	return s.turns.TurnNumber()
}

// Stats returns the match totals accumulated so far.
func (s *State) Stats() watchers.MatchStats {
	return s.stats.Stats()
}

// Player returns a seated player.
func (s *State) Player(id string) (*Player, bool) {
	p, ok := s.Players[id]
	return p, ok
}

// ActivePlayers returns the ids of non-eliminated players in seating order.
func (s *State) ActivePlayers() []string {
	out := make([]string, 0, len(s.PlayerIDsInGame))
	for _, id := range s.PlayerIDsInGame {
		if !s.Players[id].IsEliminated {
			out = append(out, id)
		}
	}
	return out
}

// AddDialogue appends a speech line to the log.
func (s *State) AddDialogue(speakerID, message string) error {
	p, ok := s.Players[speakerID]
	if !ok {
		return rejection("player %s is not in this game", speakerID)
	}
	s.addLog(LogEntry{Type: LogDialogue, Message: message, Speaker: p.Name, SpeakerID: p.ID})
	s.touch()
	return nil
}

func (s *State) addLog(entry LogEntry) {
	s.Log = append([]LogEntry{entry}, s.Log...)
	if len(s.Log) > s.settings.LogCapacity {
		s.Log = s.Log[:s.settings.LogCapacity]
	}
}

func (s *State) systemLog(format string, args ...any) {
	s.addLog(LogEntry{Type: LogSystem, Message: fmt.Sprintf(format, args...)})
}

func (s *State) publish(evt rules.Event) {
	s.bus.Publish(evt)
}

func (s *State) touch() {
	s.Version++
}

// reject records a validation failure and returns phase to playing.
func (s *State) reject(actorID string, err error) error {
	s.systemLog("Rejected: %s", Reason(err))
	if s.Phase != rules.PhaseGameOver {
		s.Phase = rules.PhasePlaying
	}
	evt := rules.NewEvent(rules.EventIntentRejected, "", "", actorID)
	evt.Data = Reason(err)
	s.publish(evt)
	s.touch()
	s.logger.Warn("intent rejected", zap.String("player_id", actorID), zap.Error(err))
	return err
}

func (s *State) name(id string) string {
	if p, ok := s.Players[id]; ok {
		return p.Name
	}
	return id
}
