package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Game/turn events
	EventGameStarted EventType = "GAME_STARTED"
	EventTurnStarted EventType = "TURN_STARTED"
	EventTurnEnded   EventType = "TURN_ENDED"
	EventPhaseChange EventType = "PHASE_CHANGED"
	EventGameOver    EventType = "GAME_OVER"

	// Deck events
	EventCardDealt      EventType = "CARD_DEALT"
	EventDeckReshuffled EventType = "DECK_RESHUFFLED"
	EventDeckRebuilt    EventType = "DECK_REBUILT"
	EventDeckExhausted  EventType = "DECK_EXHAUSTED"

	// Card events
	EventValueCardPlayed  EventType = "VALUE_CARD_PLAYED"
	EventEffectCardPlayed EventType = "EFFECT_CARD_PLAYED"
	EventCardDiscarded    EventType = "CARD_DISCARDED"
	EventIntentRejected   EventType = "INTENT_REJECTED"

	// Modifier events
	EventModifierSet EventType = "MODIFIER_SET"
	EventReversed    EventType = "REVERSED"
	EventLocked      EventType = "LOCKED"
	EventUnlocked    EventType = "UNLOCKED"

	// Board events
	EventScoreChanged      EventType = "SCORE_CHANGED"
	EventPlayerMoved       EventType = "PLAYER_MOVED"
	EventPathChanged       EventType = "PATH_CHANGED"
	EventPlayerEliminated  EventType = "PLAYER_ELIMINATED"
	EventFieldEffectSet    EventType = "FIELD_EFFECT_SET"
	EventFieldEffectRemove EventType = "FIELD_EFFECT_REMOVED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type      EventType
	TargetID  string // player or card affected
	SourceID  string // card that caused the event
	PlayerID  string // acting player
	Amount    int
	Data      string
	Timestamp time.Time
	Metadata  map[string]string
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners must not publish or subscribe from inside the callback.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, playerID string) Event {
	return Event{
		Type:      eventType,
		TargetID:  targetID,
		SourceID:  sourceID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, targetID, sourceID, playerID string, amount int) Event {
	evt := NewEvent(eventType, targetID, sourceID, playerID)
	evt.Amount = amount
	return evt
}
