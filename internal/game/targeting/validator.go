package targeting

import (
	"errors"
	"fmt"
)

// ErrNoFreePath is returned when every path is occupied.
var ErrNoFreePath = errors.New("no free path")

// TargetValidator validates that selected targets are legal.
type TargetValidator struct {
	gameState TargetGameStateAccessor
}

// TargetGameStateAccessor provides access to game state needed for target validation.
type TargetGameStateAccessor interface {
	// FindPlayerForTarget finds player info by ID
	FindPlayerForTarget(playerID string) (TargetPlayerInfo, bool)
	// PathsForTarget returns every board path in order
	PathsForTarget() []TargetPathInfo
}

// TargetPlayerInfo provides information about a player for target validation.
type TargetPlayerInfo struct {
	PlayerID   string
	PathID     int
	Eliminated bool
}

// TargetPathInfo describes one board path; OccupantID is empty when nobody
// still in the game stands on it.
type TargetPathInfo struct {
	ID         int
	OccupantID string
}

// NewTargetValidator creates a new target validator.
func NewTargetValidator(gameState TargetGameStateAccessor) *TargetValidator {
	return &TargetValidator{gameState: gameState}
}

// ValidatePlayer checks a player target chosen by actorID.
func (tv *TargetValidator) ValidatePlayer(actorID, targetID string, requirement TargetRequirement) error {
	if tv == nil || tv.gameState == nil {
		return fmt.Errorf("target validator not initialized")
	}
	if requirement.Type != TargetTypePlayer {
		return fmt.Errorf("requirement %s is not a player target", requirement.Type)
	}
	if targetID == "" {
		return fmt.Errorf("%s is required", requirement.Description)
	}
	player, ok := tv.gameState.FindPlayerForTarget(targetID)
	if !ok {
		return fmt.Errorf("target player %s not found", targetID)
	}
	if player.Eliminated {
		return fmt.Errorf("target player %s has been eliminated", targetID)
	}
	if !requirement.AllowSelf && targetID == actorID {
		return fmt.Errorf("cannot target yourself")
	}
	return nil
}

// ValidatePath checks a destination path for moverID.
func (tv *TargetValidator) ValidatePath(moverID string, pathID int, requirement TargetRequirement) error {
	if tv == nil || tv.gameState == nil {
		return fmt.Errorf("target validator not initialized")
	}
	if requirement.Type != TargetTypePath {
		return fmt.Errorf("requirement %s is not a path target", requirement.Type)
	}
	free := tv.FreePaths()
	if requirement.Free && len(free) == 0 {
		return ErrNoFreePath
	}
	for _, path := range tv.gameState.PathsForTarget() {
		if path.ID != pathID {
			continue
		}
		if requirement.Free && path.OccupantID != "" {
			if path.OccupantID == moverID {
				return fmt.Errorf("player %s is already on path %d", moverID, pathID)
			}
			return fmt.Errorf("path %d is occupied by %s", pathID, path.OccupantID)
		}
		return nil
	}
	return fmt.Errorf("path %d does not exist", pathID)
}

// FreePaths returns the ids of paths nobody in the game occupies.
func (tv *TargetValidator) FreePaths() []int {
	if tv == nil || tv.gameState == nil {
		return nil
	}
	var free []int
	for _, path := range tv.gameState.PathsForTarget() {
		if path.OccupantID == "" {
			free = append(free, path.ID)
		}
	}
	return free
}
