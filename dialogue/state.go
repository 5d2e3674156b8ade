package dialogue

import (
	"context"
	"fmt"
)

// State is where a chat is in a multi-message exchange with the bot.
type State int

const (
	Idle State = iota
	WaitingEmergencyText
	WaitingForInvite
)

var stateNames = map[State]string{
	Idle:                 "idle",
	WaitingEmergencyText: "waiting_emergency_text",
	WaitingForInvite:     "waiting_for_invite",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for state, n := range stateNames {
		if n == name {
			return state, nil
		}
	}
	return Idle, fmt.Errorf("unknown dialogue state %q", name)
}

// Store keeps the current State per chat. Chats without an entry are Idle,
// and setting Idle removes the entry.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, state State) error
}
