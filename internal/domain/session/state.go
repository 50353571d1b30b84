// Package session runs the tracking state machine and serializes every
// update to the session metrics.
package session

import (
	"fmt"
	"strings"

	"github.com/okian/stride/internal/domain/announce"
)

// State is the lifecycle position of a session.
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
	StatePaused   State = "paused"
)

// States lists every State.
var States = []State{StateIdle, StateTracking, StatePaused}

func (s State) String() string { return string(s) }

// Command is a request to change State.
type Command string

const (
	CommandStart  Command = "start"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandReset  Command = "reset"
	CommandToggle Command = "toggle"
)

// ParseCommand maps a name to a Command.
func ParseCommand(name string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(name))); c {
	case CommandStart, CommandPause, CommandResume, CommandReset, CommandToggle:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// resolve returns the target state and the notification kind for cmd in
// from. ok is false when cmd has no effect.
func resolve(from State, cmd Command) (to State, kind announce.Kind, ok bool) {
	if cmd == CommandToggle {
		switch from {
		case StateIdle:
			cmd = CommandStart
		case StateTracking:
			cmd = CommandPause
		case StatePaused:
			cmd = CommandResume
		}
	}

	switch cmd {
	case CommandStart, CommandResume:
		switch from {
		case StateIdle:
			return StateTracking, announce.KindStart, true
		case StatePaused:
			return StateTracking, announce.KindResume, true
		}
	case CommandPause:
		if from == StateTracking {
			return StatePaused, announce.KindPause, true
		}
	case CommandReset:
		return StateIdle, announce.KindReset, true
	}
	return from, "", false
}
