package session

import "errors"

// ErrUnknownCommand is returned when a command name does not map to a transition.
var ErrUnknownCommand = errors.New("unknown session command")
