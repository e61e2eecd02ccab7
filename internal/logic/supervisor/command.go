package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCommand is returned for commands the supervisor does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrShutdown is returned for every command after Quit.
	ErrShutdown = errors.New("supervisor is shut down")
)

// Mode is the supervisory control mode.
type Mode int32

const (
	Idle Mode = iota
	Automatic
	Manual
	Quit
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Automatic:
		return "automatic"
	case Manual:
		return "manual"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// Command is an operator request.
type Command int

const (
	CmdAutomatic Command = iota + 1
	CmdManual
	CmdStop
	CmdStatus
	CmdQuit
)

func (c Command) String() string {
	switch c {
	case CmdAutomatic:
		return "auto"
	case CmdManual:
		return "manual"
	case CmdStop:
		return "stop"
	case CmdStatus:
		return "status"
	case CmdQuit:
		return "quit"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand maps an operator word to a Command.
func ParseCommand(word string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "auto":
		return CmdAutomatic, nil
	case "manual":
		return CmdManual, nil
	case "stop":
		return CmdStop, nil
	case "status":
		return CmdStatus, nil
	case "quit":
		return CmdQuit, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, word)
	}
}

// Report describes the outcome of a command.
type Report struct {
	Mode    Mode   // mode after the command
	Changed bool   // false for no-ops and status queries
	Message string // operator-facing text
}
