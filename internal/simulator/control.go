package simulator

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
)

// Control commands accepted from remote surfaces.
const (
	CommandPlay  = "play"
	CommandPause = "pause"
	CommandStep  = "step"
	CommandReset = "reset"
	CommandSpeed = "speed"
)

var ErrUnknownCommand = errors.New("unknown command")

// Control dispatches a named playback command. Rejected commands are
// reported on the bus as control.rejected before the error is returned.
func (s *Simulator) Control(source, command string, multiplier float64) error {
	var err error
	switch command {
	case CommandPlay:
		err = s.Play()
	case CommandPause:
		err = s.Pause()
	case CommandStep:
		err = s.Step()
	case CommandReset:
		s.Reset()
	case CommandSpeed:
		err = s.SetSpeed(multiplier)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	if err != nil {
		_ = s.bus.Emit("warn", events.ControlRejected, err.Error(), map[string]interface{}{
			"source":  source,
			"command": command,
		})
	}
	return err
}
