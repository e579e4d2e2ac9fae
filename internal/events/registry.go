package events

import "fmt"

// Event names emitted by the simulator.
const (
	SimulationStarted   = "simulation.started"
	SimulationPaused    = "simulation.paused"
	SimulationResumed   = "simulation.resumed"
	SimulationCompleted = "simulation.completed"
	SimulationReset     = "simulation.reset"
	SimulationSpeed     = "simulation.speed"

	TransitionStarted   = "transition.started"
	TransitionCompleted = "transition.completed"

	StageActivated = "stage.activated"
	StageCompleted = "stage.completed"

	LogAppended = "log.appended"

	MessageRevealed = "message.revealed"
	MessagesCleared = "message.cleared"

	LayoutChanged = "layout.changed"

	ControlRejected = "control.rejected"

	SystemStartup  = "system.startup"
	SystemShutdown = "system.shutdown"
	SystemError    = "system.error"
)

var allowedEvents = map[string]struct{}{
	// simulation
	SimulationStarted:   {},
	SimulationPaused:    {},
	SimulationResumed:   {},
	SimulationCompleted: {},
	SimulationReset:     {},
	SimulationSpeed:     {},

	// transition
	TransitionStarted:   {},
	TransitionCompleted: {},

	// stage
	StageActivated: {},
	StageCompleted: {},

	// event log
	LogAppended: {},

	// messages
	MessageRevealed: {},
	MessagesCleared: {},

	// layout
	LayoutChanged: {},

	// controls
	ControlRejected: {},

	// system
	SystemStartup:  {},
	SystemShutdown: {},
	SystemError:    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
