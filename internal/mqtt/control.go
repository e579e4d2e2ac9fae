package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

// ControlTopic returns the topic playback commands are read from.
func ControlTopic(prefix string) string {
	return prefix + "/control"
}

// Command is a playback command payload, for example
// {"command":"speed","multiplier":1.5}.
type Command struct {
	Command    string  `json:"command"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// ParseCommand decodes a control payload. A bare word such as "play" is
// accepted as well as JSON.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		word := string(data)
		if word == "" || len(word) > 16 {
			return nil, fmt.Errorf("invalid control payload: %w", err)
		}
		cmd.Command = word
	}
	if cmd.Command == "" {
		return nil, fmt.Errorf("control payload missing command")
	}
	return &cmd, nil
}

// Controller executes playback commands.
type Controller interface {
	Control(source, command string, multiplier float64) error
}

// ControlHandler applies commands received on the control topic.
type ControlHandler struct {
	ctl    Controller
	logger *slog.Logger
}

// NewControlHandler creates a handler.
func NewControlHandler(ctl Controller, logger *slog.Logger) *ControlHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ControlHandler{ctl: ctl, logger: logger}
}

// Subscribe registers the handler on <prefix>/control.
func (h *ControlHandler) Subscribe(t Transport, prefix string) error {
	return t.Subscribe(ControlTopic(prefix), h.Handle)
}

// Handle is a paho message handler.
func (h *ControlHandler) Handle(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		h.logger.Warn("ignoring control message", "topic", msg.Topic(), "error", err)
		return
	}
	if err := h.ctl.Control("mqtt", cmd.Command, cmd.Multiplier); err != nil {
		h.logger.Info("control command rejected", "command", cmd.Command, "error", err)
	}
}
