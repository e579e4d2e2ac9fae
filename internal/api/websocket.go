package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/orchestrator"
	"github.com/AaronLay10/FNOLSimulator/internal/presentation"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types sent over /ws.
const (
	MessageFrame = "frame"
	MessageEvent = "event"
)

// WSMessage is one websocket payload. Frame messages carry a full render;
// event messages carry a single bus event.
type WSMessage struct {
	Type   string               `json:"type"`
	Frame  *presentation.Frame  `json:"frame,omitempty"`
	Status *presentation.Status `json:"status,omitempty"`
	Event  *events.Event        `json:"event,omitempty"`
}

// frameEvents are the events after which clients need a fresh frame.
var frameEvents = map[string]bool{
	events.StageActivated:      true,
	events.StageCompleted:      true,
	events.TransitionStarted:   true,
	events.TransitionCompleted: true,
	events.MessageRevealed:     true,
	events.MessagesCleared:     true,
	events.LayoutChanged:       true,
	events.SimulationReset:     true,
	events.SimulationSpeed:     true,
	events.SimulationCompleted: true,
}

func (s *Server) frameMessage() WSMessage {
	frame := s.sim.Render()
	status := s.sim.Status()
	return WSMessage{Type: MessageFrame, Frame: &frame, Status: &status}
}

// wsHandler streams a frame on connect, every bus event as it happens, a
// fresh frame after visible changes, and a periodic frame while running so
// elapsed time keeps moving.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.clients.Add(1)
	defer s.clients.Add(-1)

	bus := s.sim.Bus()
	sub := bus.Subscribe(256)
	defer bus.Unsubscribe(sub)

	send := func(m WSMessage) error {
		data, err := json.Marshal(m)
		if err != nil {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for _, e := range bus.RecentEvents(recentEventsCount) {
		e := e
		if err := send(WSMessage{Type: MessageEvent, Event: &e}); err != nil {
			s.logger.Debug("ws write recent event failed", "error", err)
			return
		}
	}
	if err := send(s.frameMessage()); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	frames := time.NewTicker(s.frameInterval)
	defer frames.Stop()

	for {
		select {
		case <-done:
			return

		case e, ok := <-sub:
			if !ok {
				return
			}
			if err := send(WSMessage{Type: MessageEvent, Event: &e}); err != nil {
				s.logger.Debug("ws write event failed", "error", err)
				return
			}
			if frameEvents[e.Name] {
				if err := send(s.frameMessage()); err != nil {
					return
				}
			}

		case <-frames.C:
			if s.sim.Status().Mode != orchestrator.ModeRunning {
				continue
			}
			if err := send(s.frameMessage()); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
