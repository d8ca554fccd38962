// websocket.go - Push channel for request progress and notifications
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/convertdesk/backend/internal/notify"
	"github.com/convertdesk/backend/internal/request"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected    = "connected"
	MsgTypePong         = "pong"
	MsgTypeProgress     = "request:progress"
	MsgTypeTerminal     = "request:terminal"
	MsgTypeNotification = "notification"
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocketHandler pushes request lifecycle events and new notifications to
// connected browsers. Each connection gets its own subscriptions; a client
// that stops draining loses frames rather than stalling the orchestrator.
type WebSocketHandler struct {
	manager  *request.Manager
	notifier *notify.Queue
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new push handler
func NewWebSocketHandler(manager *request.Manager, notifier *notify.Queue) *WebSocketHandler {
	return &WebSocketHandler{
		manager:  manager,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Same-host SPA plus dev servers; the gateway binds loopback.
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// HandleWebSocket upgrades the connection and streams events until the
// client disconnects.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Println("[WebSocket] Client connected")

	events, cancelEvents := wsh.manager.Subscribe()
	defer cancelEvents()
	notifications, cancelNotifications := wsh.notifier.Subscribe()
	defer cancelNotifications()

	pings := make(chan struct{}, 1)
	done := make(chan struct{})

	// All writes happen on this goroutine; gorilla connections allow only
	// one concurrent writer.
	go func() {
		wsh.send(ws, WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})
		// Snapshot so a reconnecting client does not miss the current state.
		wsh.push(ws, MsgTypeProgress, wsh.manager.Status())
		for _, n := range wsh.notifier.Active() {
			wsh.push(ws, MsgTypeNotification, n)
		}

		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				msgType := MsgTypeProgress
				if evt.Type == request.EventTerminal {
					msgType = MsgTypeTerminal
				}
				if !wsh.push(ws, msgType, evt.State) {
					return
				}
			case n, ok := <-notifications:
				if !ok {
					return
				}
				if !wsh.push(ws, MsgTypeNotification, n) {
					return
				}
			case <-pings:
				if !wsh.send(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}) {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}
		if msg.Type == MsgTypePing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}

	close(done)
	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

func (wsh *WebSocketHandler) push(ws *websocket.Conn, msgType string, payload interface{}) bool {
	return wsh.send(ws, WSMessage{
		Type:      msgType,
		Payload:   mustJSON(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) bool {
	if err := ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
		return false
	}
	return true
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
