package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auravis/auravis/pkg/encoding"
	"github.com/auravis/auravis/pkg/viz"
)

const (
	wsWriteTimeout  = 5 * time.Second
	wsPongTimeout   = 60 * time.Second
	wsPingInterval  = 20 * time.Second
	wsMaxMessage    = 1 << 20
	wsCatchUpFrames = 30
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsCommand is one client text message.
type wsCommand struct {
	Type       string                 `json:"type"`
	Audio      encoding.StdBase64Data `json:"audio,omitempty"`
	ResetModel bool                   `json:"reset_model,omitempty"`
}

// wsReply is one server text message. Type is "connected", "frame",
// "reset", "train", "status" or "error"; the matching payload field is set.
type wsReply struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Frame     *viz.Frame       `json:"frame,omitempty"`
	Status    *viz.SessionInfo `json:"status,omitempty"`
	Started   *bool            `json:"started,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// wsConn serializes writes to one websocket connection. Control pings go
// through WriteControl, which gorilla allows concurrently.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

// handleWS runs the live stream for one client. Binary messages are PCM16LE
// chunks answered with a frame; text messages are JSON commands. The
// session is created when the first chunk arrives, not on connect, so a
// watching client never pins an idle session alive.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := sessionVar(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	s.hub.Metrics().WSClients.Inc()
	defer s.hub.Metrics().WSClients.Dec()
	s.logger.Info("server: websocket client connected", "session", id, "remote", r.RemoteAddr)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	c := &wsConn{conn: conn}
	if err := c.writeJSON(wsReply{Type: "connected", SessionID: id}); err != nil {
		return
	}
	// Catch a late-attaching monitor up on recent frames.
	for _, f := range s.hub.Frames(id, wsCatchUpFrames) {
		if err := c.writeJSON(wsReply{Type: "frame", SessionID: id, Frame: &f}); err != nil {
			return
		}
	}

	stop := make(chan struct{})
	defer close(stop)
	go pingLoop(conn, stop)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("server: websocket read failed", "session", id, "err", err)
			}
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			frame, _ := s.hub.Process(id, data)
			if err := c.writeJSON(wsReply{Type: "frame", SessionID: id, Frame: frame}); err != nil {
				return
			}
		case websocket.TextMessage:
			if err := s.dispatchWS(c, id, data); err != nil {
				return
			}
		}
	}
}

// pingLoop keeps the connection alive until stop closes or a ping fails.
func pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}
		}
	}
}

// dispatchWS handles one text command. Command failures are reported to the
// client as error replies; only write failures tear the connection down.
func (s *Server) dispatchWS(c *wsConn, id string, data []byte) error {
	var cmd wsCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return c.writeJSON(wsReply{Type: "error", Error: "invalid command: " + err.Error()})
	}

	switch cmd.Type {
	case "audio":
		frame, _ := s.hub.Process(id, cmd.Audio)
		return c.writeJSON(wsReply{Type: "frame", SessionID: id, Frame: frame})
	case "reset":
		if err := s.hub.Reset(id, cmd.ResetModel); err != nil {
			return c.writeJSON(wsReply{Type: "error", Error: err.Error()})
		}
		return c.writeJSON(wsReply{Type: "reset", SessionID: id})
	case "train":
		started, err := s.hub.Train(id)
		if err != nil {
			return c.writeJSON(wsReply{Type: "error", Error: err.Error()})
		}
		return c.writeJSON(wsReply{Type: "train", SessionID: id, Started: &started})
	case "status":
		info, err := s.hub.Status(id)
		if err != nil {
			return c.writeJSON(wsReply{Type: "error", Error: err.Error()})
		}
		return c.writeJSON(wsReply{Type: "status", SessionID: id, Status: &info})
	default:
		return c.writeJSON(wsReply{Type: "error", Error: fmt.Sprintf("unknown command type %q", cmd.Type)})
	}
}
