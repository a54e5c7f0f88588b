package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kyagmur/dicewars/store"
)

// isValidOrigin checks if the origin is allowed to connect
func isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No origin header - could be a non-browser client
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	// Allow same-origin connections
	if r.Host == originURL.Host {
		return true
	}

	// Allow localhost connections for development
	if strings.HasPrefix(originURL.Host, "localhost:") ||
		strings.HasPrefix(originURL.Host, "127.0.0.1:") ||
		originURL.Host == "localhost" ||
		originURL.Host == "127.0.0.1" {
		return true
	}

	return false
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       isValidOrigin,
	EnableCompression: true,
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second

	// sendBufferSize bounds a session's outbound queue; overflow marks
	// the session dead rather than blocking the broadcaster.
	sendBufferSize = 256
)

// Client is one WebSocket connection bound to a room group.
type Client struct {
	user   string
	roomID string
	conn   *websocket.Conn
	send   chan any
	server *Server
	log    *logrus.Entry

	closeOnce sync.Once
	done      chan struct{}
}

// Enqueue offers a frame to the outbound queue without blocking.
func (c *Client) Enqueue(frame any) bool {
	select {
	case <-c.done:
		// Already closing; drop silently.
		return true
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Kill tears the connection down. Safe to call more than once.
func (c *Client) Kill() {
	c.closeOnce.Do(func() { close(c.done) })
	c.conn.Close()
}

// HandleGameSocket upgrades GET /ws/game/<roomId> to a WebSocket
// session: authenticate, resolve the room, register with the hub, send
// the current snapshot, auto-join while the room is still open, then
// pump messages.
func (s *Server) HandleGameSocket(w http.ResponseWriter, r *http.Request) {
	username, err := s.auth.Authenticate(r)
	if err != nil {
		if !errors.Is(err, ErrAnonymous) {
			s.log.WithError(err).Warn("authentication failed")
		}
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	roomID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/ws/game/"), "/")
	room, err := s.store.GetRoom(roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		user:   username,
		roomID: roomID,
		conn:   conn,
		send:   make(chan any, sendBufferSize),
		server: s,
		log:    s.log.WithFields(logrus.Fields{"room_id": roomID, "user": username}),
		done:   make(chan struct{}),
	}

	s.hub.Join(roomID, client)
	client.log.Info("session connected")

	go client.writePump()
	go client.readPump()

	// Current snapshot first, so a reconnecting or spectating client
	// renders immediately.
	client.Enqueue(stateFrame(room))

	// Auto-join an open seat.
	if room.Status == store.StatusWaiting && !room.IsFull() && !room.HasPlayer(username) {
		if err := s.JoinRoom(username, roomID); err != nil {
			client.fail(err)
		}
	}
}

// readPump handles incoming messages from the client.
func (c *Client) readPump() {
	defer func() {
		c.server.hub.Leave(c.roomID, c)
		c.Kill()
		c.log.Info("session disconnected")
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Debug("read error")
			}
			return
		}
		c.handleMessage(msg)
	}
}

// writePump sends queued frames to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound command. Malformed or unknown
// messages are ignored with a debug log; handler rejections go back to
// this session only.
func (c *Client) handleMessage(msg ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("panic handling %s: %v", msg.Type, r)
		}
	}()

	switch msg.Type {
	case MsgTypeMakeMove:
		if msg.Row == nil || msg.Col == nil {
			c.log.Debug("make_move without coordinates ignored")
			return
		}
		if err := c.server.MakeMove(c.user, c.roomID, *msg.Row, *msg.Col); err != nil {
			c.fail(err)
		}

	case MsgTypeStartGame:
		if err := c.server.StartGame(c.user, c.roomID); err != nil {
			c.fail(err)
		}

	case MsgTypeKickPlayer:
		if msg.KickTarget == "" {
			c.log.Debug("kick_player without target ignored")
			return
		}
		if err := c.server.KickPlayer(c.user, c.roomID, msg.KickTarget); err != nil {
			c.fail(err)
		}

	case MsgTypeRequestRematch:
		if err := c.server.RequestRematch(c.user, c.roomID); err != nil {
			c.fail(err)
		}

	default:
		c.log.Debugf("unknown message type %q ignored", msg.Type)
	}
}

// fail converts a handler error into an error frame for this session.
func (c *Client) fail(err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		c.Enqueue(errorFrame(ve.Code))
	case errors.Is(err, store.ErrRoomNotFound):
		c.Enqueue(errorFrame(ErrRoomNotFound))
	default:
		c.log.WithError(err).Error("command failed")
		c.Enqueue(errorFrame(ErrInternal))
	}
}
