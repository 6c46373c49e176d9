package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/liquidev/rakugaki/internal/broker"
	"github.com/liquidev/rakugaki/internal/wall"
	"github.com/liquidev/rakugaki/internal/wsproto"
)

// handshakeTimeout bounds how long a freshly-opened socket may stay in
// CONNECTING/HANDSHAKE before it's dropped (spec.md §7, "recommended
// 10 s").
const handshakeTimeout = 10 * time.Second

// pingInterval is the cadence the client is expected to ping at; missing
// three consecutive pings closes the socket (spec.md §7).
const pingInterval = 30 * time.Second

const missedPingsAllowed = 3

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWallSocket upgrades GET /api/wall to a WebSocket and runs its
// connection lifecycle: send Hello, wait for a Handshake, then pump
// notifications and requests until the socket closes
// (spec.md §7's CONNECTING -> HANDSHAKE -> ACTIVE -> CLOSED machine).
func (s *Server) handleWallSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	wsConn := newWSConnection(s, conn)
	wsConn.run()
}

// wsConnection owns one socket's lifetime: a read goroutine decoding
// client frames, and the calling goroutine draining the session's
// outbound queue (grounded on opensea-streamer's split
// listenerLoop/connectionLoop pump).
type wsConnection struct {
	srv     *Server
	conn    *websocket.Conn
	wall    *wallEntry
	session *broker.Session

	// lastPingAt is written from readLoop and read from sendLoop's
	// liveness check; atomic.Pointer keeps that cross-goroutine access
	// race-free (grounded on opensea-streamer's lastEventReceived).
	lastPingAt atomic.Pointer[time.Time]
}

func newWSConnection(srv *Server, conn *websocket.Conn) *wsConnection {
	return &wsConnection{srv: srv, conn: conn}
}

func (w *wsConnection) touchLastPing() {
	now := time.Now()
	w.lastPingAt.Store(&now)
}

func (w *wsConnection) run() {
	defer w.conn.Close()

	if err := w.conn.WriteJSON(wsproto.Hello{Version: wsproto.ProtocolVersion}); err != nil {
		return
	}

	w.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var hs wsproto.Handshake
	if err := w.conn.ReadJSON(&hs); err != nil {
		w.conn.WriteJSON(wsproto.ErrorResponse{Response: "handshakeTimeout"})
		return
	}

	user, ok := w.srv.login.Verify(hs.User, hs.Secret)
	if !ok {
		w.conn.WriteJSON(wsproto.ErrorResponse{Response: "loginFailed"})
		return
	}

	wallID := hs.Wall
	if wallID == "" {
		wallID = newWallID()
	}
	w.wall = w.srv.registry.get(wallID)

	session, err := w.wall.actor.Join(user.UserID, user.Nickname, hs.Init.Brush)
	if err != nil {
		w.conn.WriteJSON(wsproto.ErrorResponse{Response: "wallFull"})
		return
	}
	w.session = session
	defer w.wall.actor.Leave(session.ID)

	w.conn.WriteJSON(wsproto.LoggedIn{
		Response:  "loggedIn",
		Wall:      wallID,
		SessionID: session.ID,
		WallInfo: wsproto.WallInfo{
			ChunkSize:   w.srv.cfg.ChunkSize,
			PaintArea:   w.srv.cfg.PaintArea,
			MaxChunks:   w.srv.cfg.MaxChunks,
			MaxSessions: w.srv.cfg.MaxSessions,
		},
	})

	w.conn.SetReadDeadline(time.Time{})
	w.touchLastPing()

	readErrs := make(chan error, 1)
	go w.readLoop(readErrs)

	w.sendLoop(readErrs)
}

// readLoop decodes client requests off the socket and applies them
// against the wall actor. It never touches the socket's write side other
// than to report fatal errors, so it can run concurrently with sendLoop.
func (w *wsConnection) readLoop(errs chan<- error) {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			errs <- err
			return
		}

		var env wsproto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Request {
		case "wall":
			var req wsproto.WallRequest
			if json.Unmarshal(data, &req) == nil {
				w.wall.actor.WallEvent(w.session.ID, req.WallEvent)
			}
		case "viewport":
			var req wsproto.ViewportRequest
			if json.Unmarshal(data, &req) == nil {
				w.wall.actor.Viewport(w.session.ID, broker.Rect{
					TopLeft:     coordFromWire(req.TopLeft),
					BottomRight: coordFromWire(req.BottomRight),
				})
			}
		case "moreChunks":
			w.wall.actor.MoreChunks(w.session.ID)
		case "ping":
			w.touchLastPing()
			w.wall.actor.Ping(w.session.ID)
		}
	}
}

// sendLoop drains the session's outbound queue onto the socket and
// enforces the ping-liveness budget until the socket or the session
// closes.
func (w *wsConnection) sendLoop(readErrs <-chan error) {
	missedCheck := time.NewTicker(pingInterval)
	defer missedCheck.Stop()

	for {
		select {
		case <-readErrs:
			return

		case frame, ok := <-w.session.Outbound:
			if !ok {
				return
			}
			if err := w.conn.WriteJSON(frame.JSON); err != nil {
				return
			}
			if frame.Binary != nil {
				if err := w.conn.WriteMessage(websocket.BinaryMessage, frame.Binary); err != nil {
					return
				}
			}

		case <-missedCheck.C:
			last := w.lastPingAt.Load()
			if last == nil || time.Since(*last) > pingInterval*missedPingsAllowed {
				w.conn.WriteJSON(wsproto.ErrorFrame{Error: "missedPings"})
				return
			}
		}
	}
}

func coordFromWire(c wsproto.Coord) wall.Coord {
	return wall.Coord{X: c.X, Y: c.Y}
}
