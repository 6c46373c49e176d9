// Package wsproto defines the JSON wire shapes exchanged over the
// /api/wall WebSocket (spec.md §6). Binary frames (chunk payloads) carry
// no Go type of their own - they're raw bytes whose layout is described
// by the JSON descriptors in ChunksNotification.
package wsproto

// ProtocolVersion is sent as the very first server text frame.
const ProtocolVersion = 1

// Hello is the first frame the server sends on every new connection.
type Hello struct {
	Version int `json:"version"`
}

// Handshake is the client's login frame, sent immediately after Hello.
type Handshake struct {
	User   string         `json:"user"`
	Secret string         `json:"secret"`
	Wall   string         `json:"wall,omitempty"`
	Init   HandshakeInit  `json:"init"`
}

type HandshakeInit struct {
	Brush string `json:"brush"`
}

// LoggedIn is the successful handshake reply.
type LoggedIn struct {
	Response  string    `json:"response"` // always "loggedIn"
	Wall      string    `json:"wall"`
	SessionID int       `json:"sessionId"`
	WallInfo  WallInfo  `json:"wallInfo"`
}

// WallInfo summarizes a wall's configuration, echoed at login.
type WallInfo struct {
	ChunkSize   int     `json:"chunkSize"`
	PaintArea   float64 `json:"paintArea"`
	MaxChunks   int     `json:"maxChunks"`
	MaxSessions int     `json:"maxSessions"`
}

// ErrorResponse is sent in place of LoggedIn when the handshake fails.
type ErrorResponse struct {
	Response string `json:"response"` // e.g. "loginFailed"
}

// Point is a wall-pixel coordinate; its components may be fractional.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WallEvent is the payload carried by both WallNotification and
// WallRequest; exactly one of its optional fields is populated, selected
// by Kind.
type WallEvent struct {
	Kind string `json:"kind"`

	Nickname string  `json:"nickname,omitempty"` // join
	Init     *HandshakeInit `json:"init,omitempty"`   // join
	Position *Point  `json:"position,omitempty"` // cursor
	Brush    string  `json:"brush,omitempty"`    // setBrush
	Points   []Point `json:"points,omitempty"`   // plot
}

const (
	EventJoin     = "join"
	EventLeave    = "leave"
	EventCursor   = "cursor"
	EventSetBrush = "setBrush"
	EventPlot     = "plot"
)

// WallNotification is a server -> client push of another session's event.
type WallNotification struct {
	Notify    string    `json:"notify"` // always "wall"
	SessionID int       `json:"sessionId"`
	WallEvent WallEvent `json:"wallEvent"`
}

// ChunkDescriptor locates one chunk's image within the binary frame that
// immediately follows a ChunksNotification.
type ChunkDescriptor struct {
	Position Coord `json:"position"`
	Offset   int   `json:"offset"`
	Length   int   `json:"length"`
}

type Coord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// ChunksNotification precedes a single binary frame packing every listed
// chunk's encoded bytes back to back.
type ChunksNotification struct {
	Notify  string            `json:"notify"` // always "chunks"
	Chunks  []ChunkDescriptor `json:"chunks"`
	HasMore bool              `json:"hasMore"`
}

// PongNotification answers a client ping.
type PongNotification struct {
	Notify string `json:"notify"` // always "pong"
}

// DiagnosticSpan locates a diagnostic within the brush source that
// produced it, in byte offsets.
type DiagnosticSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Diagnostic is one compile-time problem with a session's brush source.
type Diagnostic struct {
	Span    DiagnosticSpan `json:"span"`
	Message string         `json:"message"`
}

// BrushDiagnostics reports the outcome of recompiling a session's brush.
// An empty Diagnostics list means the brush compiled cleanly and is now
// active; a non-empty one means the brush is inert until fixed, but the
// session itself stays connected (spec.md §7).
type BrushDiagnostics struct {
	Notify      string       `json:"notify"` // always "brushDiagnostics"
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// WallRequest is a client -> server frame carrying a WallEvent.
type WallRequest struct {
	Request   string    `json:"request"` // always "wall"
	WallEvent WallEvent `json:"wallEvent"`
}

// ViewportRequest informs the server which chunks a session can see.
type ViewportRequest struct {
	Request     string `json:"request"` // always "viewport"
	TopLeft     Coord  `json:"topLeft"`
	BottomRight Coord  `json:"bottomRight"`
}

// MoreChunksRequest asks for the next batch after a HasMore response.
type MoreChunksRequest struct {
	Request string `json:"request"` // always "moreChunks"
}

// PingRequest is sent by the client every 30s to keep the connection alive.
type PingRequest struct {
	Request string `json:"request"` // always "ping"
}

// ErrorFrame is the final frame sent before closing a connection due to a
// protocol error (spec.md §7).
type ErrorFrame struct {
	Error string `json:"error"`
}

// Envelope is used only to sniff an incoming client frame's discriminator
// field before unmarshaling into its concrete type.
type Envelope struct {
	Request string `json:"request"`
}
