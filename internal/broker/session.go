// Package broker implements the per-wall session actor: the single
// goroutine that serializes every mutation to a wall's chunks, user table,
// and session list, and fans out events to connected sessions
// (spec.md §4.H, §5).
package broker

import (
	"github.com/liquidev/rakugaki/internal/haku/compiler"
	"github.com/liquidev/rakugaki/internal/haku/vm"
	"github.com/liquidev/rakugaki/internal/wall"
)

// State is a session's position in the connection state machine
// (spec.md §4.H):
//
//	CONNECTING -> (open) -> HANDSHAKE -> (login ok) -> ACTIVE -> (close) -> CLOSED
//	                               \-> (login err) -> REJECTED
type State int

const (
	StateConnecting State = iota
	StateHandshake
	StateActive
	StateRejected
	StateClosed
)

// Rect is a session's last-known viewport, in chunk units.
type Rect struct {
	TopLeft, BottomRight wall.Coord
}

// Session is one live connection's participation on a wall.
type Session struct {
	ID       int
	UserID   string
	Nickname string
	State    State

	Viewport    Rect
	HasViewport bool

	// Outbound is the session's bounded send queue; the broker never
	// blocks writing to it (see enqueue in actor.go) - cursor events are
	// dropped under backpressure before anything else, per spec.md §5.
	Outbound chan OutboundFrame

	brushSource  string
	brushResult  *compiler.Result
	brushDiags   []compiler.Diagnostic
	vm           *vm.VM

	visibleChunks map[wall.Coord]struct{}
}

// OutboundFrame is one unit of work for a session's sender task: a JSON
// text frame, optionally followed by a binary payload.
type OutboundFrame struct {
	JSON   any
	Binary []byte
}

func newSession(id int, userID string, outboundDepth int) *Session {
	return &Session{
		ID:            id,
		UserID:        userID,
		State:         StateHandshake,
		Outbound:      make(chan OutboundFrame, outboundDepth),
		visibleChunks: make(map[wall.Coord]struct{}),
	}
}

// setCompiled installs a freshly (re)compiled brush, replacing whatever
// the session had before. Recompilation always resets the VM, invalidating
// every def and heap allocation from the previous brush (spec.md §3,
// "Recompilation of a brush resets the instance").
func (s *Session) setCompiled(result *compiler.Result, diags []compiler.Diagnostic, brushVM *vm.VM, src string) {
	s.brushSource = src
	s.brushResult = result
	s.brushDiags = diags
	s.vm = brushVM
}

// Diagnostics reports the current brush's compile diagnostics, if any.
func (s *Session) Diagnostics() []compiler.Diagnostic {
	return s.brushDiags
}
