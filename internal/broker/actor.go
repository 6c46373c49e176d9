package broker

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/liquidev/rakugaki/internal/haku/compiler"
	"github.com/liquidev/rakugaki/internal/haku/parser"
	"github.com/liquidev/rakugaki/internal/haku/value"
	"github.com/liquidev/rakugaki/internal/haku/vm"
	"github.com/liquidev/rakugaki/internal/raster"
	"github.com/liquidev/rakugaki/internal/wall"
	"github.com/liquidev/rakugaki/internal/wsproto"
)

// Limits bounds a wall's haku runs and session bookkeeping; fields mirror
// the haku_limits table (spec.md §6).
type Limits struct {
	Parser      parser.Limits
	Compiler    compiler.Limits
	VM          vm.Limits
	Raster      raster.Limits
	ChunkSize   int
	PaintArea   float64
	MaxChunks   int
	MaxSessions int
	OutboundQueueDepth int
}

var DefaultLimits = Limits{
	Parser:      parser.DefaultLimits,
	Compiler:    compiler.DefaultLimits,
	VM:          vm.DefaultLimits,
	Raster:      raster.DefaultLimits,
	ChunkSize:   168,
	PaintArea:   8,
	MaxChunks:   1 << 16,
	MaxSessions: 64,
	OutboundQueueDepth: 64,
}

// Actor is the single-goroutine owner of one wall's authoritative state:
// its chunk store, its session registry, and every mutation to either.
// Every exported method sends a message onto Actor's mailbox and is safe
// to call concurrently; only the goroutine started by Run ever touches
// the unexported fields directly (spec.md §5: "a single-threaded
// cooperative actor owns all wall mutations").
type Actor struct {
	WallID string
	limits Limits
	store  *wall.Store
	log    *logrus.Entry

	mailbox chan func()
	done    chan struct{}

	mu           sync.Mutex // guards nextSessionID and sessions, for Stats()
	nextSessionID int
	sessions     map[int]*Session
}

// NewActor creates an Actor over an already-opened Store. Call Run in its
// own goroutine to start processing messages.
func NewActor(wallID string, store *wall.Store, limits Limits, log *logrus.Entry) *Actor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Actor{
		WallID:   wallID,
		limits:   limits,
		store:    store,
		log:      log,
		mailbox:  make(chan func(), 256),
		done:     make(chan struct{}),
		sessions: make(map[int]*Session),
	}
}

// Run processes the mailbox until Stop is called. It must run in its own
// goroutine; every wall mutation happens here and nowhere else.
func (a *Actor) Run() {
	for {
		select {
		case fn := <-a.mailbox:
			fn()
		case <-a.done:
			return
		}
	}
}

// Stop drains no further messages and flushes the wall's dirty chunks.
func (a *Actor) Stop() {
	close(a.done)
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Error("failed to flush wall on close")
	}
}

// send posts fn onto the mailbox and blocks until it has run, giving
// callers a synchronous request/reply feel over the actor's single
// goroutine.
func (a *Actor) send(fn func()) {
	done := make(chan struct{})
	a.mailbox <- func() {
		fn()
		close(done)
	}
	<-done
}

// SessionCount reports live sessions, for wallInfo responses.
func (a *Actor) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// Join admits a new session, compiling its initial brush. When
// max_sessions is already reached it admits nothing and returns an error
// whose message is "wallFull".
func (a *Actor) Join(userID, nickname, initialBrush string) (*Session, error) {
	var result *Session
	var joinErr error
	a.send(func() {
		if a.limits.MaxSessions > 0 && len(a.sessions) >= a.limits.MaxSessions {
			joinErr = fmt.Errorf("wallFull")
			return
		}
		a.nextSessionID++
		s := newSession(a.nextSessionID, userID, a.limits.OutboundQueueDepth)
		s.Nickname = nickname
		s.State = StateActive
		a.compileAndInstall(s, initialBrush)

		a.mu.Lock()
		a.sessions[s.ID] = s
		a.mu.Unlock()

		a.broadcastExcept(s.ID, wsproto.WallEvent{Kind: wsproto.EventJoin, Nickname: nickname})
		result = s
	})
	return result, joinErr
}

// Leave removes sessionID and fans out a leave event to everyone else.
func (a *Actor) Leave(sessionID int) {
	a.send(func() {
		a.mu.Lock()
		s, ok := a.sessions[sessionID]
		if ok {
			delete(a.sessions, sessionID)
		}
		a.mu.Unlock()
		if !ok {
			return
		}
		s.State = StateClosed
		close(s.Outbound)
		a.broadcastExcept(sessionID, wsproto.WallEvent{Kind: wsproto.EventLeave})
	})
}

// WallEvent handles a cursor, setBrush, or plot event from sessionID.
func (a *Actor) WallEvent(sessionID int, event wsproto.WallEvent) {
	a.send(func() {
		a.mu.Lock()
		s, ok := a.sessions[sessionID]
		a.mu.Unlock()
		if !ok {
			return
		}

		switch event.Kind {
		case wsproto.EventCursor:
			a.broadcastExcept(sessionID, event)
		case wsproto.EventSetBrush:
			a.compileAndInstall(s, event.Brush)
		case wsproto.EventPlot:
			a.applyPlot(s, event.Points)
			a.broadcastExcept(sessionID, event)
		}
	})
}

// Viewport updates sessionID's visible rect and streams any newly visible
// chunks. Call MoreChunks to continue a batch truncated by HasMore.
func (a *Actor) Viewport(sessionID int, rect Rect) {
	a.send(func() {
		a.mu.Lock()
		s, ok := a.sessions[sessionID]
		a.mu.Unlock()
		if !ok {
			return
		}
		s.Viewport = rect
		s.HasViewport = true
		forgetOutOfView(s, rect)
		a.streamNewChunks(s)
	})
}

// MoreChunks continues streaming a session's pending chunk batch.
func (a *Actor) MoreChunks(sessionID int) {
	a.send(func() {
		a.mu.Lock()
		s, ok := a.sessions[sessionID]
		a.mu.Unlock()
		if !ok {
			return
		}
		a.streamNewChunks(s)
	})
}

// Ping replies with a pong notification.
func (a *Actor) Ping(sessionID int) {
	a.send(func() {
		a.mu.Lock()
		s, ok := a.sessions[sessionID]
		a.mu.Unlock()
		if !ok {
			return
		}
		a.enqueue(s, OutboundFrame{JSON: wsproto.PongNotification{Notify: "pong"}})
	})
}

// compileAndInstall lexes, parses, and compiles src for s, replacing its
// previous compiled brush regardless of whether this one succeeds: a
// brush with diagnostics is simply inert until the next edit
// (spec.md §7, "compile errors never abort a session").
func (a *Actor) compileAndInstall(s *Session, src string) {
	tree := parser.Parse(src, a.limits.Parser)
	root, buildErrs := tree.Build(a.limits.Parser)
	var diags []compiler.Diagnostic
	for _, e := range buildErrs {
		diags = append(diags, compiler.Diagnostic{Span: e.Span, Message: e.Message})
	}

	var result *compiler.Result
	if len(diags) == 0 {
		var compileDiags []compiler.Diagnostic
		result, compileDiags = compiler.Compile(root, a.limits.Compiler)
		diags = append(diags, compileDiags...)
	}

	s.setCompiled(result, diags, vm.New(a.limits.VM), src)

	wireDiags := make([]wsproto.Diagnostic, len(diags))
	for i, d := range diags {
		wireDiags[i] = wsproto.Diagnostic{
			Span:    wsproto.DiagnosticSpan{Start: d.Span.Start, End: d.Span.End},
			Message: d.Message,
		}
	}
	a.enqueue(s, OutboundFrame{JSON: wsproto.BrushDiagnostics{Notify: "brushDiagnostics", Diagnostics: wireDiags}})
}

// applyPlot runs s's compiled brush at every point, painting into and
// dirtying every chunk overlapping paint_area at that point - the
// authoritative server-side re-execution that makes wall state converge
// regardless of client behavior (spec.md §4.H).
func (a *Actor) applyPlot(s *Session, points []wsproto.Point) {
	if s.brushResult == nil || len(s.brushDiags) > 0 {
		return
	}
	for _, p := range points {
		result, exc := s.vm.Run(s.brushResult.Main, nil, &vm.Defs{Chunks: s.brushResult.DefChunks})
		if exc != nil {
			continue
		}
		a.paintAt(s, p.X, p.Y, result, s.vm.Heap())
	}
}

func (a *Actor) paintAt(s *Session, x, y float64, result value.Value, heap *value.Heap) {
	coords := wall.ChunksForPaintArea(x, y, a.limits.PaintArea, a.limits.ChunkSize)
	for _, c := range coords {
		if !c.InRange() {
			continue
		}
		ch, err := a.store.GetOrCreate(c)
		if err != nil {
			a.log.WithError(err).Warn("dropping plot: wall full")
			continue
		}
		tx := x - float64(c.X)*float64(a.limits.ChunkSize)
		ty := y - float64(c.Y)*float64(a.limits.ChunkSize)
		if err := raster.Render(ch.Pixmap, heap, result, tx, ty, a.limits.Raster); err != nil {
			continue
		}
		a.store.Touch(c)
	}
}

// broadcastExcept fans event out to every active session other than
// exceptID (spec.md §8: "S never receives its own plot echo").
func (a *Actor) broadcastExcept(exceptID int, event wsproto.WallEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, s := range a.sessions {
		if id == exceptID || s.State != StateActive {
			continue
		}
		a.enqueue(s, OutboundFrame{JSON: wsproto.WallNotification{
			Notify: "wall", SessionID: exceptID, WallEvent: event,
		}})
	}
}

// enqueue posts frame to s's outbound queue without blocking. Under
// backpressure, cursor events are dropped first (spec.md §5); any other
// event forces disconnection by closing the session from the send side.
func (a *Actor) enqueue(s *Session, frame OutboundFrame) {
	select {
	case s.Outbound <- frame:
	default:
		if ev, ok := frame.JSON.(wsproto.WallNotification); ok && ev.WallEvent.Kind == wsproto.EventCursor {
			return
		}
		a.log.WithField("session", s.ID).Warn("outbound queue full, disconnecting session")
		go a.Leave(s.ID)
	}
}
