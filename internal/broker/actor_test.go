package broker_test

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/broker"
	"github.com/liquidev/rakugaki/internal/wall"
	"github.com/liquidev/rakugaki/internal/wsproto"
)

func newTestActor(t *testing.T) *broker.Actor {
	t.Helper()
	store := wall.New(afero.NewMemMapFs(), "db/walls/test", 168, 0, nil)
	a := broker.NewActor("wall_test", store, broker.DefaultLimits, nil)
	go a.Run()
	t.Cleanup(a.Stop)
	return a
}

func drain(t *testing.T, ch chan broker.OutboundFrame) broker.OutboundFrame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return broker.OutboundFrame{}
	}
}

func TestJoinFansOutToOtherSessionsOnly(t *testing.T) {
	a := newTestActor(t)

	sessionA, err := a.Join("userA", "alice", "stroke 8 #000 (vec 0 0)")
	require.NoError(t, err)
	sessionB, err := a.Join("userB", "bob", "stroke 8 #000 (vec 0 0)")
	require.NoError(t, err)

	// Each join first sends the joining session its own brushDiagnostics
	// frame; B's join is then fanned out to A (the only other active
	// session at that point).
	drain(t, sessionA.Outbound) // A's own brushDiagnostics
	frame := drain(t, sessionA.Outbound)
	notif, ok := frame.JSON.(wsproto.WallNotification)
	require.True(t, ok)
	require.Equal(t, wsproto.EventJoin, notif.WallEvent.Kind)
	require.Equal(t, sessionB.ID, notif.SessionID)
}

func TestPlotEchoSuppressedForSender(t *testing.T) {
	a := newTestActor(t)
	sessionA, err := a.Join("userA", "alice", "stroke 8 #000 (vec 0 0)")
	require.NoError(t, err)
	sessionB, err := a.Join("userB", "bob", "stroke 8 #000 (vec 0 0)")
	require.NoError(t, err)
	drain(t, sessionA.Outbound) // A's own brushDiagnostics
	drain(t, sessionA.Outbound) // B's join notification
	drain(t, sessionB.Outbound) // B's own brushDiagnostics

	a.WallEvent(sessionA.ID, wsproto.WallEvent{Kind: wsproto.EventPlot, Points: []wsproto.Point{{X: 0, Y: 0}}})

	frame := drain(t, sessionB.Outbound)
	notif := frame.JSON.(wsproto.WallNotification)
	require.Equal(t, wsproto.EventPlot, notif.WallEvent.Kind)
	require.Equal(t, sessionA.ID, notif.SessionID)

	select {
	case f := <-sessionA.Outbound:
		t.Fatalf("sender received its own plot echo: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlotAppliesBrushServerSideAndDirtiesChunks(t *testing.T) {
	store := wall.New(afero.NewMemMapFs(), "db/walls/test", 168, 0, nil)
	a := broker.NewActor("wall_test", store, broker.DefaultLimits, nil)
	go a.Run()
	t.Cleanup(a.Stop)

	s, err := a.Join("userA", "alice", "fill #000 (circle 0 0 4)")
	require.NoError(t, err)
	a.WallEvent(s.ID, wsproto.WallEvent{Kind: wsproto.EventPlot, Points: []wsproto.Point{{X: 10, Y: 10}}})

	ch, err := store.GetOrCreate(wall.Coord{X: 0, Y: 0})
	require.NoError(t, err)
	require.True(t, ch.Dirty)
}

func TestJoinRejectsWhenWallFull(t *testing.T) {
	store := wall.New(afero.NewMemMapFs(), "db/walls/test", 168, 0, nil)
	limits := broker.DefaultLimits
	limits.MaxSessions = 1
	a := broker.NewActor("wall_test", store, limits, nil)
	go a.Run()
	t.Cleanup(a.Stop)

	_, err := a.Join("userA", "alice", "")
	require.NoError(t, err)
	_, err = a.Join("userB", "bob", "")
	require.Error(t, err)
}

func TestViewportStreamsOnlyNewChunksOnce(t *testing.T) {
	a := newTestActor(t)
	s, err := a.Join("userA", "alice", "")
	require.NoError(t, err)
	drain(t, s.Outbound) // own brushDiagnostics

	rect := broker.Rect{
		TopLeft:     wall.Coord{X: 0, Y: 0},
		BottomRight: wall.Coord{X: 0, Y: 0},
	}
	a.Viewport(s.ID, rect)

	frame := drain(t, s.Outbound)
	chunks, ok := frame.JSON.(wsproto.ChunksNotification)
	require.True(t, ok)
	require.Len(t, chunks.Chunks, 1)
	require.False(t, chunks.HasMore)

	// Re-reporting the same viewport must not resend the already-seen
	// chunk.
	a.Viewport(s.ID, rect)
	select {
	case f := <-s.Outbound:
		t.Fatalf("chunk resent after no viewport change: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}
