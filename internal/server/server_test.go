package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/config"
	"github.com/liquidev/rakugaki/internal/server"
	"github.com/liquidev/rakugaki/internal/wsproto"
)

func newTestServer(t *testing.T) (*httptest.Server, *server.Server) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.MaxSessions = 4

	srv := server.New(cfg, afero.NewMemMapFs(), "db", nil, true)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, srv
}

func register(t *testing.T, ts *httptest.Server, nickname string) (userID, secret string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"nickname": nickname})
	resp, err := http.Post(ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		UserID string `json:"userId"`
		Secret string `json:"secret"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.UserID, out.Secret
}

func TestLoginIssuesVerifiableCredentials(t *testing.T) {
	ts, _ := newTestServer(t)
	userID, secret := register(t, ts, "alice")
	require.NotEmpty(t, userID)
	require.NotEmpty(t, secret)
}

func TestLoginRejectsDuplicateNickname(t *testing.T) {
	ts, _ := newTestServer(t)
	register(t, ts, "bob")

	body, _ := json.Marshal(map[string]string{"nickname": "bob"})
	resp, err := http.Post(ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func dialWall(t *testing.T, ts *httptest.Server, userID, secret, wall string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/wall"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var hello wsproto.Hello
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, wsproto.ProtocolVersion, hello.Version)

	require.NoError(t, conn.WriteJSON(wsproto.Handshake{
		User:   userID,
		Secret: secret,
		Wall:   wall,
		Init:   wsproto.HandshakeInit{Brush: "stroke 8 #000 (vec 0 0)"},
	}))
	return conn
}

func TestWallHandshakeSucceedsAndReturnsWallInfo(t *testing.T) {
	ts, _ := newTestServer(t)
	userID, secret := register(t, ts, "carol")

	conn := dialWall(t, ts, userID, secret, "")
	defer conn.Close()

	var loggedIn wsproto.LoggedIn
	require.NoError(t, conn.ReadJSON(&loggedIn))
	require.Equal(t, "loggedIn", loggedIn.Response)
	require.NotEmpty(t, loggedIn.Wall)
	require.Equal(t, 168, loggedIn.WallInfo.ChunkSize)
}

func TestWallHandshakeRejectsBadSecret(t *testing.T) {
	ts, _ := newTestServer(t)
	userID, _ := register(t, ts, "dave")

	conn := dialWall(t, ts, userID, "wrong-secret", "")
	defer conn.Close()

	var env struct {
		Response string `json:"response"`
	}
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, "loginFailed", env.Response)
}

func TestTwoSessionsShareAWallAndSeeEachOthersJoin(t *testing.T) {
	ts, _ := newTestServer(t)
	userA, secretA := register(t, ts, "erin")
	userB, secretB := register(t, ts, "frank")

	connA := dialWall(t, ts, userA, secretA, "wall_shared")
	defer connA.Close()
	var loggedInA wsproto.LoggedIn
	require.NoError(t, connA.ReadJSON(&loggedInA))

	// A's own brush compiled cleanly; drain its diagnostics notification
	// before B joins.
	var diagsA wsproto.BrushDiagnostics
	require.NoError(t, connA.ReadJSON(&diagsA))
	require.Empty(t, diagsA.Diagnostics)

	connB := dialWall(t, ts, userB, secretB, "wall_shared")
	defer connB.Close()
	var loggedInB wsproto.LoggedIn
	require.NoError(t, connB.ReadJSON(&loggedInB))

	var notif wsproto.WallNotification
	require.NoError(t, connA.ReadJSON(&notif))
	require.Equal(t, wsproto.EventJoin, notif.WallEvent.Kind)
	require.Equal(t, loggedInB.SessionID, notif.SessionID)
}
