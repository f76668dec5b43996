package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestAdmin(t *testing.T, cfg *Config) (*Hub, *httptest.Server) {
	t.Helper()

	log := zap.NewNop().Sugar()
	hub := NewHub(cfg, log)

	mux := httprouter.New()
	mux.GET("/healthz", serveHealthCheck())
	mux.GET("/version", serveVersion())
	mux.GET("/stats", serveStats(hub))
	mux.GET("/ws", serveWS(cfg, hub, log))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.closeAll)

	return hub, srv
}

func TestAdminEndpoints(t *testing.T) {
	_, srv := startTestAdmin(t, testConfig())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Contains(t, stats, "connections")
	assert.Contains(t, stats, "active_matches")
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func wsSend(t *testing.T, conn *websocket.Conn, env Envelope) {
	t.Helper()

	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func wsRecv(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestWebSocketSpeaksTheSameProtocol(t *testing.T) {
	_, srv := startTestAdmin(t, testConfig())

	conn := dialWS(t, srv)

	wsSend(t, conn, envelopeOf(TagLoginAttempt, "alice"))
	env := wsRecv(t, conn)
	require.Equal(t, TagLoginSuccessful, env.Tag)

	var snapshot LoginSnapshot
	require.NoError(t, env.decode(&snapshot))
	assert.Equal(t, []string{"alice"}, snapshot.Names)

	wsSend(t, conn, envelopeOf(TagHeartbeat, nil))
	env = wsRecv(t, conn)
	assert.Equal(t, TagHeartbeat, env.Tag)
}

func TestWebSocketSharesTheConnectionCap(t *testing.T) {
	cfg := testConfig()
	cfg.maxClients = 1

	hub, srv := startTestAdmin(t, cfg)

	conn := dialWS(t, srv)
	wsSend(t, conn, envelopeOf(TagLoginAttempt, "alice"))
	wsRecv(t, conn)

	require.Equal(t, 1, hub.ClientCount())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		resp.Body.Close()
	}
}
