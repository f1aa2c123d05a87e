package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

type testUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type testSession struct {
	ID   string   `json:"id"`
	User testUser `json:"user"`
}

func newTestApp(t *testing.T, mutate func(*Config)) (*App, *httptest.Server) {
	t.Helper()

	t.Setenv("BABILADO_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("BABILADO_ARGON2_ITERATIONS", "1")
	t.Setenv("BABILADO_ARGON2_PARALLELISM", "1")

	cfg := LoadConfig()
	cfg.DatabaseURL = ""
	cfg.ReadinessRequireDB = false
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := httptest.NewServer(a.newHandler())
	t.Cleanup(srv.Close)
	return a, srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path string, body any, hdr map[string]string) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func signUp(t *testing.T, srv *httptest.Server, username string) testSession {
	t.Helper()

	const pw = "Str0ng-Passw0rd!"
	status, body := doRequest(t, srv, http.MethodPost, "/api/users", map[string]string{"username": username, "password": pw}, nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = doRequest(t, srv, http.MethodGet, "/api/session", nil, map[string]string{"username": username, "password": pw})
	require.Equal(t, http.StatusOK, status, string(body))

	var s testSession
	require.NoError(t, json.Unmarshal(body, &s))
	return s
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := LoadConfig()
	cfg.HTTPAddr = ""
	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestHTTP_Probes(t *testing.T) {
	_, srv := newTestApp(t, nil)

	status, body := doRequest(t, srv, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok\n", string(body))

	status, _ = doRequest(t, srv, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestHTTP_MetricsToggle(t *testing.T) {
	_, srv := newTestApp(t, nil)
	signUp(t, srv, "alice")

	status, body := doRequest(t, srv, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), `babilado_session_requests_total{result="created"} 1`)
	require.Contains(t, string(body), "go_goroutines")

	_, off := newTestApp(t, func(c *Config) { c.MetricsEnabled = false })
	status, _ = doRequest(t, off, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestHTTP_SendOverAPIPushesToWebsocket(t *testing.T) {
	a, srv := newTestApp(t, nil)
	alice := signUp(t, srv, "alice")
	bob := signUp(t, srv, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hdr := http.Header{}
	hdr.Set("userid", bob.User.ID)
	hdr.Set("sessionid", bob.ID)
	conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{HTTPHeader: hdr})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	require.Eventually(t, func() bool {
		_, ok := a.registry.Lookup(bob.User.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	status, body := doRequest(t, srv, http.MethodPost, "/api/message",
		map[string]string{"recipient": bob.User.ID, "msg_data": "hello bob"},
		map[string]string{"userid": alice.User.ID, "sessionid": alice.ID},
	)
	require.Equal(t, http.StatusCreated, status, string(body))

	_, frame, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev v1.Event
	require.NoError(t, json.Unmarshal(frame, &ev))
	require.Equal(t, v1.TypeNewMessage, ev.Type)
	require.NotNil(t, ev.NewMessage)
	require.Equal(t, alice.User.ID, ev.NewMessage.Sender)
	require.Equal(t, "hello bob", ev.NewMessage.MsgData)
}

func TestHTTP_WebsocketRejectsBadSession(t *testing.T) {
	_, srv := newTestApp(t, nil)
	alice := signUp(t, srv, "alice")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set("userid", alice.User.ID)
	req.Header.Set("sessionid", "not-the-token")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_SecurityHeadersOnAPI(t *testing.T) {
	_, srv := newTestApp(t, nil)

	resp, err := srv.Client().Get(srv.URL + "/api/messages")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestRun_ShutdownClosesWebsockets(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	a, srv := newTestApp(t, func(c *Config) {
		c.HTTPAddr = addr
		c.ShutdownTimeout = 5 * time.Second
	})
	bob := signUp(t, srv, "bob")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	hdr := http.Header{}
	hdr.Set("userid", bob.User.ID)
	hdr.Set("sessionid", bob.ID)

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		dialCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c, resp, err := websocket.Dial(dialCtx, "ws://"+addr+"/ws", &websocket.DialOptions{HTTPHeader: hdr})
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 3*time.Second, 20*time.Millisecond)
	defer func() { _ = conn.CloseNow() }()

	require.Eventually(t, func() bool { return a.registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	readErr := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(context.Background())
		readErr <- err
	}()

	stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
	require.Equal(t, 0, a.registry.Len())

	select {
	case err := <-readErr:
		require.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	case <-time.After(3 * time.Second):
		t.Fatal("websocket stayed open after shutdown")
	}
}
