package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

const maxReadBytes = 1 << 20

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type session struct {
	ID         string `json:"id"`
	User       user   `json:"user"`
	ExpiryTime int64  `json:"expiryTime"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiClient talks to the JSON API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, hdr map[string]string, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(raw, &e) == nil && e.Error.Code != "" {
			return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode, e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("%s %s: %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *apiClient) createUser(ctx context.Context, username, password string) (user, error) {
	var u user
	err := c.do(ctx, http.MethodPost, "/api/users", map[string]string{"username": username, "password": password}, nil, &u)
	return u, err
}

func (c *apiClient) login(ctx context.Context, username, password string) (session, error) {
	var s session
	err := c.do(ctx, http.MethodGet, "/api/session", nil, map[string]string{"username": username, "password": password}, &s)
	return s, err
}

func (c *apiClient) lookup(ctx context.Context, s session, username string) (user, error) {
	var u user
	err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(username), nil, authHeaders(s), &u)
	return u, err
}

func (c *apiClient) messages(ctx context.Context, s session, other string) ([]v1.Message, error) {
	var out []v1.Message
	err := c.do(ctx, http.MethodGet, "/api/messages?recipient="+url.QueryEscape(other), nil, authHeaders(s), &out)
	return out, err
}

func authHeaders(s session) map[string]string {
	return map[string]string{"userid": s.User.ID, "sessionid": s.ID}
}

// liveConn is a websocket channel with a background reader feeding inbox.
type liveConn struct {
	name  string
	conn  *websocket.Conn
	inbox chan v1.Event
	errCh chan error
}

func dialLive(ctx context.Context, opts *options, name string, s session) (*liveConn, error) {
	wsURL, err := websocketURL(opts.server)
	if err != nil {
		return nil, err
	}

	hdr := http.Header{}
	hdr.Set("userid", s.User.ID)
	hdr.Set("sessionid", s.ID)
	if strings.TrimSpace(opts.origin) != "" {
		hdr.Set("Origin", opts.origin)
	}

	dctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dctx, wsURL, &websocket.DialOptions{HTTPHeader: hdr})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	conn.SetReadLimit(maxReadBytes)

	c := &liveConn{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Event, 512),
		errCh: make(chan error, 1),
	}
	go c.readLoop(ctx)
	return c, nil
}

func (c *liveConn) readLoop(ctx context.Context) {
	defer close(c.inbox)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.fail(err)
			return
		}

		var ev v1.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.fail(fmt.Errorf("bad json: %w", err))
			return
		}

		select {
		case c.inbox <- ev:
		default:
			c.fail(errors.New("inbox overflow: consumer too slow"))
			return
		}
	}
}

func (c *liveConn) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *liveConn) send(ctx context.Context, req v1.NewMessageRequest, timeout time.Duration) error {
	b, err := json.Marshal(v1.ClientFrame{NewMessage: &req})
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, b)
}

// awaitMessage waits for a newMessage event matching pred.
func (c *liveConn) awaitMessage(ctx context.Context, timeout time.Duration, pred func(v1.Message) bool) (v1.Message, error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case <-wctx.Done():
			return v1.Message{}, fmt.Errorf("timeout waiting for message (%s): %w", c.name, wctx.Err())
		case err := <-c.errCh:
			return v1.Message{}, fmt.Errorf("connection error (%s): %w", c.name, err)
		case ev, ok := <-c.inbox:
			if !ok {
				return v1.Message{}, fmt.Errorf("connection closed (%s)", c.name)
			}
			if ev.Type == v1.TypeNewMessage && ev.NewMessage != nil && pred(*ev.NewMessage) {
				return *ev.NewMessage, nil
			}
		}
	}
}

func (c *liveConn) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
