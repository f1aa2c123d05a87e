package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/ids"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/messages"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/telemetry"
	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

const (
	// HeaderUserID and HeaderSessionID carry the caller's credentials on
	// the upgrade request and on protected HTTP routes.
	HeaderUserID    = "userid"
	HeaderSessionID = "sessionid"

	wsCloseGrace      = 1 * time.Second
	wsMaxPingFailures = 3
)

// SessionVerifier checks an (identity, token) pair.
type SessionVerifier interface {
	Verify(identity, token string) bool
}

// MessageSender is the send pipeline inbound frames are forwarded to.
type MessageSender interface {
	Send(ctx context.Context, in messages.SendInput) (messages.Message, error)
}

// Gateway is the websocket entrypoint: it gates the upgrade on a valid
// session, registers the connection and forwards inbound frames to the
// send pipeline.
type Gateway struct {
	log      *slog.Logger
	metrics  *telemetry.Metrics
	registry *Registry
	sessions SessionVerifier
	sender   MessageSender
	cfg      GatewayConfig
	now      func() time.Time

	// Derived for websocket.Accept, which only authorizes same-host
	// origins unless patterns are given.
	originPatterns []string
}

type GatewayOption func(*Gateway)

func WithGatewayLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

func WithGatewayMetrics(m *telemetry.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGateway(cfg GatewayConfig, registry *Registry, sessions SessionVerifier, sender MessageSender, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		log:      slog.Default(),
		registry: registry,
		sessions: sessions,
		sender:   sender,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.originPatterns = deriveOriginPatterns(g.cfg.AllowedOrigins)
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS admits the upgrade only for a valid (userid, sessionid) pair.
// Rejected requests get a plain 401 and no websocket.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.Header.Get(HeaderUserID))
	token := strings.TrimSpace(r.Header.Get(HeaderSessionID))

	if identity == "" || token == "" || !g.sessions.Verify(identity, token) {
		g.metrics.Handshake(false)
		g.log.Info("ws.handshake.reject", "user_id", identity, "has_token", token != "", "remote", r.RemoteAddr)
		http.Error(w, apperr.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	if err := g.enforceOrigin(r); err != nil {
		g.metrics.Handshake(false)
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.metrics.Handshake(false)
		g.log.Error("ws.accept.fail", "user_id", identity, "err", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(g.cfg.MaxFrameBytes)

	connID, err := ids.NewULID(g.now())
	if err != nil {
		g.log.Error("ws.conn_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	client := NewClient(identity, connID, g.cfg.SendBuffer)
	g.registry.Register(identity, client)
	g.metrics.Handshake(true)
	g.log.Info("ws.connect", "user_id", identity, "conn_id", connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.registry.Unregister(identity, client)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(ctx, conn, client, shutdown)
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, client, shutdown)
	}()

	g.readLoop(ctx, conn, client, shutdown)

	<-writerDone
	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	g.log.Info("ws.disconnect", "user_id", identity, "conn_id", connID)
}

func (g *Gateway) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			shutdown(websocket.StatusGoingAway, "server closing")
			return
		case payload := <-client.Outbound():
			if err := writeFrame(ctx, conn, payload, g.cfg.WriteTimeout); err != nil {
				g.log.Info("ws.write.fail", "conn_id", client.ConnID, "close_status", websocket.CloseStatus(err), "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	t := time.NewTicker(g.cfg.PingInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.PingTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				failures++
				g.log.Info("ws.ping.fail", "conn_id", client.ConnID, "failures", failures, "err", err)
				if failures >= wsMaxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// readLoop runs until the peer goes away. Frames that fail to decode or
// exceed the rate limit are dropped; the connection stays open.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				g.log.Info("ws.read.fail", "conn_id", client.ConnID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			return
		}

		if !rl.Allow(g.now()) {
			g.metrics.FrameDropped("rate_limited")
			g.log.Warn("ws.frame.rate_limited", "conn_id", client.ConnID, "user_id", client.UserID)
			continue
		}

		if mt != websocket.MessageText && mt != websocket.MessageBinary {
			g.metrics.FrameDropped("malformed")
			continue
		}

		req, err := v1.DecodeClientFrame(data)
		if err != nil {
			g.metrics.FrameDropped("malformed")
			g.log.Debug("ws.frame.malformed", "conn_id", client.ConnID, "err", err)
			continue
		}

		g.forward(ctx, client, req)
	}
}

// forward hands one decoded frame to the send pipeline. The outcome is
// delivered by the pipeline's own notification, so failures are only logged.
func (g *Gateway) forward(ctx context.Context, client *Client, req v1.NewMessageRequest) {
	in := messages.SendInput{
		Sender:    client.UserID,
		Recipient: req.Recipient,
		Body:      req.MsgData,
	}
	if req.MsgType != nil {
		in.Kind = *req.MsgType
	}
	if req.TimeSent != nil && *req.TimeSent > 0 {
		in.SentAt = v1.FromUnixMilli(*req.TimeSent)
	}

	// The frame was fully received; persist it even if the peer leaves now.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.SendTimeout)
	defer cancel()

	if _, err := g.sender.Send(sendCtx, in); err != nil {
		g.log.Info("ws.send.fail", "conn_id", client.ConnID, "user_id", client.UserID,
			"recipient", req.Recipient, "kind", apperr.KindOf(err), "err", err)
	}
}

func writeFrame(parent context.Context, conn *websocket.Conn, payload []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

// enforceOrigin accepts requests without Origin (native clients). With an
// empty allowlist websocket.Accept still applies its same-host check.
func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(g.cfg.AllowedOrigins) == 0 {
		return nil
	}

	originHost := originHostOnly(origin)
	for _, a := range g.cfg.AllowedOrigins {
		if a == "*" || a == origin {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatterns turns the allowlist into websocket.Accept host
// patterns. Accept matches against host:port, so each host also gets a
// ":*" variant.
func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			return []string{"*"}
		}
		if h := originHostOnly(a); h != "" {
			seen[h] = struct{}{}
		}
	}

	out := make([]string, 0, 2*len(seen))
	for h := range seen {
		out = append(out, h, h+":*")
	}
	slices.Sort(out)
	return out
}
