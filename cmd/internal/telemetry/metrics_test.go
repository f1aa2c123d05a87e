package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Handshake(true)
	m.Handshake(false)
	m.Handshake(false)
	m.Session("created")
	m.MessagePersisted()
	m.MessageFailed("invalid_party")
	m.Notified(true)
	m.Notified(false)
	m.FrameDropped("malformed")

	req.Equal(1.0, testutil.ToFloat64(m.connectionsActive))
	req.Equal(1.0, testutil.ToFloat64(m.handshakes.WithLabelValues("admitted")))
	req.Equal(2.0, testutil.ToFloat64(m.handshakes.WithLabelValues("rejected")))
	req.Equal(1.0, testutil.ToFloat64(m.sessions.WithLabelValues("created")))
	req.Equal(1.0, testutil.ToFloat64(m.messagesPersisted))
	req.Equal(1.0, testutil.ToFloat64(m.messageFailures.WithLabelValues("invalid_party")))
	req.Equal(1.0, testutil.ToFloat64(m.notifications.WithLabelValues("online")))
	req.Equal(1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues("malformed")))

	n, err := testutil.GatherAndCount(reg)
	req.NoError(err)
	req.Positive(n)
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Handshake(true)
	m.Session("denied")
	m.MessagePersisted()
	m.MessageFailed("internal_error")
	m.Notified(false)
	m.FrameDropped("queue_full")
}
