package client

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/ymsg/pkg/protocol"
)

var testNow = time.Unix(1700000000, 0)

func newTestSession(t *testing.T, mutate ...func(*Options)) (*Session, *MockHost, *MockConnection) {
	t.Helper()
	opts := Options{
		Username:  "alice",
		Password:  "secret",
		CheckMail: true,
		Now:       func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	host := NewMockHost()
	conn := NewMockConnection("test")
	return NewSession(opts, host, conn), host, conn
}

// loggedIn returns a session past the first logon packet with nothing
// recorded yet
func loggedIn(t *testing.T, mutate ...func(*Options)) (*Session, *MockHost, *MockConnection) {
	t.Helper()
	s, host, conn := newTestSession(t, mutate...)
	s.Dispatch(protocol.NewPacket(protocol.ServiceLogon, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusName, "alice"))
	require.True(t, s.LoggedIn())
	conn.ClearSent()
	host.Reset()
	return s, host, conn
}

func value(p *protocol.Packet, key protocol.Key) string {
	v, _ := p.Get(key)
	return v
}

func lastSent(t *testing.T, conn *MockConnection) *protocol.Packet {
	t.Helper()
	sent, err := conn.LastSent()
	require.NoError(t, err)
	return sent.Packet
}

func statusPacket(pairs ...protocol.Pair) *protocol.Packet {
	return &protocol.Packet{Service: protocol.ServiceStatus15, Pairs: pairs}
}

func TestLogonEndToEnd(t *testing.T) {
	s, host, conn := newTestSession(t)

	pkt := protocol.NewPacket(protocol.ServiceLogon, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusName, "alice").
		Add(protocol.KeyStatusBuddy, "bob").
		Add(protocol.KeyStatusCode, "0")
	s.Feed(pkt.Encode(protocol.VersionNormal))

	assert.True(t, s.LoggedIn())
	assert.Equal(t, "alice", s.DisplayName())
	assert.Equal(t, "alice", host.DisplayName)
	assert.True(t, host.Called("Connected"))

	sent := conn.SentService(protocol.ServiceStatusUpdate)
	require.Len(t, sent, 1)
	assert.Equal(t, "0", value(sent[0], protocol.KeyStatusCode))
	_, hasAway := sent[0].Get(protocol.KeyStatusAway)
	assert.False(t, hasAway)

	bob, ok := s.Friend("bob")
	require.True(t, ok)
	assert.Equal(t, protocol.StatusAvailable, bob.Status)
	assert.False(t, bob.IsAway())
	assert.Equal(t, int64(0), bob.Idle)
}

func TestLogonOnlyOnce(t *testing.T) {
	s, host, conn := loggedIn(t)

	s.Dispatch(protocol.NewPacket(protocol.ServiceLogon, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusName, "alice"))

	assert.False(t, host.Called("Connected"))
	assert.Empty(t, conn.SentPackets())
}

func TestStatusFlushesEachBuddy(t *testing.T) {
	s, host, _ := loggedIn(t)
	host.AddToList("carol", "Friends")
	host.AddToList("bob", "Friends")

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "carol"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "0"},
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "2"},
	))

	calls := host.CallsTo("BuddyStatus")
	require.Len(t, calls, 2)
	assert.Equal(t, "carol", calls[0].Args[0])
	assert.Equal(t, BuddyState{State: StateAvailable, Status: protocol.StatusAvailable}, calls[0].Args[1])
	assert.Equal(t, "bob", calls[1].Args[0])
	assert.Equal(t, BuddyState{State: StateAway, Status: protocol.StatusBusy}, calls[1].Args[1])

	bob, _ := s.Friend("bob")
	assert.True(t, bob.IsAway())
}

func TestStatusSkipsBuddiesNotOnList(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "stranger"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "0"},
	))

	assert.False(t, host.Called("BuddyStatus"))
	_, ok := s.Friend("stranger")
	assert.True(t, ok)
}

func TestIdlePrecedence(t *testing.T) {
	s, _, _ := loggedIn(t)

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "999"},
		protocol.Pair{Key: protocol.KeyStatusIdleSeconds, Value: "120"},
	))
	bob, _ := s.Friend("bob")
	assert.Equal(t, testNow.Unix()-120, bob.Idle)

	// 138 only hides an idle time that is already set
	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "2"},
		protocol.Pair{Key: protocol.KeyStatusIdleHidden, Value: ""},
	))
	assert.Equal(t, int64(0), bob.Idle)

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "999"},
		protocol.Pair{Key: protocol.KeyStatusIdleSeconds, Value: "120"},
		protocol.Pair{Key: protocol.KeyStatusIdleHidden, Value: ""},
	))
	assert.Equal(t, int64(-1), bob.Idle)
}

func TestIdleIgnoredWhileAvailable(t *testing.T) {
	s, _, _ := loggedIn(t)

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "0"},
		protocol.Pair{Key: protocol.KeyStatusAway, Value: "2"},
		protocol.Pair{Key: protocol.KeyStatusIdleSeconds, Value: "300"},
	))

	bob, _ := s.Friend("bob")
	assert.Equal(t, int64(0), bob.Idle)
	assert.False(t, bob.IsAway())
}

func TestCustomStatusClearing(t *testing.T) {
	s, host, _ := loggedIn(t)
	host.AddToList("bob", "Friends")

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "99"},
		protocol.Pair{Key: protocol.KeyStatusMessage, Value: "at lunch"},
		protocol.Pair{Key: protocol.KeyStatusAway, Value: "1"},
	))
	bob, _ := s.Friend("bob")
	assert.Equal(t, "at lunch", bob.Message)
	assert.Equal(t, "at lunch", StatusText(bob))

	calls := host.CallsTo("BuddyStatus")
	require.Len(t, calls, 1)
	assert.Equal(t, BuddyState{State: StateAway, Status: protocol.StatusCustom, Message: "at lunch"}, calls[0].Args[1])

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "0"},
	))
	assert.Empty(t, bob.Message)
	assert.Equal(t, StateAvailable, bob.State())
}

func TestStatusForcedOffline(t *testing.T) {
	s, host, _ := loggedIn(t)
	host.AddToList("bob", "Friends")

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusOnline, Value: "0"},
	))

	calls := host.CallsTo("BuddyStatus")
	require.Len(t, calls, 1)
	assert.Equal(t, StateOffline, calls[0].Args[1].(BuddyState).State)
	bob, _ := s.Friend("bob")
	assert.Equal(t, protocol.StatusOffline, bob.Status)
}

func TestStatusGameAndSMS(t *testing.T) {
	s, host, _ := loggedIn(t)
	host.AddToList("bob", "Friends")

	s.Dispatch(statusPacket(
		protocol.Pair{Key: protocol.KeyStatusBuddy, Value: "bob"},
		protocol.Pair{Key: protocol.KeyStatusCode, Value: "0"},
		protocol.Pair{Key: protocol.KeyStatusSMS, Value: "1"},
	))

	// SMS reports immediately and again at end of packet
	assert.Len(t, host.CallsTo("BuddyStatus"), 2)
	bob, _ := s.Friend("bob")
	assert.Equal(t, 1, bob.SMS)
}

func TestSignedOnElsewhere(t *testing.T) {
	s, host, _ := loggedIn(t)

	s.Dispatch(protocol.NewPacket(protocol.ServiceLogoff, protocol.StatusDisconnected, 0))

	require.Len(t, host.Errors, 1)
	assert.Equal(t, ReasonOtherLocation, host.Errors[0].Reason)
	assert.True(t, host.Errors[0].Terminal)
}

func TestSetStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   protocol.Status
		message  string
		wantCode string
		wantMsg  string
		wantAway string
	}{
		{name: "available", status: protocol.StatusAvailable, wantCode: "0"},
		{name: "available with message", status: protocol.StatusAvailable, message: "hi", wantCode: "99", wantMsg: "hi"},
		{name: "custom away", status: protocol.StatusCustom, message: "gone", wantCode: "99", wantMsg: "gone", wantAway: "1"},
		{name: "custom away without text", status: protocol.StatusCustom, wantCode: "99", wantMsg: "Away", wantAway: "1"},
		{name: "busy", status: protocol.StatusBusy, wantCode: "2", wantAway: "1"},
		{name: "html stripped", status: protocol.StatusAvailable, message: "<b>hi</b>", wantCode: "99", wantMsg: "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, conn := loggedIn(t)

			require.NoError(t, s.SetStatus(tt.status, tt.message))

			p := lastSent(t, conn)
			assert.Equal(t, protocol.ServiceStatusUpdate, p.Service)
			assert.Equal(t, tt.wantCode, value(p, protocol.KeyStatusCode))
			assert.Equal(t, tt.wantMsg, value(p, protocol.KeyStatusMessage))
			assert.Equal(t, tt.wantAway, value(p, protocol.KeyStatusAway))
		})
	}
}

func TestInvisibleToggle(t *testing.T) {
	s, _, conn := loggedIn(t)

	require.NoError(t, s.SetStatus(protocol.StatusInvisible, ""))
	p := lastSent(t, conn)
	assert.Equal(t, protocol.ServiceVisibleToggle, p.Service)
	assert.Equal(t, "2", value(p, protocol.KeyStatusOnline))

	conn.ClearSent()
	require.NoError(t, s.SetStatus(protocol.StatusAvailable, ""))
	sent := conn.SentPackets()
	require.Len(t, sent, 2)
	assert.Equal(t, protocol.ServiceStatusUpdate, sent[0].Packet.Service)
	assert.Equal(t, protocol.ServiceVisibleToggle, sent[1].Packet.Service)
	assert.Equal(t, "1", value(sent[1].Packet, protocol.KeyStatusOnline))
}

func TestSetIdle(t *testing.T) {
	s, _, conn := loggedIn(t)

	require.NoError(t, s.SetIdle(true))
	p := lastSent(t, conn)
	assert.Equal(t, "999", value(p, protocol.KeyStatusCode))
	assert.Equal(t, "2", value(p, protocol.KeyStatusAway))
	assert.Equal(t, protocol.StatusIdle, s.Status())

	require.NoError(t, s.SetIdle(false))
	p = lastSent(t, conn)
	assert.Equal(t, "0", value(p, protocol.KeyStatusCode))
	_, hasAway := p.Get(protocol.KeyStatusAway)
	assert.False(t, hasAway)
	assert.Equal(t, protocol.StatusAvailable, s.Status())
}

func TestSetIdleKeepsCustomStatus(t *testing.T) {
	s, _, conn := loggedIn(t)
	require.NoError(t, s.SetStatus(protocol.StatusAvailable, "coding"))

	require.NoError(t, s.SetIdle(true))

	p := lastSent(t, conn)
	assert.Equal(t, "99", value(p, protocol.KeyStatusCode))
	assert.Equal(t, "coding", value(p, protocol.KeyStatusMessage))
	assert.Equal(t, "2", value(p, protocol.KeyStatusAway))
}

func TestInitialCustomStatus(t *testing.T) {
	s, _, conn := newTestSession(t, func(o *Options) {
		o.InitialMessage = "hello"
	})
	s.Dispatch(protocol.NewPacket(protocol.ServiceLogon, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusName, "alice"))

	p := lastSent(t, conn)
	assert.Equal(t, "99", value(p, protocol.KeyStatusCode))
	assert.Equal(t, "hello", value(p, protocol.KeyStatusMessage))
}

func TestKeepalive(t *testing.T) {
	s, _, conn := loggedIn(t)

	require.NoError(t, s.Keepalive())
	sent := conn.SentPackets()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.ServicePing, sent[0].Packet.Service)
}

func TestVersionSelection(t *testing.T) {
	s, _, conn := loggedIn(t)
	require.NoError(t, s.Keepalive())
	assert.Equal(t, protocol.VersionNormal, conn.SentPackets()[0].Version)

	jp, _, _ := newTestSession(t, func(o *Options) { o.Japan = true })
	assert.Equal(t, protocol.VersionJapan, jp.Version())

	web, _, _ := newTestSession(t, func(o *Options) { o.WebMessenger = true })
	assert.Equal(t, protocol.VersionWebMessenger, web.Version())
}

func TestSendErrorIsWrapped(t *testing.T) {
	s, _, conn := loggedIn(t)
	boom := assert.AnError
	conn.SetSendError(boom)

	err := s.Keepalive()
	assert.ErrorIs(t, err, boom)
}

func TestOversizedPacketNotSent(t *testing.T) {
	s, _, conn := loggedIn(t)

	pkt := protocol.NewPacket(protocol.ServiceConfMsg, protocol.StatusAvailable, 0).
		Add(protocol.KeyConfText, strings.Repeat("x", protocol.MaxPayloadLen))
	err := s.send(pkt)
	assert.ErrorIs(t, err, protocol.ErrPayloadTooLarge)
	assert.Empty(t, conn.Sent)
}

func TestReadLoopReportsNetworkError(t *testing.T) {
	s, host, _ := newTestSession(t)

	pkt := protocol.NewPacket(protocol.ServiceLogon, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusName, "alice")
	err := s.ReadLoop(bytes.NewReader(pkt.Encode(protocol.VersionNormal)))

	assert.ErrorIs(t, err, protocol.ErrRemoteClosed)
	assert.True(t, s.LoggedIn())
	require.Len(t, host.Errors, 1)
	assert.Equal(t, ReasonNetwork, host.Errors[0].Reason)
	assert.False(t, host.Errors[0].Terminal)
}

func TestCloseLeavesConferences(t *testing.T) {
	s, _, conn := loggedIn(t)
	require.NoError(t, s.JoinConference("room", "", []string{"bob"}))
	conn.ClearSent()

	s.Close()

	sent := conn.SentService(protocol.ServiceConfLogoff)
	require.Len(t, sent, 1)
	assert.Equal(t, "room", value(sent[0], protocol.KeyConfRoom))
	assert.Equal(t, "bob", value(sent[0], protocol.KeyConfFrom))

	assert.False(t, s.LoggedIn())
	assert.ErrorIs(t, s.Keepalive(), ErrSessionClosed)
	_, ok := s.Conference("room")
	assert.False(t, ok)

	// dispatch after close is a no-op
	conn.ClearSent()
	s.Dispatch(protocol.NewPacket(protocol.ServiceLogon, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusName, "alice"))
	assert.Empty(t, conn.SentPackets())
}

func TestCookies(t *testing.T) {
	s, _, _ := loggedIn(t)
	assert.Empty(t, s.Cookies())

	s.Dispatch(protocol.NewPacket(protocol.ServiceList, protocol.StatusAvailable, 0).
		Add(protocol.KeyListCookie, "Y\tv=1&n=abc; expires=never").
		Add(protocol.KeyListCookie, "T\tz=xyz"))

	assert.Equal(t, "Y=v=1&n=abc; T=z=xyz", s.Cookies())
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s, _, _ := newTestSession(t, func(o *Options) { o.Metrics = m })

	s.Dispatch(protocol.NewPacket(protocol.ServiceLogon, protocol.StatusAvailable, 0).
		Add(protocol.KeyStatusName, "alice").
		Add(protocol.KeyStatusBuddy, "bob").
		Add(protocol.KeyStatusCode, "0"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.packetsReceived.WithLabelValues("LOGON")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.packetsSent.WithLabelValues("Y6_STATUS_UPDATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.friends))

	s.Feed([]byte("garbage!"))
	s.Feed(protocol.NewPacket(protocol.ServicePing, protocol.StatusAvailable, 0).Encode(protocol.VersionNormal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resyncs))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPacketReceived("LOGON")
		m.RecordResync()
		m.RecordFriends(3)
	})
}
