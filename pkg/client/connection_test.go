package client

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aeolun/ymsg/pkg/protocol"
)

func TestParseServerAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		display string
		kind    string
		wantErr bool
	}{
		{
			name:    "empty uses default pager",
			address: "",
			display: "scs.msg.yahoo.com:5050",
			kind:    "tcp",
		},
		{
			name:    "bare host gets pager port",
			address: "pager.example.com",
			display: "pager.example.com:5050",
			kind:    "tcp",
		},
		{
			name:    "host with port",
			address: "pager.example.com:23",
			display: "pager.example.com:23",
			kind:    "tcp",
		},
		{
			name:    "ymsg scheme",
			address: "ymsg://pager.example.com",
			display: "pager.example.com:5050",
			kind:    "tcp",
		},
		{
			name:    "ssh jump host",
			address: "ssh://me@jump.example.com/scs.msg.yahoo.com",
			display: "ssh://me@jump.example.com:22/scs.msg.yahoo.com:5050",
			kind:    "ssh",
		},
		{
			name:    "ssh with ports",
			address: "ssh://me@jump.example.com:2222/pager.example.com:23",
			display: "ssh://me@jump.example.com:2222/pager.example.com:23",
			kind:    "ssh",
		},
		{
			name:    "ssh without pager",
			address: "ssh://me@jump.example.com",
			wantErr: true,
		},
		{
			name:    "websocket",
			address: "ws://bridge.example.com/ymsg",
			display: "ws://bridge.example.com:80/ymsg",
			kind:    "websocket",
		},
		{
			name:    "secure websocket defaults to 443",
			address: "wss://bridge.example.com/ymsg",
			display: "wss://bridge.example.com:443/ymsg",
			kind:    "websocket",
		},
		{
			name:    "unsupported scheme",
			address: "http://pager.example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, err := parseServerAddress(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.display, dc.display)
			assert.Equal(t, tt.kind, dc.kind)
			assert.NotNil(t, dc.dial)
		})
	}
}

func TestDefaultSSHUser(t *testing.T) {
	t.Setenv("YMSG_SSH_USER", "tunnel")
	assert.Equal(t, "tunnel", defaultSSHUser())

	t.Setenv("YMSG_SSH_USER", "")
	t.Setenv("USER", "alice")
	assert.Equal(t, "alice", defaultSSHUser())
}

func TestDisconnectReasonString(t *testing.T) {
	assert.Equal(t, "error", DisconnectError.String())
	assert.Equal(t, "server closed", DisconnectServerDown.String())
	assert.Equal(t, "user requested", DisconnectUserRequested.String())
	assert.Equal(t, "unknown", DisconnectUnknown.String())
}

func TestPacedWrite(t *testing.T) {
	t.Run("unthrottled", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, pacedWrite(context.Background(), &buf, nil, []byte("YMSG")))
		assert.Equal(t, "YMSG", buf.String())
	})

	t.Run("chunks larger than burst", func(t *testing.T) {
		var buf bytes.Buffer
		limiter := rate.NewLimiter(rate.Inf, 3)
		data := bytes.Repeat([]byte("x"), 10)
		require.NoError(t, pacedWrite(context.Background(), &buf, limiter, data))
		assert.Equal(t, data, buf.Bytes())
	})

	t.Run("cancelled context", func(t *testing.T) {
		var buf bytes.Buffer
		limiter := rate.NewLimiter(1, 1)
		require.True(t, limiter.Allow())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, pacedWrite(ctx, &buf, limiter, []byte("xy")))
	})
}

func TestConnectionRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan *protocol.Packet, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reply := protocol.NewPacket(protocol.ServiceAuth, protocol.StatusAvailable, 0).
			Add(protocol.KeyAuthSeed, "seed").
			Add(protocol.KeyAuthMethod, "1")
		// split the reply to exercise reassembly
		data := reply.Encode(protocol.VersionNormal)
		conn.Write(data[:7])
		time.Sleep(10 * time.Millisecond)
		conn.Write(data[7:])

		var rx protocol.Reassembler
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			rx.Feed(buf[:n], func(p *protocol.Packet) {
				received <- p
			})
		}
	}()

	c, err := NewConnection(ln.Addr().String())
	require.NoError(t, err)
	c.DisableAutoReconnect()
	defer c.Close()

	require.NoError(t, c.Connect())
	assert.True(t, c.IsConnected())
	assert.Equal(t, "tcp", c.GetConnectionType())

	select {
	case p := <-c.Incoming():
		assert.Equal(t, protocol.ServiceAuth, p.Service)
		seed, _ := p.Get(protocol.KeyAuthSeed)
		assert.Equal(t, "seed", seed)
	case <-time.After(2 * time.Second):
		t.Fatal("no packet received")
	}

	out := protocol.NewPacket(protocol.ServicePing, protocol.StatusAvailable, 0)
	require.NoError(t, c.WritePacket(out, protocol.VersionNormal))

	select {
	case p := <-received:
		assert.Equal(t, protocol.ServicePing, p.Service)
	case <-time.After(2 * time.Second):
		t.Fatal("server received nothing")
	}

	assert.Eventually(t, func() bool {
		return c.GetBytesSent() == uint64(protocol.HeaderLen)
	}, time.Second, 10*time.Millisecond)
	assert.Greater(t, c.GetBytesReceived(), uint64(0))
}

func TestConnectionServerClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	c, err := NewConnection(ln.Addr().String())
	require.NoError(t, err)
	c.DisableAutoReconnect()
	defer c.Close()

	require.NoError(t, c.Connect())

	select {
	case update := <-c.StateChanges():
		assert.Equal(t, StateTypeDisconnected, update.State)
		assert.ErrorIs(t, update.Err, protocol.ErrRemoteClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect reported")
	}
	assert.Equal(t, DisconnectServerDown, c.LastDisconnectReason())
	assert.False(t, c.IsConnected())
}

func TestWritePacketAfterClose(t *testing.T) {
	c, err := NewConnection("127.0.0.1:1")
	require.NoError(t, err)
	c.Close()

	err = c.WritePacket(protocol.NewPacket(protocol.ServicePing, protocol.StatusAvailable, 0), protocol.VersionNormal)
	assert.Error(t, err)
}

func TestWritePacketTooLarge(t *testing.T) {
	c, err := NewConnection("127.0.0.1:1")
	require.NoError(t, err)
	defer c.Close()

	p := protocol.NewPacket(protocol.ServiceMessage, protocol.StatusAvailable, 0).
		Add(protocol.KeyMsgText, strings.Repeat("x", protocol.MaxPayloadLen))
	assert.ErrorIs(t, c.WritePacket(p, protocol.VersionNormal), protocol.ErrPayloadTooLarge)
}

func TestWritePacketRacingClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, err := NewConnection("127.0.0.1:1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					c.WritePacket(protocol.NewPacket(protocol.ServicePing, protocol.StatusAvailable, 0), protocol.VersionNormal)
				}
			}()
		}
		c.Close()
		wg.Wait()
	}
}
