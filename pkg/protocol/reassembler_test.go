package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePackets() []*Packet {
	return []*Packet{
		NewPacket(ServiceLogon, 0, 0).Add(KeyStatusName, "alice").Add(KeyStatusBuddy, "bob").Add(KeyStatusCode, "0"),
		NewPacket(ServiceMessage, 1, 7).Add(KeyMsgFrom, "bob").Add(KeyMsgText, "hi"),
		NewPacket(ServicePing, 0, 7),
	}
}

func encodeAll(packets []*Packet) []byte {
	var buf bytes.Buffer
	for _, p := range packets {
		buf.Write(p.Encode(VersionNormal))
	}
	return buf.Bytes()
}

func TestReassemblerByteAtATime(t *testing.T) {
	packets := samplePackets()
	stream := encodeAll(packets)

	var r Reassembler
	var got []*Packet
	for i := range stream {
		r.Feed(stream[i:i+1], func(p *Packet) { got = append(got, p) })
	}

	require.Len(t, got, len(packets))
	for i := range packets {
		assert.Equal(t, packets[i].Service, got[i].Service)
		assert.Equal(t, packets[i].Status, got[i].Status)
		assert.Equal(t, packets[i].ID, got[i].ID)
		assert.Equal(t, len(packets[i].Pairs), len(got[i].Pairs))
	}
	assert.Zero(t, r.Buffered())
	assert.Zero(t, r.Resyncs())
}

func TestReassemblerWaitsForBody(t *testing.T) {
	frame := NewPacket(ServiceMessage, 0, 0).Add(KeyMsgText, "hello world").Encode(VersionNormal)

	var r Reassembler
	dispatched := 0
	r.Feed(frame[:HeaderLen+3], func(*Packet) { dispatched++ })

	assert.Zero(t, dispatched)
	assert.Equal(t, HeaderLen+3, r.Buffered())

	r.Feed(frame[HeaderLen+3:], func(*Packet) { dispatched++ })
	assert.Equal(t, 1, dispatched)
	assert.Zero(t, r.Buffered())
}

func TestReassemblerResync(t *testing.T) {
	tests := []struct {
		name    string
		garbage string
	}{
		{name: "one byte", garbage: "x"},
		{name: "three bytes", garbage: "abc"},
		{name: "garbage containing Y", garbage: "xY"},
		{name: "partial magic", garbage: "YMS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := NewPacket(ServiceLogon, 0, 0).Add(KeyStatusName, "alice").Encode(VersionNormal)
			stream := append([]byte(tt.garbage), frame...)

			var r Reassembler
			var got []*Packet
			r.Feed(stream, func(p *Packet) { got = append(got, p) })

			require.Len(t, got, 1)
			assert.Equal(t, ServiceLogon, got[0].Service)
			assert.Equal(t, []Pair{{KeyStatusName, "alice"}}, got[0].Pairs)
			assert.NotZero(t, r.Resyncs())
			assert.Zero(t, r.Buffered())
		})
	}
}

func TestReassemblerDiscardsWithoutMagicByte(t *testing.T) {
	var r Reassembler
	discarded := 0
	r.OnResync = func(n int) { discarded += n }

	r.Feed([]byte(strings.Repeat("z", 25)), func(*Packet) { t.Fatal("unexpected dispatch") })

	assert.Zero(t, r.Buffered())
	assert.Equal(t, 25, discarded)
	assert.Equal(t, uint64(1), r.Resyncs())
}

func TestReadLoopEOF(t *testing.T) {
	packets := samplePackets()

	var r Reassembler
	var got []Service
	err := r.ReadLoop(iotest.OneByteReader(bytes.NewReader(encodeAll(packets))), func(p *Packet) {
		got = append(got, p.Service)
	})

	assert.ErrorIs(t, err, ErrRemoteClosed)
	assert.Equal(t, []Service{ServiceLogon, ServiceMessage, ServicePing}, got)
}

func TestReadLoopError(t *testing.T) {
	var r Reassembler
	frame := NewPacket(ServicePing, 0, 0).Encode(VersionNormal)

	rd := io.MultiReader(bytes.NewReader(frame[:5]), iotest.ErrReader(errors.New("connection reset by peer")))
	err := r.ReadLoop(rd, func(*Packet) { t.Fatal("unexpected dispatch") })

	require.ErrorIs(t, err, ErrConnectionLost)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Zero(t, r.Buffered())
}
