package client

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/ymsg/pkg/protocol"
)

func TestFileOffer(t *testing.T) {
	tests := []struct {
		name     string
		packet   *protocol.Packet
		filename string
		size     int64
	}{
		{
			name: "name from url",
			packet: protocol.NewPacket(protocol.ServiceP2PFileXfer, protocol.StatusAvailable, 0).
				Add(protocol.KeyFileService, fileXferService).
				Add(protocol.KeyFileFrom, "bob").
				Add(protocol.KeyFileURL, "http://files.example.com/dir/my%20file.txt").
				Add(protocol.KeyFileSize, "42"),
			filename: "my file.txt",
			size:     42,
		},
		{
			name: "explicit name",
			packet: protocol.NewPacket(protocol.ServiceFileTransfer, protocol.StatusAvailable, 0).
				Add(protocol.KeyFileFrom, "bob").
				Add(protocol.KeyFileURL, "http://files.example.com/x?id=1").
				Add(protocol.KeyFileName, "report.pdf"),
			filename: "report.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, host, _ := loggedIn(t)

			s.Dispatch(tt.packet)

			offers := host.CallsTo("FileOffer")
			require.Len(t, offers, 1)
			url, _ := tt.packet.Get(protocol.KeyFileURL)
			assert.Equal(t, []any{"bob", tt.filename, tt.size, url}, offers[0].Args)
		})
	}
}

func TestFileOfferIgnored(t *testing.T) {
	s, host, _ := loggedIn(t)

	// another P2P service
	s.Dispatch(protocol.NewPacket(protocol.ServiceP2PFileXfer, protocol.StatusAvailable, 0).
		Add(protocol.KeyFileService, "WEBCAM").
		Add(protocol.KeyFileFrom, "bob").
		Add(protocol.KeyFileURL, "http://files.example.com/a.txt"))
	// no url
	s.Dispatch(protocol.NewPacket(protocol.ServiceFileTransfer, protocol.StatusAvailable, 0).
		Add(protocol.KeyFileFrom, "bob").
		Add(protocol.KeyFileName, "a.txt"))

	assert.False(t, host.Called("FileOffer"))
}

func TestPeerToPeerAddress(t *testing.T) {
	s, host, conn := loggedIn(t)
	withBuddies(s, host, conn, "bob")

	// 16777343 is 127.0.0.1 stored little endian
	s.Dispatch(protocol.NewPacket(protocol.ServicePeerToPeer, protocol.StatusAvailable, 0).
		Add(protocol.KeyP2PFrom, "bob").
		Add(protocol.KeyP2PIP, base64.StdEncoding.EncodeToString([]byte("16777343"))))

	bob, _ := s.Friend("bob")
	assert.Equal(t, "127.0.0.1", bob.IP)

	s.Dispatch(protocol.NewPacket(protocol.ServicePeerToPeer, protocol.StatusAvailable, 0).
		Add(protocol.KeyP2PFrom, "bob").
		Add(protocol.KeyP2PIP, "!!not base64"))
	assert.Equal(t, "127.0.0.1", bob.IP)
}
