package client

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aeolun/ymsg/pkg/protocol"
)

const fileXferService = "FILEXFER"

// handleFileTransfer reports an incoming file offer. The download itself
// is left to the host.
func (s *Session) handleFileTransfer(p *protocol.Packet) {
	var from, rawURL, service, filename string
	var size int64
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyFileFrom:
			from = pair.Value
		case protocol.KeyFileURL:
			rawURL = pair.Value
		case protocol.KeyFileName:
			filename = pair.Value
		case protocol.KeyFileSize:
			size, _ = strconv.ParseInt(pair.Value, 10, 64)
		case protocol.KeyFileService:
			service = pair.Value
		}
	}

	if service == imvService {
		return
	}
	if p.Service == protocol.ServiceP2PFileXfer && service != "" && service != fileXferService {
		s.logf("Unhandled service 0x%02x", uint16(p.Service))
		return
	}
	if rawURL == "" || from == "" {
		return
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		s.logf("Bad file transfer url %q: %v", rawURL, err)
		return
	}

	if filename != "" {
		filename = s.decode(filename, true)
	} else if base := path.Base(u.Path); base != "/" && base != "." {
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		filename = base
	}

	s.host.FileOffer(from, filename, size, rawURL)
}

// handlePeerToPeer records the address a buddy announced. The address is
// base64 of a decimal number holding the IPv4 bytes in little endian order.
func (s *Session) handlePeerToPeer(p *protocol.Packet) {
	var who, encoded string
	haveIP := false
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyP2PFrom:
			who = pair.Value
		case protocol.KeyP2PIP:
			encoded, haveIP = pair.Value, true
		}
	}
	if !haveIP {
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		s.logf("Bad P2P address from %s: %v", who, err)
		return
	}
	s.logf("Got P2P service packet (from server): who = %s, ip = %q", who, decoded)

	digits := strings.TrimSpace(string(decoded))
	if end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); end >= 0 {
		digits = digits[:end]
	}
	n, _ := strconv.ParseUint(digits, 10, 64)
	ip := uint32(n)
	if f := s.friends.find(who); f != nil {
		f.IP = fmt.Sprintf("%d.%d.%d.%d", ip&0xff, (ip>>8)&0xff, (ip>>16)&0xff, (ip>>24)&0xff)
	}
}
