package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"syscall"
)

var (
	// ErrRemoteClosed is returned when the peer closes the stream.
	ErrRemoteClosed = errors.New("Server closed the connection.")

	// ErrConnectionLost wraps any other read failure.
	ErrConnectionLost = errors.New("Lost connection with server")
)

// readChunk is how much ReadLoop asks for per read
const readChunk = 1024

// Reassembler turns a byte stream into whole packets.
// It owns the receive buffer of one session and is not safe for
// concurrent use.
type Reassembler struct {
	buf     []byte
	resyncs uint64

	// Logger receives desync warnings (optional)
	Logger *log.Logger

	// OnResync is called every time garbage is discarded (optional)
	OnResync func(discarded int)
}

// Buffered returns the number of bytes waiting for a complete frame.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// Resyncs returns how many times the stream had to be resynchronized.
func (r *Reassembler) Resyncs() uint64 {
	return r.resyncs
}

// Reset discards any partially received frame.
func (r *Reassembler) Reset() {
	r.buf = nil
}

// Feed appends data and dispatches every complete packet, in order.
func (r *Reassembler) Feed(data []byte, dispatch func(*Packet)) {
	r.buf = append(r.buf, data...)

	for {
		if len(r.buf) < HeaderLen {
			return
		}

		if !bytes.Equal(r.buf[:4], []byte(Magic)) {
			r.logf("Error in YMSG stream, got something not a YMSG packet!")

			discarded := len(r.buf)
			if start := bytes.IndexByte(r.buf[1:], Magic[0]); start >= 0 {
				discarded = start + 1
				r.buf = r.buf[discarded:]
			} else {
				r.buf = nil
			}

			r.resyncs++
			if r.OnResync != nil {
				r.OnResync(discarded)
			}
			if r.buf == nil {
				return
			}
			continue
		}

		// Read length (2 bytes, big-endian) at offset 8
		pktlen := int(binary.BigEndian.Uint16(r.buf[8:10]))
		if len(r.buf) < HeaderLen+pktlen {
			return
		}

		pkt, err := DecodePacket(r.buf[:HeaderLen+pktlen])

		// Remove the frame before dispatching so a handler never sees it twice
		rest := r.buf[HeaderLen+pktlen:]
		if len(rest) == 0 {
			r.buf = nil
		} else {
			r.buf = append([]byte(nil), rest...)
		}

		if err != nil {
			r.logf("Dropping undecodable packet: %v", err)
			continue
		}

		dispatch(pkt)
	}
}

// ReadLoop reads from rd until it fails, feeding every chunk through Feed.
// It returns ErrRemoteClosed on EOF and an error wrapping ErrConnectionLost
// on any other read failure. The receive buffer is discarded either way.
func (r *Reassembler) ReadLoop(rd io.Reader, dispatch func(*Packet)) error {
	chunk := make([]byte, readChunk)

	for {
		n, err := rd.Read(chunk)
		if n > 0 {
			r.Feed(chunk[:n], dispatch)
		}

		if err == nil {
			if n == 0 {
				r.Reset()
				return ErrRemoteClosed
			}
			continue
		}

		if errors.Is(err, syscall.EAGAIN) {
			// No worries
			continue
		}

		r.Reset()
		if errors.Is(err, io.EOF) {
			return ErrRemoteClosed
		}
		return fmt.Errorf("%w:\n%s", ErrConnectionLost, err.Error())
	}
}

func (r *Reassembler) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
