package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// HeaderLen is the fixed size of a YMSG header
	// Format: [Magic (4)][Version (2)][Reserved (2)][Length (2)][Service (2)][Status (4)][ID (4)]
	HeaderLen = 4 + 2 + 2 + 2 + 2 + 4 + 4

	// Magic is the literal every packet starts with
	Magic = "YMSG"

	// MaxPayloadLen is the largest payload the 2-byte length field can describe
	MaxPayloadLen = 0xffff

	// maxKeyLen is the key buffer size; keys of maxKeyLen-1 digits or
	// more are dropped
	maxKeyLen = 64
)

// Protocol versions written into the header
const (
	VersionNormal       uint16 = 0x000c
	VersionJapan        uint16 = 0x000b
	VersionWebMessenger uint16 = 0x0065
)

// Delimiter separates keys from values and pairs from pairs.
var Delimiter = []byte{0xc0, 0x80}

var (
	ErrShortHeader     = errors.New("ymsg: short header")
	ErrBadMagic        = errors.New("ymsg: bad magic")
	ErrShortPayload    = errors.New("ymsg: payload shorter than header length")
	ErrPayloadTooLarge = errors.New("ymsg: payload exceeds 65535 bytes")
)

// Pair is one key/value unit of a packet payload
type Pair struct {
	Key   Key
	Value string
}

// Packet is a single YMSG protocol unit.
// Pairs keep their wire order; keys may repeat.
type Packet struct {
	Service Service // Operation code
	Status  Status  // Service-dependent status or presence code
	ID      uint32  // Session id echoed by the server
	Pairs   []Pair
}

// NewPacket creates an empty packet for the given service.
func NewPacket(service Service, status Status, id uint32) *Packet {
	return &Packet{Service: service, Status: status, ID: id}
}

// Add appends a pair and returns the packet for chaining.
func (p *Packet) Add(key Key, value string) *Packet {
	p.Pairs = append(p.Pairs, Pair{Key: key, Value: value})
	return p
}

// AddInt appends a pair whose value is a decimal integer.
func (p *Packet) AddInt(key Key, value int) *Packet {
	return p.Add(key, strconv.Itoa(value))
}

// Get returns the first value stored under key.
func (p *Packet) Get(key Key) (string, bool) {
	for _, pair := range p.Pairs {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// GetAll returns every value stored under key, in wire order.
func (p *Packet) GetAll(key Key) []string {
	var values []string
	for _, pair := range p.Pairs {
		if pair.Key == key {
			values = append(values, pair.Value)
		}
	}
	return values
}

// Length returns the encoded payload length.
func (p *Packet) Length() int {
	n := 0
	for _, pair := range p.Pairs {
		n += len(strconv.Itoa(int(pair.Key)))
		n += len(pair.Value)
		n += 4
	}
	return n
}

// Encode serializes the packet with the given protocol version.
// The payload length is computed first so the buffer is allocated once.
func (p *Packet) Encode(version uint16) []byte {
	payloadLen := p.Length()
	data := make([]byte, HeaderLen, HeaderLen+payloadLen)

	copy(data[0:4], Magic)
	binary.BigEndian.PutUint16(data[4:6], version)
	binary.BigEndian.PutUint16(data[6:8], 0)
	binary.BigEndian.PutUint16(data[8:10], uint16(payloadLen))
	binary.BigEndian.PutUint16(data[10:12], uint16(p.Service))
	binary.BigEndian.PutUint32(data[12:16], uint32(p.Status))
	binary.BigEndian.PutUint32(data[16:20], p.ID)

	for _, pair := range p.Pairs {
		data = strconv.AppendInt(data, int64(pair.Key), 10)
		data = append(data, Delimiter...)
		data = append(data, pair.Value...)
		data = append(data, Delimiter...)
	}

	return data
}

// EncodePacket writes an encoded packet to w
func EncodePacket(w io.Writer, p *Packet, version uint16) error {
	if p.Length() > MaxPayloadLen {
		return ErrPayloadTooLarge
	}

	if _, err := w.Write(p.Encode(version)); err != nil {
		return err
	}

	// Flush if writer supports it
	if flusher, ok := w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}

	return nil
}

// Header is the parsed fixed part of a packet
type Header struct {
	Version uint16
	Length  uint16
	Service Service
	Status  Status
	ID      uint32
}

// ParseHeader reads the 20-byte header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	if string(data[0:4]) != Magic {
		return Header{}, ErrBadMagic
	}

	return Header{
		Version: binary.BigEndian.Uint16(data[4:6]),
		Length:  binary.BigEndian.Uint16(data[8:10]),
		Service: Service(binary.BigEndian.Uint16(data[10:12])),
		Status:  Status(int32(binary.BigEndian.Uint32(data[12:16]))),
		ID:      binary.BigEndian.Uint32(data[16:20]),
	}, nil
}

// DecodePacket parses one complete frame (header and payload).
func DecodePacket(frame []byte) (*Packet, error) {
	hdr, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}

	end := HeaderLen + int(hdr.Length)
	if len(frame) < end {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrShortPayload, len(frame)-HeaderLen, hdr.Length)
	}

	return &Packet{
		Service: hdr.Service,
		Status:  hdr.Status,
		ID:      hdr.ID,
		Pairs:   DecodePairs(frame[HeaderLen:end]),
	}, nil
}

// DecodePairs parses a payload into pairs in encounter order.
// Malformed input never fails: bad pairs are dropped and a truncated
// tail ends the scan, keeping what was parsed so far.
func DecodePairs(data []byte) []Pair {
	var pairs []Pair
	pos := 0

	for pos+1 < len(data) {
		// A stray NUL where a key should start swaps keys and values
		// for the rest of the packet unless we skip past it.
		if data[pos] == 0 {
			next := indexDelimiter(data, pos)
			if next < 0 {
				break
			}
			pos = next + 2
			continue
		}

		keyEnd := indexDelimiter(data, pos)
		if keyEnd < 0 {
			break
		}
		key := data[pos:keyEnd]
		pos = keyEnd + 2

		valueEnd := indexDelimiter(data, pos)
		if valueEnd < 0 {
			break
		}
		value := data[pos:valueEnd]
		pos = valueEnd + 2

		if len(key) > 0 && len(key) < maxKeyLen-1 {
			pairs = append(pairs, Pair{Key: Key(atoi(key)), Value: string(value)})
		}

		// Skip over garbage seen in mail notifications
		if data[0] == '9' && pos < len(data) && data[pos] == 0x01 {
			pos++
		}
	}

	return pairs
}

// indexDelimiter finds the next delimiter at or after from.
func indexDelimiter(data []byte, from int) int {
	if from >= len(data) {
		return -1
	}
	i := bytes.Index(data[from:], Delimiter)
	if i < 0 {
		return -1
	}
	return from + i
}

// atoi parses leading decimal digits the way strtol does; anything else yields 0.
func atoi(b []byte) int {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	neg := false
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		neg = b[i] == '-'
		i++
	}
	n := 0
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		n = n*10 + int(b[i]-'0')
		if n > 1<<31 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}

// Atoi is the lenient integer parse used for numeric pair values.
func Atoi(s string) int {
	return atoi([]byte(s))
}
