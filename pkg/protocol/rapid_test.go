package protocol

import (
	"testing"

	"pgregory.net/rapid"
)

func drawPacket(t *rapid.T, label string) *Packet {
	p := &Packet{
		Service: Service(rapid.Uint16().Draw(t, label+"/service")),
		Status:  Status(rapid.Int32().Draw(t, label+"/status")),
		ID:      rapid.Uint32().Draw(t, label+"/id"),
	}

	n := rapid.IntRange(0, 12).Draw(t, label+"/pairs")
	for i := 0; i < n; i++ {
		key := Key(rapid.IntRange(0, 99999).Draw(t, label+"/key"))
		value := rapid.StringMatching(`[ -~]{0,40}`).Draw(t, label+"/value")
		p.Add(key, value)
	}
	return p
}

func samePacket(t *rapid.T, want, got *Packet) {
	if got.Service != want.Service || got.Status != want.Status || got.ID != want.ID {
		t.Fatalf("header mismatch: got %v/%d/%d, want %v/%d/%d",
			got.Service, got.Status, got.ID, want.Service, want.Status, want.ID)
	}
	if len(got.Pairs) != len(want.Pairs) {
		t.Fatalf("pair count mismatch: got %d, want %d", len(got.Pairs), len(want.Pairs))
	}
	for i := range want.Pairs {
		if got.Pairs[i] != want.Pairs[i] {
			t.Fatalf("pair %d mismatch: got %+v, want %+v", i, got.Pairs[i], want.Pairs[i])
		}
	}
}

// TestPacketRoundTrip checks decode(encode(p)) == p for printable pairs
func TestPacketRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := drawPacket(t, "packet")

		decoded, err := DecodePacket(original.Encode(VersionNormal))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		samePacket(t, original, decoded)
	})
}

// TestReassemblerChunking feeds K packets in random chunk sizes
func TestReassemblerChunking(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(1, 5).Draw(t, "k")
		packets := make([]*Packet, k)
		var stream []byte
		for i := range packets {
			packets[i] = drawPacket(t, "packet")
			stream = append(stream, packets[i].Encode(VersionNormal)...)
		}

		var r Reassembler
		var got []*Packet
		for len(stream) > 0 {
			size := rapid.IntRange(1, len(stream)).Draw(t, "chunk")
			r.Feed(stream[:size], func(p *Packet) { got = append(got, p) })
			stream = stream[size:]
		}

		if len(got) != k {
			t.Fatalf("dispatched %d packets, want %d", len(got), k)
		}
		for i := range packets {
			samePacket(t, packets[i], got[i])
		}
		if r.Buffered() != 0 {
			t.Fatalf("%d bytes left in buffer", r.Buffered())
		}
	})
}

// TestReassemblerGarbagePrefix checks resync past up to 3 junk bytes
func TestReassemblerGarbagePrefix(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		junk := rapid.StringMatching(`[a-zA-Z0-9]{1,3}`).Draw(t, "junk")
		p := drawPacket(t, "packet")

		var r Reassembler
		var got []*Packet
		r.Feed(append([]byte(junk), p.Encode(VersionNormal)...), func(p *Packet) { got = append(got, p) })

		if len(got) != 1 {
			t.Fatalf("dispatched %d packets, want 1", len(got))
		}
		samePacket(t, p, got[0])
	})
}
