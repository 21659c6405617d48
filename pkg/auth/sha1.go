package auth

import (
	"encoding/binary"
	"math/bits"
)

const sha1BlockSize = 64

// sha1Ctx is a plain SHA-1 whose running bit counter can be overwritten
// between writes. The server computes one of the new-scheme digests
// with a forged length, so crypto/sha1 cannot be used there.
type sha1Ctx struct {
	h      [5]uint32
	block  [sha1BlockSize]byte
	n      int
	sizeHi uint32
	sizeLo uint32
}

func newSHA1() *sha1Ctx {
	c := &sha1Ctx{}
	c.reset()
	return c
}

func (c *sha1Ctx) reset() {
	c.h = [5]uint32{0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476, 0xc3d2e1f0}
	c.n = 0
	c.sizeHi = 0
	c.sizeLo = 0
}

// setSizeLo replaces the low word of the message bit counter.
func (c *sha1Ctx) setSizeLo(v uint32) {
	c.sizeLo = v
}

func (c *sha1Ctx) write(data []byte) {
	for _, b := range data {
		c.block[c.n] = b
		c.n++
		if c.n == sha1BlockSize {
			c.compress()
			c.n = 0
		}

		c.sizeLo += 8
		if c.sizeLo < 8 {
			c.sizeHi++
		}
	}
}

// sum pads, appends the counter captured before padding and resets the context.
func (c *sha1Ctx) sum() [20]byte {
	var length [8]byte
	binary.BigEndian.PutUint32(length[0:4], c.sizeHi)
	binary.BigEndian.PutUint32(length[4:8], c.sizeLo)

	c.write([]byte{0x80})
	for c.n != 56 {
		c.write([]byte{0})
	}
	c.write(length[:])

	var digest [20]byte
	for i, v := range c.h {
		binary.BigEndian.PutUint32(digest[i*4:], v)
	}

	c.reset()
	return digest
}

func (c *sha1Ctx) compress() {
	var w [80]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(c.block[i*4:])
	}
	for i := 16; i < 80; i++ {
		w[i] = bits.RotateLeft32(w[i-3]^w[i-8]^w[i-14]^w[i-16], 1)
	}

	a, b, cc, d, e := c.h[0], c.h[1], c.h[2], c.h[3], c.h[4]
	for i := 0; i < 80; i++ {
		var f, k uint32
		switch {
		case i < 20:
			f = (b & cc) | (^b & d)
			k = 0x5a827999
		case i < 40:
			f = b ^ cc ^ d
			k = 0x6ed9eba1
		case i < 60:
			f = (b & cc) | (b & d) | (cc & d)
			k = 0x8f1bbcdc
		default:
			f = b ^ cc ^ d
			k = 0xca62c1d6
		}

		t := bits.RotateLeft32(a, 5) + f + e + k + w[i]
		e = d
		d = cc
		cc = bits.RotateLeft32(b, 30)
		b = a
		a = t
	}

	c.h[0] += a
	c.h[1] += b
	c.h[2] += cc
	c.h[3] += d
	c.h[4] += e
}
