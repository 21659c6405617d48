package auth

import (
	"bytes"
	"crypto/md5"
	"log"
	"strings"
)

const (
	alphabet1       = "FBZDWAGHrJTLMNOPpRSKUVEXYChImkwQ"
	alphabet2       = "F0E1D2C3B4A59687abcdefghijklmnop"
	challengeLookup = "qzec2tb3um1olpar8whx4dfgijknsvy5"
	operandLookup   = "+|&%/*^-"
	delimitLookup   = ",;"

	maxTokens = 64

	// fixupDepth is the table depth the server uses for the key fixup
	fixupDepth = 0x60

	// forgedSizeLo replaces the inner SHA-1 bit counter when y >= 3
	forgedSizeLo = 0x1ff
)

// KeyFixup transforms the magic key when the trailer search ends on a
// non-zero y. The server runs it twice in a row with the same arguments.
type KeyFixup func(magic uint32, depth, y, x int) uint32

// NewOptions tunes New.
type NewOptions struct {
	// Fixup is applied twice when y != 0. A nil Fixup keeps the key and
	// marks the response KeyUnfixed.
	Fixup KeyFixup

	// Encode converts the password to the session charset before hashing.
	Encode func(string) string

	Logger *log.Logger
}

// Trailer is the outcome of the phase 4 search.
type Trailer struct {
	X, Y  int
	Found bool
}

// New answers a method 1 or 2 challenge.
func New(name, password, seed string, opts NewOptions) Response {
	src := deriveMagic(seed)

	trailer := searchTrailer(src)
	if !trailer.Found {
		logf(opts.Logger, "auth: no trailer matched seed %q, keeping magic key", seed)
	}

	var key [4]byte
	copy(key[:], src[:4])
	return answer(key, trailer, password, opts)
}

// answer hashes the password against the magic key once the trailer is known.
func answer(key [4]byte, trailer Trailer, password string, opts NewOptions) Response {
	y := trailer.Y
	unfixed := false
	if y != 0 {
		unfixed = opts.Fixup == nil
		key = applyFixup(key, trailer, opts)
	}

	if opts.Encode != nil {
		password = opts.Encode(password)
	}

	passwordHash := ToY64(md5Sum([]byte(password)))
	cryptHash := ToY64(md5Sum([]byte(MD5Crypt(password, CryptSalt))))

	return Response{
		Result6:    respond(passwordHash, key, y),
		Result96:   respond(cryptHash, key, y),
		KeyUnfixed: unfixed,
	}
}

// deriveMagic runs phases 1 to 3: tokenize the seed, mix the tokens and
// fold them into 20 bytes. The first 4 bytes are the magic key and the
// other 16 are the MD5 of the key plus an unknown 3-byte trailer.
func deriveMagic(seed string) [20]byte {
	var magic [maxTokens]uint32
	count := 0
	var work uint32

	for i := 0; i < len(seed); i++ {
		c := seed[i]
		if c == '(' || c == ')' {
			continue
		}

		if isAlnum(c) {
			loc := strings.IndexByte(challengeLookup, c)
			if loc < 0 {
				continue
			}
			work = uint32(loc) << 3
			continue
		}

		loc := strings.IndexByte(operandLookup, c)
		if loc < 0 {
			continue
		}
		if count >= maxTokens {
			break
		}
		magic[count] = work | uint32(loc)
		count++
	}

	// Each step reads the untouched left value and the already mixed right one
	for i := count - 2; i >= 0; i-- {
		b1 := byte(magic[i])
		b2 := byte(magic[i+1])
		b1 *= 0xcd
		b1 ^= b2
		magic[i+1] = uint32(b1)
	}

	at := func(i int) uint32 {
		if i < 0 || i >= count {
			return 0
		}
		return magic[i]
	}

	var out [20]byte
	pos := 1
	for x := 0; x < len(out); {
		cl := at(pos)
		pos++
		if pos >= count {
			break
		}

		var bl uint32
		if cl > 0x7f {
			if cl < 0xe0 {
				cl = (cl & 0x1f) << 6
				bl = cl
			} else {
				bl = at(pos)
				pos++
				cl = (cl & 0x0f) << 6
				bl = ((bl & 0x3f) + cl) << 6
			}
			cl = at(pos)
			pos++
			bl = (cl & 0x3f) + bl
		} else {
			bl = cl
		}

		out[x] = byte((bl & 0xff00) >> 8)
		out[x+1] = byte(bl & 0xff)
		x += 2
	}

	return out
}

// searchTrailer finds the first x, y with MD5(key ++ {x, x>>8, y}) equal
// to the last 16 bytes of src. No match leaves y at 0.
func searchTrailer(src [20]byte) Trailer {
	buf := make([]byte, 7)
	copy(buf, src[:4])

	for x := 0; x <= 0xffff; x++ {
		buf[4] = byte(x)
		buf[5] = byte(x >> 8)
		for y := 0; y < 5; y++ {
			buf[6] = byte(y)
			sum := md5.Sum(buf)
			if bytes.Equal(sum[:], src[4:]) {
				return Trailer{X: x, Y: y, Found: true}
			}
		}
	}

	return Trailer{}
}

func applyFixup(key [4]byte, t Trailer, opts NewOptions) [4]byte {
	if opts.Fixup == nil {
		logf(opts.Logger, "auth: no key fixup configured for y=%d x=%d", t.Y, t.X)
		return key
	}

	magic := uint32(key[0]) | uint32(key[1])<<8 | uint32(key[2])<<16 | uint32(key[3])<<24

	// Twice on purpose; the server does the same
	magic = opts.Fixup(magic, fixupDepth, t.Y, t.X)
	magic = opts.Fixup(magic, fixupDepth, t.Y, t.X)

	return [4]byte{byte(magic), byte(magic >> 8), byte(magic >> 16), byte(magic >> 24)}
}

// respond runs the HMAC-like digest pair over hash and maps the outer
// digest onto the response alphabets.
func respond(hash string, key [4]byte, y int) string {
	var inner, outer [sha1BlockSize]byte
	for i := range inner {
		inner[i] = 0x36
		outer[i] = 0x5c
	}
	for i := 0; i < len(hash) && i < sha1BlockSize; i++ {
		inner[i] = hash[i] ^ 0x36
		outer[i] = hash[i] ^ 0x5c
	}

	ctx := newSHA1()
	ctx.write(inner[:])
	if y >= 3 {
		ctx.setSizeLo(forgedSizeLo)
	}
	ctx.write(key[:])
	digest1 := ctx.sum()

	ctx.write(outer[:])
	ctx.write(digest1[:])
	digest2 := ctx.sum()

	return encodeDigest(digest2)
}

func encodeDigest(d [20]byte) string {
	var sb strings.Builder
	sb.Grow(50)

	for x := 0; x < len(d); x += 2 {
		val := uint32(d[x])<<8 | uint32(d[x+1])

		c, ok := pick(alphabet1, (val>>0x0b)&0x1f)
		if !ok {
			break
		}
		sb.WriteByte(c)
		sb.WriteByte('=')

		if c, ok = pick(alphabet2, (val>>0x06)&0x1f); !ok {
			break
		}
		sb.WriteByte(c)

		if c, ok = pick(alphabet2, (val>>0x01)&0x1f); !ok {
			break
		}
		sb.WriteByte(c)

		if c, ok = pick(delimitLookup, val&0x01); !ok {
			break
		}
		sb.WriteByte(c)
	}

	return sb.String()
}

func pick(alphabet string, i uint32) (byte, bool) {
	if int(i) >= len(alphabet) {
		return 0, false
	}
	return alphabet[i], true
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func logf(logger *log.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
