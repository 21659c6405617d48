package auth

import (
	"crypto/md5"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fixupMock struct {
	mock.Mock
}

func (m *fixupMock) Fixup(magic uint32, depth, y, x int) uint32 {
	args := m.Called(magic, depth, y, x)
	return args.Get(0).(uint32)
}

func quietOptions() NewOptions {
	return NewOptions{Logger: log.New(io.Discard, "", 0)}
}

func plantTrailer(key [4]byte, x, y int) [20]byte {
	var src [20]byte
	copy(src[:4], key[:])
	sum := md5.Sum([]byte{key[0], key[1], key[2], key[3], byte(x), byte(x >> 8), byte(y)})
	copy(src[4:], sum[:])
	return src
}

func TestDeriveMagic(t *testing.T) {
	// tokens 0, 8, 24 mix into 0, 8, 112; only the middle token folds
	got := deriveMagic("q+z+e+")
	assert.Equal(t, [20]byte{0, 8}, got)
}

func TestDeriveMagicIgnoresNoise(t *testing.T) {
	assert.Equal(t, deriveMagic("q+z+e+"), deriveMagic("(q+)(z+)(e+)"))
	assert.Equal(t, deriveMagic("q+z+e+"), deriveMagic("Aq+!z+e+"))
}

func TestDeriveMagicTokenCap(t *testing.T) {
	seed := strings.Repeat("y5*", 200)
	assert.NotPanics(t, func() { deriveMagic(seed) })
	assert.Equal(t, deriveMagic(strings.Repeat("y5*", 64)), deriveMagic(seed))
}

func TestDeriveMagicNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.StringOfN(rapid.SampledFrom([]rune("()qzec2tb3um1olpar8whx4dfgijknsvy5+|&%/*^-A!")), 0, 200, -1).Draw(t, "seed")
		deriveMagic(seed)
	})
}

func TestSearchTrailerFindsPlanted(t *testing.T) {
	tests := []struct {
		x, y int
	}{
		{0, 0},
		{1, 4},
		{1234, 2},
		{0x1ff, 3},
	}

	for _, tt := range tests {
		src := plantTrailer([4]byte{0xde, 0xad, 0xbe, 0xef}, tt.x, tt.y)
		got := searchTrailer(src)

		assert.True(t, got.Found)
		assert.Equal(t, tt.x, got.X)
		assert.Equal(t, tt.y, got.Y)
	}
}

func TestSearchTrailerMiss(t *testing.T) {
	got := searchTrailer([20]byte{1, 2, 3, 4})

	assert.False(t, got.Found)
	assert.Equal(t, 0, got.Y)
}

func TestApplyFixupRunsTwice(t *testing.T) {
	m := &fixupMock{}
	m.On("Fixup", uint32(0x04030201), fixupDepth, 2, 1234).Return(uint32(0xaabbccdd)).Once()
	m.On("Fixup", uint32(0xaabbccdd), fixupDepth, 2, 1234).Return(uint32(0x11223344)).Once()

	opts := quietOptions()
	opts.Fixup = m.Fixup

	key := applyFixup([4]byte{1, 2, 3, 4}, Trailer{X: 1234, Y: 2, Found: true}, opts)

	assert.Equal(t, [4]byte{0x44, 0x33, 0x22, 0x11}, key)
	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "Fixup", 2)
}

func TestApplyFixupNilKeepsKey(t *testing.T) {
	key := applyFixup([4]byte{1, 2, 3, 4}, Trailer{X: 7, Y: 1, Found: true}, quietOptions())
	assert.Equal(t, [4]byte{1, 2, 3, 4}, key)
}

func TestAnswerMarksMissingFixup(t *testing.T) {
	trailer := Trailer{X: 7, Y: 2, Found: true}

	resp := answer([4]byte{1, 2, 3, 4}, trailer, "hunter2", quietOptions())
	assert.True(t, resp.KeyUnfixed)

	opts := quietOptions()
	opts.Fixup = func(magic uint32, depth, y, x int) uint32 { return magic + 1 }
	fixed := answer([4]byte{1, 2, 3, 4}, trailer, "hunter2", opts)
	assert.False(t, fixed.KeyUnfixed)
	assert.NotEqual(t, resp.Result6, fixed.Result6)

	// y == 0 needs no fixup at all
	plain := answer([4]byte{1, 2, 3, 4}, Trailer{X: 7, Found: true}, "hunter2", quietOptions())
	assert.False(t, plain.KeyUnfixed)
}

func TestNewWithoutTrailerSkipsFixup(t *testing.T) {
	m := &fixupMock{}
	opts := quietOptions()
	opts.Fixup = m.Fixup

	first := New("alice", "hunter2", "q+z+e+", opts)
	second := New("alice", "hunter2", "q+z+e+", opts)

	m.AssertNotCalled(t, "Fixup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, first, second)
	assert.Len(t, first.Result6, 50)
	assert.Len(t, first.Result96, 50)
	assert.NotEqual(t, first.Result6, first.Result96)
}

func TestNewEncodesPassword(t *testing.T) {
	opts := quietOptions()
	plain := New("alice", "pw", "q+z+e+", opts)

	opts.Encode = strings.ToUpper
	encoded := New("alice", "pw", "q+z+e+", opts)

	assert.Equal(t, New("alice", "PW", "q+z+e+", quietOptions()), encoded)
	assert.NotEqual(t, plain, encoded)
}

func TestRespondForgedCounter(t *testing.T) {
	hash := y64md5("pw")
	key := [4]byte{9, 8, 7, 6}

	assert.Equal(t, respond(hash, key, 1), respond(hash, key, 2))
	assert.NotEqual(t, respond(hash, key, 2), respond(hash, key, 3))
	assert.Equal(t, respond(hash, key, 3), respond(hash, key, 4))
}

func TestEncodeDigestShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var d [20]byte
		copy(d[:], rapid.SliceOfN(rapid.Byte(), 20, 20).Draw(t, "digest"))

		out := encodeDigest(d)
		require.Len(t, out, 50)

		for i := 0; i < len(out); i += 5 {
			group := out[i : i+5]
			require.Contains(t, alphabet1, group[0:1])
			require.Equal(t, byte('='), group[1])
			require.Contains(t, alphabet2, group[2:3])
			require.Contains(t, alphabet2, group[3:4])
			require.Contains(t, delimitLookup, group[4:5])
		}
	})
}

func TestEncodeDigestKnown(t *testing.T) {
	// 0x0000 picks index 0 everywhere, 0xffff index 31 and the second delimiter
	var d [20]byte
	d[2], d[3] = 0xff, 0xff

	out := encodeDigest(d)
	assert.Equal(t, "F=FF,Q=pp;", out[:10])
}
