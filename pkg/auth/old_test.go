package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func y64md5(s string) string {
	return ToY64(md5Sum([]byte(s)))
}

func TestOldLayouts(t *testing.T) {
	const name = "alice"
	const password = "hunter2"

	passwordHash := y64md5(password)
	cryptHash := y64md5(MD5Crypt(password, CryptSalt))

	tests := []struct {
		name   string
		seed   string
		layout func(hash string) string
	}{
		{
			// seed[15]='f' (102 % 8 = 6), checksum seed[seed[9]%16] = seed[9]
			name:   "name seed hash",
			seed:   "0123456789abcdef",
			layout: func(h string) string { return "9" + name + "0123456789abcdef" + h },
		},
		{
			// seed[15]='g' (103 % 8 = 7), checksum seed[seed[15]%16] = seed[7]
			name:   "seed hash name",
			seed:   "0123456789abcdeg",
			layout: func(h string) string { return "7" + "0123456789abcdeg" + h + name },
		},
		{
			// seed[15]='k' (107 % 8 = 3), checksum seed[seed[1]%16] = seed[1]
			name:   "name hash seed",
			seed:   "0123456789abcdek",
			layout: func(h string) string { return "1" + name + h + "0123456789abcdek" },
		},
		{
			// seed[15]='l' (108 % 8 = 4), checksum seed[seed[3]%16] = seed[3]
			name:   "hash seed name",
			seed:   "0123456789abcdel",
			layout: func(h string) string { return "3" + h + "0123456789abcdel" + name },
		},
		{
			// seed[15]='h' (104 % 8 = 0), checksum seed[seed[7]%16] = seed[7]
			name:   "hash name seed",
			seed:   "0123456789abcdeh",
			layout: func(h string) string { return "7" + h + name + "0123456789abcdeh" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Old(name, password, tt.seed)

			assert.Equal(t, y64md5(tt.layout(passwordHash)), resp.Result6)
			assert.Equal(t, y64md5(tt.layout(cryptHash)), resp.Result96)
		})
	}
}

func TestOldDeterministic(t *testing.T) {
	seed := "4|2^(a+b)&c%d/e*f-g"
	first := Old("bob", "pa55", seed)

	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Old("bob", "pa55", seed))
	}
	assert.NotEqual(t, first, Old("bob", "pa56", seed))
	assert.Len(t, first.Result6, 24)
	assert.Len(t, first.Result96, 24)
}

func TestOldZeroChecksum(t *testing.T) {
	// seed[15] is past the end so sv is 0; seed[7]='h' points at index 8,
	// also past the end, which makes the checksum NUL
	resp := Old("carol", "pw", "abcdefgh")

	assert.Equal(t, y64md5(""), resp.Result6)
	assert.Equal(t, y64md5(""), resp.Result96)
}

func TestOldTruncatesLongSeed(t *testing.T) {
	// 'f' at index 15 selects name+seed+hash; a 59 byte seed pushes the
	// whole hash past the buffer so both results collapse to the same value
	seed := "0123456789abcdef" + "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq"
	resp := Old("dave", "pw", seed)

	assert.Equal(t, resp.Result6, resp.Result96)

	limit := len("dave") + 49
	want := ("9" + "dave" + seed)[:limit]
	assert.Equal(t, y64md5(want), resp.Result6)
}

func TestSeedAt(t *testing.T) {
	assert.Equal(t, byte('a'), seedAt("abc", 0))
	assert.Equal(t, byte(0), seedAt("abc", 3))
	assert.Equal(t, byte(0), seedAt("abc", -1))
}
