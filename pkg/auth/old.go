package auth

import "crypto/md5"

// Response carries the two strings sent back in AUTHRESP
// (keys 6 and 96).
type Response struct {
	Result6  string
	Result96 string

	// KeyUnfixed is set when the challenge called for a key fixup and no
	// KeyFixup was configured. The server will most likely reject it.
	KeyUnfixed bool
}

// Old answers a method 0 challenge.
//
// name must already be normalized. The layout of the hashed string is
// picked by seed[15] mod 8 and its first character is read from the
// seed at an index that is itself read from the seed.
func Old(name, password, seed string) Response {
	passwordHash := ToY64(md5Sum([]byte(password)))
	cryptHash := ToY64(md5Sum([]byte(MD5Crypt(password, CryptSalt))))

	sv := seedAt(seed, 15) % 8

	var checksum byte
	var layout func(hash string) string
	switch sv {
	case 1, 6:
		checksum = seedAt(seed, int(seedAt(seed, 9)%16))
		layout = func(hash string) string { return name + seed + hash }
	case 2, 7:
		checksum = seedAt(seed, int(seedAt(seed, 15)%16))
		layout = func(hash string) string { return seed + hash + name }
	case 3:
		checksum = seedAt(seed, int(seedAt(seed, 1)%16))
		layout = func(hash string) string { return name + hash + seed }
	case 4:
		checksum = seedAt(seed, int(seedAt(seed, 3)%16))
		layout = func(hash string) string { return hash + seed + name }
	default: // 0, 5
		checksum = seedAt(seed, int(seedAt(seed, 7)%16))
		layout = func(hash string) string { return hash + name + seed }
	}

	// The server formats into a buffer of len(name)+50 bytes
	limit := len(name) + 49

	build := func(hash string) []byte {
		if checksum == 0 {
			// a NUL checksum terminates the string before anything else
			return nil
		}
		s := append([]byte{checksum}, layout(hash)...)
		if len(s) > limit {
			s = s[:limit]
		}
		return s
	}

	return Response{
		Result6:  ToY64(md5Sum(build(passwordHash))),
		Result96: ToY64(md5Sum(build(cryptHash))),
	}
}

// seedAt reads one byte of the seed; anything outside it reads as 0.
func seedAt(seed string, i int) byte {
	if i < 0 || i >= len(seed) {
		return 0
	}
	return seed[i]
}

func md5Sum(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}
