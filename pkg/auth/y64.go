// Package auth implements the two YMSG challenge/response schemes.
//
// Method 0 ("old") hashes the seed together with the account name and
// two MD5 digests of the password. Methods 1 and 2 ("new") derive a
// 4-byte key from the seed and run an HMAC-like pair of SHA-1 digests
// over the same password digests.
package auth

const y64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789._"

// ToY64 encodes in with the Yahoo base64 variant. The alphabet ends in
// '.' and '_' and the padding character is '-'.
func ToY64(in []byte) string {
	out := make([]byte, 0, (len(in)+2)/3*4)

	for ; len(in) >= 3; in = in[3:] {
		out = append(out,
			y64Digits[in[0]>>2],
			y64Digits[((in[0]<<4)&0x30)|(in[1]>>4)],
			y64Digits[((in[1]<<2)&0x3c)|(in[2]>>6)],
			y64Digits[in[2]&0x3f],
		)
	}

	if len(in) > 0 {
		out = append(out, y64Digits[in[0]>>2])
		fragment := (in[0] << 4) & 0x30
		if len(in) > 1 {
			fragment |= in[1] >> 4
		}
		out = append(out, y64Digits[fragment])
		if len(in) < 2 {
			out = append(out, '-')
		} else {
			out = append(out, y64Digits[(in[1]<<2)&0x3c])
		}
		out = append(out, '-')
	}

	return string(out)
}
