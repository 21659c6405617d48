package auth

import (
	"strings"

	"github.com/GehirnInc/crypt/md5_crypt"
)

const (
	md5CryptMagic = "$1$"

	// CryptSalt is the salt both schemes feed to MD5Crypt.
	CryptSalt = "$1$_2S43d5f$"
)

// MD5Crypt is the FreeBSD "$1$" password hash. The salt may carry the
// magic prefix and a trailing '$'; at most 8 salt characters are used.
func MD5Crypt(password, salt string) string {
	salt = strings.TrimPrefix(salt, md5CryptMagic)
	if i := strings.IndexByte(salt, '$'); i >= 0 {
		salt = salt[:i]
	}
	if len(salt) > 8 {
		salt = salt[:8]
	}

	// Generate only rejects salts without the magic prefix
	out, err := md5_crypt.New().Generate([]byte(password), []byte(md5CryptMagic+salt+"$"))
	if err != nil {
		return ""
	}
	return out
}
