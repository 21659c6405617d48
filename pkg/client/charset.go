package client

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
)

// DefaultCharset is used for text that is not flagged as UTF-8.
const DefaultCharset = "ISO-8859-1"

// textCodec converts between UTF-8 and what goes on the wire.
type textCodec struct {
	japan bool
	local encoding.Encoding
}

func newTextCodec(charset string, japan bool) textCodec {
	if charset == "" {
		charset = DefaultCharset
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		enc = charmap.ISO8859_1
	}
	return textCodec{japan: japan, local: enc}
}

// Encode converts UTF-8 text for sending. Japanese accounts and peers
// that accept UTF-8 get the text unchanged; everything else goes to the
// local charset with '?' for characters it cannot represent.
func (c textCodec) Encode(s string, utf8OK bool) string {
	if c.japan || utf8OK {
		return s
	}

	if cm, ok := c.local.(*charmap.Charmap); ok {
		var b strings.Builder
		for _, r := range s {
			if ch, ok := cm.EncodeRune(r); ok {
				b.WriteByte(ch)
			} else {
				b.WriteByte('?')
			}
		}
		return b.String()
	}

	enc := c.local.NewEncoder()
	var b strings.Builder
	for _, r := range s {
		out, err := enc.String(string(r))
		if err != nil {
			b.WriteByte('?')
			continue
		}
		b.WriteString(out)
	}
	return b.String()
}

// Decode converts received text to UTF-8. Text flagged as UTF-8 is kept
// when it validates.
func (c textCodec) Decode(s string, utf8Flag bool) string {
	if utf8Flag && utf8.ValidString(s) {
		return s
	}

	dec := c.local.NewDecoder()
	if c.japan {
		dec = japanese.ShiftJIS.NewDecoder()
	}
	out, err := dec.String(s)
	if err != nil {
		return ""
	}
	return out
}

// yahooDecode undoes the octal escaping used in mail notifications and
// converts the result to UTF-8.
func yahooDecode(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		if text[i] != '\\' || i+1 >= len(text) || text[i+1] < '0' || text[i+1] > '7' {
			// A backslash not followed by an octal digit stands for itself
			b.WriteByte(text[i])
			continue
		}

		i++
		v, k := 0, 0
		for ; k < 3 && i+k < len(text); k++ {
			c := text[i+k]
			if c < '0' || c > '7' {
				break
			}
			v = v*8 + int(c-'0')
		}
		b.WriteByte(byte(v))
		i += k - 1
	}

	raw := b.String()
	if strings.Contains(text, "\x1b$B") {
		if out, err := japanese.ISO2022JP.NewDecoder().String(raw); err == nil {
			return out
		}
	}
	out, _ := charmap.ISO8859_1.NewDecoder().String(raw)
	return out
}
