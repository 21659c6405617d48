package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodesToHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "\x1b[1mbold\x1b[x1m", "<B>bold</B>"},
		{"italic underline", "\x1b[2m\x1b[4mx\x1b[x4m\x1b[x2m", "<I><U>x</U></I>"},
		{"hex colour", "\x1b[#ff0000mred", `<FONT COLOR="#ff0000">red`},
		{"palette colour", "\x1b[31mblue", `<FONT COLOR="#0000FF">blue`},
		{"link markers", "\x1b[lmhttp://x\x1b[xlm", "http://x"},
		{"unknown code drops the escape", "\x1b[99mx", "[99mx"},
		{"unterminated escape", "\x1b[1", "[1"},
		{"colour tag", "<red>hi</red>", `<FONT COLOR="#FF0000">hi</FONT>`},
		{"tags ignore case", "<B>x</B>", "<b>x</b>"},
		{"font size in points", `<font size="10">x</font>`, `<font size="2" absz="10">x</font>`},
		{"fade dropped", "<fade #ff0000,#00ff00>x</fade>", "x"},
		{"alt dropped", "<alt #ff0000,#00ff00>x</alt>", "x"},
		{"unknown tag escaped", "<blink>x</blink>", "&lt;blink&gt;x&lt;/blink&gt;"},
		{"lone bracket", "a < b", "a &lt; b"},
		{"ampersand", "fish & chips", "fish &amp; chips"},
		{"quote", `say "hi"`, "say &quot;hi&quot;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodesToHTML(tt.in))
		})
	}
}

func TestHTMLToCodes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"bold", "<b>bold</b>", "\x1b[1mbold\x1b[x1m"},
		{"italic underline", "<i><u>x</u></i>", "\x1b[2m\x1b[4mx\x1b[x4m\x1b[x2m"},
		{"line break", "line<br>next", "line\nnext"},
		{"link", `<a href="http://example.com">click</a>`, "\x1b[lmhttp://example.com\x1b[xlm"},
		{"text after link", `see <a href="http://x.y">here</a> ok <b>now</b>`, "see \x1b[lmhttp://x.y\x1b[xlm ok \x1b[1mnow\x1b[x1m"},
		{"two links", `<a href="http://a">a</a>-<a href="http://b">b</a>`, "\x1b[lmhttp://a\x1b[xlm-\x1b[lmhttp://b\x1b[xlm"},
		{"upper case tags", "<B>x</B> <BLINK>y</BLINK>", "\x1b[1mx\x1b[x1m <BLINK>y</BLINK>"},
		{"anchor without href", "<a>x</a>", "<a>x"},
		{"colour", `<font color="#ff0000">red</font>`, "\x1b[#ff0000mred\x1b[#000000m"},
		{
			"nested colours",
			`<font color="#ff0000">a<font color="#00ff00">b</font>c</font>`,
			"\x1b[#ff0000ma\x1b[#00ff00mb\x1b[#ff0000mc\x1b[#000000m",
		},
		{"face and size", `<font face="Arial" size="3">x</font>`, `<font face="Arial" size="12">x</font>`},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"span dropped", "<span>x</span>", "x"},
		{"unknown tag kept", "<blink>x</blink>", "<blink>x</blink>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToCodes(tt.in))
		})
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "hi\nthere", StripHTML("<b>hi</b><br>there"))
	assert.Equal(t, "fish & chips", StripHTML(`<font color="#ff0000">fish &amp; chips</font>`))
	assert.Equal(t, "", StripHTML(""))
}

func TestFontSizes(t *testing.T) {
	for points, size := range map[int]int{6: 1, 10: 2, 12: 3, 14: 4, 20: 5, 30: 6, 40: 7} {
		assert.Equal(t, size, pointToHTML(points), "points %d", points)
	}
	assert.Equal(t, 8, htmlToPoint(0))
	assert.Equal(t, 12, htmlToPoint(3))
	assert.Equal(t, 40, htmlToPoint(9))
}
