package client

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ansiCodes maps the body of an ESC[...m sequence to HTML
var ansiCodes = map[string]string{
	"30": `<FONT COLOR="#000000">`,
	"31": `<FONT COLOR="#0000FF">`,
	"32": `<FONT COLOR="#008080">`,
	"33": `<FONT COLOR="#808080">`,
	"34": `<FONT COLOR="#008000">`,
	"35": `<FONT COLOR="#FF0080">`,
	"36": `<FONT COLOR="#800080">`,
	"37": `<FONT COLOR="#FF8000">`,
	"38": `<FONT COLOR="#FF0000">`,
	"39": `<FONT COLOR="#808000">`,

	"1":  "<B>",
	"x1": "</B>",
	"2":  "<I>",
	"x2": "</I>",
	"4":  "<U>",
	"x4": "</U>",

	// link markers, the text is a link anyway
	"l":  "",
	"xl": "",
}

// markupTags maps lower-cased inline tags to their HTML replacement.
// Tags not listed here are escaped.
var markupTags = map[string]string{
	"<black>":  `<FONT COLOR="#000000">`,
	"<blue>":   `<FONT COLOR="#0000FF">`,
	"<cyan>":   `<FONT COLOR="#008284">`,
	"<gray>":   `<FONT COLOR="#848284">`,
	"<green>":  `<FONT COLOR="#008200">`,
	"<pink>":   `<FONT COLOR="#FF0084">`,
	"<purple>": `<FONT COLOR="#840084">`,
	"<orange>": `<FONT COLOR="#FF8000">`,
	"<red>":    `<FONT COLOR="#FF0000">`,
	"<yellow>": `<FONT COLOR="#848200">`,

	"</black>":  "</FONT>",
	"</blue>":   "</FONT>",
	"</cyan>":   "</FONT>",
	"</gray>":   "</FONT>",
	"</green>":  "</FONT>",
	"</pink>":   "</FONT>",
	"</purple>": "</FONT>",
	"</orange>": "</FONT>",
	"</red>":    "</FONT>",
	"</yellow>": "</FONT>",

	"</fade>": "",
	"</alt>":  "",

	"<b>":     "<b>",
	"<i>":     "<i>",
	"<u>":     "<u>",
	"</b>":    "</b>",
	"</i>":    "</i>",
	"</u>":    "</u>",
	"</font>": "</font>",
}

// CodesToHTML converts the ESC[..m style markup the official client
// sends into HTML. Anything that is not recognised markup is escaped.
func CodesToHTML(x string) string {
	var s strings.Builder
	s.Grow(len(x))
	noMoreTags := false

	for i := 0; i < len(x); i++ {
		switch {
		case x[i] == 0x1b && i+1 < len(x) && x[i+1] == '[':
			end := strings.IndexByte(x[i+2:], 'm')
			if end < 0 {
				// unterminated escape: drop the ESC byte only
				continue
			}
			code := x[i+2 : i+2+end]
			if strings.HasPrefix(code, "#") {
				fmt.Fprintf(&s, `<FONT COLOR="%s">`, code)
			} else if repl, ok := ansiCodes[code]; ok {
				s.WriteString(repl)
			} else {
				continue
			}
			i += 2 + end

		case !noMoreTags && x[i] == '<':
			end := strings.IndexByte(x[i:], '>')
			if end < 0 {
				s.WriteString("&lt;")
				noMoreTags = true
				continue
			}
			tag := asciiLower(x[i : i+end+1])
			if repl, ok := markupTags[tag]; ok {
				s.WriteString(repl)
			} else if strings.HasPrefix(tag, "<font ") {
				s.WriteString(fixFontSize(tag))
			} else if !strings.HasPrefix(tag, "<fade ") && !strings.HasPrefix(tag, "<alt ") && !strings.HasPrefix(tag, "<snd ") {
				s.WriteString("&lt;")
				continue
			}
			i += end

		default:
			writeEscaped(&s, x[i])
		}
	}

	return s.String()
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func writeEscaped(s *strings.Builder, c byte) {
	switch c {
	case '<':
		s.WriteString("&lt;")
	case '>':
		s.WriteString("&gt;")
	case '&':
		s.WriteString("&amp;")
	case '"':
		s.WriteString("&quot;")
	default:
		s.WriteByte(c)
	}
}

// pointToHTML turns a point size into an HTML font size
func pointToHTML(x int) int {
	switch {
	case x < 9:
		return 1
	case x < 11:
		return 2
	case x < 13:
		return 3
	case x < 17:
		return 4
	case x < 25:
		return 5
	case x < 35:
		return 6
	default:
		return 7
	}
}

// fixFontSize rewrites size="N" (which the client means in points) to an
// HTML size and keeps the point size in absz.
func fixFontSize(tag string) string {
	at := strings.Index(tag, "size")
	if at < 0 {
		return tag
	}
	eq := strings.IndexByte(tag[at:], '=')
	if eq < 0 {
		return tag
	}
	start := at + eq
	for start < len(tag) && (tag[start] < '0' || tag[start] > '9') {
		start++
	}
	if start >= len(tag) {
		return tag
	}
	end := start
	for end < len(tag) && tag[end] >= '0' && tag[end] <= '9' {
		end++
	}
	size, _ := strconv.Atoi(tag[start:end])
	return fmt.Sprintf(`%s%d" absz="%d%s`, tag[:start], pointToHTML(size), size, tag[end:])
}

// pointSizes maps HTML font sizes 1..7 to points
var pointSizes = [...]int{8, 10, 12, 14, 20, 30, 40}

func htmlToPoint(size int) int {
	if size < 1 {
		size = 1
	}
	if size > len(pointSizes) {
		size = len(pointSizes)
	}
	return pointSizes[size-1]
}

// fontClose is what a closing </font> has to emit for its opening tag
type fontClose struct {
	text     string
	hasColor bool
}

// HTMLToCodes converts outgoing HTML into the client's markup codes.
// Bold, italic and underline become escape codes, font colours become
// ESC[#rrggbbm, font faces and sizes stay as <font> tags. Unknown tags
// pass through verbatim.
func HTMLToCodes(src string) string {
	var dest strings.Builder
	var colors []string
	var tags []fontClose

	z := html.NewTokenizer(strings.NewReader(src))
	inLink := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				dest.Write(z.Raw())
			}
			break
		}

		// TagName can only be read once per token, and it lower-cases the
		// buffer Raw points into
		var raw, name string
		hasAttr := false
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken || tt == html.EndTagToken {
			raw = string(z.Raw())
			var n []byte
			n, hasAttr = z.TagName()
			name = string(n)
		}

		if inLink && !(tt == html.EndTagToken && name == "a") {
			continue
		}

		switch tt {
		case html.TextToken:
			dest.Write(z.Text())

		case html.StartTagToken, html.SelfClosingTagToken:
			switch name {
			case "b":
				dest.WriteString("\x1b[1m")
			case "i":
				dest.WriteString("\x1b[2m")
			case "u":
				dest.WriteString("\x1b[4m")
			case "br":
				dest.WriteByte('\n')
			case "body", "span":
			case "a":
				href := ""
				for hasAttr {
					var k, v []byte
					k, v, hasAttr = z.TagAttr()
					if string(k) == "href" {
						href = string(v)
					}
				}
				if href == "" {
					dest.WriteString(raw)
					continue
				}
				dest.WriteString("\x1b[lm")
				dest.WriteString(href)
				dest.WriteString("\x1b[xlm")
				inLink = tt == html.StartTagToken
			case "font":
				var attrs map[string]string
				for hasAttr {
					var k, v []byte
					k, v, hasAttr = z.TagAttr()
					if attrs == nil {
						attrs = make(map[string]string)
					}
					attrs[string(k)] = string(v)
				}
				colors, tags = openFont(&dest, attrs, colors, tags)
			default:
				dest.WriteString(raw)
			}

		case html.EndTagToken:
			switch name {
			case "b":
				dest.WriteString("\x1b[x1m")
			case "i":
				dest.WriteString("\x1b[x2m")
			case "u":
				dest.WriteString("\x1b[x4m")
			case "a":
				inLink = false
			case "body", "span":
			case "font":
				if len(tags) == 0 {
					dest.WriteString(raw)
					continue
				}
				closing := tags[len(tags)-1]
				tags = tags[:len(tags)-1]
				dest.WriteString(closing.text)
				if closing.hasColor && len(colors) > 0 {
					colors = colors[:len(colors)-1]
				}
			default:
				dest.WriteString(raw)
			}

		default:
			dest.Write(z.Raw())
		}
	}

	return dest.String()
}

func tagName(z *html.Tokenizer) string {
	name, _ := z.TagName()
	return string(name)
}

func openFont(dest *strings.Builder, attrs map[string]string, colors []string, tags []fontClose) ([]string, []fontClose) {
	var open []string
	if face, ok := attrs["face"]; ok {
		open = append(open, fmt.Sprintf(`face="%s"`, face))
	}
	if size, ok := attrs["size"]; ok {
		n, _ := strconv.Atoi(strings.TrimSpace(size))
		open = append(open, fmt.Sprintf(`size="%d"`, htmlToPoint(n)))
	}

	var closing fontClose
	if len(open) > 0 {
		dest.WriteString("<font " + strings.Join(open, " ") + ">")
		closing.text = "</font>"
	}

	if color, ok := attrs["color"]; ok {
		prev := "\x1b[#000000m"
		if len(colors) > 0 {
			prev = colors[len(colors)-1]
		}
		code := fmt.Sprintf("\x1b[%sm", color)
		dest.WriteString(code)
		colors = append(colors, code)
		closing.text += prev
		closing.hasColor = true
	}

	return colors, append(tags, closing)
}

// StripHTML drops every tag and returns the text content.
func StripHTML(src string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if tagName(z) == "br" {
				b.WriteByte('\n')
			}
		}
	}
}
