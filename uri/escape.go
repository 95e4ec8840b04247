package uri

import (
	"strconv"
	"strings"

	"github.com/karloscodes/httpwire/httperr"
)

// Encoding selects the escape set of a URL region, per RFC 3986 §2.2 and §3.
type Encoding int

const (
	EncodePath Encoding = 1 + iota
	EncodePathSegment
	EncodeHost
	EncodeZone
	EncodeUserPassword
	EncodeQueryComponent
	EncodeFragment
)

const upperhex = "0123456789ABCDEF"

// InvalidHostError reports a byte that may not appear, escaped or not, in a host name.
type InvalidHostError string

func (e InvalidHostError) Error() string {
	return "invalid character " + strconv.Quote(string(e)) + " in host name"
}

// Unwrap lets errors.As classify host errors as escape errors.
func (e InvalidHostError) Unwrap() error {
	return &httperr.EscapeError{Value: string(e)}
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// shouldEscape reports whether the byte c must be escaped in the given URL region.
func shouldEscape(c byte, mode Encoding) bool {
	// §2.3 unreserved alphanum
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}

	if mode == EncodeHost || mode == EncodeZone {
		// §3.2.2 sub-delims are allowed in hosts, as are the IPv6 brackets and the
		// port colon. '<', '>' and '"' are tolerated for compatibility with hosts
		// produced by older escaping.
		switch c {
		case '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=', ':', '[', ']', '<', '>', '"':
			return false
		}
	}

	switch c {
	case '-', '_', '.', '~':
		return false

	case '$', '&', '+', ',', '/', ':', ';', '=', '?', '@':
		switch mode {
		case EncodePath:
			// '/' separates segments and ';' ',' are left for the caller.
			return c == '?'

		case EncodePathSegment:
			return c == '/' || c == ';' || c == ',' || c == '?'

		case EncodeUserPassword:
			return c == '@' || c == '/' || c == '?' || c == ':'

		case EncodeQueryComponent:
			return true

		case EncodeFragment:
			return false
		}
	}

	if mode == EncodeFragment {
		switch c {
		case '!', '(', ')', '*':
			return false
		}
	}

	return true
}

// QueryUnescape is the inverse of QueryEscape: "%AB" becomes 0xAB and '+' becomes ' '.
func QueryUnescape(s string) (string, error) {
	return Unescape(s, EncodeQueryComponent)
}

// PathUnescape is the inverse of PathEscape. Unlike QueryUnescape it leaves '+' alone.
func PathUnescape(s string) (string, error) {
	return Unescape(s, EncodePathSegment)
}

// Unescape decodes s according to mode. Malformed escapes yield an *httperr.EscapeError;
// host and zone modes also reject escapes of bytes that may not appear in a host.
func Unescape(s string, mode Encoding) (string, error) {
	n := 0
	hasPlus := false
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			n++
			if i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2]) {
				s = s[i:]
				if len(s) > 3 {
					s = s[:3]
				}
				return "", &httperr.EscapeError{Value: s}
			}
			// Only %-encoded UTF-8 sequences and %25 are permitted in a host (RFC 6874).
			if mode == EncodeHost && unhex(s[i+1]) < 8 && s[i:i+3] != "%25" {
				return "", &httperr.EscapeError{Value: s[i : i+3]}
			}
			if mode == EncodeZone {
				v := unhex(s[i+1])<<4 | unhex(s[i+2])
				if s[i:i+3] != "%25" && v != ' ' && shouldEscape(v, EncodeHost) {
					return "", &httperr.EscapeError{Value: s[i : i+3]}
				}
			}
			i += 3
		case '+':
			hasPlus = mode == EncodeQueryComponent
			i++
		default:
			if (mode == EncodeHost || mode == EncodeZone) && s[i] < 0x80 && shouldEscape(s[i], mode) {
				return "", InvalidHostError(s[i : i+1])
			}
			i++
		}
	}

	if n == 0 && !hasPlus {
		return s, nil
	}

	var t strings.Builder
	t.Grow(len(s) - 2*n)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			t.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case '+':
			if mode == EncodeQueryComponent {
				t.WriteByte(' ')
			} else {
				t.WriteByte('+')
			}
		default:
			t.WriteByte(s[i])
		}
	}
	return t.String(), nil
}

// QueryEscape escapes s so it can be safely placed inside a query component.
func QueryEscape(s string) string {
	return Escape(s, EncodeQueryComponent)
}

// PathEscape escapes s so it can be safely placed inside a single path segment,
// replacing '/' with %2F.
func PathEscape(s string) string {
	return Escape(s, EncodePathSegment)
}

// Escape encodes s for the URL region named by mode.
func Escape(s string, mode Encoding) string {
	spaceCount, hexCount := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c, mode) {
			if c == ' ' && mode == EncodeQueryComponent {
				spaceCount++
			} else {
				hexCount++
			}
		}
	}

	if spaceCount == 0 && hexCount == 0 {
		return s
	}

	var buf [64]byte
	var t []byte

	required := len(s) + 2*hexCount
	if required <= len(buf) {
		t = buf[:required]
	} else {
		t = make([]byte, required)
	}

	if hexCount == 0 {
		copy(t, s)
		for i := 0; i < len(s); i++ {
			if s[i] == ' ' {
				t[i] = '+'
			}
		}
		return string(t)
	}

	j := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == ' ' && mode == EncodeQueryComponent:
			t[j] = '+'
			j++
		case shouldEscape(c, mode):
			t[j] = '%'
			t[j+1] = upperhex[c>>4]
			t[j+2] = upperhex[c&15]
			j += 3
		default:
			t[j] = s[i]
			j++
		}
	}
	return string(t)
}

// validEncoded reports whether s is a valid encoded path or fragment according to mode.
// It is stricter than Unescape: it rejects bytes that would be escaped by Escape, except
// for sub-delims and brackets that browsers leave alone.
func validEncoded(s string, mode Encoding) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=', ':', '@':
		case '[', ']':
		case '%':
		default:
			if shouldEscape(s[i], mode) {
				return false
			}
		}
	}
	return true
}
