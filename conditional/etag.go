package conditional

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/karloscodes/httpwire/response"
)

// isETag reports whether s is a well-formed entity tag: an optional W/ prefix and a
// double-quoted string without inner quotes.
func isETag(s string) bool {
	s = strings.TrimPrefix(s, "W/")
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return false
	}
	return !strings.Contains(s[1:len(s)-1], `"`)
}

// ParseETags parses a comma-separated list of entity tags as found in If-Match and
// If-None-Match. Commas inside a quoted tag do not separate entries. A lone "*"
// yields []string{"*"}. Malformed entries are dropped.
func ParseETags(v string) []string {
	if strings.TrimSpace(v) == "*" {
		return []string{"*"}
	}
	var etags []string
	for v != "" {
		var part string
		part, v = nextListElement(v)
		part = strings.TrimSpace(part)
		if isETag(part) {
			etags = append(etags, part)
		}
	}
	return etags
}

// nextListElement returns the text before the first comma outside double quotes and
// the remainder after that comma.
func nextListElement(v string) (elem, rest string) {
	quoted := false
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return v[:i], v[i+1:]
			}
		}
	}
	return v, ""
}

// QuoteETag returns s unchanged when it is already a valid entity tag and wrapped in
// double quotes otherwise.
func QuoteETag(s string) string {
	if isETag(s) {
		return s
	}
	return `"` + s + `"`
}

func isWeak(etag string) bool {
	return strings.HasPrefix(etag, "W/")
}

func opaque(etag string) string {
	return strings.TrimPrefix(etag, "W/")
}

// StrongMatch compares two entity tags with the strong comparison of RFC 7232 §2.3.2:
// both must be strong and identical.
func StrongMatch(a, b string) bool {
	return !isWeak(a) && !isWeak(b) && a == b
}

// WeakMatch compares two entity tags ignoring any W/ prefix.
func WeakMatch(a, b string) bool {
	return opaque(a) == opaque(b)
}

// ETagFor returns the quoted hex MD5 digest of body.
func ETagFor(body []byte) string {
	sum := md5.Sum(body)
	return QuoteETag(hex.EncodeToString(sum[:]))
}

// SetETag sets an ETag derived from the body of resp when resp has a buffered,
// non-empty body and no ETag yet. Streaming responses are never hashed. It reports
// whether a tag was set.
func SetETag(resp response.Response) bool {
	if resp == nil || resp.IsStreaming() || resp.Header().Get("ETag") != "" {
		return false
	}
	p, ok := resp.(*response.Plain)
	if !ok || p.ContentLength() <= 0 {
		return false
	}
	p.Header().Set("ETag", ETagFor(p.Body()))
	return true
}
