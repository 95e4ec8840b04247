// Package mediatype parses and formats Content-Type and Content-Disposition header
// values (RFC 2045, RFC 2183) including RFC 2231 parameter continuations and
// charset-encoded values.
package mediatype

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/karloscodes/httpwire/httperr"
)

// ErrInvalidMediaParameter is returned by Parse when the media type parsed but one of
// its parameters did not. The media type is still returned; the parameters are not.
var ErrInvalidMediaParameter = &httperr.ParseError{Msg: "mediatype: invalid media parameter"}

func errBogusEscape(s string) error {
	return &httperr.EscapeError{Value: s}
}

// Parse parses a media type value and any optional parameters, per RFC 1521. Media
// types are the values in Content-Type and Content-Disposition headers (RFC 2183).
// The returned media type is lower-cased and trimmed; parameter names are
// lower-cased.
//
// A value whose base type does not parse yields an *httperr.ValueError. A duplicate
// parameter yields an *httperr.ParseError. When a parameter fails to parse, Parse
// returns the media type, an empty map and ErrInvalidMediaParameter; a stray trailing
// semicolon is tolerated.
func Parse(v string) (mediatype string, params map[string]string, err error) {
	base, _, _ := strings.Cut(v, ";")

	mediatype = strings.TrimSpace(strings.ToLower(base))

	if err = checkMediaTypeDisposition(mediatype); err != nil {
		return "", nil, err
	}

	params = make(map[string]string)

	// base parameter name -> parameter name -> value, for names containing '*'
	var continuation map[string]map[string]string

	v = v[len(base):]
	for len(v) > 0 {
		v = strings.TrimLeftFunc(v, unicode.IsSpace)
		if len(v) == 0 {
			break
		}
		key, value, rest := consumeMediaParam(v)
		if key == "" {
			if strings.TrimSpace(rest) == ";" {
				break
			}
			return mediatype, map[string]string{}, ErrInvalidMediaParameter
		}

		pmap := params
		if baseName, _, ok := strings.Cut(key, "*"); ok {
			if continuation == nil {
				continuation = make(map[string]map[string]string)
			}
			var ok bool
			if pmap, ok = continuation[baseName]; !ok {
				continuation[baseName] = make(map[string]string)
				pmap = continuation[baseName]
			}
		}
		if _, exists := pmap[key]; exists {
			return "", nil, httperr.NewParseError("mediatype: duplicate parameter name %q", key)
		}
		pmap[key] = value
		v = rest
	}

	for key, pieceMap := range continuation {
		if value, ok := joinContinuation(key, pieceMap); ok {
			params[key] = value
		}
	}

	return mediatype, params, nil
}

// joinContinuation reassembles the RFC 2231 pieces of parameter key. A single
// "key*" extended value wins over numbered sections. Sections are joined in numeric
// order regardless of the order they appeared in, stopping at the first missing
// index; when "key*0" is absent nothing is produced. Encoded sections are
// percent-decoded and joined before the charset named by "key*0*" is applied, so a
// multi-byte character may span sections.
func joinContinuation(key string, pieceMap map[string]string) (string, bool) {
	if v, ok := pieceMap[key+"*"]; ok {
		return decode2231Enc(v)
	}

	var buf strings.Builder
	charset := ""
	valid := false
	for n := 0; ; n++ {
		simplePart := key + "*" + strconv.Itoa(n)
		if v, ok := pieceMap[simplePart]; ok {
			valid = true
			buf.WriteString(v)
			continue
		}
		encodedPart := simplePart + "*"
		v, ok := pieceMap[encodedPart]
		if !ok {
			break
		}
		valid = true
		if n == 0 {
			cs, encv, ok := split2231Enc(v)
			if !ok {
				continue
			}
			charset = cs
			v = encv
		}
		decv, _ := percentHexUnescape(v)
		buf.WriteString(decv)
	}
	if charset == "" || isUTF8Charset(charset) {
		return buf.String(), valid
	}
	decoded, ok := decodeCharset(charset, buf.String())
	if !ok {
		return "", valid
	}
	return decoded, valid
}

// split2231Enc splits an RFC 2231 extended value, charset'language'pct-encoded, into
// its lower-cased charset and still-encoded value. The language tag is ignored.
func split2231Enc(v string) (charset, encoded string, ok bool) {
	sv := strings.SplitN(v, "'", 3)
	if len(sv) != 3 || sv[0] == "" {
		return "", "", false
	}
	return strings.ToLower(sv[0]), sv[2], true
}

func isUTF8Charset(charset string) bool {
	return charset == "us-ascii" || charset == "utf-8"
}

// decode2231Enc decodes a single RFC 2231 extended value.
func decode2231Enc(v string) (string, bool) {
	charset, encoded, ok := split2231Enc(v)
	if !ok {
		return "", false
	}
	encv, err := percentHexUnescape(encoded)
	if err != nil {
		return "", false
	}
	if isUTF8Charset(charset) {
		return encv, true
	}
	return decodeCharset(charset, encv)
}

func decodeCharset(charset, s string) (string, bool) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return "", false
	}
	out, err := io.ReadAll(enc.NewDecoder().Reader(strings.NewReader(s)))
	if err != nil {
		return "", false
	}
	return string(out), true
}

func consumeMediaParam(v string) (param, value, rest string) {
	rest = strings.TrimLeftFunc(v, unicode.IsSpace)
	if !strings.HasPrefix(rest, ";") {
		return "", "", v
	}

	rest = rest[1:]
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	param, rest = consumeToken(rest)
	param = strings.ToLower(param)
	if param == "" {
		return "", "", v
	}

	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if !strings.HasPrefix(rest, "=") {
		return "", "", v
	}
	rest = rest[1:]
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	value, rest2 := consumeValue(rest)
	if value == "" && rest2 == rest {
		return "", "", v
	}
	rest = rest2
	return param, value, rest
}

func checkMediaTypeDisposition(s string) error {
	typ, rest := consumeToken(s)
	if typ == "" {
		return httperr.NewValueError("mediatype: no media type")
	}
	if rest == "" {
		return nil
	}
	if !strings.HasPrefix(rest, "/") {
		return httperr.NewValueError("mediatype: expected slash after first token")
	}
	subtype, rest := consumeToken(rest[1:])
	if subtype == "" {
		return httperr.NewValueError("mediatype: expected token after slash")
	}
	if rest != "" {
		return httperr.NewValueError("mediatype: unexpected content after media subtype")
	}
	return nil
}

// Format serializes media type t and the parameters param as a media type conforming
// to RFC 2045 and RFC 2616. Parameters are written in sorted order; values with
// non-ASCII bytes are RFC 2231 encoded as utf-8. It returns "" when t or a parameter
// name is not a valid token.
func Format(t string, param map[string]string) string {
	var b strings.Builder
	if major, sub, ok := strings.Cut(t, "/"); !ok {
		if !isToken(t) {
			return ""
		}
		b.WriteString(strings.ToLower(t))
	} else {
		if !isToken(major) || !isToken(sub) {
			return ""
		}
		b.WriteString(strings.ToLower(major))
		b.WriteByte('/')
		b.WriteString(strings.ToLower(sub))
	}

	for _, attribute := range slices.Sorted(maps.Keys(param)) {
		value := param[attribute]
		b.WriteString("; ")
		if !isToken(attribute) {
			return ""
		}
		b.WriteString(strings.ToLower(attribute))

		needEnc := needsEncoding(value)
		if needEnc {
			b.WriteByte('*')
		}
		b.WriteByte('=')

		if needEnc {
			b.WriteString("utf-8''")

			offset := 0
			for index := 0; index < len(value); index++ {
				ch := value[index]
				// attribute-char per RFC 2231 §7
				if ch <= ' ' || ch >= 0x7F ||
					ch == '*' || ch == '\'' || ch == '%' ||
					isTSpecial(rune(ch)) {

					b.WriteString(value[offset:index])
					offset = index + 1

					b.WriteByte('%')
					b.WriteByte(upperhex[ch>>4])
					b.WriteByte(upperhex[ch&0x0F])
				}
			}
			b.WriteString(value[offset:])
			continue
		}

		if isToken(value) {
			b.WriteString(value)
			continue
		}

		b.WriteByte('"')
		offset := 0
		for index := 0; index < len(value); index++ {
			character := value[index]
			if character == '"' || character == '\\' {
				b.WriteString(value[offset:index])
				offset = index
				b.WriteByte('\\')
			}
		}
		b.WriteString(value[offset:])
		b.WriteByte('"')
	}
	return b.String()
}

func needsEncoding(s string) bool {
	for _, b := range s {
		if (b < ' ' || b > '~') && b != '\t' {
			return true
		}
	}
	return false
}

// Disposition is a parsed Content-Disposition value.
type Disposition struct {
	Type   string
	Params map[string]string
}

// ParseDisposition parses a Content-Disposition header value.
func ParseDisposition(v string) (Disposition, error) {
	typ, params, err := Parse(v)
	if err != nil {
		return Disposition{Type: typ, Params: params}, err
	}
	return Disposition{Type: typ, Params: params}, nil
}

// Param returns the named parameter or an *httperr.KeyError when it is absent.
func (d Disposition) Param(name string) (string, error) {
	v, ok := d.Params[strings.ToLower(name)]
	if !ok {
		return "", httperr.NewKeyError(name)
	}
	return v, nil
}

// IsFormData reports whether the disposition type is "form-data".
func (d Disposition) IsFormData() bool {
	return d.Type == "form-data"
}

func (d Disposition) String() string {
	if d.Type == "" {
		return ""
	}
	return Format(d.Type, d.Params)
}

// Boundary extracts the multipart boundary of a Content-Type value.
func Boundary(contentType string) (string, error) {
	typ, params, err := Parse(contentType)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(typ, "multipart/") {
		return "", httperr.NewValueError("mediatype: %q is not a multipart type", typ)
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return "", httperr.NewParseError("mediatype: missing boundary in %q", contentType)
	}
	return boundary, nil
}
