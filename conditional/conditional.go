// Package conditional evaluates RFC 7232 preconditions (If-Match, If-None-Match,
// If-Modified-Since, If-Unmodified-Since) against a response's validators.
package conditional

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/karloscodes/httpwire/httpdate"
	"github.com/karloscodes/httpwire/response"
)

// Request carries the parts of a request that preconditions depend on.
type Request struct {
	Method            string
	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   string
	IfUnmodifiedSince string
}

// RequestFromHeader builds a Request from a header lookup function.
func RequestFromHeader(method string, get func(string) string) Request {
	return Request{
		Method:            method,
		IfMatch:           get("If-Match"),
		IfNoneMatch:       get("If-None-Match"),
		IfModifiedSince:   get("If-Modified-Since"),
		IfUnmodifiedSince: get("If-Unmodified-Since"),
	}
}

func (r Request) safe() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// notModifiedHeaders are carried from the original response onto a 304.
var notModifiedHeaders = []string{
	"Cache-Control",
	"Content-Location",
	"Date",
	"ETag",
	"Expires",
	"Last-Modified",
	"Vary",
}

// Evaluator runs precondition checks. The zero value is usable and logs nothing.
type Evaluator struct {
	Logger *slog.Logger
}

// Evaluate is shorthand for an Evaluator without logging.
func Evaluate(req Request, etag string, lastModified time.Time, resp response.Response) response.Response {
	return Evaluator{}.Evaluate(req, etag, lastModified, resp)
}

// Evaluate applies the precondition steps of RFC 7232 §6 in order and returns the
// response to send: a 412, a 304 carrying resp's cache headers and cookies, or resp
// itself when no precondition applies. An empty etag or zero lastModified means the
// validator is unknown. Responses outside 2xx are returned unchanged.
func (e Evaluator) Evaluate(req Request, etag string, lastModified time.Time, resp response.Response) response.Response {
	if resp != nil && (resp.Status() < 200 || resp.Status() >= 300) {
		return resp
	}

	// HTTP dates carry whole seconds.
	lastModified = lastModified.Truncate(time.Second)

	ifMatch := ParseETags(req.IfMatch)
	ifNoneMatch := ParseETags(req.IfNoneMatch)
	ifUnmodifiedSince, hasIfUnmodifiedSince := e.parseDate("If-Unmodified-Since", req.IfUnmodifiedSince)
	ifModifiedSince, hasIfModifiedSince := e.parseDate("If-Modified-Since", req.IfModifiedSince)

	// 1. If-Match
	if len(ifMatch) > 0 && !ifMatchPasses(etag, ifMatch) {
		return e.preconditionFailed("If-Match")
	}

	// 2. If-Unmodified-Since, only without If-Match
	if len(ifMatch) == 0 && hasIfUnmodifiedSince && !ifUnmodifiedSincePasses(lastModified, ifUnmodifiedSince) {
		return e.preconditionFailed("If-Unmodified-Since")
	}

	// 3. If-None-Match
	if len(ifNoneMatch) > 0 && !ifNoneMatchPasses(etag, ifNoneMatch) {
		if req.safe() {
			return notModified(resp)
		}
		return e.preconditionFailed("If-None-Match")
	}

	// 4. If-Modified-Since, only without If-None-Match and for GET/HEAD
	if len(ifNoneMatch) == 0 && hasIfModifiedSince && req.safe() &&
		!ifModifiedSincePasses(lastModified, ifModifiedSince) {
		return notModified(resp)
	}

	return resp
}

func (e Evaluator) parseDate(name, v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := httpdate.ParseTime(v)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Debug("ignoring malformed precondition date", "header", name, "value", v)
		}
		return time.Time{}, false
	}
	return t, true
}

func (e Evaluator) preconditionFailed(header string) response.Response {
	if e.Logger != nil {
		e.Logger.Debug("precondition failed", "header", header)
	}
	p, _ := response.NewPlain(http.StatusPreconditionFailed, nil, "")
	return p
}

func notModified(resp response.Response) response.Response {
	nm := response.NewNotModified()
	if resp == nil {
		return nm
	}
	for _, h := range notModifiedHeaders {
		if v := resp.Header().Values(h); len(v) > 0 {
			nm.Header()[h] = append([]string(nil), v...)
		}
	}
	for _, c := range resp.Cookies() {
		nm.SetCookie(c)
	}
	return nm
}

func ifMatchPasses(target string, etags []string) bool {
	if target == "" {
		return false
	}
	if len(etags) == 1 && etags[0] == "*" {
		// any current representation matches "*", weak or not
		return true
	}
	for _, etag := range etags {
		if StrongMatch(target, etag) {
			return true
		}
	}
	return false
}

func ifUnmodifiedSincePasses(lastModified, since time.Time) bool {
	return !lastModified.IsZero() && !lastModified.After(since)
}

func ifNoneMatchPasses(target string, etags []string) bool {
	if target == "" {
		return true
	}
	if len(etags) == 1 && etags[0] == "*" {
		return false
	}
	for _, etag := range etags {
		if WeakMatch(target, etag) {
			return false
		}
	}
	return true
}

func ifModifiedSincePasses(lastModified, since time.Time) bool {
	return lastModified.IsZero() || lastModified.After(since)
}
