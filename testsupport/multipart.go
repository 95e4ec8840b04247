package testsupport

import (
	"fmt"
	"strings"
)

// MultipartBody builds multipart/form-data request bodies.
type MultipartBody struct {
	Boundary string
	parts    []string
}

// NewMultipartBody starts an empty body with a fixed boundary.
func NewMultipartBody() *MultipartBody {
	return &MultipartBody{Boundary: "testsupport-boundary"}
}

// Field adds a plain form field.
func (b *MultipartBody) Field(name, value string) *MultipartBody {
	b.parts = append(b.parts, fmt.Sprintf("Content-Disposition: form-data; name=%q\r\n\r\n%s", name, value))
	return b
}

// File adds a file part with the given content.
func (b *MultipartBody) File(name, filename, contentType, content string) *MultipartBody {
	b.parts = append(b.parts, fmt.Sprintf(
		"Content-Disposition: form-data; name=%q; filename=%q\r\nContent-Type: %s\r\n\r\n%s",
		name, filename, contentType, content))
	return b
}

// ContentType returns the Content-Type header value for the body.
func (b *MultipartBody) ContentType() string {
	return "multipart/form-data; boundary=" + b.Boundary
}

func (b *MultipartBody) String() string {
	var sb strings.Builder
	for _, p := range b.parts {
		sb.WriteString("--" + b.Boundary + "\r\n" + p + "\r\n")
	}
	sb.WriteString("--" + b.Boundary + "--\r\n")
	return sb.String()
}
