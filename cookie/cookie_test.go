package cookie

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/httpwire/httperr"
)

func pinNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := New("session", "abc123")
		require.NoError(t, err)
		assert.Equal(t, "/", c.Path)
		assert.Zero(t, c.MaxAge)
		assert.True(t, c.Expires.IsZero())
		assert.Equal(t, "session=abc123; Path=/", c.MustString())
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := New("", "v")
		require.Error(t, err)
		assert.True(t, httperr.IsValueError(err))
	})

	t.Run("negative max-age", func(t *testing.T) {
		_, err := New("a", "b", WithMaxAge(-1))
		require.Error(t, err)
		assert.True(t, httperr.IsValueError(err))
	})

	t.Run("expires derived from max-age", func(t *testing.T) {
		pinNow(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
		c, err := New("a", "b", WithMaxAge(3600))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 2, 4, 4, 5, 0, time.UTC), c.Expires.UTC())
	})

	t.Run("explicit expires kept", func(t *testing.T) {
		at := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
		c, err := New("a", "b", WithMaxAge(60), WithExpires(at))
		require.NoError(t, err)
		assert.Equal(t, at, c.Expires)
	})
}

func TestString(t *testing.T) {
	expires := time.Date(2015, 10, 21, 7, 28, 0, 0, time.UTC)

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"path only", nil, "id=a3fWa; Path=/"},
		{
			"full attribute order",
			[]Option{
				WithDomain("example.com"), WithPath("/docs"), WithMaxAge(2592000), WithExpires(expires),
				WithSameSite("strict"), WithSecure(true), WithHTTPOnly(true),
			},
			"id=a3fWa; Domain=example.com; Path=/docs; Max-Age=2592000; Expires=Wed, 21 Oct 2015 07:28:00 GMT; SameSite=Strict; Secure; HttpOnly",
		},
		{"leading dot domain", []Option{WithDomain(".example.com")}, "id=a3fWa; Domain=example.com; Path=/"},
		{"same site lax", []Option{WithSameSite("LAX")}, "id=a3fWa; Path=/; SameSite=Lax"},
		{"same site none", []Option{WithSameSite("None"), WithSecure(true)}, "id=a3fWa; Path=/; SameSite=None; Secure"},
		{"no path", []Option{WithPath("")}, "id=a3fWa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("id", "a3fWa", tt.opts...)
			require.NoError(t, err)
			got, err := c.String()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringErrors(t *testing.T) {
	c, err := New("id", "x", WithSameSite("sometimes"))
	require.NoError(t, err)
	_, err = c.String()
	require.Error(t, err)
	assert.True(t, httperr.IsValueError(err))
	assert.Panics(t, func() { c.MustString() })

	c, err = New("bad name", "x")
	require.NoError(t, err)
	_, err = c.String()
	assert.True(t, httperr.IsValueError(err))

	c, err = New("id", "semi;colon")
	require.NoError(t, err)
	_, err = c.String()
	assert.True(t, httperr.IsValueError(err))

	for _, opt := range []Option{
		WithDomain("example.com; Secure"),
		WithDomain("example.com\r\nX-Injected: 1"),
		WithPath("/; HttpOnly"),
		WithPath("/caf\xe9"),
	} {
		c, err = New("id", "x", opt)
		require.NoError(t, err)
		_, err = c.String()
		assert.True(t, httperr.IsValueError(err), "attribute injection must be rejected")
	}
}

func TestExpire(t *testing.T) {
	c := Expire("session", "", "example.com")
	assert.Equal(t,
		"session=; Domain=example.com; Path=/; Max-Age=0; Expires=Thu, 01 Jan 1970 00:00:00 GMT",
		c.MustString())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		header string
		filter string
		want   []*Cookie
	}{
		{"single", "Cookie-1=v$1", "", []*Cookie{{Name: "Cookie-1", Value: "v$1"}}},
		{
			"several with whitespace",
			"NID=99=YsDT5i3E-CXax-; expires=Wed, 23-Nov-2011 01:05:03 GMT; \t path=/",
			"",
			[]*Cookie{
				{Name: "NID", Value: "99=YsDT5i3E-CXax-"},
				{Name: "path", Value: "/"},
			},
		},
		{"quoted", `id="a3fWa"`, "", []*Cookie{{Name: "id", Value: "a3fWa", Quoted: true}}},
		{"filter", "a=1; b=2; a=3", "a", []*Cookie{{Name: "a", Value: "1"}, {Name: "a", Value: "3"}}},
		{"empty value", "a=", "", []*Cookie{{Name: "a", Value: ""}}},
		{"bad name skipped", "a b=1; c=2", "", []*Cookie{{Name: "c", Value: "2"}}},
		{"empty name skipped", "=1; c=2", "", []*Cookie{{Name: "c", Value: "2"}}},
		{"bad value skipped", `a=x"y; c=2`, "", []*Cookie{{Name: "c", Value: "2"}}},
		{"control char skipped", "a=\x01; c=2", "", []*Cookie{{Name: "c", Value: "2"}}},
		{"separator in name skipped", "a(b)=1; c=2", "", []*Cookie{{Name: "c", Value: "2"}}},
		{"empty header", "", "", nil},
		{"only separators", " ; ;; ", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.header, tt.filter))
		})
	}
}

func TestGet(t *testing.T) {
	c, ok := Get("a=1; b=2", "b")
	require.True(t, ok)
	assert.Equal(t, "2", c.Value)

	_, ok = Get("a=1", "z")
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	for _, pair := range [][2]string{{"session", "abc123"}, {"theme", "dark-mode"}, {"x", ""}, {"csrf_token", "Zm9vYmFy=="}} {
		c, err := New(pair[0], pair[1], WithMaxAge(60), WithHTTPOnly(true))
		require.NoError(t, err)

		parsed := Parse(c.MustString(), pair[0])
		require.Len(t, parsed, 1)
		assert.Equal(t, pair[0], parsed[0].Name)
		assert.Equal(t, pair[1], parsed[0].Value)
	}
}
