package httpdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/httpwire/httperr"
)

func pinYear(t *testing.T, year int) {
	t.Helper()
	orig := now
	now = func() time.Time { return time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })
}

func TestParse(t *testing.T) {
	pinYear(t, 2026)

	tests := []struct {
		in   string
		want int64
	}{
		{"Fri, 15 Nov 2019 12:45:26 GMT", 1573821926},
		{"Sun, 06 Nov 1994 08:49:37 GMT", 784111777},
		{"Sunday, 06-Nov-94 08:49:37 GMT", 784111777},
		{"Sun Nov  6 08:49:37 1994", 784111777},
		{"Friday, 15-Nov-19 12:45:26 GMT", 1573821926},
		{"  Fri, 15 Nov 2019 12:45:26 GMT  ", 1573821926},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2019-11-15T12:45:26Z", "Fri, 15 Nov 2019 12:45:26 PST"} {
		_, err := Parse(in)
		assert.True(t, httperr.IsParseError(err), in)
	}
}

func TestTwoDigitYearWindow(t *testing.T) {
	pinYear(t, 2026)

	tm, err := ParseTime("Wednesday, 01-Jan-70 00:00:00 GMT")
	require.NoError(t, err)
	assert.Equal(t, 2070, tm.Year())

	tm, err = ParseTime("Wednesday, 01-Jan-76 00:00:00 GMT")
	require.NoError(t, err)
	assert.Equal(t, 2076, tm.Year())

	tm, err = ParseTime("Wednesday, 01-Jan-77 00:00:00 GMT")
	require.NoError(t, err)
	assert.Equal(t, 1977, tm.Year())

	tm, err = ParseTime("Wednesday, 01-Jan-78 00:00:00 GMT")
	require.NoError(t, err)
	assert.Equal(t, 1978, tm.Year())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Fri, 15 Nov 2019 12:45:26 GMT", FormatUnix(1573821926))

	loc := time.FixedZone("UTC+2", 2*3600)
	assert.Equal(t, "Fri, 15 Nov 2019 12:45:26 GMT", Format(time.Date(2019, 11, 15, 14, 45, 26, 0, loc)))
	assert.Equal(t, "Thu, 01 Jan 1970 00:00:00 GMT", FormatUnix(0))
}
