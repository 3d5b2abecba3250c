package http1

import (
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/duplexhttp/config"
	"github.com/indigo-web/duplexhttp/http"
	"github.com/indigo-web/duplexhttp/http/headers"
	"github.com/indigo-web/duplexhttp/http/proto"
	"github.com/indigo-web/duplexhttp/http/status"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newParser(cfg *config.Config) (*Parser, *http.Response) {
	if cfg == nil {
		cfg = config.Default()
	}

	response := http.NewResponse(cfg.Headers.Number.Default)

	return NewParser(cfg, response, zap.NewNop()), response
}

// parseScattered feeds the data split into n-sized pieces. Every piece is copied into
// the same buffer, which is scrambled right after being parsed, so the parser isn't
// allowed to retain any of it.
func parseScattered(p *Parser, data string, n int) (rest string, err error) {
	buff := make([]byte, n)
	pieces := scatter([]byte(data), n)

	for i, piece := range pieces {
		copy(buff, piece)
		done, extra, err := p.Parse(buff[:len(piece)])
		if err != nil {
			return "", err
		}

		if done {
			rest = string(extra)
			for _, tail := range pieces[i+1:] {
				rest += string(tail)
			}

			return rest, nil
		}

		for j := range buff {
			buff[j] = 'x'
		}
	}

	return "", status.ErrNoHeaders
}

func TestParser(t *testing.T) {
	t.Run("simple response", func(t *testing.T) {
		parser, response := newParser(nil)
		done, rest, err := parser.Parse([]byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhi"))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "hi", string(rest))
		require.Equal(t, proto.HTTP11, response.Protocol)
		require.Equal(t, status.OK, response.Code)
		require.Equal(t, status.Status("OK"), response.Status)
		require.Equal(t, []headers.Pair{{"content-type", "text/plain"}}, response.Headers.Unwrap())
	})

	t.Run("split invariance", func(t *testing.T) {
		const sample = "HTTP/1.0 404 Not Found\r\nServer: duplex\r\nX-Multi: first\r\n" +
			"Content-Length:5\r\nx-multi:  second  \r\n\r\nhello"

		reference, response := newParser(nil)
		done, rest, err := reference.Parse([]byte(sample))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "hello", string(rest))
		want := response.Headers.Unwrap()

		for n := 1; n <= len(sample); n++ {
			parser, got := newParser(nil)
			rest, err := parseScattered(parser, sample, n)
			require.NoError(t, err, n)
			require.Equal(t, "hello", rest, n)
			require.Equal(t, proto.HTTP10, got.Protocol)
			require.Equal(t, status.NotFound, got.Code)
			require.Equal(t, status.Status("Not Found"), got.Status)
			require.Equal(t, want, got.Headers.Unwrap(), n)
			require.Equal(t, []string{"first", "second"}, got.Headers.Values("X-Multi"))
		}
	})

	t.Run("LF only", func(t *testing.T) {
		parser, response := newParser(nil)
		done, rest, err := parser.Parse([]byte("HTTP/1.1 200 OK\nHello: world\n\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, rest)
		require.Equal(t, "world", response.Headers.Value("hello"))
	})

	t.Run("no reason phrase", func(t *testing.T) {
		parser, response := newParser(nil)
		done, _, err := parser.Parse([]byte("HTTP/1.1 204\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, status.NoContent, response.Code)
		require.Empty(t, response.Status)
	})

	t.Run("incomplete", func(t *testing.T) {
		parser, _ := newParser(nil)
		done, rest, err := parser.Parse([]byte("HTTP/1.1 200 OK\r\nHello: wor"))
		require.NoError(t, err)
		require.False(t, done)
		require.Empty(t, rest)
	})

	t.Run("random headers", func(t *testing.T) {
		parser, response := newParser(nil)
		want := make(map[string]string, 50)
		var request strings.Builder
		request.WriteString("HTTP/1.1 200 OK\r\n")

		for range 50 {
			key, value := uniuri.NewLen(16), uniuri.NewLen(32)
			want[strings.ToLower(key)] = value
			request.WriteString(key + ": " + value + "\r\n")
		}

		request.WriteString("\r\n")
		rest, err := parseScattered(parser, request.String(), 13)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.Equal(t, len(want), response.Headers.Len())

		for key, value := range want {
			require.Equal(t, value, response.Headers.Value(key))
		}
	})

	t.Run("reset after interim response", func(t *testing.T) {
		parser, response := newParser(nil)
		done, rest, err := parser.Parse([]byte("HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\nA: b\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, status.Continue, response.Code)

		response.Reset()
		parser.Reset()
		done, rest, err = parser.Parse(rest)
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, rest)
		require.Equal(t, status.OK, response.Code)
		require.Equal(t, "b", response.Headers.Value("a"))
	})

	t.Run("after completion", func(t *testing.T) {
		parser, _ := newParser(nil)
		_, _, err := parser.Parse([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		require.NoError(t, err)

		done, rest, err := parser.Parse([]byte("body"))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "body", string(rest))
	})
}

func TestParserMalformed(t *testing.T) {
	for _, tc := range []struct {
		Name   string
		Sample string
		Err    error
	}{
		{"unsupported version", "HTTP/2.0 200 OK\r\n\r\n", status.ErrHTTPVersionNotSupported},
		{"garbage version", "foo 200 OK\r\n\r\n", status.ErrHTTPVersionNotSupported},
		{"single field", "HTTP/1.1\r\n\r\n", status.ErrBadStatusLine},
		{"short code", "HTTP/1.1 20 OK\r\n\r\n", status.ErrBadStatusLine},
		{"long code", "HTTP/1.1 2000 OK\r\n\r\n", status.ErrBadStatusLine},
		{"non-numeric code", "HTTP/1.1 2x0 OK\r\n\r\n", status.ErrBadStatusLine},
		{"empty line", "\r\n", status.ErrBadStatusLine},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			parser, _ := newParser(nil)
			_, _, err := parser.Parse([]byte(tc.Sample))
			require.ErrorIs(t, err, tc.Err)

			parser, _ = newParser(nil)
			_, err = parseScattered(parser, tc.Sample, 1)
			require.ErrorIs(t, err, tc.Err)
		})
	}

	t.Run("too long status line", func(t *testing.T) {
		cfg := config.Default()
		cfg.Headers.MaxStatusLine = 16
		parser, _ := newParser(cfg)
		_, err := parseScattered(parser, "HTTP/1.1 200 Absolutely Fine\r\n\r\n", 3)
		require.ErrorIs(t, err, status.ErrTooLongStatusLine)
	})

	t.Run("too many headers", func(t *testing.T) {
		cfg := config.Default()
		cfg.Headers.Number.Maximal = 2
		parser, _ := newParser(cfg)
		_, _, err := parser.Parse([]byte("HTTP/1.1 200 OK\r\nA: 1\r\nB: 2\r\nC: 3\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrTooManyHeaders)
	})

	t.Run("too large headers", func(t *testing.T) {
		cfg := config.Default()
		cfg.Headers.Space.Maximal = 32
		parser, _ := newParser(cfg)
		_, err := parseScattered(parser, "HTTP/1.1 200 OK\r\nCookie: "+strings.Repeat("a", 64)+"\r\n\r\n", 5)
		require.ErrorIs(t, err, status.ErrHeaderFieldsTooLarge)
	})

	t.Run("malformed header lines are skipped", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		response := http.NewResponse(10)
		parser := NewParser(config.Default(), response, zap.New(core))
		done, _, err := parser.Parse([]byte(
			"HTTP/1.1 200 OK\r\nbroken line\r\n: no name\r\nBad Name: x\r\n folded\r\nGood: yes\r\n\r\n",
		))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, []headers.Pair{{"good", "yes"}}, response.Headers.Unwrap())
		require.Equal(t, 4, logs.Len())
	})
}
