package http1

import (
	"io"
	"strings"
	"testing"

	"github.com/indigo-web/duplexhttp/config"
	"github.com/indigo-web/duplexhttp/http/status"
	"github.com/stretchr/testify/require"
)

func newDecoder() *ChunkedDecoder {
	return NewChunkedDecoder(config.Default().Body.MaxChunkSizeLine)
}

// feed drives the decoder over the input until it's either consumed or the body ends.
func feed(c *ChunkedDecoder, input []byte) (output, extra []byte, err error) {
	for len(input) > 0 {
		var data []byte
		data, input, err = c.Decode(input)
		output = append(output, data...)
		if err != nil {
			return output, input, err
		}
	}

	return output, nil, nil
}

func feedScattered(c *ChunkedDecoder, input []byte, n int) (output []byte, err error) {
	for _, piece := range scatter(input, n) {
		var out []byte
		out, _, err = feed(c, piece)
		output = append(output, out...)
		if err != nil {
			return output, err
		}
	}

	return output, nil
}

func scatter(data []byte, n int) (parts [][]byte) {
	for i := 0; i < len(data); i += n {
		end := min(i+n, len(data))
		parts = append(parts, data[i:end])
	}

	return parts
}

func TestChunked(t *testing.T) {
	t.Run("just terminator", func(t *testing.T) {
		output, extra, err := feed(newDecoder(), []byte("0\r\n\r\n"))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "\r\n", string(extra))
		require.Empty(t, output)
	})

	t.Run("single chunk", func(t *testing.T) {
		output, extra, err := feed(newDecoder(), []byte("5\r\nhello\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "\r\n", string(extra))
		require.Equal(t, "hello", string(output))
	})

	t.Run("trailer is left untouched", func(t *testing.T) {
		output, extra, err := feed(newDecoder(), []byte("5\r\nhello\r\n0\r\nChecksum: abc\r\n\r\n"))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "Checksum: abc\r\n\r\n", string(extra))
		require.Equal(t, "hello", string(output))
	})

	t.Run("byte by byte", func(t *testing.T) {
		output, err := feedScattered(newDecoder(), []byte("5\r\nhello\r\n0\r\n\r\n"), 1)
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "hello", string(output))
	})

	t.Run("fuzz input chunk sizes", func(t *testing.T) {
		sample := []byte("d;hello=world\r\nHello, world!\r\nd\r\nHello, Pavlo!\r\n0; checksum=no one cares\r\n\r\n")
		for i := range len(sample) {
			output, err := feedScattered(newDecoder(), sample, i+1)
			require.ErrorIs(t, err, io.EOF)
			require.Equal(t, "Hello, world!Hello, Pavlo!", string(output))
		}
	})

	t.Run("LF use", func(t *testing.T) {
		output, _, err := feed(newDecoder(), []byte("d\nHello, world!\n0\n\n"))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "Hello, world!", string(output))
	})

	t.Run("multiple hex characters", func(t *testing.T) {
		output, _, err := feed(newDecoder(), []byte(
			"0000d\r\nHello, world!\r\n0000D\r\nHello, Pavlo!\r\n0\r\n\r\n",
		))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "Hello, world!Hello, Pavlo!", string(output))
	})

	t.Run("padded size", func(t *testing.T) {
		output, _, err := feed(newDecoder(), []byte(" 5 \r\nhello\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "hello", string(output))
	})

	t.Run("large chunk in pieces", func(t *testing.T) {
		payload := strings.Repeat("abcdefgh", 1024)
		sample := []byte("2000\r\n" + payload + "\r\n0\r\n\r\n")
		output, err := feedScattered(newDecoder(), sample, 333)
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, payload, string(output))
	})

	t.Run("decoded piece is a subslice", func(t *testing.T) {
		input := []byte("5\r\nhello\r\n")
		chunk, extra, err := newDecoder().Decode(input)
		require.NoError(t, err)
		require.Equal(t, "hello", string(chunk))
		require.Equal(t, "\r\n", string(extra))
		require.Same(t, &input[3], &chunk[0])
	})

	t.Run("decoding after the end", func(t *testing.T) {
		c := newDecoder()
		_, _, err := feed(c, []byte("0\r\n"))
		require.ErrorIs(t, err, io.EOF)
		require.True(t, c.Done())

		chunk, extra, err := c.Decode([]byte("garbage"))
		require.ErrorIs(t, err, io.EOF)
		require.Empty(t, chunk)
		require.Equal(t, "garbage", string(extra))
	})

	t.Run("reusability", func(t *testing.T) {
		c := newDecoder()

		for range 10 {
			output, _, err := feed(c, []byte("d\r\nHello, world!\r\n0\r\n\r\n"))
			require.ErrorIs(t, err, io.EOF)
			require.Equal(t, "Hello, world!", string(output))
			c.Reset()
		}
	})
}

func TestChunkedMalformed(t *testing.T) {
	t.Run("non-hex size", func(t *testing.T) {
		_, _, err := feed(newDecoder(), []byte("zz\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("non-hex size split", func(t *testing.T) {
		_, err := feedScattered(newDecoder(), []byte("zz\r\nhello\r\n"), 1)
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("empty size", func(t *testing.T) {
		_, _, err := feed(newDecoder(), []byte("\r\nhello\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("negative size", func(t *testing.T) {
		_, _, err := feed(newDecoder(), []byte("-5\r\nhello\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("too many length characters", func(t *testing.T) {
		_, _, err := feed(newDecoder(), []byte("00000000000000000d\r\nHello, world!\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("too long size line", func(t *testing.T) {
		c := NewChunkedDecoder(16)
		_, err := feedScattered(c, []byte("5;"+strings.Repeat("x", 32)+"\r\nhello\r\n"), 4)
		require.ErrorIs(t, err, status.ErrChunkSizeLineTooLong)
	})

	t.Run("too long size line at once", func(t *testing.T) {
		c := NewChunkedDecoder(16)
		_, _, err := feed(c, []byte("5;"+strings.Repeat("x", 32)+"\r\nhello\r\n"))
		require.ErrorIs(t, err, status.ErrChunkSizeLineTooLong)
	})

	t.Run("missing CRLF after data", func(t *testing.T) {
		output, _, err := feed(newDecoder(), []byte("5\r\nhelloX\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
		require.Equal(t, "hello", string(output))
	})

	t.Run("CR without LF after data", func(t *testing.T) {
		_, _, err := feed(newDecoder(), []byte("5\r\nhello\rX0\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})
}
