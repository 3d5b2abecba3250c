package http1

import (
	"bytes"
	"io"

	"github.com/indigo-web/duplexhttp/http/status"
	"github.com/indigo-web/duplexhttp/internal/hexconv"
)

type chunkedState uint8

const (
	eChunkSizeLine chunkedState = iota
	eChunkBody
	eChunkBodyEnd
	eChunkBodyCR
	eChunkDone
)

// ChunkedDecoder decodes a chunked transfer coded body. It holds no data except the
// unfinished chunk size line, whose length is limited, so the decoder's memory
// footprint is bounded regardless of how the input is fragmented.
type ChunkedDecoder struct {
	state       chunkedState
	remaining   uint64
	sizeLine    []byte
	maxSizeLine int
}

func NewChunkedDecoder(maxSizeLine int) *ChunkedDecoder {
	return &ChunkedDecoder{
		state:       eChunkSizeLine,
		maxSizeLine: maxSizeLine,
	}
}

// Decode returns a piece of decoded body as soon as there's one, nil otherwise. The
// piece is always a subslice of data. Bytes which weren't consumed yet are returned
// as extra and must be fed back. io.EOF signals the last chunk was met; the extra
// then holds everything after its size line, i.e. the trailer section, which is up
// to the caller to skip.
func (c *ChunkedDecoder) Decode(data []byte) (chunk, extra []byte, err error) {
	switch c.state {
	case eChunkSizeLine:
		goto sizeLine
	case eChunkBody:
		goto body
	case eChunkBodyEnd:
		goto bodyEnd
	case eChunkBodyCR:
		goto bodyCR
	case eChunkDone:
		return nil, data, io.EOF
	default:
		panic("BUG: chunked decoder: unknown state")
	}

sizeLine:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if len(c.sizeLine)+len(data) > c.maxSizeLine {
				return nil, nil, status.ErrChunkSizeLineTooLong
			}

			c.sizeLine = append(c.sizeLine, data...)
			c.state = eChunkSizeLine
			return nil, nil, nil
		}

		if len(c.sizeLine)+lf > c.maxSizeLine {
			return nil, nil, status.ErrChunkSizeLineTooLong
		}

		line := data[:lf]
		if len(c.sizeLine) > 0 {
			c.sizeLine = append(c.sizeLine, line...)
			line = c.sizeLine
		}

		data = data[lf+1:]
		size, ok := parseChunkSize(line)
		c.sizeLine = c.sizeLine[:0]
		if !ok {
			return nil, nil, status.ErrBadChunk
		}

		if size == 0 {
			c.state = eChunkDone
			return nil, data, io.EOF
		}

		c.remaining = size
		goto body
	}

body:
	{
		if len(data) == 0 {
			c.state = eChunkBody
			return nil, nil, nil
		}

		n := min(c.remaining, uint64(len(data)))
		c.remaining -= n

		if c.remaining == 0 {
			c.state = eChunkBodyEnd
		} else {
			c.state = eChunkBody
		}

		return data[:n], data[n:], nil
	}

bodyEnd:
	if len(data) == 0 {
		c.state = eChunkBodyEnd
		return nil, nil, nil
	}

	switch data[0] {
	case '\r':
		data = data[1:]
		goto bodyCR
	case '\n':
		data = data[1:]
		goto sizeLine
	default:
		return nil, nil, status.ErrBadChunk
	}

bodyCR:
	if len(data) == 0 {
		c.state = eChunkBodyCR
		return nil, nil, nil
	}

	if data[0] != '\n' {
		return nil, nil, status.ErrBadChunk
	}

	data = data[1:]
	goto sizeLine
}

// Done reports whether the last chunk was already met.
func (c *ChunkedDecoder) Done() bool {
	return c.state == eChunkDone
}

// Reset prepares the decoder for a new body.
func (c *ChunkedDecoder) Reset() {
	c.state = eChunkSizeLine
	c.remaining = 0
	c.sizeLine = c.sizeLine[:0]
}

// parseChunkSize parses the chunk size line without its trailing LF. Chunk extensions
// are ignored, whitespaces around the size are tolerated.
func parseChunkSize(line []byte) (uint64, bool) {
	if semicolon := bytes.IndexByte(line, ';'); semicolon != -1 {
		line = line[:semicolon]
	}

	return hexconv.Parse(bytes.Trim(line, " \t\r"))
}
