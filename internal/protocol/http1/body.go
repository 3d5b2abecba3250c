package http1

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/indigo-web/duplexhttp/config"
	"github.com/indigo-web/duplexhttp/http"
	"github.com/indigo-web/duplexhttp/http/method"
	"github.com/indigo-web/duplexhttp/http/status"
	"github.com/indigo-web/duplexhttp/transport"
	"github.com/indigo-web/utils/strcomp"
	"github.com/pkg/errors"
)

// Framing tells how the end of a response body is determined.
type Framing uint8

const (
	// FramingNone means there's no body at all.
	FramingNone Framing = iota
	// FramingUntilClose means the body lasts until the peer closes the stream.
	FramingUntilClose
	// FramingFixed means the body is exactly Content-Length bytes long.
	FramingFixed
	// FramingChunked means the body is chunked transfer coded.
	FramingChunked
)

func (f Framing) String() string {
	switch f {
	case FramingNone:
		return "none"
	case FramingUntilClose:
		return "until-close"
	case FramingFixed:
		return "fixed"
	case FramingChunked:
		return "chunked"
	default:
		return "unknown"
	}
}

// DetermineFraming decides how the body of the response must be read. The response
// method is the one of the request it answers. For fixed framing, the length is
// returned and stored as the response's ContentLength.
func DetermineFraming(m method.Method, response *http.Response) (Framing, int64, error) {
	if m == method.HEAD || !response.Code.HasBody() {
		return FramingNone, 0, nil
	}

	if codings := response.Headers.Values("transfer-encoding"); len(codings) > 0 {
		if strcomp.EqualFold(lastToken(codings), "chunked") {
			return FramingChunked, 0, nil
		}

		// chunked isn't the final coding, therefore only closing the stream
		// marks the end of the body.
		return FramingUntilClose, 0, nil
	}

	lengths := response.Headers.Values("content-length")
	if len(lengths) == 0 {
		return FramingUntilClose, 0, nil
	}

	length, err := parseContentLength(lengths)
	if err != nil {
		return FramingNone, 0, err
	}

	response.ContentLength = length

	return FramingFixed, length, nil
}

// lastToken returns the last element of the comma-separated list, which may be
// spread over multiple header values.
func lastToken(values []string) string {
	last := values[len(values)-1]
	if comma := strings.LastIndexByte(last, ','); comma != -1 {
		last = last[comma+1:]
	}

	return strings.TrimSpace(last)
}

// parseContentLength accepts multiple values (and comma-separated lists) as long as
// all of them are the same non-negative decimal number.
func parseContentLength(values []string) (int64, error) {
	length := int64(-1)

	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if len(token) == 0 || token[0] < '0' || token[0] > '9' {
				return 0, status.ErrBadContentLength
			}

			n, err := strconv.ParseInt(token, 10, 64)
			if err != nil || (length != -1 && n != length) {
				return 0, status.ErrBadContentLength
			}

			length = n
		}
	}

	return length, nil
}

// BodySink is the producer's side of the body stream.
type BodySink interface {
	io.Writer
	Close() error
	Abort(error)
}

// BodyStreamer moves the response body from the source into the sink, undoing the
// transfer framing on the way. Bytes following the body are returned to the source.
type BodyStreamer struct {
	source    transport.Source
	sink      BodySink
	framing   Framing
	remaining int64
	chunked   *ChunkedDecoder
	delivered int64
}

func NewBodyStreamer(cfg *config.Config, source transport.Source, sink BodySink) *BodyStreamer {
	return &BodyStreamer{
		source:  source,
		sink:    sink,
		chunked: NewChunkedDecoder(cfg.Body.MaxChunkSizeLine),
	}
}

// Init must be called before every Stream. FramingNone must not be streamed.
func (b *BodyStreamer) Init(framing Framing, length int64) {
	b.framing = framing
	b.remaining = length
	b.delivered = 0
	b.chunked.Reset()
}

// Stream blocks until the body is completely delivered or the stream fails. The
// residual are the bytes received together with the headers. The sink is always
// terminated when Stream returns: closed if the body is complete, aborted otherwise.
// The returned error is the one the sink was aborted with.
func (b *BodyStreamer) Stream(residual []byte) error {
	if b.framing == FramingFixed && b.remaining == 0 {
		return b.finish(residual)
	}

	data := residual

	for {
		if len(data) > 0 {
			done, extra, err := b.feed(data)
			if err != nil {
				return b.fail(err)
			}

			if done {
				return b.finish(extra)
			}
		}

		var err error
		data, err = b.source.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if b.framing == FramingUntilClose {
					_ = b.sink.Close()
					return nil
				}

				err = io.ErrUnexpectedEOF
			}

			return b.fail(err)
		}
	}
}

// Delivered returns the number of body bytes consumed by the reader.
func (b *BodyStreamer) Delivered() int64 {
	return b.delivered
}

func (b *BodyStreamer) feed(data []byte) (done bool, extra []byte, err error) {
	switch b.framing {
	case FramingUntilClose:
		return false, nil, b.write(data)
	case FramingFixed:
		n := min(b.remaining, int64(len(data)))
		if err = b.write(data[:n]); err != nil {
			return false, nil, err
		}

		b.remaining -= n

		return b.remaining == 0, data[n:], nil
	case FramingChunked:
		for len(data) > 0 {
			var chunk []byte
			chunk, data, err = b.chunked.Decode(data)
			if len(chunk) > 0 {
				if werr := b.write(chunk); werr != nil {
					return false, nil, werr
				}
			}

			switch err {
			case nil:
			case io.EOF:
				return true, skipTrailers(data), nil
			default:
				return false, nil, err
			}
		}

		return false, nil, nil
	default:
		panic("BUG: body streamer: unexpected framing " + b.framing.String())
	}
}

func (b *BodyStreamer) write(data []byte) error {
	n, err := b.sink.Write(data)
	b.delivered += int64(n)

	return err
}

func (b *BodyStreamer) finish(extra []byte) error {
	if len(extra) > 0 {
		b.source.Pushback(extra)
	}

	return b.sink.Close()
}

func (b *BodyStreamer) fail(err error) error {
	b.sink.Abort(err)
	return err
}

// skipTrailers discards the trailer section, returning the bytes following it. The
// trailers are skipped on a best-effort basis: if the section isn't complete within
// the data, nothing is left to return.
func skipTrailers(data []byte) []byte {
	for {
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			return nil
		}

		line := rstripCR(data[:lf])
		data = data[lf+1:]
		if len(line) == 0 {
			return data
		}
	}
}
