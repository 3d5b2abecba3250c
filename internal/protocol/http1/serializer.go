package http1

import (
	"io"
	"strconv"
	"strings"

	"github.com/indigo-web/duplexhttp/config"
	"github.com/indigo-web/duplexhttp/http"
	"github.com/indigo-web/duplexhttp/http/proto"
	"github.com/indigo-web/duplexhttp/http/status"
	"github.com/indigo-web/utils/strcomp"
	"go.uber.org/multierr"
)

// Serializer renders requests into a byte stream. A single instance must not be
// used concurrently.
type Serializer struct {
	cfg      *config.Config
	buff     []byte
	readBuff []byte
}

func NewSerializer(cfg *config.Config) *Serializer {
	return &Serializer{
		cfg:  cfg,
		buff: make([]byte, 0, cfg.Body.WriteBufferSize),
	}
}

// Write renders the request head and transmits it in a single write, then streams
// the body, if any. The body is transmitted verbatim unless the request declares
// chunked transfer coding, in which case it's framed accordingly. Returns the total
// number of bytes written.
func (s *Serializer) Write(request *http.Request, w io.Writer) (total int64, err error) {
	if request.Body != nil {
		if closer, ok := request.Body.(io.Closer); ok {
			defer func() {
				err = multierr.Append(err, closer.Close())
			}()
		}
	}

	if err = s.appendHead(request); err != nil {
		return 0, err
	}

	n, err := w.Write(s.buff)
	total += int64(n)
	if err != nil || request.Body == nil {
		return total, err
	}

	var written int64
	if isChunked(request) {
		written, err = s.writeChunked(request.Body, w)
	} else {
		written, err = s.writeIdentity(request.Body, w)
	}

	return total + written, err
}

func (s *Serializer) appendHead(request *http.Request) error {
	if !request.Method.Valid() {
		return status.ErrBadMethod
	}

	if request.URL == nil {
		return status.ErrBadRequestTarget
	}

	s.buff = append(s.buff[:0], request.Method...)
	s.sp()
	s.appendTarget(request)
	s.sp()
	s.buff = append(s.buff, proto.HTTP11.String()...)
	s.crlf()

	hasHost := false

	if request.Headers != nil {
		for key, value := range request.Headers.Iter() {
			if !validHeader(key, value) {
				return status.ErrBadHeader
			}

			hasHost = hasHost || strcomp.EqualFold(key, "host")
			s.appendHeader(key, value)
		}
	}

	if !hasHost {
		// a present Host header is never overwritten, as the duplex may be
		// established to someone who expects a different one.
		if len(request.URL.Host) == 0 {
			return status.ErrBadRequestTarget
		}

		s.appendHeader("Host", request.URL.Host)
	}

	s.crlf()

	return nil
}

func (s *Serializer) appendTarget(request *http.Request) {
	path := request.URL.EscapedPath()
	if len(path) == 0 {
		path = "/"
	}

	s.buff = append(s.buff, path...)

	if len(request.URL.RawQuery) > 0 {
		s.buff = append(s.buff, '?')
		s.buff = append(s.buff, request.URL.RawQuery...)
	}
}

func (s *Serializer) appendHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.colonsp()
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *Serializer) writeIdentity(body io.Reader, w io.Writer) (total int64, err error) {
	buff := s.readBuffer()

	for {
		n, err := body.Read(buff)
		if n > 0 {
			written, werr := w.Write(buff[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}

		switch err {
		case nil:
		case io.EOF:
			return total, nil
		default:
			return total, err
		}
	}
}

func (s *Serializer) writeChunked(body io.Reader, w io.Writer) (total int64, err error) {
	buff := s.readBuffer()

	for {
		n, err := body.Read(buff)
		if n > 0 {
			// empty chunk must never be written, as it terminates the body.
			s.buff = strconv.AppendUint(s.buff[:0], uint64(n), 16)
			s.crlf()
			s.buff = append(s.buff, buff[:n]...)
			s.crlf()

			written, werr := w.Write(s.buff)
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}

		switch err {
		case nil:
		case io.EOF:
			written, werr := io.WriteString(w, "0\r\n\r\n")
			return total + int64(written), werr
		default:
			return total, err
		}
	}
}

func (s *Serializer) readBuffer() []byte {
	if len(s.readBuff) == 0 {
		s.readBuff = make([]byte, s.cfg.Body.WriteBufferSize)
	}

	return s.readBuff
}

func (s *Serializer) sp() {
	s.buff = append(s.buff, ' ')
}

func (s *Serializer) colonsp() {
	s.buff = append(s.buff, ':', ' ')
}

const crlf = "\r\n"

func (s *Serializer) crlf() {
	s.buff = append(s.buff, crlf...)
}

// isChunked reports whether the request declares chunked as its final transfer coding.
func isChunked(request *http.Request) bool {
	if request.Headers == nil {
		return false
	}

	codings := request.Headers.Values("transfer-encoding")

	return len(codings) > 0 && strcomp.EqualFold(lastToken(codings), "chunked")
}

// validHeader forbids empty keys and line breaks, which would corrupt the message
// framing.
func validHeader(key, value string) bool {
	return len(key) > 0 &&
		!strings.ContainsAny(key, "\r\n: ") &&
		!strings.ContainsAny(value, "\r\n")
}
