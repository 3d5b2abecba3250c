package transport

import (
	"io"

	"github.com/indigo-web/utils/unreader"
)

var _ Duplex = new(Stream)

// Stream adapts an ordinary byte stream (libp2p streams, net.Conn, pipes of a child
// process, etc.) to the Duplex.
type Stream struct {
	rwc      io.ReadWriteCloser
	buff     []byte
	unreader *unreader.Unreader
	// err is postponed until the data returned alongside it is consumed.
	err error
}

// NewStream wraps the stream. The buffer is used for reading, so its size controls
// how big the pieces returned by Read are.
func NewStream(rwc io.ReadWriteCloser, buff []byte) *Stream {
	return &Stream{
		rwc:      rwc,
		buff:     buff,
		unreader: new(unreader.Unreader),
	}
}

// Read returns previously pushed back data, if any, otherwise reads into the internal
// buffer and returns a piece of it back.
func (s *Stream) Read() ([]byte, error) {
	return s.unreader.PendingOr(func() ([]byte, error) {
		if s.err != nil {
			return nil, s.err
		}

		n, err := s.rwc.Read(s.buff)
		if n > 0 && err != nil {
			s.err, err = err, nil
		}

		return s.buff[:n], err
	})
}

func (s *Stream) Pushback(b []byte) {
	s.unreader.Unread(b)
}

func (s *Stream) Write(b []byte) (int, error) {
	return s.rwc.Write(b)
}

// CloseWrite half-closes the stream if the underlying stream supports it (as both
// libp2p streams and *net.TCPConn do), otherwise does nothing, as closing the whole
// stream would make reading the response impossible.
func (s *Stream) CloseWrite() error {
	if cw, ok := s.rwc.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}

	return nil
}

func (s *Stream) Close() error {
	return s.rwc.Close()
}

// Unwrap returns the underlying stream.
func (s *Stream) Unwrap() io.ReadWriteCloser {
	return s.rwc
}
