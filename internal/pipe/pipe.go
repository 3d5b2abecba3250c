// Package pipe implements a rendezvous handoff of bytes between exactly one producer
// and exactly one consumer. It has no internal buffer: the producer's bytes are
// copied straight into the buffer the consumer offered, so a producer can never
// outrun a consumer.
package pipe

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Write when the pipe was closed.
var ErrClosed = errors.New("write on closed pipe")

// DefaultScratchSize is the size of a buffer allocated by Next, unless otherwise
// specified.
const DefaultScratchSize = 16 * 1024

// Pipe must not be used by more than one reader and one writer at a time.
type Pipe struct {
	// claims carries buffers offered by a reader, fills carries back the number of
	// bytes written into them. A reader, once its buffer was claimed, always waits
	// for the fill, so no data is lost if the pipe is closed meanwhile.
	claims chan []byte
	fills  chan int

	done chan struct{}
	once sync.Once
	err  error

	scratch int
}

func New(scratchSize int) *Pipe {
	if scratchSize <= 0 {
		scratchSize = DefaultScratchSize
	}

	return &Pipe{
		claims:  make(chan []byte),
		fills:   make(chan int),
		done:    make(chan struct{}),
		scratch: scratchSize,
	}
}

// Write blocks until all the bytes are handed over to readers. It returns the number
// of bytes actually transferred and ErrClosed (or the error the pipe was aborted
// with) if the pipe was terminated before the whole b was consumed.
func (p *Pipe) Write(b []byte) (n int, err error) {
	for len(b) > 0 {
		select {
		case into := <-p.claims:
			written := copy(into, b)
			p.fills <- written
			b = b[written:]
			n += written
		case <-p.done:
			return n, p.writeErr()
		}
	}

	return n, nil
}

// Read blocks until a writer fills the buffer or the pipe terminates. Closed pipe
// results in io.EOF, aborted one - in the abortion error.
func (p *Pipe) Read(into []byte) (int, error) {
	if len(into) == 0 {
		return 0, nil
	}

	// a pending writer must not win over the termination
	select {
	case <-p.done:
		return 0, p.readErr()
	default:
	}

	select {
	case p.claims <- into:
		return <-p.fills, nil
	case <-p.done:
		return 0, p.readErr()
	}
}

// Next allocates a new scratch buffer and reads into it. The returned slice is owned
// by the caller.
func (p *Pipe) Next() ([]byte, error) {
	buff := make([]byte, p.scratch)
	n, err := p.Read(buff)

	return buff[:n], err
}

// Close terminates the pipe gracefully: pending and further reads result in io.EOF.
// Calling it multiple times is safe, only the first termination takes effect.
func (p *Pipe) Close() error {
	p.terminate(nil)
	return nil
}

// Abort terminates the pipe with an error, which is returned by pending and further
// reads. Nil error is treated as io.ErrClosedPipe.
func (p *Pipe) Abort(err error) {
	if err == nil {
		err = io.ErrClosedPipe
	}

	p.terminate(err)
}

// Done is closed as soon as the pipe terminates.
func (p *Pipe) Done() <-chan struct{} {
	return p.done
}

// Err returns the abortion error, if any. It must be called only after Done is closed.
func (p *Pipe) Err() error {
	return p.err
}

func (p *Pipe) terminate(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *Pipe) readErr() error {
	if p.err == nil {
		return io.EOF
	}

	return p.err
}

func (p *Pipe) writeErr() error {
	if p.err == nil {
		return ErrClosed
	}

	return p.err
}
