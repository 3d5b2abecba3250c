package dummy

import (
	"bytes"
	"io"
	"sync"

	"github.com/indigo-web/duplexhttp/transport"
)

var _ transport.Duplex = new(Duplex)

type piece struct {
	data []byte
	err  error
}

// Duplex is an in-memory duplex, used mainly for testing. Its read side returns
// pre-defined pieces or pieces fed in runtime, its write side records everything
// written.
type Duplex struct {
	pieces  chan piece
	pending []byte
	end     error
	done    chan struct{}
	once    sync.Once

	mu          sync.Mutex
	written     bytes.Buffer
	writeErr    error
	writeClosed bool
}

// NewDuplex returns a duplex which yields the pieces one by one and io.EOF after.
func NewDuplex(pieces ...[]byte) *Duplex {
	d := newDuplex(len(pieces))
	for _, data := range pieces {
		d.pieces <- piece{data: data}
	}

	close(d.pieces)

	return d
}

// NewLiveDuplex returns a duplex whose read side blocks until the data is fed.
func NewLiveDuplex() *Duplex {
	return newDuplex(0)
}

func newDuplex(capacity int) *Duplex {
	return &Duplex{
		pieces: make(chan piece, capacity),
		done:   make(chan struct{}),
	}
}

// Feed blocks until the piece is read. Must not be called on duplexes returned by
// NewDuplex.
func (d *Duplex) Feed(data []byte) {
	select {
	case d.pieces <- piece{data: data}:
	case <-d.done:
	}
}

// Fail makes the pending or next read return the error.
func (d *Duplex) Fail(err error) {
	select {
	case d.pieces <- piece{err: err}:
	case <-d.done:
	}
}

// Finish makes the read side return io.EOF after all the fed pieces.
func (d *Duplex) Finish() {
	close(d.pieces)
}

// WithWriteErr makes all the writes fail with the error.
func (d *Duplex) WithWriteErr(err error) *Duplex {
	d.mu.Lock()
	d.writeErr = err
	d.mu.Unlock()

	return d
}

func (d *Duplex) Read() ([]byte, error) {
	if len(d.pending) > 0 {
		data := d.pending
		d.pending = nil

		return data, nil
	}

	if d.end != nil {
		return nil, d.end
	}

	select {
	case p, ok := <-d.pieces:
		if !ok {
			d.end = io.EOF
			return nil, io.EOF
		}

		if p.err != nil {
			d.end = p.err
		}

		return p.data, p.err
	case <-d.done:
		return nil, io.ErrClosedPipe
	}
}

func (d *Duplex) Pushback(data []byte) {
	d.pending = data
}

// Pending returns data (if any) preserved via Pushback.
func (d *Duplex) Pending() []byte {
	return d.pending
}

func (d *Duplex) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writeErr != nil {
		return 0, d.writeErr
	}

	if d.writeClosed {
		return 0, io.ErrClosedPipe
	}

	return d.written.Write(b)
}

func (d *Duplex) CloseWrite() error {
	d.mu.Lock()
	d.writeClosed = true
	d.mu.Unlock()

	return nil
}

func (d *Duplex) Close() error {
	d.once.Do(func() {
		close(d.done)
	})

	return nil
}

// Written returns everything written so far.
func (d *Duplex) Written() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.written.String()
}

// WriteClosed reports whether CloseWrite was called.
func (d *Duplex) WriteClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.writeClosed
}

// Closed reports whether Close was called.
func (d *Duplex) Closed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Scatter splits the data into pieces of n bytes each, the last one may be shorter.
func Scatter(data []byte, n int) (pieces [][]byte) {
	for i := 0; i < len(data); i += n {
		pieces = append(pieces, data[i:min(i+n, len(data))])
	}

	return pieces
}
