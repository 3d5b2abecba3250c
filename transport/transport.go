package transport

// Source is the read side of a duplex. Read returns the next piece of received data
// and io.EOF once the remote finished writing. Boundaries between pieces carry no
// meaning. The returned slice is valid until the next call.
type Source interface {
	Read() ([]byte, error)
	// Pushback preserves a chunk of data from previous read for the next read.
	Pushback([]byte)
}

// Sink is the write side of a duplex.
type Sink interface {
	Write([]byte) (int, error)
	// CloseWrite signals that nothing more is going to be written.
	CloseWrite() error
}

// Duplex is a bidirectional byte stream established and owned by someone else, for
// example a multiplexed stream of a peer-to-peer transport.
type Duplex interface {
	Source
	Sink
	// Close tears down both directions.
	Close() error
}
