package http

import (
	"io"

	"github.com/indigo-web/duplexhttp/http/codec"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// ErrBodyClosed is returned by reads after the body was closed by the consumer.
var ErrBodyClosed = errors.New("response body is closed")

// BodyCallback is called on every piece of the body.
type BodyCallback func([]byte) error

// Source is the consumer's side of the body stream.
type Source interface {
	io.Reader
	// Next returns the next piece of the body in a newly allocated buffer.
	Next() ([]byte, error)
	// Abort terminates the stream, so the producer stops too.
	Abort(error)
}

// Body streams a response body. The body is not restartable: once consumed, every
// further read results in io.EOF.
type Body struct {
	source          Source
	contentEncoding string
}

func NewBody(source Source, contentEncoding string) *Body {
	return &Body{
		source:          source,
		contentEncoding: contentEncoding,
	}
}

// Read implements the io.Reader interface. Received bytes are copied directly into
// the passed buffer, so the producer never holds more than the consumer is ready
// to take.
func (b *Body) Read(into []byte) (n int, err error) {
	return b.source.Read(into)
}

// Next returns the next piece of body in a freshly allocated buffer.
func (b *Body) Next() ([]byte, error) {
	return b.source.Next()
}

// Callback invokes the callback every time as there's a piece of body available
// for reading. If the callback returns an error, it'll be passed back to the caller
// and the body is closed. The callback is not notified when there's no more data.
func (b *Body) Callback(cb BodyCallback) error {
	for {
		data, err := b.Next()
		if len(data) > 0 {
			if cberr := cb(data); cberr != nil {
				_ = b.Close()
				return cberr
			}
		}

		switch err {
		case nil:
		case io.EOF:
			return nil
		default:
			return err
		}
	}
}

// Bytes returns the whole body at once in a byte representation.
func (b *Body) Bytes() ([]byte, error) {
	return io.ReadAll(b)
}

// String returns the whole body at once in a string representation.
func (b *Body) String() (string, error) {
	data, err := b.Bytes()
	return string(data), err
}

// JSON reads the whole body and unmarshalls it into the model.
func (b *Body) JSON(model any) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}

	iterator := json.ConfigDefault.BorrowIterator(data)
	iterator.ReadVal(model)
	err = iterator.Error
	json.ConfigDefault.ReturnIterator(iterator)

	return err
}

// Decoded returns a reader undoing all the codings listed in the Content-Encoding
// header. Closing the returned reader closes the body, too.
func (b *Body) Decoded() (io.ReadCloser, error) {
	decoder, err := codec.Decode(b.contentEncoding, b)
	if err != nil {
		return nil, err
	}

	return decodedBody{decoder, b}, nil
}

// Discard reads the rest of the body (if any). If no error was encountered,
// nil is returned.
func (b *Body) Discard() error {
	_, err := io.Copy(io.Discard, b)
	return err
}

// Close stops the body stream. Unconsumed bytes are lost, further reads return
// ErrBodyClosed unless the body was already completely consumed.
func (b *Body) Close() error {
	b.source.Abort(ErrBodyClosed)
	return nil
}

type decodedBody struct {
	io.ReadCloser
	body *Body
}

func (d decodedBody) Close() error {
	err := d.ReadCloser.Close()
	_ = d.body.Close()

	return err
}
