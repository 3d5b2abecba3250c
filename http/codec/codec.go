package codec

import (
	"io"
	"strings"

	"github.com/indigo-web/duplexhttp/http/status"
	"github.com/indigo-web/utils/strcomp"
)

// Codec undoes a content coding.
type Codec interface {
	// Token returns a coding token associated with the codec itself.
	Token() string
	NewReader(source io.Reader) (io.ReadCloser, error)
}

// Builtin contains all the codecs supported out of the box.
var Builtin = []Codec{NewGZIP(), NewDeflate(), NewZSTD()}

// Decode wraps the source into decoders for every coding listed in the Content-Encoding
// value. Codings are undone in reverse order of their application. Identity coding
// and empty value are no-ops.
func Decode(contentEncoding string, source io.Reader, codecs ...Codec) (io.ReadCloser, error) {
	if len(codecs) == 0 {
		codecs = Builtin
	}

	tokens := strings.Split(contentEncoding, ",")
	reader := io.NopCloser(source)
	var chain chainCloser

	for i := len(tokens) - 1; i >= 0; i-- {
		token := strings.TrimSpace(tokens[i])
		if len(token) == 0 || strcomp.EqualFold(token, "identity") {
			continue
		}

		c := lookup(codecs, token)
		if c == nil {
			_ = chain.Close()
			return nil, status.ErrUnsupportedEncoding
		}

		decoder, err := c.NewReader(reader)
		if err != nil {
			_ = chain.Close()
			return nil, err
		}

		chain = append(chain, decoder)
		reader = decoder
	}

	if len(chain) == 0 {
		return reader, nil
	}

	return readCloser{Reader: reader, Closer: chain}, nil
}

func lookup(codecs []Codec, token string) Codec {
	for _, c := range codecs {
		if strcomp.EqualFold(c.Token(), token) {
			return c
		}
	}

	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// chainCloser closes decoders from the outermost one.
type chainCloser []io.ReadCloser

func (c chainCloser) Close() (err error) {
	for i := len(c) - 1; i >= 0; i-- {
		if cerr := c[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

type baseCodec struct {
	token     string
	newReader func(io.Reader) (io.ReadCloser, error)
}

func (b baseCodec) Token() string {
	return b.token
}

func (b baseCodec) NewReader(source io.Reader) (io.ReadCloser, error) {
	return b.newReader(source)
}
