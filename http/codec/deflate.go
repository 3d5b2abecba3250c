package codec

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// NewDeflate returns the codec for the "deflate" coding, which is, despite its name,
// the zlib format (RFC 9110, 8.4.1.2).
func NewDeflate() Codec {
	return baseCodec{
		token: "deflate",
		newReader: func(source io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(source)
		},
	}
}
