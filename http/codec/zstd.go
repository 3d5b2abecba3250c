package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func NewZSTD() Codec {
	return baseCodec{
		token: "zstd",
		newReader: func(source io.Reader) (io.ReadCloser, error) {
			decoder, err := zstd.NewReader(source)
			if err != nil {
				return nil, err
			}

			return decoder.IOReadCloser(), nil
		},
	}
}
