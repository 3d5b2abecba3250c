package config

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	HeadersNumber struct {
		Default int `yaml:"default"`
		Maximal int `yaml:"maximal"`
	}

	HeadersSpace struct {
		Default int `yaml:"default"`
		Maximal int `yaml:"maximal"`
	}
)

type (
	Headers struct {
		// Number is responsible for the headers storage size.
		// Default value is an initial capacity of the headers storage.
		// Maximal value is maximum number of headers allowed in a single response.
		Number HeadersNumber `yaml:"number"`
		// Space limits the amount of memory occupied by a response headers block,
		// status line excluded.
		Space HeadersSpace `yaml:"space"`
		// MaxStatusLine limits the length of the response status line.
		MaxStatusLine int `yaml:"max_status_line"`
	}

	Body struct {
		// MaxChunkSizeLine limits the chunk-size line of chunked bodies, including
		// chunk extensions. Longer lines are treated as malformed instead of being
		// buffered indefinitely.
		MaxChunkSizeLine int `yaml:"max_chunk_size_line"`
		// ScratchSize is the size of a buffer allocated by every pull-mode read of
		// a response body.
		ScratchSize int `yaml:"scratch_size"`
		// WriteBufferSize is the maximal size of a single write of a request body
		// into the duplex.
		WriteBufferSize int `yaml:"write_buffer_size"`
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// streams wrapped via transport.NewStream.
		ReadBufferSize int `yaml:"read_buffer_size"`
	}
)

// Config holds settings used across various parts of duplexhttp, mainly restrictions,
// limitations and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Headers Headers `yaml:"headers"`
	Body    Body    `yaml:"body"`
	NET     NET     `yaml:"net"`
}

// Default returns default config. Those are initially well-balanced, however maximal defaults
// are pretty permitting.
func Default() *Config {
	return &Config{
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 100,
			},
			Space: HeadersSpace{
				Default: 1 * 1024,  // 1kb for headers must be fairly enough in most cases.
				Maximal: 64 * 1024, // However, there also might be extremely long cookies.
			},
			MaxStatusLine: 1024,
		},
		Body: Body{
			MaxChunkSizeLine: 256,
			ScratchSize:      16 * 1024,
			WriteBufferSize:  16 * 1024,
		},
		NET: NET{
			ReadBufferSize: 4 * 1024,
		},
	}
}

// Load decodes a YAML document over the defaults, so omitted fields keep their
// default values.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "config: decode yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first setting which makes no sense.
func (c *Config) Validate() error {
	switch {
	case c.Headers.Number.Maximal <= 0:
		return errors.New("config: headers.number.maximal must be positive")
	case c.Headers.Space.Maximal <= 0:
		return errors.New("config: headers.space.maximal must be positive")
	case c.Headers.MaxStatusLine <= 0:
		return errors.New("config: headers.max_status_line must be positive")
	case c.Body.MaxChunkSizeLine <= 0:
		return errors.New("config: body.max_chunk_size_line must be positive")
	case c.Body.ScratchSize <= 0:
		return errors.New("config: body.scratch_size must be positive")
	case c.Body.WriteBufferSize <= 0:
		return errors.New("config: body.write_buffer_size must be positive")
	case c.NET.ReadBufferSize <= 0:
		return errors.New("config: net.read_buffer_size must be positive")
	}

	return nil
}
