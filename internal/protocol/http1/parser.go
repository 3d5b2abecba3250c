package http1

import (
	"bytes"
	"strings"

	"github.com/indigo-web/duplexhttp/config"
	"github.com/indigo-web/duplexhttp/http"
	"github.com/indigo-web/duplexhttp/http/proto"
	"github.com/indigo-web/duplexhttp/http/status"
	"go.uber.org/zap"
)

type parserState uint8

const (
	eStatusLine parserState = iota
	eHeaderLine
	eHeadersDone
)

// Parser is a stream-based response head parser. It consumes the status line and
// the header fields, leaving everything after the empty line to the body.
type Parser struct {
	cfg      *config.Config
	log      *zap.Logger
	state    parserState
	response *http.Response
	// line accumulates a line split across multiple pieces of data.
	line        []byte
	headerSpace int
}

func NewParser(cfg *config.Config, response *http.Response, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Parser{
		cfg:      cfg,
		log:      logger,
		state:    eStatusLine,
		response: response,
	}
}

// Parse feeds the data into the parser. When the headers are completed, everything
// after them is returned as rest. Piece boundaries are meaningless: the result is the
// same no matter how the data was split.
func (p *Parser) Parse(data []byte) (headersCompleted bool, rest []byte, err error) {
	switch p.state {
	case eStatusLine:
		goto statusLine
	case eHeaderLine:
		goto headerLine
	case eHeadersDone:
		return true, data, nil
	default:
		panic("BUG: response parser: unknown state")
	}

statusLine:
	{
		line, remaining, ok := p.nextLine(data, p.cfg.Headers.MaxStatusLine)
		if !ok {
			return false, nil, status.ErrTooLongStatusLine
		}

		if line == nil {
			return false, nil, nil
		}

		if err = p.parseStatusLine(line); err != nil {
			return false, nil, err
		}

		data = remaining
		p.state = eHeaderLine
		goto headerLine
	}

headerLine:
	for {
		line, remaining, ok := p.nextLine(data, p.cfg.Headers.Space.Maximal-p.headerSpace)
		if !ok {
			return false, nil, status.ErrHeaderFieldsTooLarge
		}

		if line == nil {
			return false, nil, nil
		}

		data = remaining
		if len(line) == 0 {
			p.state = eHeadersDone
			return true, data, nil
		}

		p.headerSpace += len(line)
		if err = p.addHeader(line); err != nil {
			return false, nil, err
		}
	}
}

// nextLine returns a complete line without the trailing CRLF (or bare LF) and the data
// left after it. Nil line means there's no line terminator yet, so the data was saved
// for the next call. The line must not be retained, as it may refer either to the
// data or to the internal buffer.
func (p *Parser) nextLine(data []byte, limit int) (line, rest []byte, ok bool) {
	lf := bytes.IndexByte(data, '\n')
	if lf == -1 {
		if len(p.line)+len(data) > limit {
			return nil, nil, false
		}

		p.line = append(p.line, data...)
		return nil, nil, true
	}

	if len(p.line)+lf > limit {
		return nil, nil, false
	}

	line = data[:lf]
	if len(p.line) > 0 {
		p.line = append(p.line, line...)
		line = p.line
	}

	p.line = p.line[:0]

	return rstripCR(line), data[lf+1:], true
}

func (p *Parser) parseStatusLine(line []byte) error {
	sp := bytes.IndexByte(line, ' ')
	if sp == -1 {
		return status.ErrBadStatusLine
	}

	p.response.Protocol = proto.FromBytes(line[:sp])
	if p.response.Protocol == proto.Unknown {
		return status.ErrHTTPVersionNotSupported
	}

	line = line[sp+1:]
	code, reason := line, []byte(nil)
	if sp = bytes.IndexByte(line, ' '); sp != -1 {
		code, reason = line[:sp], line[sp+1:]
	}

	if len(code) != 3 {
		return status.ErrBadStatusLine
	}

	var c status.Code
	for _, char := range code {
		if char < '0' || char > '9' {
			return status.ErrBadStatusLine
		}

		c = c*10 + status.Code(char-'0')
	}

	p.response.Code = c
	p.response.Status = status.Status(reason)

	return nil
}

func (p *Parser) addHeader(line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 || line[0] == ' ' || line[0] == '\t' {
		p.log.Warn("skipping malformed header line", zap.ByteString("line", line))
		return nil
	}

	name := line[:colon]
	if bytes.ContainsAny(name, " \t") {
		p.log.Warn("skipping header with whitespace in its name", zap.ByteString("name", name))
		return nil
	}

	if p.response.Headers.Len() >= p.cfg.Headers.Number.Maximal {
		return status.ErrTooManyHeaders
	}

	value := bytes.TrimSpace(line[colon+1:])
	p.response.Headers.Add(strings.ToLower(string(name)), string(value))

	return nil
}

// Reset prepares the parser to parse a new response head, e.g. the final response
// following an interim one. The response must be reset separately.
func (p *Parser) Reset() {
	p.state = eStatusLine
	p.line = p.line[:0]
	p.headerSpace = 0
}

func rstripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		b = b[:len(b)-1]
	}

	return b
}
