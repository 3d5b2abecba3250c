package status

// HTTPError is an error produced while exchanging a message with the peer. The Code
// tells which HTTP status is the closest to describing the failure.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadStatusLine           = NewError(BadGateway, "malformed response status line")
	ErrTooLongStatusLine       = NewError(BadGateway, "response status line is too long")
	ErrHTTPVersionNotSupported = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrHeaderFieldsTooLarge    = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders          = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrNoHeaders               = NewError(BadGateway, "no headers parsed")
	ErrBadChunk                = NewError(BadGateway, "malformed chunk-encoded data")
	ErrChunkSizeLineTooLong    = NewError(BadGateway, "chunk size line is too long")
	ErrBadContentLength        = NewError(BadGateway, "malformed content length")
	ErrUnsupportedEncoding     = NewError(UnsupportedMediaType, "content encoding is not supported")
	ErrBadRequestTarget        = NewError(BadRequest, "request target must have a host")
	ErrBadHeader               = NewError(BadRequest, "header name or value contains forbidden characters")
	ErrBadMethod               = NewError(BadRequest, "request method is not a valid token")
)
