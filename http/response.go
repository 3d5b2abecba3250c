package http

import (
	"github.com/indigo-web/duplexhttp/http/headers"
	"github.com/indigo-web/duplexhttp/http/proto"
	"github.com/indigo-web/duplexhttp/http/status"
)

// Response is available as soon as the status line and headers were received,
// while its body is still being streamed.
type Response struct {
	Protocol proto.Proto
	Code     status.Code
	// Status is the reason phrase exactly as transmitted by the peer.
	Status status.Status
	// Headers keys are lowercased.
	Headers *headers.Headers
	// ContentLength is -1 if the length isn't known in advance.
	ContentLength int64
	// Body is nil if the response has no body: 1xx, 204, 205 and 304 responses
	// and responses to HEAD requests. Otherwise, it must be either consumed or closed.
	Body *Body
}

// NewResponse returns a blank response with pre-allocated storage for n headers.
func NewResponse(n int) *Response {
	return &Response{
		Headers:       headers.New(n),
		ContentLength: -1,
	}
}

// Reset clears the response, so it can be filled again. Used to skip interim
// (1xx) responses.
func (r *Response) Reset() {
	r.Protocol = proto.Unknown
	r.Code = 0
	r.Status = ""
	r.Headers.Clear()
	r.ContentLength = -1
	r.Body = nil
}
