package http

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/indigo-web/duplexhttp/http/headers"
	"github.com/indigo-web/duplexhttp/http/method"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// preallocRequestHeaders is an initial capacity of request headers storage.
const preallocRequestHeaders = 8

// Request describes a request to be sent over a duplex. It must not be modified once
// passed to the client.
type Request struct {
	// Method is sent verbatim, therefore may be any valid token.
	Method method.Method
	// URL provides the request target (path and query) and the Host header, unless
	// one was set explicitly. Scheme is not used at all, as the duplex is established
	// externally.
	URL *url.URL
	// Headers are serialized in the same order they were added and with the same
	// spelling.
	Headers *headers.Headers
	// Body is streamed into the duplex right after the headers. It may be unbounded.
	// If it implements io.Closer, it is closed after being transmitted.
	Body io.Reader
}

// NewRequest returns a request with no headers and no body.
func NewRequest(m method.Method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse request url")
	}

	return &Request{
		Method:  m,
		URL:     u,
		Headers: headers.New(preallocRequestHeaders),
	}, nil
}

// WithHeader adds the header values. Previous values of the key are kept.
func (r *Request) WithHeader(key string, values ...string) *Request {
	for _, value := range values {
		r.Headers.Add(key, value)
	}

	return r
}

// WithBody sets the request body.
func (r *Request) WithBody(body io.Reader) *Request {
	r.Body = body
	return r
}

// WithBodyString sets the request body to the string.
func (r *Request) WithBodyString(body string) *Request {
	return r.WithBody(strings.NewReader(body))
}

// WithBodyBytes sets the request body to the bytes. The slice must not be modified
// until the request is sent.
func (r *Request) WithBodyBytes(body []byte) *Request {
	return r.WithBody(bytes.NewReader(body))
}

// WithJSON marshals the model and sets the result as the body. Content-Type is set to
// application/json unless specified explicitly.
func (r *Request) WithJSON(model any) (*Request, error) {
	data, err := json.ConfigCompatibleWithStandardLibrary.Marshal(model)
	if err != nil {
		return r, errors.Wrap(err, "marshal json body")
	}

	if !r.Headers.Has("content-type") {
		r.Headers.Add("Content-Type", "application/json")
	}

	return r.WithBodyBytes(data), nil
}
