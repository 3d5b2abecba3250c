package duplexhttp

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/indigo-web/duplexhttp/config"
	"github.com/indigo-web/duplexhttp/http"
	"github.com/indigo-web/duplexhttp/http/status"
	"github.com/indigo-web/duplexhttp/internal/pipe"
	"github.com/indigo-web/duplexhttp/internal/protocol/http1"
	"github.com/indigo-web/duplexhttp/metrics"
	"github.com/indigo-web/duplexhttp/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FetchFunc performs a single round trip over a duplex it's bound to.
type FetchFunc func(ctx context.Context, request *http.Request) (*http.Response, error)

// Client performs round trips over duplexes. It holds no per-exchange state, so a
// single instance may serve any number of concurrent round trips, as long as each
// of them has its own duplex. Settings must not be changed after the first round trip.
type Client struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Collector
}

// DefaultClient is used by Fetch.
var DefaultClient = New()

// New returns a client with default settings, which logs nothing and collects no
// metrics.
func New() *Client {
	return &Client{
		cfg: config.Default(),
		log: zap.NewNop(),
	}
}

// Tune replaces default settings.
func (c *Client) Tune(cfg *config.Config) *Client {
	c.cfg = cfg
	return c
}

// WithLogger sets the logger. Every message of a round trip is tagged with its
// exchange id.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	c.log = logger
	return c
}

// WithMetrics makes the client report round trip statistics into the collector.
func (c *Client) WithMetrics(collector *metrics.Collector) *Client {
	c.metrics = collector
	return c
}

// Fetch performs the round trip using the DefaultClient.
func Fetch(ctx context.Context, request *http.Request, duplex transport.Duplex) (*http.Response, error) {
	return DefaultClient.Do(ctx, request, duplex)
}

// Fetcher binds the duplex to the client. The returned function must be called
// only once, as no connection reuse is supported.
func (c *Client) Fetcher(duplex transport.Duplex) FetchFunc {
	return func(ctx context.Context, request *http.Request) (*http.Response, error) {
		return c.Do(ctx, request, duplex)
	}
}

// Do sends the request into the duplex and returns the response as soon as its
// head is received, while the request body may still be transmitted and the response
// body is yet to arrive. The body (if present) is streamed with backpressure: nothing
// more is read from the duplex until the consumer reads what was already received.
// Therefore, the body must be either consumed or closed.
//
// Any failure before the response head is received rejects the round trip and closes
// the duplex. After that, failures are reported only via the body. Cancelling the ctx
// closes the duplex in both cases.
func (c *Client) Do(ctx context.Context, request *http.Request, duplex transport.Duplex) (*http.Response, error) {
	if request == nil || request.URL == nil {
		return nil, status.ErrBadRequestTarget
	}

	if err := ctx.Err(); err != nil {
		_ = duplex.Close()
		return nil, err
	}

	e := &exchange{
		cfg:     c.cfg,
		request: request,
		duplex:  duplex,
		metrics: c.metrics,
		method:  request.Method.String(),
		started: time.Now(),
		log: c.log.With(
			zap.String("exchange", uuid.NewString()),
			zap.String("method", request.Method.String()),
			zap.String("url", request.URL.String()),
		),
	}

	e.log.Debug("round trip started")
	e.metrics.RoundTripStarted(e.method)

	sent := make(chan error, 1)
	heads := make(chan head, 1)
	go e.send(sent)
	go e.receive(heads)

	for {
		select {
		case err := <-sent:
			if err != nil {
				e.metrics.Failed(e.method, metrics.StageSend)
				e.reject(heads)
				return nil, errors.Wrap(err, "send request")
			}

			sent = nil
		case h := <-heads:
			if h.err != nil {
				e.metrics.Failed(e.method, metrics.StageHeaders)
				_ = duplex.Close()
				return nil, h.err
			}

			var finished <-chan struct{} = closedChan
			if h.pipe != nil {
				finished = h.pipe.Done()
			}

			go e.watch(ctx, sent, finished, h.pipe)

			return h.response, nil
		case <-ctx.Done():
			e.reject(heads)
			return nil, ctx.Err()
		}
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

type head struct {
	response *http.Response
	pipe     *pipe.Pipe
	err      error
}

// exchange holds the state of a single round trip.
type exchange struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Collector
	request *http.Request
	duplex  transport.Duplex
	method  string
	started time.Time
}

func (e *exchange) send(result chan<- error) {
	n, err := http1.NewSerializer(e.cfg).Write(e.request, e.duplex)
	e.metrics.RequestSent(e.method, n)
	if err == nil {
		err = e.duplex.CloseWrite()
	}

	result <- err
}

func (e *exchange) receive(result chan<- head) {
	response, residual, err := e.readHead()
	if err != nil {
		result <- head{err: err}
		return
	}

	e.log.Debug("response head received", zap.Int("code", int(response.Code)))
	e.metrics.HeadersReceived(e.method, int(response.Code), e.started)

	framing, length, err := http1.DetermineFraming(e.request.Method, response)
	if err == nil && framing == http1.FramingNone {
		if len(residual) > 0 {
			e.duplex.Pushback(residual)
		}

		result <- head{response: response}
		return
	}

	p := pipe.New(e.cfg.Body.ScratchSize)
	response.Body = http.NewBody(p, response.Headers.Value("content-encoding"))

	if err != nil {
		e.log.Warn("response body can't be framed", zap.Error(err))
		e.metrics.Failed(e.method, metrics.StageBody)
		p.Abort(err)
		result <- head{response: response, pipe: p}
		return
	}

	streamer := http1.NewBodyStreamer(e.cfg, e.duplex, p)
	streamer.Init(framing, length)
	result <- head{response: response, pipe: p}

	e.metrics.BodyStarted()
	err = streamer.Stream(residual)
	e.metrics.BodyFinished(e.method, int(response.Code), streamer.Delivered())

	switch {
	case err == nil:
		e.log.Debug("response body received", zap.Int64("bytes", streamer.Delivered()))
	case errors.Is(err, http.ErrBodyClosed):
		e.log.Debug("response body closed by the consumer", zap.Int64("bytes", streamer.Delivered()))
	default:
		e.log.Warn("response body stream failed", zap.Error(err), zap.Stringer("framing", framing))
		e.metrics.Failed(e.method, metrics.StageBody)
	}
}

// readHead reads from the duplex until the final response head is parsed. Interim
// responses are skipped, except for 101 Switching Protocols, as the peer switches the
// protocol right after it.
func (e *exchange) readHead() (*http.Response, []byte, error) {
	response := http.NewResponse(e.cfg.Headers.Number.Default)
	parser := http1.NewParser(e.cfg, response, e.log)
	var data []byte

	for {
		if len(data) == 0 {
			var err error
			data, err = e.duplex.Read()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, nil, status.ErrNoHeaders
				}

				return nil, nil, errors.Wrap(err, "read response head")
			}
		}

		done, rest, err := parser.Parse(data)
		if err != nil {
			return nil, nil, err
		}

		data = nil
		if !done {
			continue
		}

		if response.Code.IsInformational() && response.Code != status.SwitchingProtocols {
			e.log.Debug("skipping interim response", zap.Int("code", int(response.Code)))
			response.Reset()
			parser.Reset()
			data = rest
			continue
		}

		return response, rest, nil
	}
}

// watch runs alongside the response body and tears the exchange down if the ctx is
// cancelled before the body is finished. Request transmission failures after the
// response head was received are only logged, as the peer has already answered.
func (e *exchange) watch(ctx context.Context, sent <-chan error, finished <-chan struct{}, p *pipe.Pipe) {
	for {
		select {
		case err := <-sent:
			if err != nil {
				e.log.Warn("request transmission failed", zap.Error(err))
				e.metrics.Failed(e.method, metrics.StageSend)
			}

			sent = nil
		case <-finished:
			return
		case <-ctx.Done():
			if p != nil {
				p.Abort(ctx.Err())
			}

			e.log.Debug("round trip cancelled", zap.Error(ctx.Err()))
			_ = e.duplex.Close()
			return
		}
	}
}

// reject closes the duplex and releases the body of the response, if it eventually
// arrives, so the receiving goroutine is never stuck.
func (e *exchange) reject(heads <-chan head) {
	_ = e.duplex.Close()

	go func() {
		if h := <-heads; h.response != nil && h.response.Body != nil {
			_ = h.response.Body.Close()
		}
	}()
}
