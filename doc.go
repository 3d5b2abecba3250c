// Package duplexhttp is an HTTP/1.1 client working over arbitrary duplex byte streams,
// e.g. multiplexed streams of peer-to-peer transports, which are established and owned
// by the caller. No sockets are dialed and no connections are pooled: a duplex serves
// exactly one round trip.
//
// The response is returned as soon as its head is received, while the body is streamed
// with backpressure, so the peer is never read faster than the body is consumed:
//
//	request, err := http.NewRequest(method.GET, "http://peer.local/status")
//	if err != nil {
//		return err
//	}
//
//	response, err := duplexhttp.Fetch(ctx, request, transport.NewStream(stream, make([]byte, 4096)))
//	if err != nil {
//		return err
//	}
//
//	if response.Body != nil {
//		defer response.Body.Close()
//		data, err := response.Body.Bytes()
//		...
//	}
package duplexhttp
