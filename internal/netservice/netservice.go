package netservice

import (
	"context"
	"time"
)

// Request describes one outbound HTTP call. Once submitted it cannot be
// canceled; the connect/read timeouts are the only bound on its lifetime.
type Request struct {
	Method         string
	URL            string
	Headers        map[string]string
	Body           []byte
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Response carries either an HTTP status code or a transport error.
type Response struct {
	Code int
	Err  error
}

// Completion runs on a goroutine owned by the network service, never on
// the caller's goroutine. Callers touching shared state from a completion
// must marshal back onto their own queue.
type Completion func(Response)

// Service submits HTTP requests asynchronously. Submit returns as soon as
// the request is handed off; the completion fires exactly once.
type Service interface {
	Submit(ctx context.Context, req Request, done Completion)
}
