package netservice

import (
	"bytes"
	"context"
	"net"
	"net/http"

	"pushbridge/internal/constants"
	"pushbridge/internal/logger"
)

// HTTPService is the default Service implementation on top of net/http.
// Each submitted request runs on its own goroutine; the completion is
// invoked on that goroutine.
type HTTPService struct {
	logger logger.Logger
}

func NewHTTPService(log logger.Logger) *HTTPService {
	return &HTTPService{logger: log}
}

func (s *HTTPService) Submit(ctx context.Context, req Request, done Completion) {
	go s.run(ctx, req, done)
}

func (s *HTTPService) run(ctx context.Context, req Request, done Completion) {
	client := s.clientFor(req)

	var body *bytes.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		s.logger.DebugwCtx(ctx, "Failed to build outbound request",
			"error", err,
			"url", req.URL,
		)
		s.complete(done, Response{Err: err})
		return
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		s.logger.DebugwCtx(ctx, "Outbound request failed",
			"error", err,
			"method", req.Method,
			"url", req.URL,
		)
		s.complete(done, Response{Err: err})
		return
	}
	defer resp.Body.Close()

	s.logger.DebugwCtx(ctx, "Outbound request completed",
		"method", req.Method,
		"url", req.URL,
		"status", resp.StatusCode,
	)
	s.complete(done, Response{Code: resp.StatusCode})
}

func (s *HTTPService) complete(done Completion, resp Response) {
	if done != nil {
		done(resp)
	}
}

func (s *HTTPService) clientFor(req Request) *http.Client {
	connect := req.ConnectTimeout
	if connect <= 0 {
		connect = constants.DefaultRequestTimeout
	}
	read := req.ReadTimeout
	if read <= 0 {
		read = constants.DefaultRequestTimeout
	}

	return &http.Client{
		Timeout: connect + read,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connect,
			}).DialContext,
			ResponseHeaderTimeout: read,
			DisableKeepAlives:     true,
		},
	}
}

var _ Service = (*HTTPService)(nil)
