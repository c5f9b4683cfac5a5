package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport is the raw request/response exchange with one processor.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// HTTPTransport sends requests to BaseURL with HTTP, defaulting to a client
// with a 10s timeout.
type HTTPTransport struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPTransport{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: client}
}

func (t *HTTPTransport) Do(ctx context.Context, req Request) (Response, error) {
	if t.BaseURL == "" {
		return Response{}, fmt.Errorf("missing processor base url")
	}
	client := t.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.BaseURL+req.Path, body)
	if err != nil {
		return Response{}, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	res, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}, nil
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

func (f TransportFunc) Do(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
