package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one logical API call.
type Request struct {
	Method string
	// Path is relative to the configured base URL, e.g. "/auth/login".
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	retried bool
}

// Retried reports whether the request already consumed its refresh retry.
func (r *Request) Retried() bool {
	return r.retried
}

// Get builds a GET request.
func Get(path string) *Request {
	return &Request{Method: http.MethodGet, Path: path}
}

// Post builds a POST request with a JSON body.
func Post(path string, body any) *Request {
	return &Request{Method: http.MethodPost, Path: path, Body: body}
}

// Put builds a PUT request with a JSON body.
func Put(path string, body any) *Request {
	return &Request{Method: http.MethodPut, Path: path, Body: body}
}

// Delete builds a DELETE request.
func Delete(path string) *Request {
	return &Request{Method: http.MethodDelete, Path: path}
}

// Response is the successful (2xx) result of a call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Envelope is the portal's standard response body.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// Result returns Data when the envelope reports success, otherwise an
// [*Error] carrying the server message (or fallback).
func (e Envelope[T]) Result(fallback string) (T, error) {
	if e.Success {
		return e.Data, nil
	}
	var zero T
	msg := e.Message
	if msg == "" {
		msg = fallback
	}
	return zero, &Error{StatusCode: http.StatusOK, Message: msg, Kind: KindResponse, Err: ErrUnsuccessful}
}

// Do executes req and decodes the payload into T.
func Do[T any](ctx context.Context, p *Pipeline, req *Request) (T, error) {
	var out T
	resp, err := p.Execute(ctx, req)
	if err != nil {
		return out, err
	}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode response: %v", err),
			Kind:       KindResponse,
			Err:        fmt.Errorf("%w: %v", ErrDecode, err),
		}
	}
	return out, nil
}

// Call executes req and decodes the standard envelope.
func Call[T any](ctx context.Context, p *Pipeline, req *Request) (Envelope[T], error) {
	return Do[Envelope[T]](ctx, p, req)
}
