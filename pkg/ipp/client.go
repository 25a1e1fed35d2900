package ipp

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// StatusError is returned by Client.Do helpers for non-successful responses.
type StatusError struct {
	Status  Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Client sends one request per TCP connection to a vprint server.
type Client struct {
	Addr    string
	Timeout time.Duration
	// MaxResponseSize bounds the decoded response. Zero uses 1 MiB.
	MaxResponseSize int64

	dialer net.Dialer
	nextID atomic.Uint32
}

// NewClient returns a client for addr ("host:port").
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{Addr: addr, Timeout: timeout}
}

// NewRequest returns a request with a fresh request id.
func (c *Client) NewRequest(op Operation) *Request {
	// Request id 0 is reserved.
	id := uint16(c.nextID.Add(1)%0xFFFF) + 1
	return NewRequest(op, id)
}

// Do sends req, half-closes the connection to mark the end of the payload,
// and reads the response. Non-successful statuses are not errors here.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := EncodeRequest(conn, req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Operation, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return nil, fmt.Errorf("close write: %w", err)
		}
	}

	limit := c.MaxResponseSize
	if limit <= 0 {
		limit = 1 << 20
	}
	resp, err := Decoder{MaxAttributesSize: limit}.DecodeResponse(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read response: %w", context.Cause(ctx))
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.RequestID != req.RequestID {
		return nil, fmt.Errorf("%w: response request id %d, sent %d", ErrMalformedRequest, resp.RequestID, req.RequestID)
	}
	return resp, nil
}

// Call is Do that turns a non-successful status into a *StatusError.
func (c *Client) Call(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Status.Successful() {
		return resp, &StatusError{Status: resp.Status, Message: resp.StatusMessage()}
	}
	return resp, nil
}
