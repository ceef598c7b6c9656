// Package client talks to the distribution server's control channel and
// prepares the local player for the negotiated transport.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"media-distribution/internal/protocol"
	"media-distribution/internal/transport"
)

// ErrNoSDP is returned when an RTP request ends without a session description.
var ErrNoSDP = errors.New("server closed the connection without a session description")

// Client issues one request per connection.
type Client struct {
	Addr    string
	Timeout time.Duration
}

// New returns a client for the server at addr.
func New(addr string) *Client {
	return &Client{Addr: addr, Timeout: 10 * time.Second}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.Addr, err)
	}
	if c.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	}
	return conn, nil
}

// List returns the server's catalog.
func (c *Client) List(ctx context.Context) ([]string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := protocol.NewWriter(conn).WriteListRequest(); err != nil {
		return nil, fmt.Errorf("send list: %w", err)
	}
	names, err := protocol.NewReader(conn).ReadListing()
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return names, nil
}

// Stream sends a STREAM request. For RTP it returns the session description
// lines; for UDP and TCP the server sends nothing on success and the result
// is nil. Error blocks come back as *protocol.RemoteError.
func (c *Client) Stream(ctx context.Context, req protocol.StreamRequest) ([]string, error) {
	kind, err := transport.ParseKind(req.Transport)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := protocol.NewWriter(conn).WriteStreamRequest(req); err != nil {
		return nil, fmt.Errorf("send stream request: %w", err)
	}

	lines, err := protocol.NewReader(conn).ReadSDPBlock()
	switch {
	case err == nil:
		if kind != transport.RTP {
			return nil, nil
		}
		return lines, nil
	case errors.Is(err, io.ErrUnexpectedEOF) && len(lines) == 0:
		if kind == transport.RTP {
			return nil, ErrNoSDP
		}
		return nil, nil
	default:
		return nil, err
	}
}

// LocalAddr returns the local IP address used to reach server, which is
// the address the server should send media to.
func LocalAddr(server string) (string, error) {
	conn, err := net.Dial("udp", server)
	if err != nil {
		return "", fmt.Errorf("resolve local address: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address %s", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
