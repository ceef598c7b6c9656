// Package transport turns a stream request into the pump command line and,
// for RTP, the session description the client needs before it can receive.
package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the delivery mechanism picked by the client.
type Kind string

const (
	UDP Kind = "udp"
	TCP Kind = "tcp"
	RTP Kind = "rtp"
)

// ErrUnsupportedTransport is returned by ParseKind for anything but udp, tcp or rtp.
var ErrUnsupportedTransport = errors.New("unsupported transport")

// ParseKind matches s case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case UDP, TCP, RTP:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTransport, s)
	}
}

func (k Kind) String() string { return string(k) }
