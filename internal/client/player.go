package client

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"media-distribution/internal/transport"
)

// WriteSDPFile atomically writes lines to a fresh .sdp file in dir and
// returns its path.
func WriteSDPFile(dir string, lines []string) (string, error) {
	path := filepath.Join(dir, "stream_"+uuid.NewString()[:8]+".sdp")
	if err := renameio.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write sdp file: %w", err)
	}
	return path, nil
}

// PlayerOptions tune the ffplay invocation.
type PlayerOptions struct {
	Buffering bool
	// ServerHost is dialled for TCP.
	ServerHost string
	SDPFile    string
}

// PlayerArgs returns the ffplay arguments for a negotiated stream.
func PlayerArgs(kind transport.Kind, opts PlayerOptions) ([]string, error) {
	args := []string{"-x", "854", "-y", "480", "-loglevel", "info", "-stats"}
	if opts.Buffering {
		args = append(args, "-fflags", "+genpts", "-probesize", "500000", "-analyzeduration", "1000000", "-buffer_size", "1000000")
	} else {
		args = append(args, "-fflags", "nobuffer")
	}

	port := strconv.Itoa(transport.StreamPort)
	switch kind {
	case transport.UDP:
		return append(args, "-i", "udp://"+net.JoinHostPort("0.0.0.0", port)), nil
	case transport.TCP:
		if opts.ServerHost == "" {
			return nil, fmt.Errorf("tcp playback needs the server host")
		}
		return append(args, "-i", "tcp://"+net.JoinHostPort(opts.ServerHost, port)), nil
	case transport.RTP:
		if opts.SDPFile == "" {
			return nil, fmt.Errorf("rtp playback needs an sdp file")
		}
		return append(args, "-protocol_whitelist", "file,udp,rtp", "-i", opts.SDPFile), nil
	default:
		return nil, fmt.Errorf("%w: %q", transport.ErrUnsupportedTransport, string(kind))
	}
}
