package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"media-distribution/internal/transport"
)

func TestParseStreamArgs_defaults(t *testing.T) {
	o, err := parseStreamArgs([]string{"-asset", "movie.mp4"})
	require.NoError(t, err)
	require.Equal(t, "movie.mp4", o.asset)
	require.Equal(t, transport.RTP, o.kind)
	require.Equal(t, 5.0, o.bandwidth)
	require.False(t, o.play)
}

func TestParseStreamArgs_overrides(t *testing.T) {
	o, err := parseStreamArgs([]string{"-asset", "movie.mp4", "-transport", "UDP", "-bw", "12.5", "-client", "10.0.0.5", "-play"})
	require.NoError(t, err)
	require.Equal(t, transport.UDP, o.kind)
	require.Equal(t, 12.5, o.bandwidth)
	require.Equal(t, "10.0.0.5", o.clientAddr)
	require.True(t, o.play)
}

func TestParseStreamArgs_errors(t *testing.T) {
	_, err := parseStreamArgs(nil)
	require.ErrorContains(t, err, "-asset")

	_, err = parseStreamArgs([]string{"-asset", "movie.mp4", "-transport", "quic"})
	require.ErrorIs(t, err, transport.ErrUnsupportedTransport)
}
