package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamRequestRoundTrip(t *testing.T) {
	req := StreamRequest{Asset: "movie-720p.mp4", ClientAddr: "10.0.0.5", Transport: "RTP", Bandwidth: 12.5}
	b := encode(t, func(w *Writer) error { return w.WriteStreamRequest(req) })

	r := NewReader(bytes.NewReader(b))
	op, err := r.ReadOpcode()
	require.NoError(t, err)
	require.Equal(t, OpStream, op)

	got, err := r.ReadStreamRequest()
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestReadOpcode_unknown(t *testing.T) {
	b := encode(t, func(w *Writer) error { return w.WriteString("DELETE") })
	op, err := NewReader(bytes.NewReader(b)).ReadOpcode()
	require.ErrorIs(t, err, ErrUnknownOpcode)
	require.Equal(t, Opcode("DELETE"), op)
}

func TestReadOpcode_caseSensitive(t *testing.T) {
	b := encode(t, func(w *Writer) error { return w.WriteString("list") })
	_, err := NewReader(bytes.NewReader(b)).ReadOpcode()
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestReadStreamRequest_truncated(t *testing.T) {
	b := encode(t, func(w *Writer) error {
		if err := w.WriteString("movie.mp4"); err != nil {
			return err
		}
		return w.WriteString("10.0.0.5")
	})
	_, err := NewReader(bytes.NewReader(b)).ReadStreamRequest()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Contains(t, err.Error(), "transport")
}

func TestListingRoundTrip(t *testing.T) {
	names := []string{"a.mp4", "b.mkv"}
	b := encode(t, func(w *Writer) error { return w.WriteListing(names) })
	require.Equal(t, []byte{0, 0, 0, 2}, b[:4])

	got, err := NewReader(bytes.NewReader(b)).ReadListing()
	require.NoError(t, err)
	require.Equal(t, names, got)
}

func TestListing_empty(t *testing.T) {
	b := encode(t, func(w *Writer) error { return w.WriteListing(nil) })
	require.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestSDPBlock(t *testing.T) {
	lines := []string{"v=0", "c=IN IP4 10.0.0.5"}
	b := encode(t, func(w *Writer) error { return w.WriteSDPBlock(lines) })

	got, err := NewReader(bytes.NewReader(b)).ReadSDPBlock()
	require.NoError(t, err)
	require.Equal(t, lines, got)
}

func TestReadSDPBlock_singleStringSender(t *testing.T) {
	b := encode(t, func(w *Writer) error {
		if err := w.WriteString("v=0\r\ns=No Name\n"); err != nil {
			return err
		}
		return w.WriteString(EndSDP)
	})
	got, err := NewReader(bytes.NewReader(b)).ReadSDPBlock()
	require.NoError(t, err)
	require.Equal(t, []string{"v=0", "s=No Name"}, got)
}

func TestReadSDPBlock_errorBlock(t *testing.T) {
	b := encode(t, func(w *Writer) error { return w.WriteError("asset not found: x.mp4") })

	_, err := NewReader(bytes.NewReader(b)).ReadSDPBlock()
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "asset not found: x.mp4", remote.Reason)
}

func TestReadSDPBlock_missingSentinel(t *testing.T) {
	b := encode(t, func(w *Writer) error { return w.WriteString("v=0") })
	_, err := NewReader(bytes.NewReader(b)).ReadSDPBlock()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
