package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Opcode is the first string of every request.
type Opcode string

const (
	OpList   Opcode = "LIST"
	OpStream Opcode = "STREAM"
)

const (
	// EndSDP terminates an SDP block.
	EndSDP = "END_SDP"

	// ErrorMarker opens an error block: ErrorMarker, reason, EndSDP.
	ErrorMarker = "ERROR"
)

// ErrUnknownOpcode is returned by ReadOpcode for anything but LIST and STREAM.
var ErrUnknownOpcode = errors.New("unknown opcode")

// StreamRequest is the payload following a STREAM opcode.
type StreamRequest struct {
	Asset      string
	ClientAddr string
	Transport  string
	// Bandwidth is the client's measured download rate in Mbps. Advisory.
	Bandwidth float64
}

// RemoteError is an error block received from the server.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "server error: " + e.Reason
}

// ReadOpcode reads the request opcode. The returned Opcode is set even when
// the error is ErrUnknownOpcode so callers can log it.
func (r *Reader) ReadOpcode() (Opcode, error) {
	s, err := r.ReadString()
	if err != nil {
		return "", err
	}
	op := Opcode(s)
	switch op {
	case OpList, OpStream:
		return op, nil
	default:
		return op, fmt.Errorf("%w: %q", ErrUnknownOpcode, s)
	}
}

// ReadStreamRequest reads the four STREAM fields in wire order.
func (r *Reader) ReadStreamRequest() (StreamRequest, error) {
	var req StreamRequest
	var err error
	if req.Asset, err = r.ReadString(); err != nil {
		return req, fmt.Errorf("read asset name: %w", unexpectedEOF(err))
	}
	if req.ClientAddr, err = r.ReadString(); err != nil {
		return req, fmt.Errorf("read client address: %w", unexpectedEOF(err))
	}
	if req.Transport, err = r.ReadString(); err != nil {
		return req, fmt.Errorf("read transport: %w", unexpectedEOF(err))
	}
	if req.Bandwidth, err = r.ReadFloat64(); err != nil {
		return req, fmt.Errorf("read bandwidth: %w", err)
	}
	return req, nil
}

// ReadListing reads a LIST response.
func (r *Reader) ReadListing() ([]string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative listing count %d", n)
	}
	names := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return names, unexpectedEOF(err)
		}
		names = append(names, s)
	}
	return names, nil
}

// ReadSDPBlock reads strings up to EndSDP. Strings holding several lines are
// split, so both one-string and line-per-string senders are accepted. An
// error block is returned as *RemoteError.
func (r *Reader) ReadSDPBlock() ([]string, error) {
	var lines []string
	first := true
	for {
		s, err := r.ReadString()
		if err != nil {
			return lines, unexpectedEOF(err)
		}
		if s == EndSDP {
			return lines, nil
		}
		if first && s == ErrorMarker {
			reason, err := r.ReadString()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			// Drain the terminator; its absence does not change the outcome.
			_, _ = r.ReadString()
			return nil, &RemoteError{Reason: reason}
		}
		first = false
		for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
			if l != "" {
				lines = append(lines, l)
			}
		}
	}
}

// WriteListing writes the count and the names, then flushes.
func (w *Writer) WriteListing(names []string) error {
	if err := w.WriteInt32(int32(len(names))); err != nil {
		return err
	}
	for _, n := range names {
		if err := w.WriteString(n); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteSDPBlock writes one string per line followed by EndSDP, then flushes.
func (w *Writer) WriteSDPBlock(lines []string) error {
	for _, l := range lines {
		if err := w.WriteString(l); err != nil {
			return err
		}
	}
	if err := w.WriteString(EndSDP); err != nil {
		return err
	}
	return w.Flush()
}

// WriteError writes an error block, then flushes.
func (w *Writer) WriteError(reason string) error {
	for _, s := range []string{ErrorMarker, reason, EndSDP} {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteListRequest writes a LIST request, then flushes.
func (w *Writer) WriteListRequest() error {
	if err := w.WriteString(string(OpList)); err != nil {
		return err
	}
	return w.Flush()
}

// WriteStreamRequest writes a STREAM request, then flushes.
func (w *Writer) WriteStreamRequest(req StreamRequest) error {
	for _, s := range []string{string(OpStream), req.Asset, req.ClientAddr, req.Transport} {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	if err := w.WriteFloat64(req.Bandwidth); err != nil {
		return err
	}
	return w.Flush()
}
