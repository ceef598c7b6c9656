// Package protocol implements the control-channel wire format: big-endian
// length-prefixed strings in modified UTF-8 (the encoding of Java's
// DataOutput.writeUTF), 4-byte signed counts and 8-byte IEEE-754 doubles.
package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
	"unicode/utf8"
)

// MaxStringLen is the largest encoded string the 2-byte prefix can carry.
const MaxStringLen = math.MaxUint16

var (
	// ErrStringTooLong is returned when an encoded string exceeds MaxStringLen.
	ErrStringTooLong = errors.New("string exceeds 65535 encoded bytes")

	// ErrMalformedString is returned for byte sequences that are not valid
	// modified UTF-8.
	ErrMalformedString = errors.New("malformed modified UTF-8")
)

// Reader decodes wire primitives.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadString reads one length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	var n uint16
	if err := binary.Read(r.r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", unexpectedEOF(err)
	}
	return decodeModifiedUTF8(buf)
}

func (r *Reader) ReadInt32() (int32, error) {
	var n int32
	err := binary.Read(r.r, binary.BigEndian, &n)
	return n, unexpectedEOF(err)
}

func (r *Reader) ReadFloat64() (float64, error) {
	var bits uint64
	if err := binary.Read(r.r, binary.BigEndian, &bits); err != nil {
		return 0, unexpectedEOF(err)
	}
	return math.Float64frombits(bits), nil
}

// Writer encodes wire primitives. Callers must Flush.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteString writes s with its 2-byte length prefix.
func (w *Writer) WriteString(s string) error {
	b := encodeModifiedUTF8(s)
	if len(b) > MaxStringLen {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(b))
	}
	if err := binary.Write(w.w, binary.BigEndian, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.w.Write(b)
	return err
}

func (w *Writer) WriteInt32(n int32) error {
	return binary.Write(w.w, binary.BigEndian, n)
}

func (w *Writer) WriteFloat64(f float64) error {
	return binary.Write(w.w, binary.BigEndian, math.Float64bits(f))
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

// unexpectedEOF turns a bare EOF inside a value into io.ErrUnexpectedEOF.
// A clean EOF before a string prefix is left alone by ReadString.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// encodeModifiedUTF8 encodes NUL as two bytes and supplementary code points
// as a pair of 3-byte surrogates.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x10000:
			out = appendUnit(out, uint16(r))
		default:
			hi, lo := utf16.EncodeRune(r)
			out = appendUnit(out, uint16(hi))
			out = appendUnit(out, uint16(lo))
		}
	}
	return out
}

func appendUnit(out []byte, u uint16) []byte {
	if u < 0x800 {
		return append(out, byte(0xC0|u>>6), byte(0x80|u&0x3F))
	}
	return append(out, byte(0xE0|u>>12), byte(0x80|(u>>6)&0x3F), byte(0x80|u&0x3F))
}

func decodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", ErrMalformedString
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", ErrMalformedString
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", ErrMalformedString
		}
	}

	runes := utf16.Decode(units)
	out := make([]byte, 0, len(b))
	for _, r := range runes {
		out = utf8.AppendRune(out, r)
	}
	return string(out), nil
}
