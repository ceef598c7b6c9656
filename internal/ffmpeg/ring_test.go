package ffmpeg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBuffer_splitsLines(t *testing.T) {
	r := NewRingBuffer(10)
	fmt.Fprint(r, "frame=1\rframe=2\r")
	fmt.Fprint(r, "Input #0, mov\nStream ma")
	fmt.Fprint(r, "pping:\n")

	require.Equal(t, []string{"frame=1", "frame=2", "Input #0, mov", "Stream mapping:"}, r.Lines())
}

func TestRingBuffer_keepsTail(t *testing.T) {
	r := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(r, "line %d\n", i)
	}
	fmt.Fprint(r, "unterminated")

	require.Equal(t, []string{"line 3", "line 4", "line 5", "unterminated"}, r.Lines())
}

func TestRingBuffer_empty(t *testing.T) {
	require.Empty(t, NewRingBuffer(0).Lines())
}
