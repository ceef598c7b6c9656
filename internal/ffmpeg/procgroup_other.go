//go:build !unix

package ffmpeg

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// signalGroup only reaches the root process on this platform.
func signalGroup(cmd *exec.Cmd, kill bool) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if kill {
		return cmd.Process.Kill()
	}
	return cmd.Process.Signal(os.Interrupt)
}
