//go:build !unix

package executor

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// Interrupts cannot be delivered to a process group here, so both
// operations kill the direct child.
func interruptGroup(p *os.Process) error {
	return killGroup(p)
}

func killGroup(p *os.Process) error {
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
