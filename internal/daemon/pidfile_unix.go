//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning reports the PID in the file and whether that process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	// Signal 0 tests if the process exists without sending a signal.
	err = syscall.Kill(pid, 0)
	return pid, err == nil
}

// Stop asks the server holding the file to shut down.
func (p *PIDFile) Stop() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	return pid, syscall.Kill(pid, syscall.SIGTERM)
}
