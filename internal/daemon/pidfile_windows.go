//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// IsRunning reports the PID in the file and whether that process is alive.
// FindProcess always succeeds on Windows, so a zero signal is sent as well.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	err = proc.Signal(syscall.Signal(0))
	return pid, err == nil
}

// Stop terminates the server holding the file. Windows has no SIGTERM, so
// the process is killed.
func (p *PIDFile) Stop() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("find process %d: %w", pid, err)
	}
	return pid, proc.Kill()
}
