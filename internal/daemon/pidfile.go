// Package daemon keeps one API server per database through a PID file
// stored next to it.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is returned by Acquire when a live process holds the file.
var ErrAlreadyRunning = errors.New("server already running")

// PIDFile is the server lock for one database.
type PIDFile struct {
	Path string
}

// ForDatabase returns the PID file guarding dbPath.
func ForDatabase(dbPath string) *PIDFile {
	return &PIDFile{Path: dbPath + ".serve.pid"}
}

// Acquire claims the file for the current process. A file left behind by a
// dead process is replaced.
func (p *PIDFile) Acquire() error {
	if pid, running := p.IsRunning(); running {
		if pid == os.Getpid() {
			return nil
		}
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, p.Path)
	}
	_ = os.Remove(p.Path)

	f, err := os.OpenFile(p.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w (%s was created concurrently)", ErrAlreadyRunning, p.Path)
		}
		return fmt.Errorf("create PID file: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(p.Path)
		return fmt.Errorf("write PID file: %w", werr)
	}
	return nil
}

// Release removes the file if the current process owns it.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return fmt.Errorf("PID file %s belongs to pid %d", p.Path, pid)
	}
	return os.Remove(p.Path)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}
