package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process with the same executable name is alive.
var ErrAlreadyRunning = errors.New("another instance is already running")

// lister returns the process table. Replaced in tests.
type lister func() ([]ps.Process, error)

// EnsureSingle fails with ErrAlreadyRunning if another process runs the current executable.
func EnsureSingle() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return ensureSingle(ps.Processes, filepath.Base(executable), os.Getpid())
}

func ensureSingle(processes lister, executableName string, selfPID int) error {
	processList, err := processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == selfPID {
			continue
		}

		if process.Executable() != executableName {
			continue
		}

		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, process.Pid())
	}

	return nil
}
