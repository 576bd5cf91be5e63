package port

import (
	"context"
	"fmt"
)

// CodecEngine drives an external decoder through command-line style invocations.
// Files are addressed by name inside the engine's own working area.
type CodecEngine interface {
	Exec(ctx context.Context, args ...string) error
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	// Subscribe registers a listener for the log of the next command to start. The
	// channel closes when that command exits; the returned func deregisters it.
	Subscribe() (<-chan string, func())
}

// ExitError reports a command that ran but exited non-zero. Tail holds the last
// lines the engine logged.
type ExitError struct {
	Code int
	Tail string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("engine exited with code %d: %s", e.Code, e.Tail)
}
