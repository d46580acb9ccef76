// Package opener hands paths to the operating system's default application.
package opener

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Opener opens a path with an external program.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// DefaultCommand returns the generic "open" command for goos.
func DefaultCommand(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "rundll32 url.dll,FileProtocolHandler"
	}
	return "xdg-open"
}

// Command runs a program with the path as its last argument. The program
// is started detached; Open does not wait for it to exit.
type Command struct {
	name   string
	args   []string
	logger *slog.Logger
}

// NewCommand parses command ("xdg-open", "open -a Finder", ...). An empty
// command selects DefaultCommand for the running OS.
func NewCommand(command string, logger *slog.Logger) (*Command, error) {
	if command == "" {
		command = DefaultCommand(runtime.GOOS)
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("opener: empty command")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Command{name: fields[0], args: fields[1:], logger: logger}, nil
}

// Open starts the program for path.
func (c *Command) Open(ctx context.Context, path string) error {
	args := append(append([]string(nil), c.args...), path)
	cmd := exec.Command(c.name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opener: start %s: %w", c.name, err)
	}
	c.logger.InfoContext(ctx, "opener: started",
		slog.String("program", c.name),
		slog.String("path", path),
		slog.Int("pid", cmd.Process.Pid))

	go func() {
		if err := cmd.Wait(); err != nil {
			c.logger.Warn("opener: program failed",
				slog.String("program", c.name),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}
