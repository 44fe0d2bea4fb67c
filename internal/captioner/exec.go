package captioner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/timmy/llavacap/internal/logger"
)

// commandRunner runs an inference binary and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs commands with os/exec. Stderr is kept for error messages and,
// when forward is set, streamed into the logger line by line.
func execRunner(log *logger.Logger, forward bool) commandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		var sink io.Writer = &stderr
		if forward {
			w := log.WithField("command", name).Writer(logrus.DebugLevel)
			defer w.Close()
			sink = io.MultiWriter(&stderr, w)
		}
		cmd.Stderr = sink

		if err := cmd.Run(); err != nil {
			return nil, &commandError{name: name, err: err, stderr: tail(stderr.String(), 512)}
		}
		return stdout.Bytes(), nil
	}
}

type commandError struct {
	name   string
	err    error
	stderr string
}

func (e *commandError) Error() string {
	if e.stderr == "" {
		return fmt.Sprintf("%s: %v", e.name, e.err)
	}
	return fmt.Sprintf("%s: %v: %s", e.name, e.err, e.stderr)
}

func (e *commandError) Unwrap() error {
	return e.err
}

// classifyCommandError maps a runner failure to an adapter error kind.
func classifyCommandError(backend string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return newError(backend, KindConnection, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(backend, KindConnection, err)
	}
	return newError(backend, KindBackend, err)
}

// tail keeps the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
