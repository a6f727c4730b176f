package sshutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/ssh"
)

// CommandRunner executes a shell command.
type CommandRunner interface {
	Run(ctx context.Context, command string) error
}

// SSHCommandRunner implements CommandRunner over SSH exec.
type SSHCommandRunner struct {
	client *Client
	logger *slog.Logger
}

// CommandRunnerOption is a functional option for configuring the SSHCommandRunner.
type CommandRunnerOption func(*SSHCommandRunner)

// WithCommandLogger sets a custom logger for command execution.
func WithCommandLogger(logger *slog.Logger) CommandRunnerOption {
	return func(cr *SSHCommandRunner) {
		if logger != nil {
			cr.logger = logger
		}
	}
}

// NewSSHCommandRunner creates a CommandRunner that executes on the host client points at.
func NewSSHCommandRunner(client *Client, opts ...CommandRunnerOption) *SSHCommandRunner {
	cr := &SSHCommandRunner{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cr)
	}
	return cr
}

// Run executes command in a new session. A non-zero exit status is an error
// carrying the command's stderr.
func (cr *SSHCommandRunner) Run(ctx context.Context, command string) error {
	conn, err := cr.client.Connection(ctx)
	if err != nil {
		return err
	}

	session, err := conn.NewSession()
	if err != nil {
		cr.client.Reset()
		return fmt.Errorf("%w: creating SSH session: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = session.Close() }()

	var stderr bytes.Buffer
	session.Stderr = &stderr

	cr.logger.Debug("executing remote command", slog.String("command", command))

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("command %q exited with status %d: %s",
				command, exitErr.ExitStatus(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("running command %q: %w", command, err)
	}
}

var _ CommandRunner = (*SSHCommandRunner)(nil)
