package dnsmasq

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/sshutil"
)

// localFileSystem implements sshutil.FileSystem on the local disk.
type localFileSystem struct{}

func (localFileSystem) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile renames a temporary file into place so dnsmasq never reads a
// half-written file.
func (localFileSystem) WriteFile(_ context.Context, path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (localFileSystem) Stat(_ context.Context, path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// localCommandRunner implements sshutil.CommandRunner with sh -c.
type localCommandRunner struct {
	logger *slog.Logger
}

func (r *localCommandRunner) Run(ctx context.Context, command string) error {
	r.logger.Debug("executing command", slog.String("command", command))
	output, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("command failed: %w, output: %s", err, string(output))
	}
	return nil
}

var (
	_ sshutil.FileSystem    = localFileSystem{}
	_ sshutil.CommandRunner = (*localCommandRunner)(nil)
)
