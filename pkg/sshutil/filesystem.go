package sshutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/pkg/sftp"
)

// FileSystem is the file surface a file-backed provider needs.
type FileSystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error
	Stat(ctx context.Context, path string) (os.FileInfo, error)
}

// SFTPFileSystem implements FileSystem over SFTP.
type SFTPFileSystem struct {
	client *Client
	logger *slog.Logger

	mu         sync.Mutex
	sftpClient *sftp.Client
}

// SFTPOption is a functional option for configuring the SFTPFileSystem.
type SFTPOption func(*SFTPFileSystem)

// WithSFTPLogger sets a custom logger for SFTP operations.
func WithSFTPLogger(logger *slog.Logger) SFTPOption {
	return func(fs *SFTPFileSystem) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// NewSFTPFileSystem creates a FileSystem that opens an SFTP session over
// client on first use.
func NewSFTPFileSystem(client *Client, opts ...SFTPOption) *SFTPFileSystem {
	fs := &SFTPFileSystem{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Close closes the SFTP session. The SSH connection stays open.
func (fs *SFTPFileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient == nil {
		return nil
	}
	err := fs.sftpClient.Close()
	fs.sftpClient = nil
	return err
}

func (fs *SFTPFileSystem) session(ctx context.Context) (*sftp.Client, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient != nil {
		return fs.sftpClient, nil
	}

	conn, err := fs.client.Connection(ctx)
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		fs.client.Reset()
		return nil, fmt.Errorf("%w: starting SFTP session: %w", ErrConnectionFailed, err)
	}

	fs.logger.Debug("SFTP session established", slog.String("address", fs.client.Address()))
	fs.sftpClient = sftpClient
	return sftpClient, nil
}

// check drops the session and the SSH connection after a transport failure
// so the next call starts over.
func (fs *SFTPFileSystem) check(err error) error {
	if err == nil || !isConnectionLost(err) {
		return err
	}
	_ = fs.Close()
	fs.client.Reset()
	return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
}

// ReadFile reads the contents of a file from the remote system.
func (fs *SFTPFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	sc, err := fs.session(ctx)
	if err != nil {
		return nil, err
	}

	fs.logger.Debug("reading file", slog.String("path", path))

	file, err := sc.Open(path)
	if err != nil {
		return nil, fs.check(fmt.Errorf("opening file %s: %w", path, err))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fs.check(fmt.Errorf("reading file %s: %w", path, err))
	}
	return data, nil
}

// WriteFile replaces path with data by writing a sibling temporary file and
// renaming it into place.
func (fs *SFTPFileSystem) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	sc, err := fs.session(ctx)
	if err != nil {
		return err
	}

	fs.logger.Debug("writing file",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)

	tmp := path + ".tmp"
	file, err := sc.Create(tmp)
	if err != nil {
		return fs.check(fmt.Errorf("creating %s: %w", tmp, err))
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fs.check(fmt.Errorf("writing %s: %w", tmp, err))
	}
	if err := file.Close(); err != nil {
		return fs.check(fmt.Errorf("closing %s: %w", tmp, err))
	}

	if err := sc.Chmod(tmp, perm); err != nil {
		fs.logger.Warn("failed to set file permissions",
			slog.String("path", tmp),
			slog.String("error", err.Error()),
		)
	}

	// SFTP v3 rename refuses to overwrite an existing target.
	if err := sc.Remove(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return fs.check(fmt.Errorf("removing %s: %w", path, err))
	}
	if err := sc.Rename(tmp, path); err != nil {
		return fs.check(fmt.Errorf("renaming %s to %s: %w", tmp, path, err))
	}
	return nil
}

// Stat returns file info for a path on the remote system.
func (fs *SFTPFileSystem) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	sc, err := fs.session(ctx)
	if err != nil {
		return nil, err
	}

	info, err := sc.Stat(path)
	if err != nil {
		return nil, fs.check(fmt.Errorf("stat %s: %w", path, err))
	}
	return info, nil
}

func isConnectionLost(err error) bool {
	return errors.Is(err, sftp.ErrSSHFxConnectionLost) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}

var _ FileSystem = (*SFTPFileSystem)(nil)
