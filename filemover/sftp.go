package filemover

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type sftpStream struct {
	client *sftp.Client
	file   *sftp.File
	logger *log.Logger

	remotePath string
	size       uint64
	written    uint64
}

func openSFTP(conn *ssh.Client, remotePath string, size uint64, mode os.FileMode, logger *log.Logger) (io.WriteCloser, error) {
	// open an sftp session over the authenticated ssh connection.
	client, err := sftp.NewClient(conn)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}

	f, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open %s: %w", remotePath, err)
	}
	if err := client.Chmod(remotePath, mode); err != nil {
		logger.Warn("could not set remote mode", "path", remotePath, "mode", mode, "err", err)
	}

	return &sftpStream{client: client, file: f, logger: logger, remotePath: remotePath, size: size}, nil
}

func (s *sftpStream) Write(p []byte) (int, error) {
	if remaining := s.size - s.written; uint64(len(p)) > remaining {
		return 0, fmt.Errorf("%w: %d bytes declared", errOverflow, s.size)
	}
	n, err := s.file.Write(p)
	s.written += uint64(n)
	return n, err
}

// Close flushes the handle and checks the size the server ended up with.
func (s *sftpStream) Close() error {
	defer s.client.Close()

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.remotePath, err)
	}
	fi, err := s.client.Stat(s.remotePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.remotePath, err)
	}
	if uint64(fi.Size()) != s.size {
		return fmt.Errorf("remote %s is %d bytes, expected %d", s.remotePath, fi.Size(), s.size)
	}
	s.logger.Debug("sftp upload verified", "path", s.remotePath, "size", fi.Size())
	return nil
}

// Abort closes the handle and removes the partial file.
func (s *sftpStream) Abort() error {
	defer s.client.Close()

	s.file.Close()
	return s.client.Remove(s.remotePath)
}
