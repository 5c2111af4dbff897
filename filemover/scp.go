package filemover

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
)

var errOverflow = errors.New("write exceeds declared size")

// scpStream is a sink-mode scp session receiving a single file.
type scpStream struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	logger  *log.Logger

	remotePath string
	size       uint64
	written    uint64
}

func openSCP(client *ssh.Client, remotePath string, size uint64, mode os.FileMode, logger *log.Logger) (io.WriteCloser, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	s := &scpStream{session: session, logger: logger, remotePath: remotePath, size: size}
	if err := s.start(mode); err != nil {
		session.Close()
		return nil, err
	}
	return s, nil
}

func (s *scpStream) start(mode os.FileMode) error {
	var err error
	if s.stdin, err = s.session.StdinPipe(); err != nil {
		return err
	}
	if s.stdout, err = s.session.StdoutPipe(); err != nil {
		return err
	}

	dir, base := path.Split(s.remotePath)
	if base == "" {
		return fmt.Errorf("remote path %q has no file name", s.remotePath)
	}
	if dir == "" {
		dir = "."
	}

	cmd := "scp -t " + shellQuote(path.Clean(dir))
	s.logger.Debug("starting scp sink", "cmd", cmd)
	if err := s.session.Start(cmd); err != nil {
		return fmt.Errorf("start %q: %w", cmd, err)
	}
	if err := s.ack("scp start"); err != nil {
		return err
	}

	if _, err := io.WriteString(s.stdin, scpHeader(mode, s.size, base)); err != nil {
		return fmt.Errorf("send header: %w", err)
	}
	return s.ack("scp header")
}

// ack reads one status byte from the remote scp. Warnings and errors both
// fail the step.
func (s *scpStream) ack(step string) error {
	resp, err := scp.ParseResponse(s.stdout)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if !resp.IsOk() {
		return fmt.Errorf("%s: %s", step, strings.TrimSpace(resp.GetMessage()))
	}
	return nil
}

func (s *scpStream) Write(p []byte) (int, error) {
	if remaining := s.size - s.written; uint64(len(p)) > remaining {
		return 0, fmt.Errorf("%w: %d bytes declared", errOverflow, s.size)
	}
	n, err := s.stdin.Write(p)
	s.written += uint64(n)
	return n, err
}

// Close terminates the file body and waits for the remote scp to confirm it.
func (s *scpStream) Close() error {
	defer s.session.Close()

	if s.written != s.size {
		return fmt.Errorf("wrote %d of %d bytes", s.written, s.size)
	}
	if err := scp.Ack(s.stdin); err != nil {
		return fmt.Errorf("send end of file: %w", err)
	}
	if err := s.ack("scp close"); err != nil {
		return err
	}
	if err := s.stdin.Close(); err != nil {
		return err
	}
	if err := s.session.Wait(); err != nil {
		return fmt.Errorf("remote scp: %w", err)
	}
	return nil
}

// Abort drops the session without finishing the file.
func (s *scpStream) Abort() error {
	return s.session.Close()
}

func scpHeader(mode os.FileMode, size uint64, name string) string {
	return fmt.Sprintf("C%04o %d %s\n", mode.Perm(), size, name)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
