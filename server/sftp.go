package server

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/pkg/sftp"
)

func (s *Server) sftpSubsystem() ssh.SubsystemHandler {
	return func(sess ssh.Session) {
		s.logger.Info("sftp", "root", s.cfg.Root, "user", sess.User())
		fs := &sftpHandler{root: s.cfg.Root}
		srv := sftp.NewRequestServer(sess, sftp.Handlers{
			FileGet:  fs,
			FilePut:  fs,
			FileCmd:  fs,
			FileList: fs,
		})
		if err := srv.Serve(); err == io.EOF {
			if err := srv.Close(); err != nil {
				wish.Fatalln(sess, "sftp:", err)
			}
		} else if err != nil {
			wish.Fatalln(sess, "sftp:", err)
		}
	}
}

// sftpHandler serves requests relative to root.
type sftpHandler struct {
	root string
}

var (
	_ sftp.FileLister = &sftpHandler{}
	_ sftp.FileReader = &sftpHandler{}
	_ sftp.FileWriter = &sftpHandler{}
	_ sftp.FileCmder  = &sftpHandler{}
)

// listerAt serves a directory listing from memory.
type listerAt []fs.FileInfo

func (l listerAt) ListAt(ls []fs.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(l)) {
		return 0, io.EOF
	}
	n := copy(ls, l[offset:])
	if n < len(ls) {
		return n, io.EOF
	}
	return n, nil
}

// path maps a request path into root. Request paths are already cleaned and
// absolute, so joining cannot climb out of root.
func (s *sftpHandler) path(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

// openFlags converts the request's sftp pflags to os.OpenFile flags.
func openFlags(r *sftp.Request) int {
	var flags int
	pflags := r.Pflags()
	if pflags.Append {
		flags |= os.O_APPEND
	}
	if pflags.Creat {
		flags |= os.O_CREATE
	}
	if pflags.Excl {
		flags |= os.O_EXCL
	}
	if pflags.Trunc {
		flags |= os.O_TRUNC
	}

	if pflags.Read && pflags.Write {
		flags |= os.O_RDWR
	} else if pflags.Read {
		flags |= os.O_RDONLY
	} else if pflags.Write {
		flags |= os.O_WRONLY
	}
	return flags
}

// Fileread implements sftp.FileReader.
func (s *sftpHandler) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	f, err := os.OpenFile(s.path(r.Filepath), openFlags(r), 0o600)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Filewrite implements sftp.FileWriter.
func (s *sftpHandler) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	flags := openFlags(r)
	if flags&(os.O_WRONLY|os.O_RDWR) == 0 {
		flags |= os.O_WRONLY
	}
	f, err := os.OpenFile(s.path(r.Filepath), flags, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Filecmd implements sftp.FileCmder.
func (s *sftpHandler) Filecmd(r *sftp.Request) error {
	switch r.Method {
	case "Setstat":
		if r.AttrFlags().Permissions {
			return os.Chmod(s.path(r.Filepath), r.Attributes().FileMode().Perm())
		}
		return nil
	case "Remove":
		return os.Remove(s.path(r.Filepath))
	case "Mkdir":
		return os.Mkdir(s.path(r.Filepath), 0o755)
	case "Rename":
		return os.Rename(s.path(r.Filepath), s.path(r.Target))
	default:
		return sftp.ErrSSHFxOpUnsupported
	}
}

// Filelist implements sftp.FileLister.
func (s *sftpHandler) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	switch r.Method {
	case "List":
		entries, err := os.ReadDir(s.path(r.Filepath))
		if err != nil {
			return nil, fmt.Errorf("sftp: %w", err)
		}
		infos := make([]fs.FileInfo, len(entries))
		for i, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				return nil, err
			}
			infos[i] = info
		}
		return listerAt(infos), nil
	case "Stat":
		fi, err := os.Stat(s.path(r.Filepath))
		if err != nil {
			return nil, err
		}
		return listerAt{fi}, nil
	default:
		return nil, sftp.ErrSSHFxOpUnsupported
	}
}
