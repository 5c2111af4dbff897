// Package transfer streams one local file to a remote write target in
// fixed-size chunks while reporting progress.
package transfer

import (
	"fmt"
	"io"
	"os"
)

// DefaultMode is the permission mode every uploaded file is created with.
const DefaultMode os.FileMode = 0o644

// Plan describes a single upload. Size is captured when the file is opened
// and is authoritative for the whole transfer.
type Plan struct {
	File       io.Reader
	Size       uint64
	RemotePath string
	Mode       os.FileMode
}

// OpenPlan opens localPath read-only and records its current size.
func OpenPlan(localPath, remotePath string) (*Plan, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open local file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat local file: %w", err)
	}
	if !stat.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s is not a regular file", localPath)
	}

	return &Plan{
		File:       f,
		Size:       uint64(stat.Size()),
		RemotePath: remotePath,
		Mode:       DefaultMode,
	}, nil
}

// Close releases the local file if the plan owns one.
func (p *Plan) Close() error {
	if c, ok := p.File.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
