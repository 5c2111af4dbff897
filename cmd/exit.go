package cmd

import (
	"errors"

	"github.com/byte3-it/iscp/auth"
	"github.com/byte3-it/iscp/filemover"
	"github.com/byte3-it/iscp/transfer"
)

const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitLocalNotFound  = 2
	ExitConnectFailed  = 3
	ExitAuthFailed     = 4
	ExitTransferFailed = 5
)

var (
	ErrLocalFileNotFound = errors.New("local file does not exist")
	ErrNotRegularFile    = errors.New("local path is not a regular file")
)

// ExitCode maps an error returned by the root command to a process status.
func ExitCode(err error) int {
	var transferErr *transfer.Error
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrLocalFileNotFound), errors.Is(err, ErrNotRegularFile):
		return ExitLocalNotFound
	case errors.Is(err, auth.ErrAllMethodsFailed):
		return ExitAuthFailed
	case errors.As(err, &transferErr):
		return ExitTransferFailed
	case errors.Is(err, filemover.ErrConnectFailed):
		return ExitConnectFailed
	default:
		return ExitFailure
	}
}
