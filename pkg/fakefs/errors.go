package fakefs

import (
	"io/fs"

	"github.com/pkg/errors"
)

var (
	ErrNotFound              = errors.New("no such file or directory")
	ErrNotADirectory         = errors.New("not a directory")
	ErrNotAFile              = errors.New("is a directory")
	ErrAlreadyExists         = errors.New("file exists")
	ErrAccessDenied          = errors.New("access denied")
	ErrOutOfNodes            = errors.New("node pool exhausted")
	ErrOutOfRange            = errors.New("offset out of range")
	ErrInvalidName           = errors.New("invalid name")
	ErrNotReady              = errors.New("filesystem not mounted")
	ErrStaleHandle           = errors.New("stale handle")
	ErrClosed                = fs.ErrClosed
	ErrInternalInconsistency = errors.New("internal inconsistency")
)

func pathError(op, path string, err error) error {
	return &fs.PathError{Op: op, Path: path, Err: err}
}
