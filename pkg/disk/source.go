package disk

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Source provides the read-only base image. Load is called once per mount.
type Source interface {
	Load() ([]byte, error)
}

// BytesSource serves an image that is already in memory, such as one embedded
// into the binary. The slice is never modified.
type BytesSource []byte

func (b BytesSource) Load() ([]byte, error) {
	return b, nil
}

// FileSource reads the image from an afero filesystem.
type FileSource struct {
	fs   afero.Fs
	name string
}

func NewFileSource(fs afero.Fs, name string) *FileSource {
	return &FileSource{
		fs:   afero.NewReadOnlyFs(fs),
		name: name,
	}
}

func (f *FileSource) Load() ([]byte, error) {
	b, err := afero.ReadFile(f.fs, f.name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read disk image %v", f.name)
	}

	return b, nil
}
