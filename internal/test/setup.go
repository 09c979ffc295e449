package internal

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/pkg/errors"
)

// MountTestsEnv enables tests that mount through the kernel.
const MountTestsEnv = "SILE_FAKEFS_MOUNT_TESTS"

func MountTestsEnabled() bool {
	return os.Getenv(MountTestsEnv) == "1"
}

type TestSetup struct {
	Server      fuse.Server
	MountConfig fuse.MountConfig
	Ctx         context.Context
	Dir         string
	mfs         *fuse.MountedFileSystem
}

func (t *TestSetup) Setup(server fuse.Server) error {
	t.MountConfig.DisableWritebackCaching = true
	t.Server = server

	cfg := t.MountConfig

	return t.initialize(context.Background(), &cfg)
}

func (t *TestSetup) initialize(ctx context.Context, config *fuse.MountConfig) error {
	t.Ctx = ctx

	if config.OpContext == nil {
		config.OpContext = ctx
	}

	var err error
	t.Dir, err = ioutil.TempDir("", "fuse_test")
	if err != nil {
		return errors.Wrap(err, "could not create mountpoint")
	}

	t.mfs, err = fuse.Mount(t.Dir, t.Server, config)
	if err != nil {
		return errors.Wrap(err, "could not mount")
	}

	return nil
}

// Teardown unmounts the filesystem and removes the mountpoint.
func (t *TestSetup) Teardown() error {
	if t.mfs == nil {
		return nil
	}

	if err := fuse.Unmount(t.Dir); err != nil {
		return errors.Wrap(err, "could not unmount")
	}
	if err := t.mfs.Join(t.Ctx); err != nil {
		return errors.Wrap(err, "could not join")
	}

	return os.Remove(t.Dir)
}
