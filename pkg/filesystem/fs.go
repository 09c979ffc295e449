package filesystem

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/pkg/errors"

	"github.com/JakWai01/sile-fakefs/internal/logging"
	"github.com/JakWai01/sile-fakefs/pkg/fakefs"
)

type fileSystem struct {
	store *fakefs.Store
	fuseutil.NotImplementedFileSystem

	mu syncutil.InvariantMutex

	files      map[fuseops.HandleID]*fakefs.File
	dirs       map[fuseops.HandleID]*dirHandle
	nextHandle fuseops.HandleID

	uid uint32
	gid uint32

	clock timeutil.Clock
	log   logging.StructuredLogger

	onError func(err interface{})
}

// NewFileSystem serves a mounted store over FUSE. onError is called when the
// store reports an internal inconsistency; the session is unusable afterwards.
func NewFileSystem(uid uint32, gid uint32, store *fakefs.Store, logger logging.StructuredLogger, clock timeutil.Clock, onError func(err interface{})) fuse.Server {
	return fuseutil.NewFileSystemServer(newFileSystem(uid, gid, store, logger, clock, onError))
}

func newFileSystem(uid uint32, gid uint32, store *fakefs.Store, logger logging.StructuredLogger, clock timeutil.Clock, onError func(err interface{})) *fileSystem {
	if clock == nil {
		clock = timeutil.RealClock()
	}
	if onError == nil {
		onError = func(err interface{}) {}
	}

	fs := &fileSystem{
		store: store,
		files: make(map[fuseops.HandleID]*fakefs.File),
		dirs:  make(map[fuseops.HandleID]*dirHandle),
		uid:   uid,
		gid:   gid,

		clock: clock,
		log:   logger,

		onError: onError,
	}

	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	return fs
}

func (fs *fileSystem) checkInvariants() {
	if err := fs.store.Check(); err != nil {
		fs.onError(err)
	}
}

// errno translates store errors into the values the kernel expects.
func (fs *fileSystem) errno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fakefs.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, fakefs.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, fakefs.ErrNotAFile):
		return syscall.EISDIR
	case errors.Is(err, fakefs.ErrAlreadyExists):
		return fuse.EEXIST
	case errors.Is(err, fakefs.ErrAccessDenied):
		return syscall.EACCES
	case errors.Is(err, fakefs.ErrOutOfNodes):
		return syscall.ENOSPC
	case errors.Is(err, fakefs.ErrInvalidName), errors.Is(err, fakefs.ErrOutOfRange):
		return fuse.EINVAL
	case errors.Is(err, fakefs.ErrStaleHandle):
		return syscall.ESTALE
	case errors.Is(err, fakefs.ErrClosed):
		return syscall.EBADF
	case errors.Is(err, fakefs.ErrInternalInconsistency):
		fs.onError(err)
	}

	fs.log.Error("FUSE.Error", map[string]interface{}{
		"error": err.Error(),
	})

	return fuse.EIO
}

func (fs *fileSystem) pathOf(inode fuseops.InodeID) (string, error) {
	return fs.store.PathOf(fs.nodeID(inode))
}

func (fs *fileSystem) childPath(parent fuseops.InodeID, name string) (string, error) {
	parentPath, err := fs.pathOf(parent)
	if err != nil {
		return "", err
	}

	return concatPath(parentPath, name), nil
}

func (fs *fileSystem) newHandle() fuseops.HandleID {
	fs.nextHandle++

	return fs.nextHandle
}

func (fs *fileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	fs.log.Debug("FUSE.StatFS", nil)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	vol := fs.store.Volume()
	used, capacity := fs.store.Usage()

	blocks := uint64(vol.FatEntries)
	taken := uint64(fs.store.ClustersAllocated()) + uint64(fakefs.FirstCluster)
	free := uint64(0)
	if taken < blocks {
		free = blocks - taken
	}

	op.BlockSize = uint32(vol.SectorsPerCluster * fakefs.SectorSize)
	op.IoSize = op.BlockSize
	op.Blocks = blocks
	op.BlocksFree = free
	op.BlocksAvailable = free
	op.Inodes = uint64(capacity)
	op.InodesFree = uint64(capacity - used)

	return nil
}

func (fs *fileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.log.Debug("FUSE.LookUpInode", map[string]interface{}{
		"parent": op.Parent,
		"name":   op.Name,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	info, err := fs.store.Lookup(fs.nodeID(op.Parent), op.Name)
	if err != nil {
		return fs.errno(err)
	}

	op.Entry = fs.entry(info)

	return nil
}

func (fs *fileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.log.Debug("FUSE.GetInodeAttributes", map[string]interface{}{
		"inode": op.Inode,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	info, err := fs.store.StatNode(fs.nodeID(op.Inode))
	if err != nil {
		return fs.errno(err)
	}

	op.Attributes = fs.attributes(info)
	op.AttributesExpiration = fs.clock.Now().Add(attributesTTL)

	return nil
}

// SetInodeAttributes only honours size changes. FAT keeps neither permission
// bits nor access times, so mode and time updates are accepted and dropped.
func (fs *fileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	fs.log.Debug("FUSE.SetInodeAttributes", map[string]interface{}{
		"inode":  op.Inode,
		"handle": op.Handle,
		"size":   op.Size,
		"mode":   op.Mode,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if op.Size != nil {
		if *op.Size > uint64(fakefs.MaxFileSize) {
			return syscall.EFBIG
		}
		if err := fs.resize(op.Inode, int64(*op.Size)); err != nil {
			return fs.errno(err)
		}
	}

	info, err := fs.store.StatNode(fs.nodeID(op.Inode))
	if err != nil {
		return fs.errno(err)
	}

	op.Attributes = fs.attributes(info)
	op.AttributesExpiration = fs.clock.Now().Add(attributesTTL)

	return nil
}

func (fs *fileSystem) resize(inode fuseops.InodeID, size int64) error {
	p, err := fs.pathOf(inode)
	if err != nil {
		return err
	}

	f, err := fs.store.Open(p, fakefs.ModeRead|fakefs.ModeWrite)
	if err != nil {
		return err
	}
	defer f.Close()

	switch cur := f.Size(); {
	case size < cur:
		if _, err := f.Seek(size); err != nil {
			return err
		}

		return f.Truncate()
	case size > cur:
		if _, err := f.Seek(size - 1); err != nil {
			return err
		}

		_, err := f.Write([]byte{0})

		return err
	}

	return nil
}

func (fs *fileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	fs.log.Debug("FUSE.MkDir", map[string]interface{}{
		"parent": op.Parent,
		"name":   op.Name,
		"mode":   op.Mode,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	newPath, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return fs.errno(err)
	}

	if err := fs.store.Mkdir(newPath); err != nil {
		return fs.errno(err)
	}

	info, err := fs.store.Stat(newPath)
	if err != nil {
		return fs.errno(err)
	}

	op.Entry = fs.entry(info)

	return nil
}

// MkNode only creates regular files.
func (fs *fileSystem) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	fs.log.Debug("FUSE.MkNode", map[string]interface{}{
		"parent": op.Parent,
		"name":   op.Name,
		"mode":   op.Mode,
	})

	if op.Mode&os.ModeType != 0 {
		return syscall.EPERM
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	newPath, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return fs.errno(err)
	}

	f, err := fs.store.Open(newPath, fakefs.ModeWrite|fakefs.ModeCreateNew)
	if err != nil {
		return fs.errno(err)
	}
	f.Close()

	info, err := fs.store.Stat(newPath)
	if err != nil {
		return fs.errno(err)
	}

	op.Entry = fs.entry(info)

	return nil
}

func (fs *fileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	fs.log.Debug("FUSE.CreateFile", map[string]interface{}{
		"parent": op.Parent,
		"name":   op.Name,
		"mode":   op.Mode,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	newPath, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return fs.errno(err)
	}

	f, err := fs.store.Open(newPath, fakefs.ModeRead|fakefs.ModeWrite|fakefs.ModeCreateNew)
	if err != nil {
		return fs.errno(err)
	}

	info, err := fs.store.Stat(newPath)
	if err != nil {
		f.Close()
		return fs.errno(err)
	}

	op.Handle = fs.newHandle()
	fs.files[op.Handle] = f
	op.Entry = fs.entry(info)

	return nil
}

func (fs *fileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fs.log.Debug("FUSE.OpenFile", map[string]interface{}{
		"inode": op.Inode,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathOf(op.Inode)
	if err != nil {
		return fs.errno(err)
	}

	f, err := fs.store.Open(p, fakefs.ModeRead|fakefs.ModeWrite)
	if err != nil {
		return fs.errno(err)
	}

	op.Handle = fs.newHandle()
	fs.files[op.Handle] = f

	return nil
}

func (fs *fileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.log.Debug("FUSE.ReadFile", map[string]interface{}{
		"inode":  op.Inode,
		"handle": op.Handle,
		"offset": op.Offset,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.files[op.Handle]
	if !ok {
		return syscall.EBADF
	}

	if _, err := f.Seek(op.Offset); err != nil {
		return fs.errno(err)
	}

	n, err := f.Read(op.Dst)
	if err != nil {
		return fs.errno(err)
	}
	op.BytesRead = n

	return nil
}

func (fs *fileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	fs.log.Debug("FUSE.WriteFile", map[string]interface{}{
		"inode":  op.Inode,
		"handle": op.Handle,
		"offset": op.Offset,
		"length": len(op.Data),
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.files[op.Handle]
	if !ok {
		return syscall.EBADF
	}

	if _, err := f.Seek(op.Offset); err != nil {
		return fs.errno(err)
	}

	if _, err := f.Write(op.Data); err != nil {
		return fs.errno(err)
	}

	return nil
}

func (fs *fileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	fs.log.Debug("FUSE.FlushFile", map[string]interface{}{
		"inode":  op.Inode,
		"handle": op.Handle,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.files[op.Handle]; ok {
		return fs.errno(f.Sync())
	}

	return nil
}

func (fs *fileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	fs.log.Debug("FUSE.SyncFile", map[string]interface{}{
		"inode":  op.Inode,
		"handle": op.Handle,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.files[op.Handle]; ok {
		return fs.errno(f.Sync())
	}

	return nil
}

func (fs *fileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.log.Debug("FUSE.ReleaseFileHandle", map[string]interface{}{
		"handle": op.Handle,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.files[op.Handle]; ok {
		f.Close()
		delete(fs.files, op.Handle)
	}

	return nil
}

func (fs *fileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fs.log.Debug("FUSE.OpenDir", map[string]interface{}{
		"inode": op.Inode,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathOf(op.Inode)
	if err != nil {
		return fs.errno(err)
	}

	dir, err := fs.store.OpenDir(p)
	if err != nil {
		return fs.errno(err)
	}
	defer dir.Close()

	children, err := dir.ReadAll()
	if err != nil {
		return fs.errno(err)
	}

	h := &dirHandle{}
	for i, child := range children {
		h.entries = append(h.entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fs.inodeID(child.ID()),
			Name:   child.Name(),
			Type:   direntType(child),
		})
	}

	op.Handle = fs.newHandle()
	fs.dirs[op.Handle] = h

	return nil
}

func (fs *fileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.log.Debug("FUSE.ReadDir", map[string]interface{}{
		"inode":  op.Inode,
		"handle": op.Handle,
		"offset": op.Offset,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	h, ok := fs.dirs[op.Handle]
	if !ok {
		return syscall.EBADF
	}

	for i := int(op.Offset); i < len(h.entries); i++ {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], h.entries[i])
		if n == 0 {
			break
		}

		op.BytesRead += n
	}

	return nil
}

func (fs *fileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.log.Debug("FUSE.ReleaseDirHandle", map[string]interface{}{
		"handle": op.Handle,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.dirs, op.Handle)

	return nil
}

func (fs *fileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	fs.log.Debug("FUSE.Unlink", map[string]interface{}{
		"parent": op.Parent,
		"name":   op.Name,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return fs.errno(err)
	}

	info, err := fs.store.Stat(p)
	if err != nil {
		return fs.errno(err)
	}
	if info.IsDir() {
		return syscall.EISDIR
	}

	return fs.errno(fs.store.Unlink(p))
}

func (fs *fileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	fs.log.Debug("FUSE.RmDir", map[string]interface{}{
		"parent": op.Parent,
		"name":   op.Name,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return fs.errno(err)
	}

	if err := fs.checkRemovableDir(p); err != nil {
		return err
	}

	return fs.errno(fs.store.Unlink(p))
}

// checkRemovableDir returns the errno rmdir(2) reports for p, if any.
func (fs *fileSystem) checkRemovableDir(p string) error {
	dir, err := fs.store.OpenDir(p)
	if err != nil {
		return fs.errno(err)
	}
	defer dir.Close()

	child, err := dir.ReadDir()
	if err != nil {
		return fs.errno(err)
	}
	if child.Name() != "" {
		return fuse.ENOTEMPTY
	}

	return nil
}

// Rename replaces an existing target the way rename(2) does: a file may
// replace a file and a directory may replace an empty directory.
func (fs *fileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fs.log.Debug("FUSE.Rename", map[string]interface{}{
		"oldParent": op.OldParent,
		"oldName":   op.OldName,
		"newParent": op.NewParent,
		"newName":   op.NewName,
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldPath, err := fs.childPath(op.OldParent, op.OldName)
	if err != nil {
		return fs.errno(err)
	}

	newPath, err := fs.childPath(op.NewParent, op.NewName)
	if err != nil {
		return fs.errno(err)
	}

	src, err := fs.store.Stat(oldPath)
	if err != nil {
		return fs.errno(err)
	}

	if dst, err := fs.store.Stat(newPath); err == nil && dst.ID() != src.ID() {
		switch {
		case dst.IsDir() && !src.IsDir():
			return syscall.EISDIR
		case !dst.IsDir() && src.IsDir():
			return syscall.ENOTDIR
		case dst.IsDir():
			if err := fs.checkRemovableDir(newPath); err != nil {
				return err
			}
		}

		if err := fs.store.Unlink(newPath); err != nil {
			return fs.errno(err)
		}
	}

	return fs.errno(fs.store.Rename(oldPath, newPath))
}
