package fakefs

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Mode holds FatFs-compatible access flags.
type Mode uint8

const (
	ModeOpenExisting Mode = 0x00
	ModeRead         Mode = 0x01
	ModeWrite        Mode = 0x02
	ModeCreateNew    Mode = 0x04
	ModeCreateAlways Mode = 0x08
	ModeOpenAlways   Mode = 0x10
	ModeOpenAppend   Mode = 0x30

	creating = ModeCreateNew | ModeCreateAlways | ModeOpenAlways
)

// PrintfBufferSize is the staging buffer of Printf. Output longer than
// PrintfBufferSize-1 bytes is cut off.
const PrintfBufferSize = 512

// MaxFileSize is the largest size FAT can record for a file.
const MaxFileSize int64 = 0xFFFFFFFF

// File is an open handle. It refers to its node by ID and generation, so it
// stops working once the node is unlinked or the store is remounted.
type File struct {
	s     *Store
	id    NodeID
	epoch uint64
	path  string
	mode  Mode
	pos   int64
	size  int64

	closed bool
}

// Open opens or creates the file at p. Missing parent directories are created
// when mode requests creation.
func (s *Store) Open(p string, mode Mode) (*File, error) {
	s.log.Debug("FakeFS.Open", map[string]interface{}{
		"path": p,
		"mode": mode,
	})

	if err := s.ready("open", p); err != nil {
		return nil, err
	}

	id, err := s.resolve(p)
	switch {
	case err == nil:
		if mode&ModeCreateNew != 0 {
			return nil, pathError("open", p, ErrAlreadyExists)
		}

		n, _ := s.pool.get(id)
		if n.isDir() {
			return nil, pathError("open", p, ErrNotAFile)
		}

		if mode&ModeCreateAlways != 0 {
			n.data = nil
			n.size = 0
			n.modTime = s.clock.Now()
		}
	case errors.Is(err, ErrNotFound) && mode&creating != 0:
		parentPath, name := splitParent(p)
		if !validName(name) {
			return nil, pathError("open", p, ErrInvalidName)
		}

		parent, created, err := s.ensureDir(parentPath)
		if err != nil {
			return nil, s.fail("open", p, err)
		}

		id, _, err = s.newFile(parent, name, 0)
		if err != nil {
			s.rollback(created)
			return nil, s.fail("open", p, err)
		}
	default:
		return nil, s.fail("open", p, err)
	}

	n, _ := s.pool.get(id)
	f := &File{
		s:     s,
		id:    id,
		epoch: s.epoch,
		path:  p,
		mode:  mode,
		size:  n.size,
	}

	if mode&ModeOpenAppend == ModeOpenAppend {
		f.pos = n.size
	}

	return f, nil
}

func (f *File) node(op string) (*node, error) {
	if f.closed {
		return nil, pathError(op, f.path, ErrClosed)
	}
	if !f.s.mounted {
		return nil, pathError(op, f.path, ErrNotReady)
	}
	if f.epoch != f.s.epoch {
		return nil, pathError(op, f.path, ErrStaleHandle)
	}

	n, ok := f.s.pool.get(f.id)
	if !ok || n.kind != KindFile {
		return nil, pathError(op, f.path, ErrStaleHandle)
	}

	return n, nil
}

// Read copies up to len(p) bytes at the cursor. At or past the end of the
// file it returns 0 and no error; use Reader for io.EOF semantics.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.node("read")
	if err != nil {
		return 0, err
	}

	if f.pos >= n.size {
		return 0, nil
	}

	count := int64(len(p))
	if remain := n.size - f.pos; count > remain {
		count = remain
	}

	if n.data != nil {
		copy(p[:count], n.data[f.pos:f.pos+count])
	} else {
		for i := range p[:count] {
			p[i] = 0
		}
	}

	f.pos += count

	return int(count), nil
}

// Write stores p at the cursor, growing the file as needed. Bytes between the
// old end of the file and the cursor read back as zeros.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.node("write")
	if err != nil {
		return 0, err
	}
	if f.mode&ModeWrite == 0 {
		return 0, pathError("write", f.path, ErrAccessDenied)
	}
	if f.pos > MaxFileSize-int64(len(p)) {
		return 0, pathError("write", f.path, ErrOutOfRange)
	}

	end := f.pos + int64(len(p))
	length := n.size
	if end > length {
		length = end
	}

	switch {
	case n.data == nil:
		n.data = make([]byte, length)
	case int64(len(n.data)) < length:
		n.data = append(n.data, make([]byte, length-int64(len(n.data)))...)
	}

	copy(n.data[f.pos:end], p)
	f.pos = end

	if end > n.size {
		n.size = end

		if r := f.s.clusters.fit(n.clusters, end); r != n.clusters {
			f.s.log.Debug("FakeFS.RelocateClusters", map[string]interface{}{
				"path":     f.path,
				"oldStart": n.clusters.Start,
				"newStart": r.Start,
				"count":    r.Count,
			})

			n.clusters = r
		}
	}

	f.size = n.size
	n.modTime = f.s.clock.Now()

	return len(p), nil
}

// Seek moves the cursor. Read-only handles are clamped to the file size;
// writable handles may move past the end.
func (f *File) Seek(offset int64) (int64, error) {
	n, err := f.node("seek")
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		return f.pos, pathError("seek", f.path, ErrOutOfRange)
	}

	if f.mode&ModeWrite == 0 && offset > n.size {
		offset = n.size
	}
	f.pos = offset

	return f.pos, nil
}

// Truncate cuts the file at the cursor.
func (f *File) Truncate() error {
	n, err := f.node("truncate")
	if err != nil {
		return err
	}
	if f.mode&ModeWrite == 0 {
		return pathError("truncate", f.path, ErrAccessDenied)
	}

	if f.pos < n.size {
		n.size = f.pos
		if n.data != nil {
			n.data = append([]byte(nil), n.data[:f.pos]...)
		}
		n.modTime = f.s.clock.Now()
	}
	f.size = n.size

	return nil
}

// Sync is a no-op apart from validating the handle.
func (f *File) Sync() error {
	_, err := f.node("sync")

	return err
}

// Close releases the handle. The node and its content stay in the store.
func (f *File) Close() error {
	if f.closed {
		return pathError("close", f.path, ErrClosed)
	}
	f.closed = true

	return nil
}

// Printf formats into a PrintfBufferSize staging buffer and writes the result.
func (f *File) Printf(format string, args ...interface{}) (int, error) {
	if f.mode&ModeWrite == 0 {
		return 0, pathError("printf", f.path, ErrAccessDenied)
	}

	out := fmt.Sprintf(format, args...)
	if len(out) > PrintfBufferSize-1 {
		out = out[:PrintfBufferSize-1]
	}
	if out == "" {
		return 0, nil
	}

	return f.Write([]byte(out))
}

// Gets reads one line of at most limit-1 bytes, including the newline. It
// returns io.EOF when the cursor is at the end of the file.
func (f *File) Gets(limit int) (string, error) {
	n, err := f.node("gets")
	if err != nil {
		return "", err
	}
	if limit <= 0 {
		return "", pathError("gets", f.path, ErrOutOfRange)
	}
	if f.pos >= n.size {
		return "", io.EOF
	}

	line := make([]byte, 0, limit-1)
	for len(line) < limit-1 && f.pos < n.size {
		var c byte
		if n.data != nil {
			c = n.data[f.pos]
		}
		f.pos++
		line = append(line, c)

		if c == '\n' {
			break
		}
	}

	return string(line), nil
}

func (f *File) Tell() int64 { return f.pos }

// Size is the size cached in the handle at open and after its own writes.
func (f *File) Size() int64 { return f.size }

func (f *File) EOF() bool { return f.pos >= f.size }

func (f *File) Mode() Mode { return f.mode }

func (f *File) Name() string { return f.path }

// Clusters returns the current cluster range of the file.
func (f *File) Clusters() ClusterRange {
	n, err := f.node("clusters")
	if err != nil {
		return ClusterRange{}
	}

	return n.clusters
}

// StartCluster is the first cluster of the file's chain.
func (f *File) StartCluster() uint32 {
	return f.Clusters().Start
}

// NextCluster follows the synthetic chain. Invalid handles end the chain.
func (f *File) NextCluster(clst uint32) uint32 {
	n, err := f.node("cluster")
	if err != nil {
		return EndOfChain
	}

	return n.clusters.Next(clst)
}

// Reader adapts the handle to io.Reader, reporting io.EOF at the end.
func (f *File) Reader() io.Reader {
	return reader{f}
}

type reader struct {
	f *File
}

func (r reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := r.f.Read(p)
	if err == nil && n == 0 {
		return 0, io.EOF
	}

	return n, err
}
