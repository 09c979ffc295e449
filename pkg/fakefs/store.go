// Package fakefs is an in-memory FAT-style filesystem. A Store holds one
// session: a bounded node pool, the current directory and a synthetic cluster
// counter. It is not safe for concurrent use.
package fakefs

import (
	"strings"

	"github.com/jacobsa/timeutil"
	"github.com/pkg/errors"

	"github.com/JakWai01/sile-fakefs/internal/logging"
)

const (
	DefaultCapacity          = 64
	DefaultSectorsPerCluster = 4
	DefaultDataStart         = 2048
	DefaultVolumeID          = 0x1234
	DefaultFatEntries        = 0x10000
)

type Options struct {
	// Capacity is the number of node slots, the root included.
	Capacity          int
	SectorsPerCluster int
	DataStart         uint32
	VolumeID          uint16
	FatEntries        uint32

	// Fixtures are created on every mount, in order.
	Fixtures []Fixture

	Clock  timeutil.Clock
	Logger logging.StructuredLogger
}

// Volume is the geometry reported to cluster-level consumers.
type Volume struct {
	Type              string
	ID                uint16
	SectorsPerCluster int
	FatEntries        uint32
	DataStart         uint32
}

type Store struct {
	opts  Options
	clock timeutil.Clock
	log   logging.StructuredLogger

	pool     *pool
	clusters *clusterAllocator
	root     NodeID
	cwd      NodeID
	mounted  bool

	// epoch increments on every mount; handles from older epochs are stale.
	epoch uint64
	seq   uint64
}

func New(opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.SectorsPerCluster <= 0 {
		opts.SectorsPerCluster = DefaultSectorsPerCluster
	}
	if opts.DataStart == 0 {
		opts.DataStart = DefaultDataStart
	}
	if opts.VolumeID == 0 {
		opts.VolumeID = DefaultVolumeID
	}
	if opts.FatEntries == 0 {
		opts.FatEntries = DefaultFatEntries
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoopLogger()
	}

	return &Store{
		opts:  opts,
		clock: opts.Clock,
		log:   opts.Logger,
	}
}

// Mount rebuilds the tree from scratch and populates the fixtures.
func (s *Store) Mount() error {
	s.log.Debug("FakeFS.Mount", map[string]interface{}{
		"capacity": s.opts.Capacity,
		"fixtures": len(s.opts.Fixtures),
	})

	s.epoch++
	s.pool = newPool(s.opts.Capacity)
	s.clusters = newClusterAllocator(s.opts.SectorsPerCluster)
	s.mounted = false

	root, n, err := s.pool.alloc()
	if err != nil {
		return errors.Wrap(err, "could not allocate root")
	}
	n.kind = KindDirectory
	n.modTime = s.clock.Now()
	s.root = root
	s.cwd = root
	s.mounted = true

	if err := s.populate(s.opts.Fixtures); err != nil {
		s.mounted = false
		return err
	}

	return nil
}

// Unmount makes every operation fail with ErrNotReady until the next Mount.
func (s *Store) Unmount() {
	s.log.Debug("FakeFS.Unmount", nil)

	s.mounted = false
}

func (s *Store) Mounted() bool {
	return s.mounted
}

func (s *Store) Volume() Volume {
	return Volume{
		Type:              "FAT16",
		ID:                s.opts.VolumeID,
		SectorsPerCluster: s.opts.SectorsPerCluster,
		FatEntries:        s.opts.FatEntries,
		DataStart:         s.opts.DataStart,
	}
}

// ClusterToSector maps a cluster to the first sector of its data.
func (s *Store) ClusterToSector(clst uint32) uint32 {
	if clst < FirstCluster {
		return 0
	}

	return s.opts.DataStart + (clst-FirstCluster)*uint32(s.opts.SectorsPerCluster)
}

// Usage returns the number of live nodes and the pool capacity.
func (s *Store) Usage() (int, int) {
	if s.pool == nil {
		return 0, s.opts.Capacity
	}

	return s.pool.used(), s.opts.Capacity
}

func (s *Store) Root() NodeID {
	return s.root
}

func (s *Store) ready(op, p string) error {
	if !s.mounted {
		return pathError(op, p, ErrNotReady)
	}

	return nil
}

// inconsistent ends the session: the tree can no longer be trusted.
func (s *Store) inconsistent(op, p string) error {
	s.log.Error("FakeFS.InternalInconsistency", map[string]interface{}{
		"op":   op,
		"path": p,
	})

	s.mounted = false

	return pathError(op, p, ErrInternalInconsistency)
}

func (s *Store) fail(op, p string, err error) error {
	if errors.Is(err, ErrInternalInconsistency) {
		return s.inconsistent(op, p)
	}

	return pathError(op, p, err)
}

func (s *Store) newNode(parent NodeID, name string, kind Kind) (NodeID, *node, error) {
	if !validName(name) {
		return NodeID{}, nil, ErrInvalidName
	}

	id, n, err := s.pool.alloc()
	if err != nil {
		s.log.Warn("FakeFS.OutOfNodes", map[string]interface{}{
			"name":     name,
			"capacity": s.opts.Capacity,
		})

		return NodeID{}, nil, err
	}

	n.name = name
	n.kind = kind
	n.parent = parent
	n.modTime = s.clock.Now()

	p, ok := s.pool.get(parent)
	if !ok {
		s.pool.release(id)
		return NodeID{}, nil, ErrInternalInconsistency
	}
	s.attach(p, id, n)

	return id, n, nil
}

func (s *Store) newFile(parent NodeID, name string, size int64) (NodeID, *node, error) {
	id, n, err := s.newNode(parent, name, KindFile)
	if err != nil {
		return NodeID{}, nil, err
	}

	n.size = size
	n.clusters = s.clusters.assign(size)

	return id, n, nil
}

// Resolve returns the node p refers to.
func (s *Store) Resolve(p string) (NodeID, error) {
	if err := s.ready("resolve", p); err != nil {
		return NodeID{}, err
	}

	id, err := s.resolve(p)
	if err != nil {
		return NodeID{}, s.fail("resolve", p, err)
	}

	return id, nil
}

// PathOf rebuilds the absolute path of id by walking parent references.
func (s *Store) PathOf(id NodeID) (string, error) {
	if err := s.ready("path", ""); err != nil {
		return "", err
	}

	if id == s.root {
		return "/", nil
	}

	var names []string
	for id != s.root {
		n, ok := s.pool.get(id)
		if !ok {
			return "", pathError("path", "", ErrStaleHandle)
		}
		names = append(names, n.name)
		id = n.parent

		if len(names) > s.opts.Capacity {
			return "", s.inconsistent("path", "")
		}
	}

	var b strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(names[i])
	}

	return b.String(), nil
}

func (s *Store) Stat(p string) (FileInfo, error) {
	if err := s.ready("stat", p); err != nil {
		return FileInfo{}, err
	}

	id, err := s.resolve(p)
	if err != nil {
		return FileInfo{}, s.fail("stat", p, err)
	}

	return s.info(id), nil
}

func (s *Store) info(id NodeID) FileInfo {
	n, _ := s.pool.get(id)
	info := newFileInfo(id, n)
	if id == s.root {
		info.name = "/"
	}

	return info
}

// StatNode is Stat by node ID.
func (s *Store) StatNode(id NodeID) (FileInfo, error) {
	if err := s.ready("stat", ""); err != nil {
		return FileInfo{}, err
	}

	if _, ok := s.pool.get(id); !ok {
		return FileInfo{}, pathError("stat", "", ErrStaleHandle)
	}

	return s.info(id), nil
}

// Lookup finds the child called name in the directory parent.
func (s *Store) Lookup(parent NodeID, name string) (FileInfo, error) {
	if err := s.ready("lookup", name); err != nil {
		return FileInfo{}, err
	}

	n, ok := s.pool.get(parent)
	if !ok {
		return FileInfo{}, pathError("lookup", name, ErrStaleHandle)
	}
	if !n.isDir() {
		return FileInfo{}, pathError("lookup", name, ErrNotADirectory)
	}

	id, ok := s.findChild(n, name)
	if !ok {
		return FileInfo{}, pathError("lookup", name, ErrNotFound)
	}

	return s.info(id), nil
}

// ClustersAllocated is the number of clusters handed out since the mount.
// Relocated ranges are not given back, so this only grows.
func (s *Store) ClustersAllocated() uint32 {
	if s.clusters == nil {
		return 0
	}

	return s.clusters.next - FirstCluster
}

// Mkdir creates p and any missing ancestors.
func (s *Store) Mkdir(p string) error {
	s.log.Debug("FakeFS.Mkdir", map[string]interface{}{
		"path": p,
	})

	if err := s.ready("mkdir", p); err != nil {
		return err
	}

	if _, err := s.resolve(p); err == nil {
		return pathError("mkdir", p, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return s.fail("mkdir", p, err)
	}

	if _, _, err := s.ensureDir(p); err != nil {
		return s.fail("mkdir", p, err)
	}

	return nil
}

// Unlink removes a file or an empty directory.
func (s *Store) Unlink(p string) error {
	s.log.Debug("FakeFS.Unlink", map[string]interface{}{
		"path": p,
	})

	if err := s.ready("unlink", p); err != nil {
		return err
	}

	id, err := s.resolve(p)
	if err != nil {
		return s.fail("unlink", p, err)
	}
	if id == s.root {
		return pathError("unlink", p, ErrAccessDenied)
	}

	n, _ := s.pool.get(id)
	if n.isDir() && len(n.children) > 0 {
		return pathError("unlink", p, ErrAccessDenied)
	}

	parent, ok := s.pool.get(n.parent)
	if !ok || !detach(parent, id) {
		return s.inconsistent("unlink", p)
	}

	if s.cwd == id {
		s.cwd = n.parent
	}

	s.pool.release(id)

	return nil
}

// Rename moves oldPath to newPath, creating the parent directories of newPath.
// Directories created for a rename that then fails are removed again.
func (s *Store) Rename(oldPath, newPath string) error {
	s.log.Debug("FakeFS.Rename", map[string]interface{}{
		"oldPath": oldPath,
		"newPath": newPath,
	})

	if err := s.ready("rename", oldPath); err != nil {
		return err
	}

	id, err := s.resolve(oldPath)
	if err != nil {
		return s.fail("rename", oldPath, err)
	}
	if id == s.root {
		return pathError("rename", oldPath, ErrAccessDenied)
	}

	parentPath, name := splitParent(newPath)
	if !validName(name) {
		return pathError("rename", newPath, ErrInvalidName)
	}

	newParent, created, err := s.ensureDir(parentPath)
	if err != nil {
		return s.fail("rename", newPath, err)
	}

	if s.isAncestor(id, newParent) {
		s.rollback(created)
		return pathError("rename", newPath, ErrAccessDenied)
	}

	np, _ := s.pool.get(newParent)
	if existing, ok := s.findChild(np, name); ok && existing != id {
		s.rollback(created)
		return pathError("rename", newPath, ErrAlreadyExists)
	}

	n, _ := s.pool.get(id)
	if n.parent == newParent {
		n.name = name
		return nil
	}

	oldParent, ok := s.pool.get(n.parent)
	if !ok || !detach(oldParent, id) {
		return s.inconsistent("rename", oldPath)
	}

	n.name = name
	n.parent = newParent
	s.attach(np, id, n)

	return nil
}

// Getcwd returns the absolute path of the current directory.
func (s *Store) Getcwd() (string, error) {
	if err := s.ready("getcwd", ""); err != nil {
		return "", err
	}

	return s.PathOf(s.cwd)
}

func (s *Store) Chdir(p string) error {
	s.log.Debug("FakeFS.Chdir", map[string]interface{}{
		"path": p,
	})

	if err := s.ready("chdir", p); err != nil {
		return err
	}

	id, err := s.resolve(p)
	if err != nil {
		return s.fail("chdir", p, err)
	}

	n, _ := s.pool.get(id)
	if !n.isDir() {
		return pathError("chdir", p, ErrNotADirectory)
	}

	s.cwd = id

	return nil
}

// Check walks the tree and verifies parent links, sibling name uniqueness and
// that every live slot is reachable from the root.
func (s *Store) Check() error {
	if !s.mounted {
		return nil
	}

	seen := 0
	var walk func(id NodeID, depth int) error
	walk = func(id NodeID, depth int) error {
		n, ok := s.pool.get(id)
		if !ok {
			return errors.Wrapf(ErrInternalInconsistency, "dangling node %v", id)
		}
		if depth > s.opts.Capacity {
			return errors.Wrapf(ErrInternalInconsistency, "cycle at %q", n.name)
		}
		seen++

		if n.isDir() && n.data != nil {
			return errors.Wrapf(ErrInternalInconsistency, "directory %q owns data", n.name)
		}

		for i, c := range n.children {
			child, ok := s.pool.get(c)
			if !ok {
				return errors.Wrapf(ErrInternalInconsistency, "dangling child of %q", n.name)
			}
			if child.parent != id {
				return errors.Wrapf(ErrInternalInconsistency, "%q has wrong parent", child.name)
			}
			for _, other := range n.children[:i] {
				o, _ := s.pool.get(other)
				if o != nil && sameName(o.name, child.name) {
					return errors.Wrapf(ErrInternalInconsistency, "duplicate name %q", child.name)
				}
			}
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}

		return nil
	}

	if err := walk(s.root, 0); err != nil {
		return err
	}
	if seen != s.pool.used() {
		return errors.Wrapf(ErrInternalInconsistency, "%d reachable of %d live nodes", seen, s.pool.used())
	}

	return nil
}
