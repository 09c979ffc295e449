package fakefs

// Dir iterates over the children of one directory. Each OpenDir returns its
// own cursor, so traversals do not disturb each other.
type Dir struct {
	s     *Store
	id    NodeID
	epoch uint64
	path  string

	// last is the seq of the child returned most recently, 0 before the first.
	last uint64

	closed bool
}

// OpenDir opens the directory at p. An empty path is the current directory.
func (s *Store) OpenDir(p string) (*Dir, error) {
	s.log.Debug("FakeFS.OpenDir", map[string]interface{}{
		"path": p,
	})

	if err := s.ready("opendir", p); err != nil {
		return nil, err
	}

	id, err := s.resolve(p)
	if err != nil {
		return nil, s.fail("opendir", p, err)
	}

	n, _ := s.pool.get(id)
	if !n.isDir() {
		return nil, pathError("opendir", p, ErrNotADirectory)
	}

	return &Dir{
		s:     s,
		id:    id,
		epoch: s.epoch,
		path:  p,
	}, nil
}

func (d *Dir) node(op string) (*node, error) {
	if d.closed {
		return nil, pathError(op, d.path, ErrClosed)
	}
	if !d.s.mounted {
		return nil, pathError(op, d.path, ErrNotReady)
	}
	if d.epoch != d.s.epoch {
		return nil, pathError(op, d.path, ErrStaleHandle)
	}

	n, ok := d.s.pool.get(d.id)
	if !ok || !n.isDir() {
		return nil, pathError(op, d.path, ErrStaleHandle)
	}

	return n, nil
}

// ReadDir returns the next child in insertion order. Once every child has been
// returned it yields a FileInfo with an empty name. Unlinking children that
// were already returned does not move the cursor.
func (d *Dir) ReadDir() (FileInfo, error) {
	n, err := d.node("readdir")
	if err != nil {
		return FileInfo{}, err
	}

	for _, id := range n.children {
		child, ok := d.s.pool.get(id)
		if !ok || child.seq <= d.last {
			continue
		}
		d.last = child.seq

		return newFileInfo(id, child), nil
	}

	return FileInfo{}, nil
}

// ReadAll drains the iterator.
func (d *Dir) ReadAll() ([]FileInfo, error) {
	var out []FileInfo
	for {
		info, err := d.ReadDir()
		if err != nil {
			return out, err
		}
		if info.Name() == "" {
			return out, nil
		}
		out = append(out, info)
	}
}

// Rewind restarts iteration at the first child.
func (d *Dir) Rewind() error {
	if _, err := d.node("rewinddir"); err != nil {
		return err
	}
	d.last = 0

	return nil
}

func (d *Dir) Close() error {
	if d.closed {
		return pathError("closedir", d.path, ErrClosed)
	}
	d.closed = true

	return nil
}
