package fakefs

import "strings"

func segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

// splitParent separates the last component of p. A path without a slash has
// the current directory as parent.
func splitParent(p string) (string, string) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return p, ""
	}

	i := strings.LastIndex(trimmed, "/")
	switch {
	case i < 0:
		return ".", trimmed
	case i == 0:
		return "/", trimmed[1:]
	default:
		return trimmed[:i], trimmed[i+1:]
	}
}

func (s *Store) start(p string) NodeID {
	if strings.HasPrefix(p, "/") {
		return s.root
	}

	return s.cwd
}

func (s *Store) parentOf(id NodeID) NodeID {
	if id == s.root {
		return s.root
	}
	n, ok := s.pool.get(id)
	if !ok || n.parent.IsZero() {
		return s.root
	}

	return n.parent
}

func (s *Store) findChild(dir *node, name string) (NodeID, bool) {
	for _, id := range dir.children {
		child, ok := s.pool.get(id)
		if ok && sameName(child.name, name) {
			return id, true
		}
	}

	return NodeID{}, false
}

// resolve walks p without creating anything. A segment following a file fails
// with ErrNotADirectory.
func (s *Store) resolve(p string) (NodeID, error) {
	cur := s.start(p)
	for _, seg := range segments(p) {
		n, ok := s.pool.get(cur)
		if !ok {
			return NodeID{}, ErrInternalInconsistency
		}
		if !n.isDir() {
			return NodeID{}, ErrNotADirectory
		}

		switch seg {
		case ".":
		case "..":
			cur = s.parentOf(cur)
		default:
			child, ok := s.findChild(n, seg)
			if !ok {
				return NodeID{}, ErrNotFound
			}
			cur = child
		}
	}

	return cur, nil
}

// ensureDir resolves p as a directory, creating every missing component. The
// IDs of created directories are returned, oldest first, so a caller that
// fails later can roll them back. On error the partial chain is already
// rolled back.
func (s *Store) ensureDir(p string) (NodeID, []NodeID, error) {
	var created []NodeID

	cur := s.start(p)
	for _, seg := range segments(p) {
		n, ok := s.pool.get(cur)
		if !ok {
			s.rollback(created)
			return NodeID{}, nil, ErrInternalInconsistency
		}
		if !n.isDir() {
			s.rollback(created)
			return NodeID{}, nil, ErrNotADirectory
		}

		switch seg {
		case ".":
		case "..":
			cur = s.parentOf(cur)
		default:
			child, ok := s.findChild(n, seg)
			if !ok {
				var err error
				child, _, err = s.newNode(cur, seg, KindDirectory)
				if err != nil {
					s.rollback(created)
					return NodeID{}, nil, err
				}
				created = append(created, child)
			}
			cur = child
		}
	}

	n, ok := s.pool.get(cur)
	if !ok {
		s.rollback(created)
		return NodeID{}, nil, ErrInternalInconsistency
	}
	if !n.isDir() {
		s.rollback(created)
		return NodeID{}, nil, ErrNotADirectory
	}

	return cur, created, nil
}

// rollback removes directories created by ensureDir, newest first.
func (s *Store) rollback(created []NodeID) {
	for i := len(created) - 1; i >= 0; i-- {
		id := created[i]
		n, ok := s.pool.get(id)
		if !ok {
			continue
		}
		if parent, ok := s.pool.get(n.parent); ok {
			detach(parent, id)
		}
		s.pool.release(id)
	}
}

// attach appends id to the children of parent. Children stay sorted by seq.
func (s *Store) attach(parent *node, id NodeID, n *node) {
	s.seq++
	n.seq = s.seq
	parent.children = append(parent.children, id)
}

func detach(parent *node, id NodeID) bool {
	for i, c := range parent.children {
		if c == id {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return true
		}
	}

	return false
}

// isAncestor reports whether anc is id or one of its ancestors.
func (s *Store) isAncestor(anc, id NodeID) bool {
	for {
		if id == anc {
			return true
		}
		if id == s.root {
			return false
		}
		n, ok := s.pool.get(id)
		if !ok {
			return false
		}
		id = n.parent
	}
}
