package fakefs

// NodeID addresses a slot of the node pool. Gen changes every time the slot is
// reused, so an ID kept across an unlink no longer resolves.
type NodeID struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether id was never assigned. Live slots have Gen >= 1.
func (id NodeID) IsZero() bool {
	return id.Gen == 0
}

type slot struct {
	gen  uint32
	live bool
	node node
}

// pool is a fixed-capacity arena. Slots below the high-water mark are either
// live or on the free list; nothing is ever compacted.
type pool struct {
	slots    []slot
	free     []uint32
	capacity int
}

func newPool(capacity int) *pool {
	return &pool{
		slots:    make([]slot, 0, capacity),
		capacity: capacity,
	}
}

func (p *pool) alloc() (NodeID, *node, error) {
	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if len(p.slots) >= p.capacity {
			return NodeID{}, nil, ErrOutOfNodes
		}
		p.slots = append(p.slots, slot{})
		idx = uint32(len(p.slots) - 1)
	}

	s := &p.slots[idx]
	s.gen++
	s.live = true
	s.node = node{}

	return NodeID{Index: idx, Gen: s.gen}, &s.node, nil
}

func (p *pool) get(id NodeID) (*node, bool) {
	if int(id.Index) >= len(p.slots) {
		return nil, false
	}

	s := &p.slots[id.Index]
	if !s.live || s.gen != id.Gen {
		return nil, false
	}

	return &s.node, true
}

// release tombstones the slot: empty name, no kind, no buffer.
func (p *pool) release(id NodeID) bool {
	if _, ok := p.get(id); !ok {
		return false
	}

	s := &p.slots[id.Index]
	s.live = false
	s.node = node{}
	p.free = append(p.free, id.Index)

	return true
}

func (p *pool) used() int {
	return len(p.slots) - len(p.free)
}

func (p *pool) highWater() int {
	return len(p.slots)
}
