package disk

// overlay keeps copies of modified sectors when no full mirror exists. The
// backing slab is allocated on the first write and holds exactly capacity
// sectors; entries are never evicted.
type overlay struct {
	capacity int
	index    map[uint32]int
	slab     []byte
}

func newOverlay(capacity int) *overlay {
	return &overlay{
		capacity: capacity,
		index:    map[uint32]int{},
	}
}

func (o *overlay) sector(slot int) []byte {
	return o.slab[slot*SectorSize : (slot+1)*SectorSize]
}

// lookup returns the overlay copy of lba, if any.
func (o *overlay) lookup(lba uint32) ([]byte, bool) {
	slot, ok := o.index[lba]
	if !ok {
		return nil, false
	}

	return o.sector(slot), true
}

// entry returns the overlay copy of lba, creating it from base if needed. It
// returns false once every slot is taken.
func (o *overlay) entry(lba uint32, base []byte) ([]byte, bool) {
	if b, ok := o.lookup(lba); ok {
		return b, true
	}

	slot := len(o.index)
	if slot >= o.capacity {
		return nil, false
	}
	if o.slab == nil {
		o.slab = make([]byte, o.capacity*SectorSize)
	}

	o.index[lba] = slot
	b := o.sector(slot)
	copy(b, base)

	return b, true
}

func (o *overlay) used() int {
	return len(o.index)
}
