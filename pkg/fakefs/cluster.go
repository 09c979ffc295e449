package fakefs

const (
	// FirstCluster is the first data cluster number in FAT.
	FirstCluster uint32 = 2

	// EndOfChain is the FAT16 end marker returned once a chain is exhausted.
	EndOfChain uint32 = 0xFFFF

	SectorSize = 512
)

// ClusterRange is a contiguous run of synthetic clusters owned by one file.
type ClusterRange struct {
	Start uint32
	Count uint32
}

// Next returns the cluster following clst in the chain. Queries before the
// start of the range return the start.
func (r ClusterRange) Next(clst uint32) uint32 {
	base := r.Start
	if base == 0 {
		base = FirstCluster
	}
	if clst < base {
		return base
	}

	idx := clst - base
	if idx+1 >= r.Count {
		return EndOfChain
	}

	return base + idx + 1
}

// Contains reports whether clst lies in the range.
func (r ClusterRange) Contains(clst uint32) bool {
	return clst >= r.Start && clst-r.Start < r.Count
}

// clusterAllocator hands out ranges from a counter that only moves forward.
// Nothing is reclaimed; the counter resets only when the store is remounted.
type clusterAllocator struct {
	next         uint32
	clusterBytes int64
}

func newClusterAllocator(sectorsPerCluster int) *clusterAllocator {
	return &clusterAllocator{
		next:         FirstCluster,
		clusterBytes: int64(sectorsPerCluster) * SectorSize,
	}
}

func (c *clusterAllocator) countFor(size int64) uint32 {
	n := (size + c.clusterBytes - 1) / c.clusterBytes
	if n < 1 {
		n = 1
	}

	return uint32(n)
}

func (c *clusterAllocator) assign(size int64) ClusterRange {
	r := ClusterRange{Start: c.next, Count: c.countFor(size)}
	c.next += r.Count

	return r
}

// fit returns r unchanged when it still covers size, otherwise a fresh range.
func (c *clusterAllocator) fit(r ClusterRange, size int64) ClusterRange {
	if c.countFor(size) <= r.Count {
		return r
	}

	return c.assign(size)
}
