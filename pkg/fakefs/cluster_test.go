package fakefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterRangeNext(t *testing.T) {
	r := ClusterRange{Start: 10, Count: 3}

	assert.Equal(t, uint32(10), r.Next(0))
	assert.Equal(t, uint32(11), r.Next(10))
	assert.Equal(t, uint32(12), r.Next(11))
	assert.Equal(t, EndOfChain, r.Next(12))
	assert.Equal(t, EndOfChain, r.Next(500))
}

func TestClusterRangeNextWithoutStart(t *testing.T) {
	r := ClusterRange{}

	assert.Equal(t, FirstCluster, r.Next(0))
	assert.Equal(t, EndOfChain, r.Next(FirstCluster))
}

func TestClusterRangeContains(t *testing.T) {
	r := ClusterRange{Start: 4, Count: 2}

	assert.False(t, r.Contains(3))
	assert.True(t, r.Contains(4))
	assert.True(t, r.Contains(5))
	assert.False(t, r.Contains(6))
}

func TestClusterAllocatorIsMonotonic(t *testing.T) {
	c := newClusterAllocator(4)

	a := c.assign(0)
	b := c.assign(2048)
	d := c.assign(2049)

	assert.Equal(t, ClusterRange{Start: 2, Count: 1}, a)
	assert.Equal(t, ClusterRange{Start: 3, Count: 1}, b)
	assert.Equal(t, ClusterRange{Start: 4, Count: 2}, d)

	assert.Equal(t, b, c.fit(b, 100))

	moved := c.fit(b, 10000)
	assert.Equal(t, ClusterRange{Start: 6, Count: 5}, moved)
}

func TestDefaultFixtureClusters(t *testing.T) {
	s := newTestStore(t, Options{Fixtures: DefaultFixtures()})

	// Files are numbered in fixture order: RECENT.TXT, ALTT.gba, then the rest.
	recent, err := s.Open("/SYSTEM/RECENT.TXT", ModeRead)
	assert.NoError(t, err)
	assert.Equal(t, ClusterRange{Start: 2, Count: 1}, recent.Clusters())

	altt, err := s.Open("/ALTT.gba", ModeRead)
	assert.NoError(t, err)
	assert.Equal(t, ClusterRange{Start: 3, Count: 4096}, altt.Clusters())

	metroid, err := s.Open("/Metroid.gba", ModeRead)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3+4096), metroid.StartCluster())
}
