package fakefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(infos []FileInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Name())
	}

	return out
}

func TestReadDirInsertionOrder(t *testing.T) {
	s := newTestStore(t, Options{Fixtures: DefaultFixtures()})

	d, err := s.OpenDir("/")
	require.NoError(t, err)

	infos, err := d.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"SYSTEM", "ALTT.gba", "Metroid.gba", "Sample.gb", "Readme.txt", "GAMES"}, names(infos))

	assert.True(t, infos[0].IsDir())
	assert.Zero(t, infos[0].StartCluster())
	assert.EqualValues(t, 8*mib, infos[1].Size())

	// Exhausted iterators keep returning the sentinel.
	info, err := d.ReadDir()
	require.NoError(t, err)
	assert.Empty(t, info.Name())
}

func TestReadDirIteratorsAreIndependent(t *testing.T) {
	s := newTestStore(t, Options{Fixtures: DefaultFixtures()})

	outer, err := s.OpenDir("/SYSTEM")
	require.NoError(t, err)

	first, err := outer.ReadDir()
	require.NoError(t, err)
	assert.Equal(t, "PATCH", first.Name())

	inner, err := s.OpenDir("/GAMES")
	require.NoError(t, err)
	all, err := inner.ReadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rest, err := outer.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"PLUG", "RECENT.TXT"}, names(rest))
}

func TestReadDirSkipsUnlinkedChildren(t *testing.T) {
	s := newTestStore(t, Options{})

	writeFile(t, s, "/A", "")
	writeFile(t, s, "/B", "")
	writeFile(t, s, "/C", "")

	d, err := s.OpenDir("/")
	require.NoError(t, err)
	first, err := d.ReadDir()
	require.NoError(t, err)
	assert.Equal(t, "A", first.Name())

	require.NoError(t, s.Unlink("/B"))

	rest, err := d.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, names(rest))
}

func TestReadDirAfterUnlinkingReturnedChild(t *testing.T) {
	s := newTestStore(t, Options{})

	writeFile(t, s, "/A", "")
	writeFile(t, s, "/B", "")
	writeFile(t, s, "/C", "")

	d, err := s.OpenDir("/")
	require.NoError(t, err)
	first, err := d.ReadDir()
	require.NoError(t, err)
	assert.Equal(t, "A", first.Name())

	require.NoError(t, s.Unlink("/A"))

	rest, err := d.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, names(rest))
}

func TestReadDirSeesChildrenAddedLater(t *testing.T) {
	s := newTestStore(t, Options{})

	writeFile(t, s, "/A", "")
	writeFile(t, s, "/B", "")

	d, err := s.OpenDir("/")
	require.NoError(t, err)
	first, err := d.ReadDir()
	require.NoError(t, err)
	assert.Equal(t, "A", first.Name())

	require.NoError(t, s.Rename("/A", "/a"))
	writeFile(t, s, "/C", "")

	rest, err := d.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, names(rest))
}

func TestRewind(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Mkdir("/X"))

	d, err := s.OpenDir("")
	require.NoError(t, err)

	all, err := d.ReadAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, d.Rewind())
	info, err := d.ReadDir()
	require.NoError(t, err)
	assert.Equal(t, "X", info.Name())
}

func TestOpenDirErrors(t *testing.T) {
	s := newTestStore(t, Options{})
	writeFile(t, s, "/FILE", "")

	_, err := s.OpenDir("/MISSING")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.OpenDir("/FILE")
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestDirHandleLifecycle(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Mkdir("/GONE"))

	d, err := s.OpenDir("/GONE")
	require.NoError(t, err)
	require.NoError(t, s.Unlink("/GONE"))

	_, err = d.ReadDir()
	assert.ErrorIs(t, err, ErrStaleHandle)

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrClosed)
	assert.ErrorIs(t, d.Rewind(), ErrClosed)

	root, err := s.OpenDir("/")
	require.NoError(t, err)
	require.NoError(t, s.Mount())

	_, err = root.ReadDir()
	assert.ErrorIs(t, err, ErrStaleHandle)
}
