package fakefs

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mountTime = time.Date(2025, time.November, 10, 13, 37, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()

	if opts.Clock == nil {
		clock := &timeutil.SimulatedClock{}
		clock.SetTime(mountTime)
		opts.Clock = clock
	}

	s := New(opts)
	require.NoError(t, s.Mount())

	return s
}

func writeFile(t *testing.T, s *Store, p string, content string) {
	t.Helper()

	f, err := s.Open(p, ModeWrite|ModeOpenAlways)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t *testing.T, s *Store, p string) string {
	t.Helper()

	f, err := s.Open(p, ModeRead)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, f.Size())
	n, err := f.Read(buf)
	require.NoError(t, err)

	return string(buf[:n])
}

func TestMountScenario(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/SYSTEM"))

	f, err := s.Open("/SYSTEM/A.TXT", ModeWrite|ModeOpenAlways)
	require.NoError(t, err)
	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, f.Close())

	f, err = s.Open("/SYSTEM/A.TXT", ModeRead)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
	require.NoError(t, f.Close())

	require.NoError(t, s.Chdir("/SYSTEM"))
	cwd, err := s.Getcwd()
	require.NoError(t, err)
	assert.Equal(t, "/SYSTEM", cwd)

	require.NoError(t, s.Check())
}

func TestMountPopulatesDefaultFixtures(t *testing.T) {
	s := newTestStore(t, Options{Fixtures: DefaultFixtures()})

	info, err := s.Stat("/GAMES/Pokemon.gba")
	require.NoError(t, err)
	assert.EqualValues(t, 32*mib, info.Size())
	assert.False(t, info.IsDir())

	info, err = s.Stat("/system/recent.txt")
	require.NoError(t, err)
	assert.Zero(t, info.Size())
	assert.Equal(t, FirstCluster, info.StartCluster())

	info, err = s.Stat("/ALTT.gba")
	require.NoError(t, err)
	assert.Equal(t, FirstCluster+1, info.StartCluster())

	used, capacity := s.Usage()
	assert.Equal(t, 12, used)
	assert.Equal(t, DefaultCapacity, capacity)

	require.NoError(t, s.Check())
}

func TestRemountRebuildsTree(t *testing.T) {
	s := newTestStore(t, Options{Fixtures: DefaultFixtures()})

	writeFile(t, s, "/NEW.TXT", "data")
	require.NoError(t, s.Chdir("/GAMES"))
	f, err := s.Open("/Readme.txt", ModeRead)
	require.NoError(t, err)

	require.NoError(t, s.Mount())

	_, err = s.Stat("/NEW.TXT")
	assert.ErrorIs(t, err, ErrNotFound)

	cwd, err := s.Getcwd()
	require.NoError(t, err)
	assert.Equal(t, "/", cwd)

	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestUnmountedStoreIsNotReady(t *testing.T) {
	s := New(Options{})

	_, err := s.Open("/A", ModeRead)
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, s.Mount())
	s.Unmount()

	assert.ErrorIs(t, s.Mkdir("/A"), ErrNotReady)
	_, err = s.Getcwd()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestMkdir(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/A/B/C"))
	assert.ErrorIs(t, s.Mkdir("/A/B"), ErrAlreadyExists)
	assert.ErrorIs(t, s.Mkdir("/a/b/c"), ErrAlreadyExists)
	assert.ErrorIs(t, s.Mkdir("/"), ErrAlreadyExists)

	for _, p := range []string{"/A", "/A/B", "/A/B/C"} {
		info, err := s.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), p)
		assert.Equal(t, AttrDirectory, info.Attr())
	}
}

func TestMkdirUnderFile(t *testing.T) {
	s := newTestStore(t, Options{})
	writeFile(t, s, "/FOO", "")

	assert.ErrorIs(t, s.Mkdir("/FOO/DIR"), ErrNotADirectory)
	require.NoError(t, s.Check())
}

func TestMkdirRollsBackWhenPoolRunsOut(t *testing.T) {
	s := newTestStore(t, Options{Capacity: 3})

	err := s.Mkdir("/A/B/C")
	assert.ErrorIs(t, err, ErrOutOfNodes)

	_, err = s.Stat("/A")
	assert.ErrorIs(t, err, ErrNotFound)

	used, _ := s.Usage()
	assert.Equal(t, 1, used)
	require.NoError(t, s.Check())
}

func TestUnlink(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/DIR"))
	writeFile(t, s, "/DIR/FILE.TXT", "x")

	assert.ErrorIs(t, s.Unlink("/DIR"), ErrAccessDenied)
	assert.ErrorIs(t, s.Unlink("/"), ErrAccessDenied)
	assert.ErrorIs(t, s.Unlink("/MISSING"), ErrNotFound)

	require.NoError(t, s.Unlink("/DIR/FILE.TXT"))
	_, err := s.Stat("/DIR/FILE.TXT")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Unlink("/dir"))
	_, err = s.Stat("/DIR")
	assert.ErrorIs(t, err, ErrNotFound)

	used, _ := s.Usage()
	assert.Equal(t, 1, used)
	require.NoError(t, s.Check())
}

func TestUnlinkCurrentDirectoryMovesToParent(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/A/B"))
	require.NoError(t, s.Chdir("/A/B"))
	require.NoError(t, s.Unlink("/A/B"))

	cwd, err := s.Getcwd()
	require.NoError(t, err)
	assert.Equal(t, "/A", cwd)
}

func TestUnlinkedHandleIsRejectedAfterSlotReuse(t *testing.T) {
	s := newTestStore(t, Options{Capacity: 2})

	writeFile(t, s, "/OLD.TXT", "old")
	f, err := s.Open("/OLD.TXT", ModeRead)
	require.NoError(t, err)

	require.NoError(t, s.Unlink("/OLD.TXT"))
	writeFile(t, s, "/NEW.TXT", "new")

	_, err = f.Read(make([]byte, 3))
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.Equal(t, EndOfChain, f.NextCluster(0))
	assert.Equal(t, "new", readFile(t, s, "/NEW.TXT"))
}

func TestRename(t *testing.T) {
	s := newTestStore(t, Options{})

	writeFile(t, s, "/A.TXT", "content")
	require.NoError(t, s.Rename("/A.TXT", "/SUB/DIR/B.TXT"))

	_, err := s.Stat("/A.TXT")
	assert.ErrorIs(t, err, ErrNotFound)

	info, err := s.Stat("/SUB/DIR/B.TXT")
	require.NoError(t, err)
	assert.EqualValues(t, 7, info.Size())
	assert.Equal(t, "B.TXT", info.Name())
	assert.Equal(t, "content", readFile(t, s, "/SUB/DIR/B.TXT"))

	require.NoError(t, s.Check())
}

func TestRenameRelativeUsesCurrentDirectory(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/WORK"))
	writeFile(t, s, "/A.TXT", "a")
	require.NoError(t, s.Chdir("/WORK"))

	require.NoError(t, s.Rename("/A.TXT", "B.TXT"))
	assert.Equal(t, "a", readFile(t, s, "/WORK/B.TXT"))
}

func TestRenameChangesCase(t *testing.T) {
	s := newTestStore(t, Options{})

	writeFile(t, s, "/readme.txt", "r")
	require.NoError(t, s.Rename("/readme.txt", "/README.TXT"))

	info, err := s.Stat("/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "README.TXT", info.Name())
}

func TestRenameInPlaceKeepsListingOrder(t *testing.T) {
	s := newTestStore(t, Options{})

	writeFile(t, s, "/A", "")
	writeFile(t, s, "/B", "")
	require.NoError(t, s.Rename("/A", "/a"))
	require.NoError(t, s.Rename("/B", "/C"))

	d, err := s.OpenDir("/")
	require.NoError(t, err)
	all, err := d.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "C"}, names(all))

	require.NoError(t, s.Check())
}

func TestRenameErrors(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/A/B"))
	writeFile(t, s, "/X.TXT", "x")
	writeFile(t, s, "/Y.TXT", "y")

	assert.ErrorIs(t, s.Rename("/MISSING", "/Z"), ErrNotFound)
	assert.ErrorIs(t, s.Rename("/", "/Z"), ErrAccessDenied)
	assert.ErrorIs(t, s.Rename("/X.TXT", "/y.txt"), ErrAlreadyExists)
	assert.ErrorIs(t, s.Rename("/A", "/A/B/NEW/A"), ErrAccessDenied)
	assert.ErrorIs(t, s.Rename("/X.TXT", "/A/.."), ErrInvalidName)

	// The directory fabricated for the rejected move is gone again.
	_, err := s.Stat("/A/B/NEW")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "x", readFile(t, s, "/X.TXT"))
	require.NoError(t, s.Check())
}

func TestChdir(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/A/B"))
	writeFile(t, s, "/A/F.TXT", "")

	assert.ErrorIs(t, s.Chdir("/MISSING"), ErrNotFound)
	assert.ErrorIs(t, s.Chdir("/A/F.TXT"), ErrNotADirectory)

	require.NoError(t, s.Chdir("/A"))
	require.NoError(t, s.Chdir("B"))
	cwd, err := s.Getcwd()
	require.NoError(t, err)
	assert.Equal(t, "/A/B", cwd)

	require.NoError(t, s.Chdir("../.."))
	cwd, err = s.Getcwd()
	require.NoError(t, err)
	assert.Equal(t, "/", cwd)
}

func TestStatRoot(t *testing.T) {
	s := newTestStore(t, Options{})

	info, err := s.Stat("/")
	require.NoError(t, err)
	assert.Equal(t, "/", info.Name())
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Size())
}

func TestPathOf(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Mkdir("/A/B"))
	id, err := s.Resolve("/a/b")
	require.NoError(t, err)

	p, err := s.PathOf(id)
	require.NoError(t, err)
	assert.Equal(t, "/A/B", p)

	p, err = s.PathOf(s.Root())
	require.NoError(t, err)
	assert.Equal(t, "/", p)
}

func TestVolumeGeometry(t *testing.T) {
	s := newTestStore(t, Options{})

	v := s.Volume()
	assert.Equal(t, "FAT16", v.Type)
	assert.EqualValues(t, 0x1234, v.ID)
	assert.Equal(t, 4, v.SectorsPerCluster)

	assert.Zero(t, s.ClusterToSector(1))
	assert.EqualValues(t, 2048, s.ClusterToSector(2))
	assert.EqualValues(t, 2048+4*3, s.ClusterToSector(5))
}

func TestModificationTimeFromClock(t *testing.T) {
	clock := &timeutil.SimulatedClock{}
	clock.SetTime(mountTime)
	s := newTestStore(t, Options{Clock: clock})

	writeFile(t, s, "/A.TXT", "a")
	clock.AdvanceTime(time.Hour)
	writeFile(t, s, "/B.TXT", "b")

	a, err := s.Stat("/A.TXT")
	require.NoError(t, err)
	b, err := s.Stat("/B.TXT")
	require.NoError(t, err)

	assert.Equal(t, mountTime, a.ModTime())
	assert.Equal(t, mountTime.Add(time.Hour), b.ModTime())
	assert.NotZero(t, a.Timestamp())
}

func TestLookup(t *testing.T) {
	s := newTestStore(t, Options{Fixtures: DefaultFixtures()})

	games, err := s.Resolve("/GAMES")
	require.NoError(t, err)

	info, err := s.Lookup(games, "mariokart.GBA")
	require.NoError(t, err)
	assert.Equal(t, "MarioKart.gba", info.Name())

	p, err := s.PathOf(info.ID())
	require.NoError(t, err)
	assert.Equal(t, "/GAMES/MarioKart.gba", p)

	_, err = s.Lookup(games, "Zelda.gba")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Lookup(info.ID(), "child")
	assert.ErrorIs(t, err, ErrNotADirectory)

	require.NoError(t, s.Unlink("/GAMES/MarioKart.gba"))
	_, err = s.StatNode(info.ID())
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestClustersAllocated(t *testing.T) {
	s := newTestStore(t, Options{})
	assert.Zero(t, s.ClustersAllocated())

	f, err := s.Open("/A.BIN", ModeWrite|ModeCreateNew)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.ClustersAllocated())

	_, err = f.Write(make([]byte, 3*2048))
	require.NoError(t, err)

	// The first cluster is not reclaimed by the relocation.
	assert.EqualValues(t, 4, s.ClustersAllocated())
}
