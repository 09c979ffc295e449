package fakefs

import (
	"io/fs"
	"strings"
	"time"

	"github.com/JakWai01/sile-fakefs/pkg/fattime"
)

// MaxNameLength bounds a single path component.
const MaxNameLength = 99

type Kind uint8

const (
	KindNone Kind = iota
	KindDirectory
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return "none"
	}
}

// FAT attribute bits reported through FileInfo.Attr.
const (
	AttrDirectory byte = 0x10
	AttrArchive   byte = 0x20
)

type node struct {
	name     string
	kind     Kind
	parent   NodeID
	children []NodeID

	// seq orders a node among its siblings. It is assigned when the node is
	// linked into a directory and grows with every link.
	seq uint64

	// data is nil for size-only files; reads of those synthesize zeros.
	data     []byte
	size     int64
	clusters ClusterRange
	modTime  time.Time
}

func (n *node) isDir() bool {
	return n.kind == KindDirectory
}

func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || len(name) > MaxNameLength {
		return false
	}

	return !strings.ContainsAny(name, "/\x00")
}

// FileInfo describes a node. The zero value, with an empty name, terminates
// directory iteration.
type FileInfo struct {
	id           NodeID
	name         string
	kind         Kind
	size         int64
	modTime      time.Time
	startCluster uint32
}

func newFileInfo(id NodeID, n *node) FileInfo {
	info := FileInfo{
		id:      id,
		name:    n.name,
		kind:    n.kind,
		modTime: n.modTime,
	}
	if n.kind == KindFile {
		info.size = n.size
		info.startCluster = n.clusters.Start
	}

	return info
}

// ID is the node the info was taken from.
func (i FileInfo) ID() NodeID { return i.id }

func (i FileInfo) Name() string       { return i.name }
func (i FileInfo) Size() int64        { return i.size }
func (i FileInfo) ModTime() time.Time { return i.modTime }
func (i FileInfo) IsDir() bool        { return i.kind == KindDirectory }
func (i FileInfo) Kind() Kind         { return i.kind }
func (i FileInfo) Sys() interface{}   { return nil }

// StartCluster is zero for directories.
func (i FileInfo) StartCluster() uint32 { return i.startCluster }

func (i FileInfo) Mode() fs.FileMode {
	if i.IsDir() {
		return fs.ModeDir | 0o777
	}

	return 0o666
}

// Attr returns the FAT attribute byte.
func (i FileInfo) Attr() byte {
	switch i.kind {
	case KindDirectory:
		return AttrDirectory
	case KindFile:
		return AttrArchive
	default:
		return 0
	}
}

// Timestamp is the packed FAT date and time of the last modification.
func (i FileInfo) Timestamp() uint32 {
	if i.modTime.IsZero() {
		return 0
	}

	return fattime.Pack(i.modTime)
}
