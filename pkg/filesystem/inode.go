package filesystem

import (
	"strings"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/JakWai01/sile-fakefs/pkg/fakefs"
)

const attributesTTL = 365 * 24 * time.Hour

// inodeID derives the kernel inode number from a node's slot and generation.
// Generations start at 1, so no node other than the root can map to
// fuseops.RootInodeID.
func (fs *fileSystem) inodeID(id fakefs.NodeID) fuseops.InodeID {
	if id == fs.store.Root() {
		return fuseops.RootInodeID
	}

	return fuseops.InodeID(uint64(id.Gen)<<32 | uint64(id.Index))
}

func (fs *fileSystem) nodeID(inode fuseops.InodeID) fakefs.NodeID {
	if inode == fuseops.RootInodeID {
		return fs.store.Root()
	}

	return fakefs.NodeID{
		Index: uint32(inode),
		Gen:   uint32(uint64(inode) >> 32),
	}
}

func (fs *fileSystem) attributes(info fakefs.FileInfo) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   uint64(info.Size()),
		Nlink:  1,
		Mode:   info.Mode(),
		Atime:  info.ModTime(),
		Mtime:  info.ModTime(),
		Ctime:  info.ModTime(),
		Crtime: info.ModTime(),
		Uid:    fs.uid,
		Gid:    fs.gid,
	}
}

func (fs *fileSystem) entry(info fakefs.FileInfo) fuseops.ChildInodeEntry {
	var entry fuseops.ChildInodeEntry

	entry.Child = fs.inodeID(info.ID())
	entry.Attributes = fs.attributes(info)
	entry.AttributesExpiration = fs.clock.Now().Add(attributesTTL)
	entry.EntryExpiration = entry.AttributesExpiration

	return entry
}

func direntType(info fakefs.FileInfo) fuseutil.DirentType {
	if info.IsDir() {
		return fuseutil.DT_Directory
	}

	return fuseutil.DT_File
}

// dirHandle is a snapshot of a directory taken at OpenDir. Offsets handed to
// the kernel index into entries.
type dirHandle struct {
	entries []fuseutil.Dirent
}

// Sanitize path by removing duplicate leading slashes.
func sanitize(path string) string {
	if strings.HasPrefix(path, "//") {
		return path[1:]
	}

	return path
}

// Returns the concatenated path sanitized
func concatPath(parentPath string, childName string) string {
	return sanitize(parentPath + "/" + childName)
}
