package posix

import "os"

// CurrentUid is the uid that owns every inode of a mounted filesystem.
func CurrentUid() uint32 {
	return uint32(os.Getuid())
}

func CurrentGid() uint32 {
	return uint32(os.Getgid())
}
