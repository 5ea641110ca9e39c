package caslog

import (
	"os"
	"syscall"
)

// statToIdentity extracts the device+inode pair identifying a file,
// used by the in-process writer registry to detect two Open calls
// naming the same file through different paths (e.g. a relative path
// and a symlink to it).
func statToIdentity(info os.FileInfo) fileIdentity {
	sys := info.Sys().(*syscall.Stat_t)
	return fileIdentity{dev: uint64(sys.Dev), ino: uint64(sys.Ino)}
}
