//go:build linux

package region

import "golang.org/x/sys/unix"

// syncHandle uses fdatasync when the handle exposes a descriptor; file
// metadata other than size does not need to reach the disk.
func syncHandle(h Handle) error {
	if fd, ok := h.(interface{ Fd() uintptr }); ok {
		return unix.Fdatasync(int(fd.Fd()))
	}
	return h.Sync()
}
