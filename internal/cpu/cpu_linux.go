//go:build linux

package cpu

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// currentID asks the kernel which CPU the calling thread is on.
func currentID() int {
	var cpu uint32
	_, _, errno := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), 0, 0)
	if errno != 0 {
		return 0
	}
	return int(cpu)
}
