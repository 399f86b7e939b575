//go:build !linux

package cpu

// currentID has no portable implementation; everything lands on CPU 0.
func currentID() int { return 0 }
