//go:build linux

package loop

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func applyFIFO(cores []int, priority int) error {
	if len(cores) > 0 {
		var set unix.CPUSet
		set.Zero()

		for _, c := range cores {
			set.Set(c)
		}

		if err := unix.SchedSetaffinity(0, &set); err != nil {
			return fmt.Errorf("pinning to cores %v: %w", cores, err)
		}
	}

	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}

	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("setting SCHED_FIFO %d: %w", priority, err)
	}

	return nil
}
