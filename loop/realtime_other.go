//go:build !linux

package loop

import "errors"

func applyFIFO(cores []int, priority int) error {
	return errors.New("loop: real-time scheduling needs linux")
}
