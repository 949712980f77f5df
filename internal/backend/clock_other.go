//go:build !linux

package backend

import "time"

func clockResolution() (time.Duration, error) {
	return 0, ErrUnsupported
}

func monotonicNow() (time.Duration, error) {
	return 0, ErrUnsupported
}
