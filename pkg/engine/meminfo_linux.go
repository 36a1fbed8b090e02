// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import "golang.org/x/sys/unix"

// freeMemoryFraction reports free/total system memory, or -1 when the
// signal is unavailable.
func freeMemoryFraction() float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil || info.Totalram == 0 {
		return -1
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	free := float64(uint64(info.Freeram) * unit)
	total := float64(uint64(info.Totalram) * unit)
	return free / total
}
