// Package procfs provides side-effect-free, non-blocking readers of the
// Linux process filesystem for the fields the supervisor's Reporter
// needs: accumulated CPU ticks and resident memory for a PID, and the
// kernel's configured ticks-per-second constant.
//
// The field offsets and the memory formula reproduce the manifest
// supervisor this package descends from exactly, including its
// approximate memory-unit quirk (see ResidentMB).
package procfs

import (
	"os"
	"strconv"
	"strings"

	sysconf "github.com/tklauser/go-sysconf"
)

// CPUTicks returns the sum of accumulated user-mode and kernel-mode
// clock ticks for pid, read from /proc/<pid>/stat. Per the stat(5)
// format these are fields 14 and 15 (1-indexed); the comm field (2) is
// parenthesized and may itself contain spaces, so fields are counted
// from the last ')' rather than by naive whitespace splitting.
//
// Returns ok=false if the process no longer exists or the surface
// cannot be parsed — never blocks, never panics.
func CPUTicks(pid int) (ticks uint64, ok bool) {
	data, err := os.ReadFile(statPath(pid))
	if err != nil {
		return 0, false
	}
	content := string(data)
	close := strings.LastIndexByte(content, ')')
	if close < 0 || close+2 > len(content) {
		return 0, false
	}
	// fields[0] here is overall field 3 (state); user time (field 14) is
	// therefore fields[11], kernel time (field 15) is fields[12].
	fields := strings.Fields(content[close+2:])
	if len(fields) < 13 {
		return 0, false
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return 0, false
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return 0, false
	}
	return utime + stime, true
}

// ResidentMB returns an approximate memory-in-megabytes figure for pid,
// read from /proc/<pid>/statm. The source sums every field of statm
// (size, resident, shared, text, lib, data, dt — all expressed in pages)
// and divides by 1024. This is not resident pages times page size over
// 1MiB; it is reproduced exactly because the specification calls it out
// as an intentional quirk to preserve, not a bug to fix.
func ResidentMB(pid int) (mb uint64, ok bool) {
	data, err := os.ReadFile(statmPath(pid))
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	var sum uint64
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return 0, false
		}
		sum += v
	}
	return sum / 1024, true
}

// TicksPerSecond returns the kernel's configured clock-ticks-per-second
// constant (_SC_CLK_TCK), queried from the operating system on each
// call.
func TicksPerSecond() int64 {
	v, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || v <= 0 {
		return 100 // conventional Linux default when the query fails.
	}
	return v
}

func statPath(pid int) string {
	return "/proc/" + strconv.Itoa(pid) + "/stat"
}

func statmPath(pid int) string {
	return "/proc/" + strconv.Itoa(pid) + "/statm"
}
