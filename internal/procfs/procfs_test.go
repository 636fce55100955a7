package procfs_test

import (
	"os"
	"testing"

	"github.com/tripwire/macd/internal/procfs"
)

func TestCPUTicks_MissingProcessReturnsAbsent(t *testing.T) {
	// PID 1 is init and always exists on a real system, but an
	// unreasonably large PID should never be assigned.
	_, ok := procfs.CPUTicks(1 << 30)
	if ok {
		t.Fatalf("CPUTicks() for a nonexistent pid reported ok=true")
	}
}

func TestCPUTicks_SelfIsReadable(t *testing.T) {
	ticks, ok := procfs.CPUTicks(os.Getpid())
	if !ok {
		t.Fatalf("CPUTicks(self) = ok=false, want true")
	}
	if ticks > 1<<40 {
		t.Errorf("CPUTicks(self) = %d, suspiciously large", ticks)
	}
}

func TestResidentMB_SelfIsReadable(t *testing.T) {
	mb, ok := procfs.ResidentMB(os.Getpid())
	if !ok {
		t.Fatalf("ResidentMB(self) = ok=false, want true")
	}
	if mb == 0 {
		t.Errorf("ResidentMB(self) = 0, want a positive approximate figure")
	}
}

func TestResidentMB_MissingProcessReturnsAbsent(t *testing.T) {
	_, ok := procfs.ResidentMB(1 << 30)
	if ok {
		t.Fatalf("ResidentMB() for a nonexistent pid reported ok=true")
	}
}

func TestTicksPerSecond_ReturnsPositiveValue(t *testing.T) {
	if got := procfs.TicksPerSecond(); got <= 0 {
		t.Errorf("TicksPerSecond() = %d, want > 0", got)
	}
}
