package childtable_test

import (
	"errors"
	"sync"
	"syscall"
	"testing"

	"github.com/tripwire/macd/internal/childtable"
)

// fakeProc is a processHandle test double that records the signals it
// receives without touching a real OS process.
type fakeProc struct {
	mu      sync.Mutex
	signals []syscall.Signal
	failNext bool
}

func (f *fakeProc) Signal(sig syscall.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return errors.New("signal failed")
	}
	f.signals = append(f.signals, sig)
	return nil
}

func (f *fakeProc) signalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signals)
}

func newAliveRecord(index int, proc *fakeProc) *childtable.Record {
	done := make(chan struct{})
	r := childtable.NewRecord(index, 1000+index, "sleep", proc, 0, func() error {
		<-done
		return nil
	})
	return r
}

func TestTable_RunningCountReflectsAliveRecords(t *testing.T) {
	tbl := childtable.New()
	tbl.Append(newAliveRecord(0, &fakeProc{}))
	tbl.Append(childtable.NewFailedRecord(1, "badprogram"))

	if got := tbl.RunningCount(); got != 1 {
		t.Errorf("RunningCount() = %d, want 1", got)
	}
}

func TestTable_KillByIndex_SucceedsOnceForAliveChild(t *testing.T) {
	tbl := childtable.New()
	p := &fakeProc{}
	tbl.Append(newAliveRecord(0, p))

	if ok := tbl.KillByIndex(0); !ok {
		t.Fatalf("KillByIndex(0) = false, want true (SUCC)")
	}
	if got := p.signalCount(); got != 1 {
		t.Errorf("signal count = %d, want 1", got)
	}

	// A second concurrent-looking call after the first already marked
	// the record exited must fail, never succeed twice.
	if ok := tbl.KillByIndex(0); ok {
		t.Errorf("second KillByIndex(0) = true, want false (FAIL)")
	}
	if got := p.signalCount(); got != 1 {
		t.Errorf("signal count after second attempt = %d, want still 1", got)
	}
}

func TestTable_KillByIndex_FailsForExitedChild(t *testing.T) {
	tbl := childtable.New()
	tbl.Append(childtable.NewFailedRecord(0, "badprogram"))

	if ok := tbl.KillByIndex(0); ok {
		t.Errorf("KillByIndex(0) on an exited record = true, want false")
	}
}

func TestTable_KillByIndex_FailsOutOfRange(t *testing.T) {
	tbl := childtable.New()
	tbl.Append(childtable.NewFailedRecord(0, "badprogram"))

	if ok := tbl.KillByIndex(5); ok {
		t.Errorf("KillByIndex(5) out of range = true, want false")
	}
	if ok := tbl.KillByIndex(-1); ok {
		t.Errorf("KillByIndex(-1) = true, want false")
	}
}

func TestTable_KillByIndex_ConcurrentRequestsYieldExactlyOneSuccess(t *testing.T) {
	tbl := childtable.New()
	p := &fakeProc{}
	tbl.Append(newAliveRecord(0, p))

	const attempts = 20
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- tbl.KillByIndex(0)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("concurrent KillByIndex successes = %d, want exactly 1", successes)
	}
}

func TestTable_WithLock_IteratesLiveRecordsAndUpdatesFields(t *testing.T) {
	tbl := childtable.New()
	tbl.Append(newAliveRecord(0, &fakeProc{}))
	tbl.Append(newAliveRecord(1, &fakeProc{}))

	tbl.WithLock(func(records []*childtable.Record) {
		if len(records) != 2 {
			t.Fatalf("len(records) = %d, want 2", len(records))
		}
		records[0].LastCPUTicks = 42
	})

	tbl.WithLock(func(records []*childtable.Record) {
		if records[0].LastCPUTicks != 42 {
			t.Errorf("LastCPUTicks = %d, want 42", records[0].LastCPUTicks)
		}
	})
}

func TestRecord_MarkExitedIsIdempotent(t *testing.T) {
	r := newAliveRecord(0, &fakeProc{})
	r.MarkExited()
	r.MarkExited()
	if r.Alive() {
		t.Errorf("Alive() = true after MarkExited, want false")
	}
}

func TestRecord_TerminateWithoutProcessReturnsError(t *testing.T) {
	r := childtable.NewFailedRecord(0, "badprogram")
	if err := r.Terminate(); err == nil {
		t.Errorf("Terminate() on a process-less record = nil error, want error")
	}
}
