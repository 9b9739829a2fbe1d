package timeutil

import (
	"testing"
	"time"
)

func TestDurationPtr(t *testing.T) {
	d := DurationPtr(5 * time.Second)
	if d == nil || *d != 5*time.Second {
		t.Fatalf("DurationPtr(5s) = %v, want pointer to 5s", d)
	}
}

func TestFakeSleeperRecordsCalls(t *testing.T) {
	sleeper := NewFakeSleeper()
	sleeper.Sleep(time.Second)
	sleeper.Sleep(2 * time.Second)

	if len(sleeper.Calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(sleeper.Calls))
	}
	if sleeper.Calls[0] != time.Second || sleeper.Calls[1] != 2*time.Second {
		t.Fatalf("unexpected recorded calls: %v", sleeper.Calls)
	}
}
