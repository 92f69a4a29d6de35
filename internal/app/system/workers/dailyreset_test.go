// internal/app/system/workers/dailyreset_test.go
package workers

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNextFiring(t *testing.T) {
	loc := time.UTC
	w := NewDailyReset(nil, zap.NewNop(), 5, loc)

	before := time.Date(2026, 3, 10, 3, 30, 0, 0, loc)
	if got := w.nextFiring(before); !got.Equal(time.Date(2026, 3, 10, 5, 0, 0, 0, loc)) {
		t.Fatalf("before the hour: got %v", got)
	}

	after := time.Date(2026, 3, 10, 5, 0, 1, 0, loc)
	if got := w.nextFiring(after); !got.Equal(time.Date(2026, 3, 11, 5, 0, 0, 0, loc)) {
		t.Fatalf("after the hour: got %v", got)
	}

	exactly := time.Date(2026, 3, 10, 5, 0, 0, 0, loc)
	if got := w.nextFiring(exactly); !got.Equal(time.Date(2026, 3, 11, 5, 0, 0, 0, loc)) {
		t.Fatalf("at the hour: got %v, want the next day", got)
	}
}

func TestStartStop(t *testing.T) {
	w := NewDailyReset(nil, zap.NewNop(), 4, time.UTC)
	w.Start()
	w.Stop()
}
