package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/pickuphub/internal/domain/fault"
	"github.com/dalemusser/pickuphub/internal/domain/status"
)

func TestTransition_CarriesPair(t *testing.T) {
	err := fault.Transition(status.NotArrived, status.ReadyForPickup)
	if err.Kind != fault.InvalidTransition {
		t.Fatalf("Kind = %v, want InvalidTransition", err.Kind)
	}
	if err.From != status.NotArrived || err.To != status.ReadyForPickup {
		t.Errorf("pair = (%s, %s), want (NOT_ARRIVED, READY_FOR_PICKUP)", err.From, err.To)
	}
}

func TestIs_ThroughWrapping(t *testing.T) {
	inner := fault.New(fault.CapReached, "student already has two active guardians")
	wrapped := fmt.Errorf("bind: %w", inner)

	if !fault.Is(wrapped, fault.CapReached) {
		t.Error("fault.Is should see through fmt.Errorf wrapping")
	}
	if fault.Is(wrapped, fault.NotFound) {
		t.Error("fault.Is matched the wrong kind")
	}
}

func TestKindOf_NonFault(t *testing.T) {
	if k := fault.KindOf(errors.New("plain")); k != 0 {
		t.Errorf("KindOf(plain error) = %v, want 0", k)
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fault.Wrap(fault.Unavailable, cause, "store unavailable")
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve the underlying cause for errors.Is")
	}
}
