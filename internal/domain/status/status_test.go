package status_test

import (
	"testing"

	"github.com/dalemusser/pickuphub/internal/domain/status"
)

func TestCanTransition_Table(t *testing.T) {
	legal := map[[2]status.Status]bool{
		{status.NotArrived, status.Arrived}:              true,
		{status.Arrived, status.ReadyForPickup}:          true,
		{status.Arrived, status.HomeworkPending}:         true,
		{status.Arrived, status.PickupCompleted}:         true,
		{status.HomeworkPending, status.ReadyForPickup}:  true,
		{status.ReadyForPickup, status.PickupCompleted}:  true,
		{status.ParentEnRoute, status.PickupCompleted}:   true,
	}

	for _, from := range status.All() {
		for _, to := range status.All() {
			want := legal[[2]status.Status{from, to}]
			if got := status.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	if status.CanTransition("BOGUS", status.Arrived) {
		t.Error("unknown from-status should have no targets")
	}
	if status.CanTransition(status.NotArrived, "BOGUS") {
		t.Error("unknown to-status should never be reachable")
	}
}

func TestIsValid(t *testing.T) {
	for _, s := range status.All() {
		if !status.IsValid(s) {
			t.Errorf("IsValid(%s) = false, want true", s)
		}
	}
	if status.IsValid("left_early") {
		t.Error(`IsValid("left_early") = true, want false`)
	}
}

func TestIsTerminal(t *testing.T) {
	if !status.IsTerminal(status.PickupCompleted) {
		t.Error("PICKUP_COMPLETED should be terminal")
	}
	for _, s := range []status.Status{status.NotArrived, status.Arrived, status.ReadyForPickup, status.HomeworkPending, status.ParentEnRoute} {
		if status.IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if status.IsTerminal("BOGUS") {
		t.Error("unknown status must not report terminal")
	}
}

func TestPickupEligible(t *testing.T) {
	eligible := map[status.Status]bool{
		status.Arrived:         true,
		status.ReadyForPickup:  true,
		status.HomeworkPending: true,
	}
	for _, s := range status.All() {
		if got := status.PickupEligible(s); got != eligible[s] {
			t.Errorf("PickupEligible(%s) = %v, want %v", s, got, eligible[s])
		}
	}
}
