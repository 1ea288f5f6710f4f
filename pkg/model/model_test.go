package model

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Dormant, "DORMANT"},
		{Establishing, "ESTABLISHING"},
		{Inactive, "INACTIVE"},
		{Activating, "ACTIVATING"},
		{Active, "ACTIVE"},
		{Deactivating, "DEACTIVATING"},
		{Releasing, "RELEASING"},
		{Released, "RELEASED"},
		{Failed, "FAILED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(Dormant, Establishing) {
		t.Error("DORMANT -> ESTABLISHING should be legal")
	}
	if CanTransition(Dormant, Active) {
		t.Error("DORMANT -> ACTIVE should not be legal")
	}
	if CanTransition(Released, Establishing) {
		t.Error("RELEASED is terminal, should have no outgoing edges")
	}
	if !CanTransition(Failed, Releasing) {
		t.Error("FAILED -> RELEASING should be legal (cleanup after failure)")
	}
}

func TestTrunkRemainingCapacity(t *testing.T) {
	tr := &Trunk{
		Capacity:  Bandwidth{Upstream: 100, Downstream: 200},
		Allocated: Bandwidth{Upstream: 40, Downstream: 200},
	}
	if got := tr.RemainingUpstream(); got != 60 {
		t.Errorf("RemainingUpstream() = %d, want 60", got)
	}
	if got := tr.RemainingDownstream(); got != 0 {
		t.Errorf("RemainingDownstream() = %d, want 0", got)
	}
}

func TestSideOther(t *testing.T) {
	if SideA.Other() != SideB {
		t.Error("SideA.Other() should be SideB")
	}
	if SideB.Other() != SideA {
		t.Error("SideB.Other() should be SideA")
	}
}

func TestBackingString(t *testing.T) {
	if BackingFabric.String() != "fabric" {
		t.Errorf("BackingFabric.String() = %q", BackingFabric.String())
	}
	if BackingSubnetwork.String() != "subnetwork" {
		t.Errorf("BackingSubnetwork.String() = %q", BackingSubnetwork.String())
	}
}
