package model

// validTransitions enumerates the legal edges of the lifecycle state
// machine (spec §3/§4.3): constructed DORMANT, initiate() moves to
// ESTABLISHING, and so on through to RELEASED; the in-progress states
// ESTABLISHING, ACTIVATING, DEACTIVATING and RELEASING may fall to FAILED
// on an unrecoverable sub-service error.
var validTransitions = map[State]map[State]bool{
	Dormant:      {Establishing: true},
	Establishing: {Inactive: true, Failed: true},
	Inactive:     {Activating: true, Releasing: true},
	Activating:   {Active: true, Failed: true},
	Active:       {Deactivating: true, Releasing: true},
	Deactivating: {Inactive: true, Failed: true},
	Releasing:    {Released: true, Failed: true},
	Released:     {},
	Failed:       {Releasing: true},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge
// of the service lifecycle state machine.
func CanTransition(from, to State) bool {
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}
