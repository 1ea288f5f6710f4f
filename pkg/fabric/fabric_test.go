package fabric

import "testing"

func TestBridgeStateString(t *testing.T) {
	tests := []struct {
		s    BridgeState
		want string
	}{
		{BridgeCreated, "created"},
		{BridgeDestroyed, "destroyed"},
		{BridgeError, "error"},
		{BridgeState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("BridgeState(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestListenerFunc(t *testing.T) {
	var got BridgeEvent
	var l Listener = ListenerFunc(func(ev BridgeEvent) { got = ev })
	l.OnBridgeEvent(BridgeEvent{BridgeID: "br-1", State: BridgeCreated})
	if got.BridgeID != "br-1" || got.State != BridgeCreated {
		t.Errorf("ListenerFunc did not deliver the event, got %+v", got)
	}
}
