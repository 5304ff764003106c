package ble

import (
	"errors"
	"testing"
)

func TestTransitionHappyPath(t *testing.T) {
	steps := []struct {
		ev    linkEvent
		power PowerState
		want  LinkState
	}{
		{evPower, PowerOn, StateSearching},
		{evPeerFound, 0, StateConnecting},
		{evConnected, 0, StateConnected},
		{evServiceDiscovered, 0, StateServiceDiscovered},
		{evCharacteristicsDiscovered, 0, StateReady},
	}

	s := StateUnpowered
	for _, st := range steps {
		next, err := transition(s, st.ev, st.power)
		if err != nil {
			t.Fatalf("transition(%s, %s) error = %v", s, st.ev, err)
		}
		if next != st.want {
			t.Fatalf("transition(%s, %s) = %s, want %s", s, st.ev, next, st.want)
		}
		s = next
	}
}

func TestTransitionPowerStates(t *testing.T) {
	tests := []struct {
		name    string
		from    LinkState
		power   PowerState
		want    LinkState
		wantErr bool
	}{
		{"on from unpowered", StateUnpowered, PowerOn, StateSearching, false},
		{"resetting from unpowered", StateUnpowered, PowerResetting, StateResetting, false},
		{"resetting recurs", StateResetting, PowerResetting, StateResetting, false},
		{"on after reset", StateResetting, PowerOn, StateSearching, false},
		{"on while searching is a no-op", StateSearching, PowerOn, StateSearching, false},
		{"on when ready is a no-op", StateReady, PowerOn, StateReady, false},
		{"reset during setup is a no-op", StateConnecting, PowerResetting, StateConnecting, false},
		{"off", StateUnpowered, PowerOff, StatePoweredOff, true},
		{"unsupported", StateUnpowered, PowerUnsupported, StateUnsupported, true},
		{"unauthorized", StateUnpowered, PowerUnauthorized, StateUnauthorized, true},
		{"unknown", StateUnpowered, PowerUnknown, StateUnpowered, true},
		{"off when ready", StateReady, PowerOff, StatePoweredOff, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transition(tt.from, evPower, tt.power)
			if (err != nil) != tt.wantErr {
				t.Fatalf("transition() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrAdapterUnavailable) {
				t.Errorf("error = %v, want ErrAdapterUnavailable", err)
			}
			if got != tt.want {
				t.Errorf("transition() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTransitionOutOfOrder(t *testing.T) {
	tests := []struct {
		from LinkState
		ev   linkEvent
	}{
		{StateUnpowered, evPeerFound},
		{StateSearching, evConnected},
		{StateConnecting, evServiceDiscovered},
		{StateConnected, evCharacteristicsDiscovered},
		{StateReady, evPeerFound},
		{StateReady, evCharacteristicsDiscovered},
	}
	for _, tt := range tests {
		got, err := transition(tt.from, tt.ev, 0)
		if !errors.Is(err, ErrUnexpectedEvent) {
			t.Errorf("transition(%s, %s) error = %v, want ErrUnexpectedEvent", tt.from, tt.ev, err)
		}
		if got != tt.from {
			t.Errorf("transition(%s, %s) moved to %s", tt.from, tt.ev, got)
		}
	}
}

func TestLinkStateString(t *testing.T) {
	if got := StateServiceDiscovered.String(); got != "service discovered" {
		t.Errorf("String() = %q", got)
	}
	if got := LinkState(99).String(); got != "LinkState(99)" {
		t.Errorf("String() = %q", got)
	}
}
