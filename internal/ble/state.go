package ble

import "fmt"

// LinkState is the connection progress of a Link.
type LinkState int

const (
	StateUnpowered LinkState = iota
	StatePoweredOff
	StateUnsupported
	StateUnauthorized
	StateResetting
	StateSearching
	StateConnecting
	StateConnected
	StateServiceDiscovered
	StateReady
)

var stateNames = [...]string{
	StateUnpowered:         "unpowered",
	StatePoweredOff:        "powered off",
	StateUnsupported:       "unsupported",
	StateUnauthorized:      "unauthorized",
	StateResetting:         "resetting",
	StateSearching:         "searching",
	StateConnecting:        "connecting",
	StateConnected:         "connected",
	StateServiceDiscovered: "service discovered",
	StateReady:             "ready",
}

func (s LinkState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("LinkState(%d)", int(s))
}

// linkEvent is an input to the link state machine.
type linkEvent int

const (
	evPower linkEvent = iota // carries a PowerState
	evPeerFound
	evConnected
	evServiceDiscovered
	evCharacteristicsDiscovered
)

var eventNames = [...]string{
	evPower:                     "power",
	evPeerFound:                 "peer found",
	evConnected:                 "connected",
	evServiceDiscovered:         "service discovered",
	evCharacteristicsDiscovered: "characteristics discovered",
}

func (e linkEvent) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("linkEvent(%d)", int(e))
}

// transition returns the state reached from s on event ev. A non-nil error
// is fatal; the returned state then records where the link stopped.
// Power-on after the search has started and resets during setup leave the
// state unchanged.
func transition(s LinkState, ev linkEvent, power PowerState) (LinkState, error) {
	if ev == evPower {
		return powerTransition(s, power)
	}

	var from, to LinkState
	switch ev {
	case evPeerFound:
		from, to = StateSearching, StateConnecting
	case evConnected:
		from, to = StateConnecting, StateConnected
	case evServiceDiscovered:
		from, to = StateConnected, StateServiceDiscovered
	case evCharacteristicsDiscovered:
		from, to = StateServiceDiscovered, StateReady
	default:
		return s, fmt.Errorf("%w: %s", ErrUnexpectedEvent, ev)
	}
	if s != from {
		return s, fmt.Errorf("%w: %s in state %s", ErrUnexpectedEvent, ev, s)
	}
	return to, nil
}

func powerTransition(s LinkState, power PowerState) (LinkState, error) {
	switch power {
	case PowerOn:
		if s == StateUnpowered || s == StateResetting {
			return StateSearching, nil
		}
		return s, nil
	case PowerResetting:
		if s == StateUnpowered || s == StateResetting {
			return StateResetting, nil
		}
		return s, nil
	case PowerOff:
		return StatePoweredOff, fmt.Errorf("%w: bluetooth is powered off", ErrAdapterUnavailable)
	case PowerUnsupported:
		return StateUnsupported, fmt.Errorf("%w: bluetooth is unsupported", ErrAdapterUnavailable)
	case PowerUnauthorized:
		return StateUnauthorized, fmt.Errorf("%w: the application is not allowed to access bluetooth devices", ErrAdapterUnavailable)
	default:
		return StateUnpowered, fmt.Errorf("%w: unknown bluetooth manager state", ErrAdapterUnavailable)
	}
}
