package ble

import (
	"errors"
	"fmt"
)

// Link setup failures.
var (
	ErrAdapterUnavailable     = errors.New("bluetooth adapter unavailable")
	ErrNoPeer                 = errors.New("no connected devices")
	ErrAmbiguousPeer          = errors.New("more than one connected device")
	ErrServiceNotFound        = errors.New("service not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrIdentityMismatch       = errors.New("unexpected peer, service or characteristic")
	ErrUnexpectedEvent        = errors.New("unexpected link event")
)

// Transport failures.
var (
	ErrBusy          = errors.New("operation already in flight")
	ErrNotifyOverrun = errors.New("notification queue overrun")
	ErrClosed        = errors.New("transport closed")
	ErrNoData        = errors.New("notification carried no value")
)

// LinkSetupError reports a failure while bringing the link to Ready.
type LinkSetupError struct {
	State LinkState // state in which the failure was detected
	Err   error
}

func (e *LinkSetupError) Error() string {
	return fmt.Sprintf("ble: link setup (%s): %v", e.State, e.Err)
}

func (e *LinkSetupError) Unwrap() error { return e.Err }

// TransportError reports a failed write or notification.
type TransportError struct {
	Op  string // "write" or "notify"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ble: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
