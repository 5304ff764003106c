// Package ble provides the link engine for talking to a mouse over the
// Nordic UART Service: the connection state machine, the blocking frame
// transport built on GATT write and notify, and the platform adapter.
package ble

import "context"

// Nordic UART Service UUIDs
const (
	ServiceUUID    = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	WriteCharUUID  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	NotifyCharUUID = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// PowerState is the adapter's reported power state.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerResetting
	PowerUnsupported
	PowerUnauthorized
	PowerOff
	PowerOn
)

func (p PowerState) String() string {
	switch p {
	case PowerResetting:
		return "resetting"
	case PowerUnsupported:
		return "unsupported"
	case PowerUnauthorized:
		return "unauthorized"
	case PowerOff:
		return "powered off"
	case PowerOn:
		return "powered on"
	default:
		return "unknown"
	}
}

// NotificationHandler receives one notification. err is non-nil when the
// platform reported a failed value update; data is then nil.
type NotificationHandler func(data []byte, err error)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// UUID returns the characteristic UUID in lowercase canonical form.
	UUID() string
	// Write sends data with response and blocks until the peer acknowledges it.
	Write(data []byte) error
	// Subscribe enables notifications and registers the handler for them.
	Subscribe(handler NotificationHandler) error
	// MaxWriteLength reports the largest value a single write may carry.
	MaxWriteLength() (int, error)
}

// Service represents a discovered GATT service on the peer.
type Service interface {
	UUID() string
	// DiscoverCharacteristics finds the characteristics with the given UUIDs.
	// Characteristics the peer lacks are absent from the result.
	DiscoverCharacteristics(ctx context.Context, uuids ...string) ([]Characteristic, error)
}

// Device represents a peer known to the adapter.
type Device struct {
	Name    string
	Address string
}

// DisplayName returns the peer name, or a placeholder naming its address.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return "unnamed device (UUID: " + d.Address + ")"
}

// Connection represents an active GATT connection to a peer.
type Connection interface {
	// Address returns the address of the connected peer.
	Address() string
	// DiscoverService finds the service with the given UUID. A missing
	// service yields ErrServiceNotFound.
	DiscoverService(ctx context.Context, uuid string) (Service, error)
	// Disconnect terminates the connection. Link never calls it: the peer is
	// connected and bonded by the system and stays so after a transfer.
	Disconnect() error
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the adapter. Power state changes are delivered to
	// handler on the adapter's own goroutine, possibly more than once.
	Enable(handler func(PowerState)) error
	// ConnectedPeers lists peers already connected to this host that expose
	// the given service.
	ConnectedPeers(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect opens a GATT connection to the peer with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
