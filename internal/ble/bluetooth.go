package ble

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

// attHeaderLen is the ATT write request overhead included in a reported MTU.
const attHeaderLen = 3

// defaultWriteLength is the payload of the minimum ATT MTU (23 - 3).
const defaultWriteLength = 20

// BluetoothAdapter wraps tinygo-org/bluetooth. Connected peers are read from
// BlueZ over D-Bus on Linux and from CoreBluetooth on macOS; elsewhere they
// are found by a bounded scan. On macOS, addresses are CoreBluetooth UUIDs
// rather than MAC addresses.
type BluetoothAdapter struct {
	adapter       *bluetooth.Adapter
	lookupTimeout time.Duration

	// mu guards scanning; tinygo allows one scan at a time.
	mu sync.Mutex
}

// NewBluetoothAdapter creates an adapter over the system default controller.
// lookupTimeout bounds the scan used where BlueZ is unavailable.
func NewBluetoothAdapter(lookupTimeout time.Duration) *BluetoothAdapter {
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}
	return &BluetoothAdapter{
		adapter:       bluetooth.DefaultAdapter,
		lookupTimeout: lookupTimeout,
	}
}

// Enable powers on the adapter. tinygo only reports success or failure, so a
// successful enable is delivered as PowerOn.
func (a *BluetoothAdapter) Enable(handler func(PowerState)) error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		slog.Debug("[BLE] connection event", "address", device.Address.String(), "connected", connected)
	})

	go handler(PowerOn)
	return nil
}

func (a *BluetoothAdapter) ConnectedPeers(ctx context.Context, serviceUUID string) ([]Device, error) {
	return a.connectedPeers(ctx, serviceUUID)
}

func (a *BluetoothAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", address, result.err)
		}
		return &bluetoothConnection{device: result.device, address: address}, nil
	}
}

// Compile-time check that BluetoothAdapter implements Adapter.
var _ Adapter = (*BluetoothAdapter)(nil)

type bluetoothConnection struct {
	device  bluetooth.Device
	address string // as requested, used to locate BlueZ objects
}

func (c *bluetoothConnection) Address() string {
	return c.device.Address.String()
}

func (c *bluetoothConnection) DiscoverService(_ context.Context, uuid string) (Service, error) {
	svcUUID, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}
	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, uuid)
	}
	return &bluetoothService{svc: svcs[0], address: c.address}, nil
}

func (c *bluetoothConnection) Disconnect() error {
	return c.device.Disconnect()
}

type bluetoothService struct {
	svc     bluetooth.DeviceService
	address string
}

func (s *bluetoothService) UUID() string {
	return strings.ToLower(s.svc.UUID().String())
}

func (s *bluetoothService) DiscoverCharacteristics(_ context.Context, uuids ...string) ([]Characteristic, error) {
	parsed := make([]bluetooth.UUID, 0, len(uuids))
	for _, u := range uuids {
		p, err := bluetooth.ParseUUID(u)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	chars, err := s.svc.DiscoverCharacteristics(parsed)
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	out := make([]Characteristic, 0, len(chars))
	for i := range chars {
		out = append(out, &bluetoothCharacteristic{char: chars[i], address: s.address})
	}
	return out, nil
}

type bluetoothCharacteristic struct {
	char    bluetooth.DeviceCharacteristic
	address string

	// path caches the BlueZ object path used for writes on Linux.
	mu   sync.Mutex
	path dbus.ObjectPath
}

func (c *bluetoothCharacteristic) UUID() string {
	return strings.ToLower(c.char.UUID().String())
}

func (c *bluetoothCharacteristic) Subscribe(handler NotificationHandler) error {
	return c.char.EnableNotifications(func(buf []byte) {
		handler(buf, nil)
	})
}

// MaxWriteLength reports the usable write payload. BlueZ reports the ATT MTU,
// which includes the 3-byte write header.
func (c *bluetoothCharacteristic) MaxWriteLength() (int, error) {
	mtu, err := c.char.GetMTU()
	if err != nil || mtu == 0 {
		slog.Warn("[BLE] MTU unavailable, using minimum", "error", err, "length", defaultWriteLength)
		return defaultWriteLength, nil
	}
	n := int(mtu)
	if runtime.GOOS == "linux" {
		n -= attHeaderLen
	}
	if n < defaultWriteLength {
		n = defaultWriteLength
	}
	return n, nil
}
