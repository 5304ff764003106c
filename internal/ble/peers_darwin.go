//go:build darwin

package ble

import (
	"context"
	"fmt"

	"github.com/tinygo-org/cbgo"
)

// stateDelegate forwards central manager state changes.
type stateDelegate struct {
	cbgo.CentralManagerDelegateBase
	updates chan cbgo.ManagerState
}

func (d *stateDelegate) CentralManagerDidUpdateState(cmgr cbgo.CentralManager) {
	select {
	case d.updates <- cmgr.State():
	default:
	}
}

// connectedPeers asks CoreBluetooth for peripherals already connected to the
// system that expose the service. Addresses are peripheral identifiers.
func (a *BluetoothAdapter) connectedPeers(ctx context.Context, serviceUUID string) ([]Device, error) {
	uuid, err := cbgo.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service UUID: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.lookupTimeout)
	defer cancel()

	d := &stateDelegate{updates: make(chan cbgo.ManagerState, 1)}
	cm := cbgo.NewCentralManager(nil)
	cm.SetDelegate(d)

	for state := cm.State(); state != cbgo.ManagerStatePoweredOn; {
		switch state {
		case cbgo.ManagerStateUnknown, cbgo.ManagerStateResetting:
		default:
			return nil, fmt.Errorf("%w: central manager state %d", ErrAdapterUnavailable, state)
		}
		select {
		case state = <-d.updates:
		case <-ctx.Done():
			return nil, fmt.Errorf("ble: wait for central manager: %w", ctx.Err())
		}
	}

	prphs := cm.RetrieveConnectedPeripheralsWithServices([]cbgo.UUID{uuid})
	devices := make([]Device, 0, len(prphs))
	for _, p := range prphs {
		devices = append(devices, Device{
			Name:    p.Name(),
			Address: p.Identifier().String(),
		})
	}
	return devices, nil
}
