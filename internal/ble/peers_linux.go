//go:build linux

package ble

import "context"

func (a *BluetoothAdapter) connectedPeers(ctx context.Context, serviceUUID string) ([]Device, error) {
	return bluezConnectedPeers(ctx, serviceUUID)
}
