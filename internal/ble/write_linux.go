//go:build linux

package ble

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Write issues a write request through BlueZ. tinygo only offers writes
// without response on Linux.
func (c *bluetoothCharacteristic) Write(data []byte) error {
	path, err := c.objectPath()
	if err != nil {
		return err
	}
	if err := bluezWriteRequest(path, data); err != nil {
		return fmt.Errorf("ble: write %s: %w", c.UUID(), err)
	}
	return nil
}

func (c *bluetoothCharacteristic) objectPath() (dbus.ObjectPath, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path != "" {
		return c.path, nil
	}

	objects, err := bluezManagedObjects(context.Background())
	if err != nil {
		return "", err
	}
	path, ok := characteristicPathFromObjects(objects, c.address, c.UUID())
	if !ok {
		return "", fmt.Errorf("%w: no BlueZ object for %s on %s", ErrCharacteristicNotFound, c.UUID(), c.address)
	}
	c.path = path
	return path, nil
}
