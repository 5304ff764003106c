//go:build !linux

package ble

// Write sends data with response and blocks until the peer acknowledges it.
func (c *bluetoothCharacteristic) Write(data []byte) error {
	_, err := c.char.Write(data)
	return err
}
