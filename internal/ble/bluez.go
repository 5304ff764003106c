package ble

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName        = "org.bluez"
	bluezDeviceIface    = "org.bluez.Device1"
	bluezCharIface      = "org.bluez.GattCharacteristic1"
	bluezWriteValue     = bluezCharIface + ".WriteValue"
	getManagedObjects   = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	bluezObjectRootPath = dbus.ObjectPath("/")
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// bluezManagedObjects fetches every object BlueZ exports.
func bluezManagedObjects(ctx context.Context) (managedObjects, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("ble: connect to system bus: %w", err)
	}

	objects := make(managedObjects)
	obj := conn.Object(bluezBusName, bluezObjectRootPath)
	if err := obj.CallWithContext(ctx, getManagedObjects, 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("ble: get managed objects: %w", err)
	}
	return objects, nil
}

// bluezConnectedPeers asks BlueZ for devices that are connected to this host
// and list serviceUUID among their resolved services.
func bluezConnectedPeers(ctx context.Context, serviceUUID string) ([]Device, error) {
	objects, err := bluezManagedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return connectedPeersFromObjects(objects, serviceUUID), nil
}

// bluezWriteRequest writes value to the characteristic at path as an ATT
// write request and returns once the peer has responded.
func bluezWriteRequest(path dbus.ObjectPath, value []byte) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("ble: connect to system bus: %w", err)
	}
	opts := map[string]dbus.Variant{"type": dbus.MakeVariant("request")}
	return conn.Object(bluezBusName, path).Call(bluezWriteValue, 0, value, opts).Err
}

// connectedPeersFromObjects filters BlueZ Device1 objects, sorted by address.
func connectedPeersFromObjects(objects managedObjects, serviceUUID string) []Device {
	var peers []Device
	for _, ifaces := range objects {
		props, ok := ifaces[bluezDeviceIface]
		if !ok {
			continue
		}
		if connected, _ := props["Connected"].Value().(bool); !connected {
			continue
		}
		uuids, _ := props["UUIDs"].Value().([]string)
		if !containsFold(uuids, serviceUUID) {
			continue
		}

		addr, _ := props["Address"].Value().(string)
		name, _ := props["Name"].Value().(string)
		peers = append(peers, Device{Name: name, Address: addr})
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Address < peers[j].Address })
	return peers
}

// characteristicPathFromObjects finds the object path of the characteristic
// with charUUID that belongs to the device with address.
func characteristicPathFromObjects(objects managedObjects, address, charUUID string) (dbus.ObjectPath, bool) {
	var devicePath dbus.ObjectPath
	for path, ifaces := range objects {
		props, ok := ifaces[bluezDeviceIface]
		if !ok {
			continue
		}
		if addr, _ := props["Address"].Value().(string); strings.EqualFold(addr, address) {
			devicePath = path
			break
		}
	}
	if devicePath == "" {
		return "", false
	}

	prefix := string(devicePath) + "/"
	for path, ifaces := range objects {
		props, ok := ifaces[bluezCharIface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		if uuid, _ := props["UUID"].Value().(string); strings.EqualFold(uuid, charUUID) {
			return path, true
		}
	}
	return "", false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
