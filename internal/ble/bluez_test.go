package ble

import (
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

func device1(addr, name string, connected bool, uuids ...string) map[string]map[string]dbus.Variant {
	props := map[string]dbus.Variant{
		"Address":   dbus.MakeVariant(addr),
		"Connected": dbus.MakeVariant(connected),
		"UUIDs":     dbus.MakeVariant(uuids),
	}
	if name != "" {
		props["Name"] = dbus.MakeVariant(name)
	}
	return map[string]map[string]dbus.Variant{bluezDeviceIface: props}
}

func TestConnectedPeersFromObjects(t *testing.T) {
	objects := managedObjects{
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {"Address": dbus.MakeVariant("00:11:22:33:44:55")},
		},
		"/org/bluez/hci0/dev_CC": device1("CC:CC:CC:CC:CC:CC", "", true, "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"),
		"/org/bluez/hci0/dev_AA": device1("AA:AA:AA:AA:AA:AA", "MouseV2", true, "00001800-0000-1000-8000-00805f9b34fb", ServiceUUID),
		"/org/bluez/hci0/dev_BB": device1("BB:BB:BB:BB:BB:BB", "Keyboard", true, "00001812-0000-1000-8000-00805f9b34fb"),
		"/org/bluez/hci0/dev_DD": device1("DD:DD:DD:DD:DD:DD", "Paired", false, ServiceUUID),
	}

	got := connectedPeersFromObjects(objects, ServiceUUID)
	want := []Device{
		{Name: "MouseV2", Address: "AA:AA:AA:AA:AA:AA"},
		{Address: "CC:CC:CC:CC:CC:CC"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d peers (%+v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("peer %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConnectedPeersFromObjectsEmpty(t *testing.T) {
	if got := connectedPeersFromObjects(managedObjects{}, ServiceUUID); len(got) != 0 {
		t.Errorf("got %d peers, want 0", len(got))
	}
}

func TestContainsFold(t *testing.T) {
	list := []string{"6E400001-B5A3-F393-E0A9-E50E24DCCA9E"}
	if !containsFold(list, ServiceUUID) {
		t.Error("containsFold should ignore case")
	}
	if containsFold(list, WriteCharUUID) {
		t.Error("containsFold matched a different UUID")
	}
}

func gattChar(uuid string) map[string]map[string]dbus.Variant {
	return map[string]map[string]dbus.Variant{
		bluezCharIface: {"UUID": dbus.MakeVariant(uuid)},
	}
}

func TestCharacteristicPathFromObjects(t *testing.T) {
	objects := managedObjects{
		"/org/bluez/hci0/dev_AA":                       device1("AA:AA:AA:AA:AA:AA", "MouseV2", true, ServiceUUID),
		"/org/bluez/hci0/dev_AA/service000c/char000d":  gattChar(strings.ToUpper(WriteCharUUID)),
		"/org/bluez/hci0/dev_AA/service000c/char000f":  gattChar(NotifyCharUUID),
		"/org/bluez/hci0/dev_AAB":                      device1("AA:AA:AA:AA:AA:AB", "Other", true, ServiceUUID),
		"/org/bluez/hci0/dev_AAB/service000c/char000d": gattChar(WriteCharUUID),
		"/org/bluez/hci0/dev_BB":                       device1("BB:BB:BB:BB:BB:BB", "Keyboard", true),
		"/org/bluez/hci0/dev_BB/service0010/char0011":  gattChar("00002a4d-0000-1000-8000-00805f9b34fb"),
	}

	tests := []struct {
		name    string
		address string
		uuid    string
		want    dbus.ObjectPath
		found   bool
	}{
		{"write", "AA:AA:AA:AA:AA:AA", WriteCharUUID, "/org/bluez/hci0/dev_AA/service000c/char000d", true},
		{"notify", "aa:aa:aa:aa:aa:aa", NotifyCharUUID, "/org/bluez/hci0/dev_AA/service000c/char000f", true},
		{"other device", "AA:AA:AA:AA:AA:AB", WriteCharUUID, "/org/bluez/hci0/dev_AAB/service000c/char000d", true},
		{"missing characteristic", "BB:BB:BB:BB:BB:BB", WriteCharUUID, "", false},
		{"unknown device", "CC:CC:CC:CC:CC:CC", WriteCharUUID, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := characteristicPathFromObjects(objects, tt.address, tt.uuid)
			if ok != tt.found || got != tt.want {
				t.Errorf("characteristicPathFromObjects() = %q, %v, want %q, %v", got, ok, tt.want, tt.found)
			}
		})
	}
}
