package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LinkOptions configures which peer and GATT resources the link binds to.
type LinkOptions struct {
	ServiceUUID    string
	WriteCharUUID  string
	NotifyCharUUID string
	// PeerAddress, when set, restricts the candidate peers to this address.
	// Exactly one candidate must remain.
	PeerAddress string
	Transport   TransportOptions
}

// DefaultLinkOptions returns options for the Nordic UART Service.
func DefaultLinkOptions() LinkOptions {
	return LinkOptions{
		ServiceUUID:    ServiceUUID,
		WriteCharUUID:  WriteCharUUID,
		NotifyCharUUID: NotifyCharUUID,
		Transport:      DefaultTransportOptions(),
	}
}

// CharacteristicPair holds the write and notify characteristics of the service.
type CharacteristicPair struct {
	Write  Characteristic
	Notify Characteristic
}

// Link drives the adapter from power-on to a subscribed GATT channel with a
// single already-connected peer. All state changes go through transition.
type Link struct {
	adapter Adapter
	opts    LinkOptions

	mu        sync.Mutex
	state     LinkState
	started   bool
	peer      *Device
	conn      Connection
	service   Service
	chars     *CharacteristicPair
	transport *Transport
	err       error

	done     chan struct{} // closed once Ready or failed
	doneOnce sync.Once
	cancel   context.CancelFunc
}

// NewLink creates a link. Call Start or Connect to bring it up.
func NewLink(adapter Adapter, opts LinkOptions) *Link {
	def := DefaultLinkOptions()
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = def.ServiceUUID
	}
	if opts.WriteCharUUID == "" {
		opts.WriteCharUUID = def.WriteCharUUID
	}
	if opts.NotifyCharUUID == "" {
		opts.NotifyCharUUID = def.NotifyCharUUID
	}
	return &Link{
		adapter: adapter,
		opts:    opts,
		state:   StateUnpowered,
		done:    make(chan struct{}),
	}
}

// State returns the current link state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Peer returns the bound peer, or nil before one is found.
func (l *Link) Peer() *Device {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.peer == nil {
		return nil
	}
	p := *l.peer
	return &p
}

// Start enables the adapter. Setup continues on the adapter's goroutines;
// use WaitUntilReady to block until it completes. ctx bounds the setup.
func (l *Link) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	err := l.adapter.Enable(func(ps PowerState) {
		l.onPowerChanged(ctx, ps)
	})
	if err != nil {
		err = &LinkSetupError{State: l.State(), Err: fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)}
		l.fail(err)
		return err
	}
	return nil
}

// WaitUntilReady blocks until the link is Ready or has failed. Once Ready it
// returns immediately without touching the adapter again.
func (l *Link) WaitUntilReady(ctx context.Context) (*Transport, error) {
	select {
	case <-l.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return l.transport, nil
}

// Connect starts the link and waits for it to become ready.
func (l *Link) Connect(ctx context.Context) (*Transport, error) {
	if err := l.Start(ctx); err != nil {
		return nil, err
	}
	return l.WaitUntilReady(ctx)
}

// Close fails any pending waiters and stops the transport. The peer stays
// connected; the system owns that connection.
func (l *Link) Close() error {
	l.fail(&LinkSetupError{State: l.State(), Err: ErrClosed})

	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// apply runs one transition. A fatal transition fails the link.
func (l *Link) apply(ev linkEvent, power PowerState) (LinkState, LinkState, error) {
	l.mu.Lock()
	from := l.state
	if l.err != nil {
		l.mu.Unlock()
		return from, from, l.err
	}
	to, err := transition(from, ev, power)
	l.state = to
	l.mu.Unlock()

	if err != nil {
		err = &LinkSetupError{State: to, Err: err}
		l.fail(err)
		return from, to, err
	}
	if from != to {
		slog.Debug("[BLE] link state", "from", from, "to", to)
	}
	return from, to, nil
}

// fail records the first fatal error, releases waiters and stops the transport.
func (l *Link) fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	t := l.transport
	l.mu.Unlock()

	if t != nil {
		t.abort(err)
	}
	l.doneOnce.Do(func() { close(l.done) })
}

func (l *Link) ready(t *Transport) error {
	l.mu.Lock()
	l.transport = t
	l.mu.Unlock()
	if _, _, err := l.apply(evCharacteristicsDiscovered, 0); err != nil {
		t.abort(err)
		return err
	}
	l.doneOnce.Do(func() { close(l.done) })
	return nil
}

// onPowerChanged runs on the adapter's goroutine.
func (l *Link) onPowerChanged(ctx context.Context, ps PowerState) {
	if ps == PowerResetting {
		slog.Info("[BLE] resetting connection with the system service")
	}
	from, to, err := l.apply(evPower, ps)
	if err != nil {
		slog.Error("[BLE] adapter unusable", "power", ps, "error", err)
		return
	}
	if to == StateSearching && from != StateSearching {
		go l.establish(ctx)
	}
}

// establish binds the single connected peer, discovers the service and its
// characteristics and subscribes to notifications.
func (l *Link) establish(ctx context.Context) {
	if err := l.establishSteps(ctx); err != nil {
		var lse *LinkSetupError
		if !errors.As(err, &lse) {
			err = &LinkSetupError{State: l.State(), Err: err}
		}
		l.fail(err)
	}
}

func (l *Link) establishSteps(ctx context.Context) error {
	peers, err := l.adapter.ConnectedPeers(ctx, l.opts.ServiceUUID)
	if err != nil {
		return fmt.Errorf("list connected peers: %w", err)
	}
	peers = filterPeers(peers, l.opts.PeerAddress)
	switch len(peers) {
	case 0:
		return ErrNoPeer
	case 1:
	default:
		return fmt.Errorf("%w: found %d", ErrAmbiguousPeer, len(peers))
	}
	peer := peers[0]

	l.mu.Lock()
	l.peer = &peer
	l.mu.Unlock()
	if _, _, err := l.apply(evPeerFound, 0); err != nil {
		return err
	}
	slog.Info("[BLE] connected peer found", "name", peer.DisplayName(), "address", peer.Address)

	conn, err := l.adapter.Connect(ctx, peer.Address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", peer.Address, err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	if !sameID(conn.Address(), peer.Address) {
		return fmt.Errorf("%w: connected to %s, expected %s", ErrIdentityMismatch, conn.Address(), peer.Address)
	}
	if _, _, err := l.apply(evConnected, 0); err != nil {
		return err
	}

	svc, err := conn.DiscoverService(ctx, l.opts.ServiceUUID)
	if err != nil {
		return fmt.Errorf("discover service %s: %w", l.opts.ServiceUUID, err)
	}
	if svc == nil {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, l.opts.ServiceUUID)
	}
	if !sameID(svc.UUID(), l.opts.ServiceUUID) {
		return fmt.Errorf("%w: service %s, expected %s", ErrIdentityMismatch, svc.UUID(), l.opts.ServiceUUID)
	}
	l.mu.Lock()
	l.service = svc
	l.mu.Unlock()
	if _, _, err := l.apply(evServiceDiscovered, 0); err != nil {
		return err
	}

	chars, err := svc.DiscoverCharacteristics(ctx, l.opts.WriteCharUUID, l.opts.NotifyCharUUID)
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}
	pair, err := pickPair(chars, l.opts.WriteCharUUID, l.opts.NotifyCharUUID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.chars = pair
	l.mu.Unlock()
	slog.Info("[BLE] service discovery succeeded", "service", l.opts.ServiceUUID)

	t, err := NewTransport(pair.Write, pair.Notify, l.opts.Transport)
	if err != nil {
		return err
	}
	return l.ready(t)
}

func pickPair(chars []Characteristic, writeUUID, notifyUUID string) (*CharacteristicPair, error) {
	pair := &CharacteristicPair{}
	for _, c := range chars {
		if c == nil {
			continue
		}
		switch {
		case sameID(c.UUID(), writeUUID):
			pair.Write = c
		case sameID(c.UUID(), notifyUUID):
			pair.Notify = c
		default:
			return nil, fmt.Errorf("%w: characteristic %s", ErrIdentityMismatch, c.UUID())
		}
	}
	if pair.Write == nil {
		return nil, fmt.Errorf("%w: write %s", ErrCharacteristicNotFound, writeUUID)
	}
	if pair.Notify == nil {
		return nil, fmt.Errorf("%w: notify %s", ErrCharacteristicNotFound, notifyUUID)
	}
	return pair, nil
}

func filterPeers(peers []Device, address string) []Device {
	if address == "" {
		return peers
	}
	var out []Device
	for _, p := range peers {
		if sameID(p.Address, address) {
			out = append(out, p)
		}
	}
	return out
}

// sameID compares UUIDs and addresses case-insensitively.
func sameID(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ListPeers enables the adapter and lists connected peers exposing the
// service, without binding to any of them.
func ListPeers(ctx context.Context, adapter Adapter, serviceUUID string) ([]Device, error) {
	powered := make(chan PowerState, 1)
	err := adapter.Enable(func(ps PowerState) {
		if ps == PowerResetting {
			return
		}
		select {
		case powered <- ps:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	select {
	case ps := <-powered:
		if ps != PowerOn {
			return nil, fmt.Errorf("%w: %s", ErrAdapterUnavailable, ps)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	devices, err := adapter.ConnectedPeers(ctx, serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: list connected peers: %w", err)
	}
	return devices, nil
}
