package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/chaz8081/mouseconnect/internal/ble/protocol"
)

// TransportOptions configures the frame transport.
type TransportOptions struct {
	MaxFrameSize int // cap on a single write, never above protocol.MaxFrameSize
	NotifyQueue  int // notifications buffered ahead of Receive
}

// DefaultTransportOptions returns sensible defaults.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		MaxFrameSize: protocol.MaxFrameSize,
		NotifyQueue:  64,
	}
}

type notification struct {
	data []byte
	err  error
}

// Transport turns asynchronous GATT write completions and notifications into
// blocking Send and Receive calls. At most one Send and one Receive may be
// in flight; a second concurrent call fails with ErrBusy.
type Transport struct {
	write  Characteristic
	notify Characteristic
	mtu    int

	inbox chan notification

	sending   atomic.Bool
	receiving atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// NewTransport builds a transport over the write/notify characteristic pair
// and subscribes to notifications. The frame size is the smaller of the
// characteristic's max write length and opts.MaxFrameSize.
func NewTransport(write, notify Characteristic, opts TransportOptions) (*Transport, error) {
	if opts.MaxFrameSize <= 0 || opts.MaxFrameSize > protocol.MaxFrameSize {
		opts.MaxFrameSize = protocol.MaxFrameSize
	}
	if opts.NotifyQueue <= 0 {
		opts.NotifyQueue = 64
	}

	maxWrite, err := write.MaxWriteLength()
	if err != nil {
		return nil, fmt.Errorf("ble: max write length: %w", err)
	}
	mtu := protocol.FrameSize(maxWrite)
	if mtu > opts.MaxFrameSize {
		mtu = opts.MaxFrameSize
	}
	if mtu <= 0 {
		return nil, fmt.Errorf("ble: link reports unusable write length %d", maxWrite)
	}

	t := &Transport{
		write:  write,
		notify: notify,
		mtu:    mtu,
		inbox:  make(chan notification, opts.NotifyQueue),
		closed: make(chan struct{}),
	}
	if err := notify.Subscribe(t.onNotify); err != nil {
		return nil, fmt.Errorf("ble: subscribe to %s: %w", notify.UUID(), err)
	}
	slog.Debug("[BLE] transport ready", "mtu", mtu, "reported", maxWrite)
	return t, nil
}

// MTU returns the frame size used to chunk writes.
func (t *Transport) MTU() int { return t.mtu }

// Send writes data, split into MTU-sized frames. Each frame is written with
// response and acknowledged before the next is issued. If ctx ends or the
// transport closes while a write is outstanding, Send returns at once but the
// write slot stays held until that write completes.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	if !t.sending.CompareAndSwap(false, true) {
		return &TransportError{Op: "write", Err: ErrBusy}
	}

	frames := protocol.Chunk(data, t.mtu)
	for i, frame := range frames {
		abandoned, err := t.writeFrame(ctx, frame)
		if err != nil {
			slog.Debug("[BLE] write failed", "frame", i+1, "of", len(frames), "error", err)
			if !abandoned {
				t.sending.Store(false)
			}
			return err
		}
	}
	t.sending.Store(false)
	return nil
}

// writeFrame performs one characteristic write. abandoned reports that the
// wait was cut short while the write is still outstanding; the slot is then
// released by the writing goroutine.
func (t *Transport) writeFrame(ctx context.Context, frame []byte) (abandoned bool, err error) {
	select {
	case <-t.closed:
		return false, &TransportError{Op: "write", Err: t.closeErr}
	default:
	}

	// The characteristic write blocks until the peer responds; run it aside
	// so cancellation and close can still interrupt the wait.
	done := make(chan error, 1)
	go func() {
		done <- t.write.Write(frame)
	}()

	select {
	case err := <-done:
		slog.Debug("[BLE] write complete", "len", len(frame), "error", err)
		if err != nil {
			return false, &TransportError{Op: "write", Err: err}
		}
		return false, nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-t.closed:
		err = t.closeErr
	}

	go func() {
		<-done
		t.sending.Store(false)
	}()
	return true, &TransportError{Op: "write", Err: err}
}

// Receive blocks until the next notification arrives and returns its payload.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if !t.receiving.CompareAndSwap(false, true) {
		return nil, &TransportError{Op: "notify", Err: ErrBusy}
	}
	defer t.receiving.Store(false)

	// Drain queued notifications before reporting a close.
	select {
	case n := <-t.inbox:
		return n.result()
	default:
	}

	select {
	case n := <-t.inbox:
		return n.result()
	case <-ctx.Done():
		return nil, &TransportError{Op: "notify", Err: ctx.Err()}
	case <-t.closed:
		return nil, &TransportError{Op: "notify", Err: t.closeErr}
	}
}

func (n notification) result() ([]byte, error) {
	if n.err != nil {
		return nil, &TransportError{Op: "notify", Err: n.err}
	}
	return n.data, nil
}

// onNotify runs on the adapter's goroutine.
func (t *Transport) onNotify(data []byte, err error) {
	slog.Debug("[BLE] notification", "len", len(data), "error", err)
	if err == nil && len(data) == 0 {
		err = ErrNoData
	}
	n := notification{err: err}
	if err == nil {
		n.data = append([]byte(nil), data...)
	}

	select {
	case <-t.closed:
		return
	default:
	}
	select {
	case t.inbox <- n:
	default:
		slog.Error("[BLE] notification queue full", "capacity", cap(t.inbox))
		t.abort(ErrNotifyOverrun)
	}
}

// abort closes the transport with err; blocked and future calls fail with it.
func (t *Transport) abort(err error) {
	t.closeOnce.Do(func() {
		t.closeErr = err
		close(t.closed)
	})
}

// Close stops the transport. Pending Send and Receive calls return ErrClosed.
func (t *Transport) Close() error {
	t.abort(ErrClosed)
	return nil
}
