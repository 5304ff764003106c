// Package transfer implements the request/response exchanges spoken over the
// frame transport: MTU query, pull (read) and push (write), and the file-level
// flows built on them.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/mouseconnect/internal/ble/protocol"
	"github.com/chaz8081/mouseconnect/internal/files"
)

// FrameIO is the transport the client speaks through. *ble.Transport
// implements it.
type FrameIO interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// Store is the local filesystem collaborator. files.OSStore implements it.
type Store interface {
	Exists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, force bool) error
}

// Client runs one exchange at a time over a FrameIO.
type Client struct {
	io FrameIO
	// Timeout bounds each exchange; zero means unbounded.
	Timeout time.Duration
}

// NewClient creates a client over io.
// Panics if io is nil (programmer error).
func NewClient(io FrameIO) *Client {
	if io == nil {
		panic("transfer: NewClient called with nil FrameIO")
	}
	return &Client{io: io}
}

func (c *Client) exchangeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// QueryMTU asks the device for its MTU.
func (c *Client) QueryMTU(ctx context.Context) (uint32, error) {
	ctx, cancel := c.exchangeContext(ctx)
	defer cancel()

	if err := c.io.Send(ctx, protocol.EncodeMTUQuery()); err != nil {
		return 0, fmt.Errorf("transfer: mtu query: %w", err)
	}
	frame, err := c.io.Receive(ctx)
	if err != nil {
		return 0, fmt.Errorf("transfer: mtu response: %w", err)
	}
	mtu, err := protocol.DecodeMTU(frame)
	if err != nil {
		return 0, err
	}
	slog.Debug("[XFER] mtu", "mtu", mtu)
	return mtu, nil
}

// Push sends content as a write request. The device does not acknowledge it;
// Push returns once every frame has been written.
func (c *Client) Push(ctx context.Context, content []byte) error {
	payload, err := protocol.EncodeWriteRequest(content)
	if err != nil {
		return err
	}

	ctx, cancel := c.exchangeContext(ctx)
	defer cancel()

	slog.Debug("[XFER] push", "bytes", len(content), "payload", len(payload))
	if err := c.io.Send(ctx, payload); err != nil {
		return fmt.Errorf("transfer: push: %w", err)
	}
	return nil
}

// Pull asks the device for its file and reassembles the notification frames
// that follow. Bytes past the announced size are discarded.
func (c *Client) Pull(ctx context.Context) ([]byte, error) {
	ctx, cancel := c.exchangeContext(ctx)
	defer cancel()

	if err := c.io.Send(ctx, protocol.EncodeReadRequest()); err != nil {
		return nil, fmt.Errorf("transfer: read request: %w", err)
	}
	header, err := c.io.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("transfer: pull header: %w", err)
	}
	r, err := protocol.NewReassembler(header)
	if err != nil {
		return nil, err
	}
	slog.Debug("[XFER] pull started", "size", r.Size(), "first", r.Len())

	for !r.Done() {
		frame, err := c.io.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("transfer: pull after %d of %d bytes: %w", r.Len(), r.Size(), err)
		}
		r.Feed(frame)
		slog.Debug("[XFER] pull progress", "received", r.Len(), "size", r.Size())
	}
	return r.Bytes(), nil
}

// Summary describes a completed file transfer.
type Summary struct {
	Path   string
	Bytes  int
	Digest string // BLAKE2b-256, hex
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d bytes, blake2b %s", s.Path, s.Bytes, s.Digest)
}

func summarize(path string, content []byte) Summary {
	return Summary{Path: path, Bytes: len(content), Digest: files.Digest(content)}
}

// PullFile pulls the device's file into dst. Without force, an existing dst
// fails before any exchange. dst is written once, after the whole file has
// arrived, so a failed pull leaves nothing behind.
func (c *Client) PullFile(ctx context.Context, store Store, dst string, force bool) (Summary, error) {
	if !force {
		exists, err := store.Exists(dst)
		if err != nil {
			return Summary{}, err
		}
		if exists {
			return Summary{}, &files.LocalIOError{Op: "write", Path: dst, Err: files.ErrDestinationExists}
		}
	}

	content, err := c.Pull(ctx)
	if err != nil {
		return Summary{}, err
	}
	slog.Info("[XFER] saving", "path", dst, "bytes", len(content))
	if err := store.WriteFile(dst, content, force); err != nil {
		return Summary{}, err
	}
	sum := summarize(dst, content)
	slog.Info("[XFER] pull complete", "path", dst, "bytes", sum.Bytes, "blake2b", sum.Digest)
	return sum, nil
}

// PushFile reads src and pushes its content to the device.
func (c *Client) PushFile(ctx context.Context, store Store, src string) (Summary, error) {
	content, err := store.ReadFile(src)
	if err != nil {
		return Summary{}, err
	}
	if err := c.Push(ctx, content); err != nil {
		return Summary{}, err
	}
	sum := summarize(src, content)
	slog.Info("[XFER] push complete", "path", src, "bytes", sum.Bytes, "blake2b", sum.Digest)
	return sum, nil
}
