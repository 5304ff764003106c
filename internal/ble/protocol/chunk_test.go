// internal/ble/protocol/chunk_test.go
package protocol

import (
	"bytes"
	"testing"
)

func makePayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i * 7)
	}
	return p
}

func TestChunkFitsInOne(t *testing.T) {
	data := []byte("mtu")
	chunks := Chunk(data, MaxFrameSize)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !bytes.Equal(chunks[0], data) {
		t.Errorf("chunk[0] = %q, want %q", chunks[0], data)
	}
}

func TestChunkEmpty(t *testing.T) {
	if chunks := Chunk(nil, MaxFrameSize); len(chunks) != 0 {
		t.Errorf("got %d chunks for empty payload, want 0", len(chunks))
	}
}

func TestChunkZeroSize(t *testing.T) {
	if chunks := Chunk([]byte("hello"), 0); chunks != nil {
		t.Errorf("Chunk with size=0 should return nil, got %v", chunks)
	}
}

func TestChunkReassemblesExactly(t *testing.T) {
	for _, n := range []int{1, 61, 62, 63, 124, 136, 1000} {
		for _, size := range []int{1, 3, 20, 62} {
			data := makePayload(n)
			chunks := Chunk(data, size)

			var joined []byte
			for i, c := range chunks {
				if len(c) > size {
					t.Errorf("n=%d size=%d: chunk[%d] len=%d exceeds size", n, size, i, len(c))
				}
				joined = append(joined, c...)
			}
			if !bytes.Equal(joined, data) {
				t.Errorf("n=%d size=%d: reassembled payload differs from original", n, size)
			}

			wantLast := n % size
			if wantLast == 0 {
				wantLast = size
			}
			if got := len(chunks[len(chunks)-1]); got != wantLast {
				t.Errorf("n=%d size=%d: last chunk len = %d, want %d", n, size, got, wantLast)
			}
		}
	}
}

func TestChunkPushLengths(t *testing.T) {
	// 6-byte header + 130 bytes of content at the 62-byte cap.
	chunks := Chunk(makePayload(136), 62)
	want := []int{62, 62, 12}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if len(c) != want[i] {
			t.Errorf("chunk[%d] len = %d, want %d", i, len(c), want[i])
		}
	}
}

func TestChunkDoesNotShareCapacity(t *testing.T) {
	data := makePayload(10)
	chunks := Chunk(data, 4)
	_ = append(chunks[0], 0xFF)
	if data[4] == 0xFF {
		t.Error("appending to a chunk overwrote the following bytes")
	}
}

func TestFrameSize(t *testing.T) {
	tests := []struct {
		maxWrite int
		want     int
	}{
		{20, 20},
		{62, 62},
		{182, 62},
		{512, 62},
	}
	for _, tt := range tests {
		if got := FrameSize(tt.maxWrite); got != tt.want {
			t.Errorf("FrameSize(%d) = %d, want %d", tt.maxWrite, got, tt.want)
		}
	}
}
