// internal/ble/protocol/chunk.go
package protocol

// MaxFrameSize is the protocol's fixed ceiling on a single write, applied
// on top of whatever the link reports.
const MaxFrameSize = 62

// Chunk splits data into consecutive slices of at most size bytes. The last
// slice holds the remainder. Returns nil for empty data or a non-positive size.
// The returned slices alias data.
func Chunk(data []byte, size int) [][]byte {
	if len(data) == 0 || size <= 0 {
		return nil
	}
	if len(data) <= size {
		return [][]byte{data[:len(data):len(data)]}
	}

	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > 0 {
		n := size
		if len(data) < n {
			n = len(data)
		}
		chunks = append(chunks, data[:n:n])
		data = data[n:]
	}
	return chunks
}

// FrameSize returns the write size to use for a link reporting maxWrite
// bytes per write: the smaller of maxWrite and MaxFrameSize.
func FrameSize(maxWrite int) int {
	if maxWrite > MaxFrameSize {
		return MaxFrameSize
	}
	return maxWrite
}
