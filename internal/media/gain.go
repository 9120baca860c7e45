// ABOUTME: Gain-applying PCM reader feeding the output player
// ABOUTME: Tracks bytes consumed so playback position can be derived
package media

import (
	"encoding/binary"
	"io"
	"sync"
)

// gainReader serves 16-bit little-endian PCM with a software gain applied
// in the read path. The gain can change between reads; audio already
// buffered by the output device keeps its old gain, which is inaudible at
// the device's buffer sizes.
type gainReader struct {
	mu   sync.Mutex
	data []byte
	pos  int64
	gain float64
}

func newGainReader(data []byte, offset int64) *gainReader {
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return &gainReader{data: data, pos: offset, gain: 1.0}
}

func (r *gainReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}

	n := copy(p, r.data[r.pos:])
	n -= n % 2 // whole samples only
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i += 2 {
		s := int16(binary.LittleEndian.Uint16(p[i:]))
		scaled := int16(float64(s) * r.gain)
		binary.LittleEndian.PutUint16(p[i:], uint16(scaled))
	}

	r.pos += int64(n)
	return n, nil
}

// setGain sets the multiplier applied to subsequent reads
func (r *gainReader) setGain(gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gain = gain
}

// consumed returns how many bytes have been read so far, including the
// starting offset.
func (r *gainReader) consumed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// exhausted reports whether all data has been served
func (r *gainReader) exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos >= int64(len(r.data))
}
