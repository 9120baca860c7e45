// ABOUTME: WAV sample decoding
// ABOUTME: Wraps go-audio/wav and rescales source bit depths to int16
package decode

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

func decodeWAV(data []byte) (Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("wav decode: not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("wav decode: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("wav decode: missing format info")
	}

	bitDepth := int(dec.BitDepth)
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = scaleTo16(v, bitDepth)
	}

	return Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Samples:    samples,
	}, nil
}
