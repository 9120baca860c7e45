// ABOUTME: Ogg Vorbis sample decoding
// ABOUTME: Wraps jfreymuth/oggvorbis and converts float32 output to int16
package decode

import (
	"bytes"
	"fmt"

	"github.com/jfreymuth/oggvorbis"
)

func decodeVorbis(data []byte) (Clip, error) {
	pcm, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("vorbis decode: %w", err)
	}

	samples := make([]int16, len(pcm))
	for i, f := range pcm {
		samples[i] = floatToInt16(f)
	}

	return Clip{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Samples:    samples,
	}, nil
}

// floatToInt16 converts a [-1,1] float sample to int16 with clipping
func floatToInt16(f float32) int16 {
	v := int32(f * 32767)
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}
