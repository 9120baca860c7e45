// ABOUTME: FLAC sample decoding
// ABOUTME: Wraps mewkiz/flac frame parsing and interleaves subframe channels
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

func decodeFLAC(data []byte) (Clip, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("flac decode: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if channels <= 0 {
		return Clip{}, fmt.Errorf("flac decode: no channels")
	}

	var samples []int16
	if info.NSamples > 0 {
		samples = make([]int16, 0, int(info.NSamples)*channels)
	}

	for {
		fr, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("flac decode: %w", err)
		}
		if len(fr.Subframes) != channels {
			return Clip{}, fmt.Errorf("flac decode: frame has %d subframes, expected %d", len(fr.Subframes), channels)
		}

		// Subframes are per-channel; interleave them
		n := len(fr.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, scaleTo16(int(fr.Subframes[ch].Samples[i]), bitDepth))
			}
		}
	}

	return Clip{
		SampleRate: int(info.SampleRate),
		Channels:   channels,
		Samples:    samples,
	}, nil
}
