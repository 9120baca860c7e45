// ABOUTME: Ogg Opus sample decoding
// ABOUTME: Wraps the opusfile stream API; opus output is always 48kHz
package decode

import (
	"bytes"
	"fmt"
	"io"

	opus "gopkg.in/hraban/opus.v2"
)

// opusOutputRate is fixed by libopusfile: decoded output is always 48kHz.
const opusOutputRate = 48000

func decodeOpus(data []byte) (Clip, error) {
	channels, err := opusChannels(data)
	if err != nil {
		return Clip{}, fmt.Errorf("opus decode: %w", err)
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("opus decode: %w", err)
	}
	defer stream.Close()

	var samples []int16
	buf := make([]int16, 16384)
	for {
		// Read reports samples per channel
		n, err := stream.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("opus decode: %w", err)
		}
		if n == 0 {
			break
		}
		samples = append(samples, buf[:n*channels]...)
	}

	return Clip{
		SampleRate: opusOutputRate,
		Channels:   channels,
		Samples:    samples,
	}, nil
}

// opusChannels reads the channel count from the OpusHead header in the
// first Ogg page. The stream reader reports samples per channel but does
// not expose the channel layout, so it is parsed here.
func opusChannels(data []byte) (int, error) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	idx := bytes.Index(head, []byte("OpusHead"))
	if idx < 0 || idx+10 > len(data) {
		return 0, fmt.Errorf("missing OpusHead header")
	}
	// OpusHead layout: magic (8) + version (1) + channel count (1)
	channels := int(data[idx+9])
	if channels < 1 || channels > 8 {
		return 0, fmt.Errorf("implausible channel count %d", channels)
	}
	return channels, nil
}
