// ABOUTME: Whole-clip audio decoding for soundboard samples
// ABOUTME: Dispatches on file extension with a magic-byte sniff fallback
package decode

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Clip is a fully decoded sample: interleaved int16 PCM.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Duration returns the clip length
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Decode decodes an entire encoded sample into PCM. The format is chosen
// from the name's extension when recognized, otherwise from the content's
// magic bytes.
func Decode(name string, data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, fmt.Errorf("empty audio data")
	}

	format := formatFromName(name)
	if format == "" {
		format = sniffFormat(data)
	}

	switch format {
	case "mp3":
		return decodeMP3(data)
	case "wav":
		return decodeWAV(data)
	case "vorbis":
		return decodeVorbis(data)
	case "opus":
		return decodeOpus(data)
	case "flac":
		return decodeFLAC(data)
	default:
		return Clip{}, fmt.Errorf("unsupported audio format for %q", name)
	}
}

// formatFromName maps a file extension to a decoder name
func formatFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "mp3"
	case ".wav", ".wave":
		return "wav"
	case ".ogg", ".oga":
		return "vorbis"
	case ".opus":
		return "opus"
	case ".flac":
		return "flac"
	default:
		return ""
	}
}

// sniffFormat identifies a format from leading magic bytes
func sniffFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		// Ogg container: opus and vorbis declare themselves in the
		// first pages
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		if bytes.Contains(head, []byte("OpusHead")) {
			return "opus"
		}
		return "vorbis"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Bare MPEG frame sync
		return "mp3"
	default:
		return ""
	}
}

// scaleTo16 converts a sample at the given bit depth to 16-bit range
func scaleTo16(v int, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return int16(v)
	case bitDepth == 8:
		// 8-bit PCM is unsigned
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v << (16 - bitDepth))
	}
}
