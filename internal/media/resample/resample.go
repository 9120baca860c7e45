// ABOUTME: Sample rate and channel conversion for decoded clips
// ABOUTME: Linear interpolation resampling on interleaved int16 frames
package resample

// Linear converts interleaved samples from inRate to outRate using linear
// interpolation. Returns the input unchanged when the rates already match.
func Linear(in []int16, channels, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 || channels <= 0 {
		return in
	}

	inFrames := len(in) / channels
	outFrames := int(int64(inFrames) * int64(outRate) / int64(inRate))
	if outFrames == 0 {
		return nil
	}

	ratio := float64(inRate) / float64(outRate)
	out := make([]int16, outFrames*channels)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}

		for ch := 0; ch < channels; ch++ {
			s1 := float64(in[idx*channels+ch])
			s2 := float64(in[next*channels+ch])
			out[i*channels+ch] = int16(s1*(1.0-frac) + s2*frac)
		}
	}

	return out
}

// MonoToStereo duplicates each mono sample into a stereo frame.
func MonoToStereo(in []int16) []int16 {
	out := make([]int16, len(in)*2)
	for i, s := range in {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}
