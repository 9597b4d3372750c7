// ABOUTME: Single-sample edge interpolation for the tier-2 correction
package scheduler

// adjustSamples returns a fresh copy of samples with either one
// interpolated frame inserted just after the first frame (renderer
// ahead, e < 0, held back) or the last two frames collapsed into one
// averaged frame (renderer behind, e > 0, sped up). Frames with fewer
// than two channel-frames are returned unchanged. The input is never
// mutated.
func adjustSamples(samples []float32, channels int, e float64) []float32 {
	cp := append([]float32(nil), samples...)

	if channels == 0 || len(cp) < channels*2 {
		return cp
	}

	if e > 0 {
		return deleteTrailingFrame(cp, channels)
	}
	return insertAfterFirstFrame(cp, channels)
}

// insertAfterFirstFrame turns [A, B, C, ...] into [A, (A+B)/2, B, C, ...].
func insertAfterFirstFrame(samples []float32, channels int) []float32 {
	out := make([]float32, len(samples)+channels)
	copy(out[:channels], samples[:channels])
	for ch := 0; ch < channels; ch++ {
		out[channels+ch] = (samples[ch] + samples[channels+ch]) / 2
	}
	copy(out[2*channels:], samples[channels:])
	return out
}

// deleteTrailingFrame turns [..., Y, Z] into [..., (Y+Z)/2].
func deleteTrailingFrame(samples []float32, channels int) []float32 {
	frames := len(samples) / channels
	out := make([]float32, len(samples)-channels)
	copy(out, samples[:len(samples)-2*channels])

	base := len(out) - channels
	yOffset := (frames - 2) * channels
	zOffset := (frames - 1) * channels
	for ch := 0; ch < channels; ch++ {
		out[base+ch] = (samples[yOffset+ch] + samples[zOffset+ch]) / 2
	}
	return out
}
