package resampler

import "fmt"

// Format describes a 16-bit signed little-endian PCM stream on one side of a
// conversion. The feature pipeline is mono internally; inbound streams may
// carry other rates or stereo interleaving.
type Format struct {
	// SampleRate in Hz.
	SampleRate int

	// Stereo selects two interleaved channels; mono otherwise.
	Stereo bool
}

// String renders the format as s16le/<rate>/<channels>.
func (f Format) String() string {
	return fmt.Sprintf("s16le/%d/%d", f.SampleRate, f.channels())
}

func (f Format) channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

// frameBytes is the byte size of one frame (all channels of one sample).
func (f Format) frameBytes() int {
	return 2 * f.channels()
}
