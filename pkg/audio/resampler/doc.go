// Package resampler converts 16-bit PCM audio between sample rates and
// channel layouts. The analysis pipeline works at a fixed session rate,
// while network sources deliver whatever their capture hardware produced;
// this package bridges the two.
//
// It supports:
//   - Sample rate conversion (e.g., 48000Hz to 16000Hz)
//   - Channel conversion (mono to stereo or stereo to mono)
//   - Streaming interface via io.Reader
//
// Rate conversion is pure Go (no CGO), using high quality settings by
// default.
//
// Example usage:
//
//	src := resampler.Format{SampleRate: 48000, Stereo: true}
//	dst := resampler.Format{SampleRate: 16000, Stereo: false}
//	r, err := resampler.New(audioReader, src, dst)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Read resampled audio from r
//	io.Copy(output, r)
package resampler
