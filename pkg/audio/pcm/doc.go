// Package pcm provides types and utilities for working with raw PCM
// (Pulse Code Modulation) audio data.
//
// The package defines audio formats for common 16-bit mono configurations
// and conversion helpers between wire bytes and normalized float32 samples,
// which is the representation the analysis pipeline operates on.
//
// Key types:
//   - Format: Represents audio format (sample rate, channels, bit depth)
//   - Chunk: Interface for audio data chunks
//   - DataChunk: Concrete implementation of Chunk for raw audio data
//   - SilenceChunk: Chunk that produces silence of a specified duration
//
// Example usage:
//
//	// Create a 16kHz mono format
//	format := pcm.L16Mono16K
//
//	// Calculate bytes needed for 20ms of audio
//	bytes := format.BytesInDuration(20 * time.Millisecond)
//
//	// Decode wire bytes to normalized samples
//	samples := pcm.DecodeSamples(audioData)
package pcm
