// Package buffer provides a thread-safe fixed-capacity ring for streaming
// data.
//
// Ring keeps the newest data and silently drops the oldest when full, which
// is the behavior every sliding window in this codebase needs: the rolling
// audio sample window feeding feature extraction, the per-session history of
// recently produced frames, and bounded log tails in the CLI.
//
// Writers never block. Readers may either poll the current window with
// Snapshot/Tail or consume elements in order with Read/Next, which block
// until data arrives. CloseWrite ends a stream gracefully (readers drain,
// then see io.EOF or ErrDone); CloseWithError tears both sides down.
//
// Example usage:
//
//	// Retain the most recent 32000 samples (2s at 16kHz)
//	win := buffer.NewRing[float32](32000)
//
//	// Append a decoded chunk; oldest samples fall off
//	win.Write(samples)
//
//	// Copy out the current window for analysis
//	window := win.Snapshot()
package buffer
