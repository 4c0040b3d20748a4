package cli

import (
	"github.com/auravis/auravis/pkg/buffer"
)

// LogBuffer is a thread-safe log tail with a bounded line count.
type LogBuffer = buffer.Ring[string]

// NewLogBuffer creates a new buffer retaining the last maxLines lines.
func NewLogBuffer(maxLines int) *LogBuffer {
	return buffer.NewRing[string](maxLines)
}
