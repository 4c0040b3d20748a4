// Package viz ties feature extraction and projection together into
// per-client visualization sessions.
//
// A [Session] owns one feature extractor and one projector. Audio chunks go
// in, [Frame] values come out: a 3D position plus the descriptors a renderer
// needs to drive color, scale and motion. A [Manager] keeps sessions keyed
// by ID and expires the ones that go quiet.
package viz

import "github.com/auravis/auravis/pkg/jsontime"

// Frame is one visualization update, emitted per processed chunk.
//
// X, Y and Z are in [0, 1]. Until the session's projector has trained, the
// position holds the center of the cube and Progress reports how close
// training is.
type Frame struct {
	Timestamp jsontime.Milli `json:"timestamp"`

	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`

	RMS      float32 `json:"rms"`
	Centroid float32 `json:"centroid"`
	Spread   float32 `json:"spread"`
	Tonality float32 `json:"tonality"`
	ZCR      float32 `json:"zcr"`
	Rolloff  float32 `json:"rolloff"`

	Trained  bool    `json:"trained"`
	Progress float64 `json:"progress"`
	Seq      uint64  `json:"seq"`
}
