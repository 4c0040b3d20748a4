// Package ingest receives packetized PCM over RTP/UDP and feeds it to a
// visualization session.
//
// The receiver accepts L16 (16-bit big-endian, mono) payloads on a
// configured dynamic payload type, converts them to the little-endian
// byte order the pipeline expects, resamples when the RTP clock rate
// differs from the session rate, and hands each chunk to the configured
// process function. Malformed packets are dropped, never fatal.
package ingest
