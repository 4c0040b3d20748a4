package pcm

// Conversion between 16-bit signed integer wire data and normalized float32
// samples in [-1, 1]. Little-endian is the default byte order (WAV, browser
// capture); the BE variants cover network byte order (RTP audio/L16).

// DecodeSamples converts little-endian 16-bit PCM bytes to float32 samples.
// A trailing odd byte is ignored.
func DecodeSamples(data []byte) []float32 {
	return AppendSamples(make([]float32, 0, len(data)/2), data)
}

// AppendSamples decodes little-endian 16-bit PCM bytes and appends the
// resulting float32 samples to dst.
func AppendSamples(dst []float32, data []byte) []float32 {
	n := len(data) / 2
	for i := 0; i < n; i++ {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		dst = append(dst, float32(s)/32768.0)
	}
	return dst
}

// DecodeSamplesBE converts big-endian (network order) 16-bit PCM bytes to
// float32 samples. A trailing odd byte is ignored.
func DecodeSamplesBE(data []byte) []float32 {
	n := len(data) / 2
	dst := make([]float32, 0, n)
	for i := 0; i < n; i++ {
		s := int16(data[i*2])<<8 | int16(data[i*2+1])
		dst = append(dst, float32(s)/32768.0)
	}
	return dst
}

// SwapToLE converts big-endian 16-bit PCM bytes to little-endian in place,
// without the precision loss of a float round trip. A trailing odd byte is
// left untouched.
func SwapToLE(data []byte) {
	for i := 0; i+1 < len(data); i += 2 {
		data[i], data[i+1] = data[i+1], data[i]
	}
}

// EncodeSamples converts float32 samples to little-endian 16-bit PCM bytes.
// Samples outside [-1, 1] are clamped.
func EncodeSamples(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := clampSample(s)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func clampSample(s float32) int16 {
	if s > 1.0 {
		return 32767
	}
	if s < -1.0 {
		return -32768
	}
	return int16(s * 32767.0)
}
