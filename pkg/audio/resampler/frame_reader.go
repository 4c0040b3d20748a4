package resampler

import "io"

// frameReader wraps an io.Reader so each Read returns whole PCM frames.
// Bytes left over from an unaligned underlying read are carried into the
// next call.
type frameReader struct {
	carry   []byte // up to frameSize-1 leftover bytes
	carried int

	frameSize int

	r io.Reader
}

func newFrameReader(r io.Reader, frameSize int) *frameReader {
	return &frameReader{
		carry:     make([]byte, frameSize-1),
		frameSize: frameSize,
		r:         r,
	}
}

// Read fills p with a multiple of frameSize bytes. It returns
// io.ErrShortBuffer when p cannot hold a single frame and
// io.ErrUnexpectedEOF when the stream ends mid-frame.
func (fr *frameReader) Read(p []byte) (n int, err error) {
	if len(p) < fr.frameSize {
		return 0, io.ErrShortBuffer
	}

	p = p[:len(p)/fr.frameSize*fr.frameSize]
	if fr.carried > 0 {
		n = copy(p, fr.carry[:fr.carried])
		fr.carried = 0
	}

	rn, err := fr.r.Read(p[n:])
	n += rn
	if err != nil {
		if n%fr.frameSize != 0 && err == io.EOF {
			return n, io.ErrUnexpectedEOF
		}
		return n, err
	}
	if mod := n % fr.frameSize; mod != 0 {
		n -= mod
		copy(fr.carry[:mod], p[n:n+mod])
		fr.carried = mod
	}
	return n, nil
}
