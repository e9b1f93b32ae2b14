package resampler

import "io"

// frameReader wraps an io.Reader so that every Read returns whole sample
// frames. Bytes of an incomplete frame are held back until the rest arrives.
type frameReader struct {
	r         io.Reader
	frameSize int

	pending  []byte // up to frameSize-1 bytes
	npending int
}

func newFrameReader(r io.Reader, frameSize int) *frameReader {
	return &frameReader{
		r:         r,
		frameSize: frameSize,
		pending:   make([]byte, frameSize-1),
	}
}

// Read fills p with a multiple of frameSize bytes. It returns
// io.ErrShortBuffer when p cannot hold one frame, and io.ErrUnexpectedEOF
// when the source ends inside a frame.
func (fr *frameReader) Read(p []byte) (int, error) {
	if len(p) < fr.frameSize {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/fr.frameSize*fr.frameSize]

	n := copy(p, fr.pending[:fr.npending])
	fr.npending = 0

	rn, err := fr.r.Read(p[n:])
	n += rn
	rem := n % fr.frameSize
	if err != nil {
		if rem != 0 && err == io.EOF {
			return n, io.ErrUnexpectedEOF
		}
		return n, err
	}
	if rem != 0 {
		n -= rem
		fr.npending = copy(fr.pending, p[n:n+rem])
	}
	return n, nil
}
