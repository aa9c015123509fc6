package terminal

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// chunkDecoder turns raw PTY reads into valid UTF-8 strings. Invalid bytes
// become U+FFFD. A multi-byte sequence split across two reads is held back
// and completed by the next chunk instead of being replaced.
type chunkDecoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newChunkDecoder() *chunkDecoder {
	return &chunkDecoder{t: unicode.UTF8.NewDecoder()}
}

// Decode converts p, carrying any incomplete trailing sequence forward
func (d *chunkDecoder) Decode(p []byte) string {
	return d.decode(p, false)
}

// Flush emits whatever is still pending as replacement characters
func (d *chunkDecoder) Flush() string {
	return d.decode(nil, true)
}

func (d *chunkDecoder) decode(p []byte, atEOF bool) string {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}
	if len(src) == 0 {
		return ""
	}

	var out []byte
	for {
		// Worst case every byte becomes a 3-byte U+FFFD
		if need := 3*len(src) + utf8.UTFMax; cap(d.dst) < need {
			d.dst = make([]byte, need)
		}
		dst := d.dst[:cap(d.dst)]

		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			return string(out)
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return string(out)
		case errors.Is(err, transform.ErrShortDst):
			d.dst = make([]byte, 2*cap(d.dst))
		default:
			// The UTF-8 decoder only reports short buffers
			return string(out)
		}
	}
}
