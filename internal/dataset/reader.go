package dataset

// reader.go cleans up the byte stream before CSV decoding:
//
//   - bomSkippingReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) written by
//     Windows tools, so it does not end up glued to the first header name.
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly, so every
//     cell is valid text without buffering the whole file first.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader wraps a buffered reader and discards a leading BOM.
type bomSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{r: bufio.NewReader(r)}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err != nil && err != io.EOF {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer rewrites invalid UTF-8 in place. A multi-byte sequence split
// across two reads is carried over in pending rather than being mangled.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		// Too small to guarantee progress with a carried-over prefix.
		buf := make([]byte, utf8.UTFMax)
		n, err := s.Read(buf)
		copy(p, buf[:n])
		if n > len(p) {
			s.pending = append(append([]byte{}, buf[len(p):n]...), s.pending...)
			n = len(p)
		}
		return n, err
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize compacts data in place and returns the number of bytes to emit.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[read:]) {
				s.pending = append(s.pending, data[read:]...)
				return write
			}
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// wrapInput applies BOM skipping and UTF-8 sanitization, in that order.
func wrapInput(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkippingReader(r))
}
