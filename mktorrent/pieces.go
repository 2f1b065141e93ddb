package mktorrent

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
)

// Slicer walks content in pieceLength chunks. The last chunk may be
// shorter. Empty content yields a single empty chunk.
type Slicer struct {
	content     []byte
	pieceLength int64
	off         int64
	done        bool
}

func NewSlicer(content []byte, pieceLength int64) *Slicer {
	if pieceLength <= 0 {
		panic("mktorrent: non-positive piece length")
	}
	return &Slicer{content: content, pieceLength: pieceLength}
}

// Next returns the next chunk, or false once the content is exhausted.
func (s *Slicer) Next() ([]byte, bool) {
	if s.done {
		return nil, false
	}
	size := int64(len(s.content))
	end := s.off + s.pieceLength
	if end >= size {
		end = size
		s.done = true
	}
	p := s.content[s.off:end]
	s.off = end
	return p, true
}

// Reset rewinds the slicer so the same boundaries are produced again.
func (s *Slicer) Reset() {
	s.off = 0
	s.done = false
}

// Len is the number of chunks Next yields from the start.
func (s *Slicer) Len() int {
	n := (int64(len(s.content)) + s.pieceLength - 1) / s.pieceLength
	if n == 0 {
		return 1
	}
	return int(n)
}

// HashPieces concatenates the binary SHA-1 of every chunk in order.
func HashPieces(content []byte, pieceLength int64) []byte {
	s := NewSlicer(content, pieceLength)
	out := make([]byte, 0, s.Len()*pieceHashSize)
	for p, ok := s.Next(); ok; p, ok = s.Next() {
		sum := sha1.Sum(p)
		out = append(out, sum[:]...)
	}
	return out
}

// MD5Hex is the lowercase hex MD5 of the whole content.
func MD5Hex(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
