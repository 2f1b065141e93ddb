package mktorrent

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/anacrolix/torrent/bencode"
)

// Encode serializes mi to canonical bencode.
func Encode(mi *MetaInfo) ([]byte, error) {
	data, err := bencode.Marshal(mi)
	if err != nil {
		return nil, encodingError("encode", err)
	}
	if err := CheckCanonical(data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFile replaces dest with data. The content is staged in a temporary
// file next to dest so a failed write never leaves a truncated descriptor.
func WriteFile(data []byte, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".mktorrent-*")
	if err != nil {
		return ioError("write", dest, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ioError("write", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("write", dest, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return ioError("write", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return ioError("write", dest, err)
	}
	return nil
}

// Load decodes a descriptor produced by Encode.
func Load(r io.Reader) (*MetaInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ioError("load", "", err)
	}
	mi := &MetaInfo{}
	if err := bencode.Unmarshal(data, mi); err != nil {
		return nil, encodingError("decode", err)
	}
	return mi, nil
}

func LoadFile(path string) (*MetaInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("load", path, err)
	}
	defer f.Close()
	return Load(f)
}

// CheckCanonical verifies that data holds exactly one bencoded value whose
// dictionaries list their keys in strictly ascending byte order at every
// level.
func CheckCanonical(data []byte) error {
	end, err := checkValue(data, 0)
	if err != nil {
		return encodingError("check", err)
	}
	if end != len(data) {
		return encodingError("check", fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-end))
	}
	return nil
}

func checkValue(b []byte, i int) (int, error) {
	if i >= len(b) {
		return i, fmt.Errorf("%w: unexpected end at %d", ErrMalformed, i)
	}
	switch c := b[i]; {
	case c == 'i':
		end := bytes.IndexByte(b[i:], 'e')
		if end < 0 {
			return i, fmt.Errorf("%w: unterminated integer at %d", ErrMalformed, i)
		}
		digits := string(b[i+1 : i+end])
		if _, err := strconv.ParseInt(digits, 10, 64); err != nil ||
			digits == "-0" ||
			(len(digits) > 1 && digits[0] == '0') ||
			(len(digits) > 2 && digits[0] == '-' && digits[1] == '0') {
			return i, fmt.Errorf("%w: bad integer %q at %d", ErrMalformed, digits, i)
		}
		return i + end + 1, nil
	case c == 'l':
		i++
		for i < len(b) && b[i] != 'e' {
			var err error
			if i, err = checkValue(b, i); err != nil {
				return i, err
			}
		}
		if i >= len(b) {
			return i, fmt.Errorf("%w: unterminated list", ErrMalformed)
		}
		return i + 1, nil
	case c == 'd':
		i++
		var prev []byte
		first := true
		for i < len(b) && b[i] != 'e' {
			key, next, err := readString(b, i)
			if err != nil {
				return i, err
			}
			if !first && bytes.Compare(prev, key) >= 0 {
				return i, fmt.Errorf("%w: %q after %q", ErrKeyOrder, key, prev)
			}
			prev, first = key, false
			if i, err = checkValue(b, next); err != nil {
				return i, err
			}
		}
		if i >= len(b) {
			return i, fmt.Errorf("%w: unterminated dictionary", ErrMalformed)
		}
		return i + 1, nil
	case c >= '0' && c <= '9':
		_, next, err := readString(b, i)
		return next, err
	default:
		return i, fmt.Errorf("%w: unexpected byte %q at %d", ErrMalformed, c, i)
	}
}

func readString(b []byte, i int) ([]byte, int, error) {
	colon := bytes.IndexByte(b[i:], ':')
	if colon <= 0 {
		return nil, i, fmt.Errorf("%w: bad string at %d", ErrMalformed, i)
	}
	n, err := strconv.Atoi(string(b[i : i+colon]))
	if err != nil || n < 0 || (colon > 1 && b[i] == '0') {
		return nil, i, fmt.Errorf("%w: bad string length at %d", ErrMalformed, i)
	}
	start := i + colon + 1
	if n > len(b)-start {
		return nil, i, fmt.Errorf("%w: string overruns input at %d", ErrMalformed, i)
	}
	return b[start : start+n], start + n, nil
}
