package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"golang.org/x/time/rate"
)

// Logger is what the engine needs from a logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

func rateLimiter(rstr string) (*rate.Limiter, error) {
	var rateSize int
	rstr = strings.ToLower(strings.TrimSpace(rstr))
	switch rstr {
	case "low":
		// ~50k/s
		rateSize = 50000
	case "medium":
		// ~500k/s
		rateSize = 500000
	case "high":
		// ~1500k/s
		rateSize = 1500000
	case "unlimited", "0", "":
		// unlimited
		return rate.NewLimiter(rate.Inf, 0), nil
	default:
		var v datasize.ByteSize
		err := v.UnmarshalText([]byte(rstr))
		if err != nil {
			return nil, err
		}
		if v > 2147483647 {
			// max of int, unlimited
			return nil, errors.New("excceed int val")
		}

		rateSize = int(v)
	}
	return rate.NewLimiter(rate.Limit(rateSize), rateSize*3), nil
}

func mkdir(dirpath string) error {
	st, err := os.Stat(dirpath)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dirpath, os.ModePerm)
	}
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("path exists but is not a directory: %s", dirpath)
	}
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// preallocate writes zeros until path is size bytes long. Existing content
// is kept.
func preallocate(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() >= size {
		return nil
	}
	if _, err := f.Seek(st.Size(), io.SeekStart); err != nil {
		return err
	}
	_, err = io.CopyN(f, zeroReader{}, size-st.Size())
	return err
}
