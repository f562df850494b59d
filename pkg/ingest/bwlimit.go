package ingest

import (
	"io"

	"github.com/juju/ratelimit"
)

type limitedReader struct {
	io.Reader
	r *ratelimit.Bucket
}

func (l *limitedReader) Read(buf []byte) (int, error) {
	n, err := l.Reader.Read(buf)
	if l.r != nil {
		l.r.Wait(int64(n))
	}
	return n, err
}

// RateLimited caps stream ingestion at bytesPerSec, for replaying captures
// at a readable pace. A non-positive rate returns r unchanged.
func RateLimited(r io.Reader, bytesPerSec int64) io.Reader {
	if bytesPerSec <= 0 {
		return r
	}
	return &limitedReader{r, ratelimit.NewBucketWithRate(float64(bytesPerSec), bytesPerSec)}
}
