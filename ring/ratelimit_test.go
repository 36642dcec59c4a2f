package ring

import (
	"bytes"
	"testing"

	"golang.org/x/time/rate"
)

func TestLimitedWriterRespectsBurstChunking(t *testing.T) {
	limiter := rate.NewLimiter(rate.Inf, 4) // burst of 4, no steady-state delay
	var dst bytes.Buffer
	lw := &limitedWriter{w: &dst, limiter: limiter}

	payload := []byte("0123456789") // 10 bytes, larger than the 4-byte burst
	n, err := lw.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("Write returned n=%d, want %d", n, len(payload))
	}
	if !bytes.Equal(dst.Bytes(), payload) {
		t.Fatalf("destination = %q, want %q", dst.Bytes(), payload)
	}
}
