package ring

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// limitedWriter bounds relay forwarding throughput with a token bucket
// (spec §11: golang.org/x/time/rate). It is used only by FILE RELAY-STREAM
// forwarding, and only when RelayBytesPerSec is set; T_relay itself is
// enforced separately by the connection deadline.
type limitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	burst := l.limiter.Burst()
	written := 0
	for written < len(p) {
		n := len(p) - written
		if burst > 0 && n > burst {
			n = burst
		}
		if err := l.limiter.WaitN(context.Background(), n); err != nil {
			return written, err
		}
		nw, err := l.w.Write(p[written : written+n])
		written += nw
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
