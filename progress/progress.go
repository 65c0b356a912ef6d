// Package progress reports how much payload data has been written to the
// volume.
package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
)

type Reporter struct {
	Out io.Writer

	written uint64
	total   uint64

	mu     sync.Mutex
	status string
}

// Writer returns an io.Writer counting the bytes written to it, typically
// used with io.TeeReader.
func (p *Reporter) Writer() io.Writer { return counter{p} }

type counter struct{ p *Reporter }

func (c counter) Write(b []byte) (n int, err error) {
	atomic.AddUint64(&c.p.written, uint64(len(b)))
	return len(b), nil
}

func (p *Reporter) Written() uint64 {
	return atomic.LoadUint64(&p.written)
}

func (p *Reporter) SetStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *Reporter) SetTotal(total uint64) {
	atomic.StoreUint64(&p.total, total)
}

func (p *Reporter) getStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Reporter) line(written, bytesPerS uint64) string {
	rate := units.HumanSize(float64(bytesPerS)) + "/s"
	status := rate
	if total := atomic.LoadUint64(&p.total); total > 0 {
		pct := float64(written) / float64(total) * 100
		status = fmt.Sprintf("%02.2f%% of %s, writing at %s",
			pct,
			units.HumanSize(float64(total)),
			rate)
	}
	return fmt.Sprintf("\r[%s] %s                 ", p.getStatus(), status)
}

// Report prints the status line once per interval until ctx is done.
func (p *Reporter) Report(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := p.Written()
	for {
		select {
		case <-ticker.C:
			written := p.Written()
			perInterval := written - last
			last = written
			bytesPerS := uint64(float64(perInterval) / interval.Seconds())
			fmt.Fprint(p.Out, p.line(written, bytesPerS))
		case <-ctx.Done():
			fmt.Fprintln(p.Out)
			return
		}
	}
}
