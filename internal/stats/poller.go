package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/metrics"
)

// Source yields the current snapshot; ok is false when there is nothing to poll.
type Source interface {
	Stats() (report Report, ok bool)
}

// Display is the message area the poller writes to.
type Display interface {
	ShowStats(lines []string)
	ClearStats()
}

// Poller samples a Source on a fixed period and displays the diff against the
// previously retained snapshot.
type Poller struct {
	interval time.Duration
	display  Display
	logger   *zap.Logger

	// runMu serializes Start and Clear so only one loop is ever installed.
	runMu sync.Mutex

	mu     sync.Mutex
	last   Report
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller(interval time.Duration, display Display, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{interval: interval, display: display, logger: logger}
}

// Start begins polling src, replacing any running loop.
func (p *Poller) Start(src Source) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(src)
			}
		}
	}()
}

// Running reports whether a polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Clear stops polling, drops the retained snapshot and clears the display.
func (p *Poller) Clear() {
	p.runMu.Lock()
	p.stop()
	p.mu.Lock()
	p.last = nil
	p.mu.Unlock()
	p.runMu.Unlock()
	p.display.ClearStats()
}

// Last returns the retained snapshot.
func (p *Poller) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// stop cancels the running loop and waits for it. Callers hold runMu.
func (p *Poller) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) tick(src Source) {
	if src == nil {
		metrics.StatsPollsTotal.WithLabelValues("no_session").Inc()
		return
	}
	report, ok := src.Stats()
	if !ok || report == nil {
		metrics.StatsPollsTotal.WithLabelValues("no_report").Inc()
		return
	}

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()

	lines := CreateDisplayStringArray(report, last)
	if len(lines) > 0 {
		p.display.ShowStats(lines)
		p.logger.Debug("stats updated", zap.Int("lines", len(lines)))
		metrics.StatsPollsTotal.WithLabelValues("shown").Inc()
	} else {
		metrics.StatsPollsTotal.WithLabelValues("unchanged").Inc()
	}

	p.mu.Lock()
	p.last = report
	p.mu.Unlock()
}
