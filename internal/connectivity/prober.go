package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Prober periodically issues HEAD requests and feeds the result into an Observer.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client
	observer *Observer
}

// NewProber creates a prober. An empty url disables it.
func NewProber(url string, interval, timeout time.Duration, observer *Observer) *Prober {
	return &Prober{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		observer: observer,
	}
}

// Run probes until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	if p.url == "" {
		log.Println("Connectivity prober is disabled. Not starting.")
		return
	}
	log.Println("Starting connectivity prober...")

	p.ProbeOnce(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Connectivity prober shutting down.")
			return
		case <-timer.C:
			p.ProbeOnce(ctx)
			timer.Reset(p.interval)
		}
	}
}

// ProbeOnce performs a single probe and reports whether the target answered.
// Any HTTP answer counts as reachable.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	err := p.head(ctx)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		log.Debugf("connectivity probe failed: %v", err)
	}
	p.observer.Set(err == nil)
	return err == nil
}

func (p *Prober) head(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	resp.Body.Close()
	return nil
}
